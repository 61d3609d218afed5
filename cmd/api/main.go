package main

import "shiptwin/cmd/api/cmd"

func main() {
	cmd.Execute()
}
