// Package buildinfo carries version metadata injected at link time with
// -ldflags "-X shiptwin/internal/buildinfo.Version=...".
package buildinfo

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
}

// Full returns a one-line description for the version command.
func Full() string {
	commit := Commit
	if commit == "" {
		commit = "unknown"
	}
	built := BuiltAt
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("shiptwin %s (commit %s, built %s, %s)", Version, commit, built, runtime.Version())
}
