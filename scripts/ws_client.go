// Package main runs a demo WebSocket client for shipment events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	shipmentID := "demo-1"

	// Connect WS first so the first twin update is not missed.
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws", RawQuery: "shipmentId=" + shipmentID}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var env struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := c.ReadJSON(&env); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", env.Type, string(env.Data))
		}
	}()

	// Geofence around the origin, then one reading inside and one 2 km out.
	send(base+"/v1/shipments/"+shipmentID+"/geofence", http.MethodPut,
		`{"center":{"latitude":0,"longitude":0},"radius":1000}`)
	time.Sleep(200 * time.Millisecond)
	for _, lat := range []float64{0.001, 0.018} {
		body := fmt.Sprintf(`{"shipmentId":%q,"deviceId":"dev-1","timestamp":%q,"location":{"latitude":%g,"longitude":0},"sensors":{"temperature":21},"battery":80}`,
			shipmentID, time.Now().UTC().Format(time.RFC3339), lat)
		send(base+"/v1/telemetry", http.MethodPost, body)
	}

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}

func send(u, method, body string) {
	req, _ := http.NewRequest(method, u, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("%s %s -> %d", method, u, resp.StatusCode)
}
