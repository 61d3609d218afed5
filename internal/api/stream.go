package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"shiptwin/internal/events"
	"shiptwin/internal/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// EventsWSHandler handles GET /v1/events/ws. Each event is written as a JSON
// envelope; ?shipmentId= restricts the stream to one shipment.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	shipmentID := r.URL.Query().Get("shipmentId")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(shipmentID)
	defer s.Broker.Unsubscribe(shipmentID, ch)

	ctx := logger.WithKV(r.Context(), "shipment_filter", shipmentID)
	logger.Debug(ctx, "Event stream opened")

	// Reader: only control frames are expected; a read error means the client left.
	done := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			logger.Debug(ctx, "Event stream closed")
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(events.NewEnvelope(e, time.Now())); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
