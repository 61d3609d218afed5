// Package api exposes the twin engine over HTTP and WebSocket.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shiptwin/internal/config"
	"shiptwin/internal/events"
	"shiptwin/internal/metrics"
	"shiptwin/internal/tracker"
	"shiptwin/internal/webhooks"
)

type Server struct {
	Engine  *tracker.Engine
	Broker  *events.Broker
	Limiter *DeviceLimiter
	Config  *config.Config
	// DLQ is optional; when set the dead-letter admin endpoint lists it.
	DLQ *webhooks.MemoryQueue
}

// NewServer wires an HTTP front for engine. The broker is subscribed to every
// event kind so WebSocket clients see the full stream.
func NewServer(cfg *config.Config, engine *tracker.Engine) *Server {
	b := events.NewBroker(64)
	engine.Notifier().SubscribeAll(b.Handle)
	return &Server{
		Engine:  engine,
		Broker:  b,
		Limiter: NewDeviceLimiter(cfg.Rate.RPS, cfg.Rate.Burst),
		Config:  cfg,
	}
}

// Routes returns the full handler tree including middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Telemetry and twins
	mux.HandleFunc("POST /v1/telemetry", s.TelemetryHandler)
	mux.HandleFunc("GET /v1/shipments", s.ShipmentsHandler)
	mux.HandleFunc("GET /v1/shipments/{id}", s.ShipmentHandler)
	mux.HandleFunc("GET /v1/shipments/{id}/alerts", s.AlertsHandler)
	mux.HandleFunc("PUT /v1/shipments/{id}/geofence", s.GeofenceHandler)
	mux.HandleFunc("POST /v1/shipments/{id}/alerts/{alertId}/resolve", s.ResolveHandler)

	// Event stream
	mux.HandleFunc("GET /v1/events/ws", s.EventsWSHandler)

	// Admin
	mux.HandleFunc("GET /v1/admin/webhook-dlq", s.WebhookDLQHandler)

	// Ops
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /debug/info", s.DebugInfoHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return logMiddleware(mux)
}
