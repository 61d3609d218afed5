package api

import (
	"encoding/json"
	"net/http"
	"time"

	"shiptwin/internal/buildinfo"
	"shiptwin/internal/logger"
	"shiptwin/internal/model"
	"shiptwin/internal/webhooks"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// TelemetryHandler handles POST /v1/telemetry
func (s *Server) TelemetryHandler(w http.ResponseWriter, r *http.Request) {
	var rec model.TelemetryRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if rec.DeviceID != "" && !s.Limiter.Allow(rec.DeviceID) {
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "device "+rec.DeviceID+" exceeded its telemetry rate", r.URL.Path)
		return
	}
	if err := s.Engine.IngestTelemetry(r.Context(), rec); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"shipmentId": rec.ShipmentID, "accepted": true})
}

// ShipmentsHandler handles GET /v1/shipments
func (s *Server) ShipmentsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Engine.GetAllDigitalTwins()})
}

// ShipmentHandler handles GET /v1/shipments/{id}
func (s *Server) ShipmentHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.Engine.GetDigitalTwin(id)
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "shipment "+id+" not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// AlertsHandler handles GET /v1/shipments/{id}/alerts
func (s *Server) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Engine.GetActiveAlerts(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GeofenceHandler handles PUT /v1/shipments/{id}/geofence
func (s *Server) GeofenceHandler(w http.ResponseWriter, r *http.Request) {
	var gf model.Geofence
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&gf); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	id := r.PathValue("id")
	if err := s.Engine.SetGeofence(r.Context(), id, gf); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipmentId": id, "geofence": gf})
}

// ResolveHandler handles POST /v1/shipments/{id}/alerts/{alertId}/resolve
func (s *Server) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.ResolveAlert(r.Context(), r.PathValue("id"), r.PathValue("alertId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebhookDLQHandler handles GET /v1/admin/webhook-dlq
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
	type item struct {
		ID           string          `json:"id"`
		URL          string          `json:"url"`
		EventType    string          `json:"eventType"`
		Attempts     int             `json:"attempts"`
		LastError    string          `json:"lastError,omitempty"`
		ResponseCode int             `json:"responseCode,omitempty"`
		Payload      json.RawMessage `json:"payload"`
	}
	items := []item{}
	var dead []webhooks.Delivery
	if s.DLQ != nil {
		dead = s.DLQ.DeadLetters()
	}
	for _, d := range dead {
		items = append(items, item{
			ID: d.ID, URL: d.URL, EventType: d.EventType, Attempts: d.Attempts,
			LastError: d.LastError, ResponseCode: d.ResponseCode, Payload: d.Payload,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "twins": s.Engine.TwinCount()})
}

// DebugInfoHandler handles GET /debug/info
func (s *Server) DebugInfoHandler(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
	}
	if c := s.Config; c != nil {
		info["config"] = map[string]any{
			"port":               c.Server.Port,
			"logLevel":           logger.Level().String(),
			"historySize":        c.Engine.HistorySize,
			"rateRps":            c.Rate.RPS,
			"rateBurst":          c.Rate.Burst,
			"webhookMaxAttempts": c.Webhooks.MaxAttempts,
			"webhookTargets":     len(c.Webhooks.Targets),
			"hasRedisUrl":        c.Redis.URL != "",
			"hasRabbitmqUrl":     c.RabbitMQ.URL != "",
			"hasMqttBroker":      c.MQTT.Broker != "",
		}
	}
	writeJSON(w, http.StatusOK, info)
}
