package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire form of an event for external consumers.
type Envelope struct {
	ID         string `json:"id"`
	Type       Kind   `json:"type"`
	ShipmentID string `json:"shipmentId"`
	TS         string `json:"ts"`
	Data       Event  `json:"data"`
}

// NewEnvelope wraps e with a fresh id and timestamp.
func NewEnvelope(e Event, at time.Time) Envelope {
	return Envelope{
		ID:         "evt_" + uuid.New().String(),
		Type:       e.Kind(),
		ShipmentID: e.Shipment(),
		TS:         at.UTC().Format(time.RFC3339Nano),
		Data:       e,
	}
}

// Marshal returns the JSON envelope for e.
func Marshal(e Event, at time.Time) ([]byte, error) {
	return json.Marshal(NewEnvelope(e, at))
}
