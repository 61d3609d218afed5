// Package events defines the closed set of twin state-change notifications
// and delivers them to in-process observers.
package events

import (
	"shiptwin/internal/model"
)

// Kind names an event channel.
type Kind string

const (
	KindTwinUpdated   Kind = "digital-twin:updated"
	KindAlertRaised   Kind = "alert"
	KindGeofenceSet   Kind = "geofence:set"
	KindAlertResolved Kind = "alert:resolved"
)

// Kinds lists every event kind.
var Kinds = []Kind{KindTwinUpdated, KindAlertRaised, KindGeofenceSet, KindAlertResolved}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// Event is implemented only by the payload types in this package.
type Event interface {
	Kind() Kind
	Shipment() string
	sealed()
}

// TwinUpdated follows every accepted telemetry record.
type TwinUpdated struct {
	ShipmentID string      `json:"shipmentId"`
	Twin       *model.Twin `json:"twin"`
}

// AlertRaised is emitted once per newly created alert; repeated breaches of
// an open alert are not re-announced.
type AlertRaised struct {
	ShipmentID string      `json:"shipmentId"`
	DeviceID   string      `json:"deviceId"`
	Alert      model.Alert `json:"alert"`
}

type GeofenceSet struct {
	ShipmentID string         `json:"shipmentId"`
	Geofence   model.Geofence `json:"geofence"`
}

// AlertResolved is emitted on the first transition to resolved, manual or automatic.
type AlertResolved struct {
	ShipmentID string      `json:"shipmentId"`
	AlertID    string      `json:"alertId"`
	Alert      model.Alert `json:"alert"`
}

func (TwinUpdated) Kind() Kind   { return KindTwinUpdated }
func (AlertRaised) Kind() Kind   { return KindAlertRaised }
func (GeofenceSet) Kind() Kind   { return KindGeofenceSet }
func (AlertResolved) Kind() Kind { return KindAlertResolved }

func (e TwinUpdated) Shipment() string   { return e.ShipmentID }
func (e AlertRaised) Shipment() string   { return e.ShipmentID }
func (e GeofenceSet) Shipment() string   { return e.ShipmentID }
func (e AlertResolved) Shipment() string { return e.ShipmentID }

func (TwinUpdated) sealed()   {}
func (AlertRaised) sealed()   {}
func (GeofenceSet) sealed()   {}
func (AlertResolved) sealed() {}
