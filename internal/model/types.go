package model

import "time"

// Core domain types for shipment digital twins.

// Point is a bare WGS84 coordinate.
type Point struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Location is an observed position of a shipment's device.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
}

// Point drops accuracy and timing.
func (l Location) Point() Point { return Point{Latitude: l.Latitude, Longitude: l.Longitude} }

// Sensors holds optional readings. A nil field means "not reported".
type Sensors struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty" validate:"omitempty,gte=0,lte=100"`
	Vibration   *float64 `json:"vibration,omitempty" validate:"omitempty,gte=0"`
	Shock       *float64 `json:"shock,omitempty" validate:"omitempty,gte=0"`
	Tilt        *float64 `json:"tilt,omitempty" validate:"omitempty,gte=0,lte=360"`
}

type Signal struct {
	Strength float64 `json:"strength" validate:"gte=-120,lte=0"`
	Network  string  `json:"network,omitempty"`
}

// Zone is a circle of Radius metres around Center.
type Zone struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius" validate:"gt=0,finite"`
}

// Geofence is a primary zone plus optional extra zones; a point is contained
// when it lies in any of them.
type Geofence struct {
	Center       Point   `json:"center"`
	Radius       float64 `json:"radius" validate:"gt=0,finite"`
	AllowedZones []Zone  `json:"allowedZones,omitempty" validate:"omitempty,dive"`
}

// Zones returns the primary zone followed by the allowed zones.
func (g *Geofence) Zones() []Zone {
	out := make([]Zone, 0, 1+len(g.AllowedZones))
	out = append(out, Zone{Center: g.Center, Radius: g.Radius})
	return append(out, g.AllowedZones...)
}

// Containment is the outcome of the last geofence evaluation.
type Containment struct {
	Inside bool `json:"inside"`
	// Zone is the index into Geofence.Zones() that matched, -1 when outside.
	Zone            int       `json:"zone"`
	NearestDistance float64   `json:"nearestDistance"`
	CheckedAt       time.Time `json:"checkedAt"`
}

type AlertType string

const (
	AlertTemperature AlertType = "temperature"
	AlertHumidity    AlertType = "humidity"
	AlertVibration   AlertType = "vibration"
	AlertShock       AlertType = "shock"
	AlertBattery     AlertType = "battery"
	AlertGeofence    AlertType = "geofence"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Resolution modes recorded on resolved alerts.
const (
	ResolvedAuto   = "auto"
	ResolvedManual = "manual"
)

type Alert struct {
	ID          string     `json:"id"`
	Type        AlertType  `json:"type"`
	Severity    Severity   `json:"severity"`
	Message     string     `json:"message"`
	Value       float64    `json:"value"`
	Threshold   string     `json:"threshold"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Occurrences int        `json:"occurrences"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy  string     `json:"resolvedBy,omitempty"`
}

// Twin is the live state of one shipment.
type Twin struct {
	ShipmentID      string       `json:"shipmentId"`
	DeviceID        string       `json:"deviceId"`
	CurrentLocation *Location    `json:"currentLocation,omitempty"`
	LocationHistory []Location   `json:"locationHistory"`
	LatestSensors   Sensors      `json:"latestSensors"`
	BatteryLevel    *float64     `json:"batteryLevel,omitempty"`
	Signal          *Signal      `json:"signal,omitempty"`
	Geofence        *Geofence    `json:"geofence,omitempty"`
	GeofenceStatus  *Containment `json:"geofenceStatus,omitempty"`
	Alerts          []Alert      `json:"alerts"`
	TelemetryCount  int          `json:"telemetryCount"`
	CreatedAt       time.Time    `json:"createdAt"`
	LastUpdated     time.Time    `json:"lastUpdated"`
}

// LocationIn is the location part of an incoming record.
type LocationIn struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Accuracy  *float64 `json:"accuracy,omitempty" validate:"omitempty,gt=0"`
}

// TelemetryRecord is one device reading as received from the outside.
type TelemetryRecord struct {
	ShipmentID string      `json:"shipmentId" validate:"required,notblank"`
	DeviceID   string      `json:"deviceId" validate:"required,notblank"`
	Timestamp  time.Time   `json:"timestamp" validate:"required"`
	Location   *LocationIn `json:"location" validate:"required"`
	Sensors    *Sensors    `json:"sensors,omitempty" validate:"omitempty"`
	Battery    *float64    `json:"battery,omitempty" validate:"omitempty,gte=0,lte=100"`
	Signal     *Signal     `json:"signal,omitempty" validate:"omitempty"`
}
