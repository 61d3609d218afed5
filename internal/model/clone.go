package model

import "time"

// Clone helpers. Values handed out of the engine are always copies so that
// callers never alias live twin state.

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Clone returns a deep copy of the location.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	c := *l
	c.Accuracy = cloneFloat(l.Accuracy)
	return &c
}

// Clone returns a deep copy of the sensor readings.
func (s Sensors) Clone() Sensors {
	return Sensors{
		Temperature: cloneFloat(s.Temperature),
		Humidity:    cloneFloat(s.Humidity),
		Vibration:   cloneFloat(s.Vibration),
		Shock:       cloneFloat(s.Shock),
		Tilt:        cloneFloat(s.Tilt),
	}
}

func (s *Signal) Clone() *Signal {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Clone returns a deep copy of the geofence.
func (g *Geofence) Clone() *Geofence {
	if g == nil {
		return nil
	}
	c := *g
	if g.AllowedZones != nil {
		c.AllowedZones = append([]Zone(nil), g.AllowedZones...)
	}
	return &c
}

func (c *Containment) Clone() *Containment {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// Clone returns a deep copy of the alert.
func (a Alert) Clone() Alert {
	a.ResolvedAt = cloneTime(a.ResolvedAt)
	return a
}

// Clone returns a deep copy of the twin.
func (t *Twin) Clone() *Twin {
	if t == nil {
		return nil
	}
	c := *t
	c.CurrentLocation = t.CurrentLocation.Clone()
	c.LocationHistory = make([]Location, len(t.LocationHistory))
	for i := range t.LocationHistory {
		c.LocationHistory[i] = *t.LocationHistory[i].Clone()
	}
	c.LatestSensors = t.LatestSensors.Clone()
	c.BatteryLevel = cloneFloat(t.BatteryLevel)
	c.Signal = t.Signal.Clone()
	c.Geofence = t.Geofence.Clone()
	c.GeofenceStatus = t.GeofenceStatus.Clone()
	c.Alerts = make([]Alert, len(t.Alerts))
	for i := range t.Alerts {
		c.Alerts[i] = t.Alerts[i].Clone()
	}
	return &c
}
