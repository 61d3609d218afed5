package alerts

import (
	"fmt"

	"shiptwin/internal/model"
)

// Fixed thresholds.
const (
	TemperatureMin = -20.0
	TemperatureMax = 60.0
	HumidityMax    = 80.0
	VibrationMax   = 5.0
	ShockMax       = 10.0
	BatteryMin     = 20.0
)

// Breach describes one rule violation found on a twin.
type Breach struct {
	Value     float64
	Threshold string
	Message   string
}

// Rule is a threshold check over the merged twin state.
type Rule struct {
	Type     model.AlertType
	Severity model.Severity
	Check    func(t *model.Twin) (Breach, bool)
}

// DefaultRules covers sensor and battery thresholds. Geofence containment is
// evaluated separately because it depends on the evaluator result, not on a
// stored reading.
var DefaultRules = []Rule{
	{
		Type:     model.AlertTemperature,
		Severity: model.SeverityCritical,
		Check: func(t *model.Twin) (Breach, bool) {
			v := t.LatestSensors.Temperature
			switch {
			case v == nil:
				return Breach{}, false
			case *v < TemperatureMin:
				return Breach{
					Value:     *v,
					Threshold: fmt.Sprintf("below %g°C", TemperatureMin),
					Message:   fmt.Sprintf("Temperature %.1f°C is below %g°C", *v, TemperatureMin),
				}, true
			case *v > TemperatureMax:
				return Breach{
					Value:     *v,
					Threshold: fmt.Sprintf("above %g°C", TemperatureMax),
					Message:   fmt.Sprintf("Temperature %.1f°C is above %g°C", *v, TemperatureMax),
				}, true
			}
			return Breach{}, false
		},
	},
	{
		Type:     model.AlertHumidity,
		Severity: model.SeverityMedium,
		Check:    above(func(t *model.Twin) *float64 { return t.LatestSensors.Humidity }, HumidityMax, "Humidity", "%"),
	},
	{
		Type:     model.AlertVibration,
		Severity: model.SeverityMedium,
		Check:    above(func(t *model.Twin) *float64 { return t.LatestSensors.Vibration }, VibrationMax, "Vibration", "g"),
	},
	{
		Type:     model.AlertShock,
		Severity: model.SeverityHigh,
		Check:    above(func(t *model.Twin) *float64 { return t.LatestSensors.Shock }, ShockMax, "Shock", "g"),
	},
	{
		Type:     model.AlertBattery,
		Severity: model.SeverityMedium,
		Check: func(t *model.Twin) (Breach, bool) {
			v := t.BatteryLevel
			if v == nil || *v >= BatteryMin {
				return Breach{}, false
			}
			return Breach{
				Value:     *v,
				Threshold: fmt.Sprintf("below %g%%", BatteryMin),
				Message:   fmt.Sprintf("Battery level %.1f%% is below %g%%", *v, BatteryMin),
			}, true
		},
	},
}

func above(read func(*model.Twin) *float64, limit float64, label, unit string) func(*model.Twin) (Breach, bool) {
	return func(t *model.Twin) (Breach, bool) {
		v := read(t)
		if v == nil || *v <= limit {
			return Breach{}, false
		}
		return Breach{
			Value:     *v,
			Threshold: fmt.Sprintf("above %g%s", limit, unit),
			Message:   fmt.Sprintf("%s %.1f%s is above %g%s", label, *v, unit, limit, unit),
		}, true
	}
}

// geofenceSeverity is the severity of containment violations.
const geofenceSeverity = model.SeverityHigh

func geofenceBreach(gf *model.Geofence, c *model.Containment) Breach {
	threshold := fmt.Sprintf("outside geofence (radius %gm)", gf.Radius)
	if n := len(gf.AllowedZones); n > 0 {
		threshold = fmt.Sprintf("outside geofence and %d allowed zone(s)", n)
	}
	return Breach{
		Value:     c.NearestDistance,
		Threshold: threshold,
		Message:   fmt.Sprintf("Shipment is %.0fm from the nearest allowed zone centre", c.NearestDistance),
	}
}
