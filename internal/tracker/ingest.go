package tracker

import (
	"context"

	"shiptwin/internal/alerts"
	"shiptwin/internal/events"
	"shiptwin/internal/geofence"
	"shiptwin/internal/logger"
	"shiptwin/internal/metrics"
	"shiptwin/internal/model"
)

// IngestTelemetry merges rec into its shipment's twin as one atomic step,
// re-evaluates geofence and alert rules, and emits the resulting events.
// Records are applied in arrival order; rec.Timestamp is stored as the
// observation time but never used to reorder.
func (e *Engine) IngestTelemetry(ctx context.Context, rec model.TelemetryRecord) error {
	if err := e.check(&rec); err != nil {
		metrics.TelemetryIngested.WithLabelValues("invalid").Inc()
		return err
	}

	err := e.twins.Update(rec.ShipmentID, rec.DeviceID, true, func(t *model.Twin) (func(), error) {
		evts := e.apply(ctx, t, &rec)
		return func() {
			for _, evt := range evts {
				e.notifier.Emit(ctx, evt)
			}
		}, nil
	})
	if err != nil {
		return err
	}
	metrics.TelemetryIngested.WithLabelValues("accepted").Inc()
	return nil
}

// apply mutates t and returns the events to emit, twin update last.
func (e *Engine) apply(ctx context.Context, t *model.Twin, rec *model.TelemetryRecord) []events.Event {
	now := e.now()

	t.DeviceID = rec.DeviceID
	if t.CurrentLocation != nil {
		t.LocationHistory = append(t.LocationHistory, *t.CurrentLocation)
		if over := len(t.LocationHistory) - e.historySize; over > 0 {
			t.LocationHistory = append(t.LocationHistory[:0:0], t.LocationHistory[over:]...)
		}
	}
	loc := model.Location{
		Latitude:   *rec.Location.Latitude,
		Longitude:  *rec.Location.Longitude,
		Accuracy:   rec.Location.Accuracy,
		ObservedAt: rec.Timestamp,
	}
	t.CurrentLocation = loc.Clone()
	if rec.Sensors != nil {
		mergeSensors(&t.LatestSensors, rec.Sensors)
	}
	if rec.Battery != nil {
		b := *rec.Battery
		t.BatteryLevel = &b
	}
	if rec.Signal != nil {
		t.Signal = rec.Signal.Clone()
	}
	t.LastUpdated = now
	t.TelemetryCount++

	var containment *model.Containment
	if t.Geofence != nil {
		c := geofence.Evaluate(t.Geofence, t.CurrentLocation.Point(), now)
		t.GeofenceStatus = &c
		containment = &c
	}

	var out []events.Event
	for _, ch := range e.alerts.Evaluate(t, containment, now) {
		switch ch.Kind {
		case alerts.Raised:
			metrics.AlertsRaised.WithLabelValues(string(ch.Alert.Type)).Inc()
			logger.WarnKV(ctx, "Alert raised", "shipment_id", t.ShipmentID, "alert_id", ch.Alert.ID,
				"type", ch.Alert.Type, "value", ch.Alert.Value, "threshold", ch.Alert.Threshold)
			out = append(out, events.AlertRaised{ShipmentID: t.ShipmentID, DeviceID: t.DeviceID, Alert: ch.Alert})
		case alerts.Resolved:
			metrics.AlertsResolved.WithLabelValues(string(ch.Alert.Type), model.ResolvedAuto).Inc()
			logger.InfoKV(ctx, "Alert auto-resolved", "shipment_id", t.ShipmentID, "alert_id", ch.Alert.ID, "type", ch.Alert.Type)
			out = append(out, events.AlertResolved{ShipmentID: t.ShipmentID, AlertID: ch.Alert.ID, Alert: ch.Alert})
		case alerts.Refreshed:
			logger.DebugKV(ctx, "Alert still open", "shipment_id", t.ShipmentID, "alert_id", ch.Alert.ID,
				"type", ch.Alert.Type, "occurrences", ch.Alert.Occurrences)
		}
	}

	return append(out, events.TwinUpdated{ShipmentID: t.ShipmentID, Twin: t.Clone()})
}

// mergeSensors copies every reported reading; omitted readings keep the last known value.
func mergeSensors(dst, src *model.Sensors) {
	for _, p := range []struct {
		dst **float64
		src *float64
	}{
		{&dst.Temperature, src.Temperature},
		{&dst.Humidity, src.Humidity},
		{&dst.Vibration, src.Vibration},
		{&dst.Shock, src.Shock},
		{&dst.Tilt, src.Tilt},
	} {
		if p.src != nil {
			v := *p.src
			*p.dst = &v
		}
	}
}
