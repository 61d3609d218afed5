// Package tracker is the digital-twin engine: it merges telemetry into twins,
// checks geofences, drives the alert lifecycle and announces every state
// change through an events.Notifier.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"shiptwin/internal/alerts"
	"shiptwin/internal/events"
	"shiptwin/internal/logger"
	"shiptwin/internal/metrics"
	"shiptwin/internal/model"
	"shiptwin/internal/store"
)

// DefaultHistorySize is the number of past locations kept per twin.
const DefaultHistorySize = 50

type Engine struct {
	twins       *store.Twins
	alerts      *alerts.Engine
	notifier    *events.Notifier
	validate    *validator.Validate
	now         func() time.Time
	historySize int
}

type Option func(*Engine)

// WithClock sets the engine clock used for lastUpdated and alert timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithHistorySize bounds the per-twin location history. Values < 1 keep the default.
func WithHistorySize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historySize = n
		}
	}
}

func WithNotifier(n *events.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithAlertEngine(a *alerts.Engine) Option {
	return func(e *Engine) { e.alerts = a }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		alerts:      alerts.New(),
		notifier:    events.NewNotifier(),
		validate:    newValidator(),
		now:         time.Now,
		historySize: DefaultHistorySize,
	}
	for _, o := range opts {
		o(e)
	}
	e.twins = store.NewTwins(
		store.WithClock(e.now),
		store.WithCreateHook(func(n int) { metrics.Twins.Set(float64(n)) }),
	)
	return e
}

// Notifier exposes the event dispatcher for wiring observers.
func (e *Engine) Notifier() *events.Notifier { return e.notifier }

// Subscribe registers h for events of kind.
func (e *Engine) Subscribe(kind events.Kind, h events.Handler) error {
	return e.notifier.Subscribe(kind, h)
}

// GetDigitalTwin returns a snapshot of the shipment's twin.
func (e *Engine) GetDigitalTwin(shipmentID string) (*model.Twin, bool) {
	return e.twins.Get(shipmentID)
}

// GetAllDigitalTwins returns snapshots of every twin in creation order.
func (e *Engine) GetAllDigitalTwins() []*model.Twin {
	return e.twins.All()
}

// TwinCount returns the number of tracked shipments.
func (e *Engine) TwinCount() int { return e.twins.Len() }

// GetActiveAlerts returns the shipment's unresolved alerts in creation order.
func (e *Engine) GetActiveAlerts(shipmentID string) ([]model.Alert, error) {
	t, ok := e.twins.Get(shipmentID)
	if !ok {
		return nil, &NotFoundError{Resource: "shipment", ID: shipmentID}
	}
	return alerts.Active(t), nil
}

// SetGeofence attaches gf to the shipment, creating the twin if needed. The
// new fence is evaluated on the next telemetry record, not here.
func (e *Engine) SetGeofence(ctx context.Context, shipmentID string, gf model.Geofence) error {
	if blank(shipmentID) {
		return invalid("shipmentId", "is required")
	}
	if err := e.check(&gf); err != nil {
		return err
	}

	return e.twins.Update(shipmentID, "", true, func(t *model.Twin) (func(), error) {
		t.Geofence = gf.Clone()
		// The previous status described another fence.
		t.GeofenceStatus = nil
		evt := events.GeofenceSet{ShipmentID: shipmentID, Geofence: *gf.Clone()}
		return func() {
			logger.InfoKV(ctx, "Geofence set", "shipment_id", shipmentID,
				"radius_m", gf.Radius, "allowed_zones", len(gf.AllowedZones))
			e.notifier.Emit(ctx, evt)
		}, nil
	})
}

// ResolveAlert resolves an open alert. Resolving an already resolved alert
// succeeds without effect.
func (e *Engine) ResolveAlert(ctx context.Context, shipmentID, alertID string) error {
	err := e.twins.Update(shipmentID, "", false, func(t *model.Twin) (func(), error) {
		ch, changed, err := e.alerts.Resolve(t, alertID, e.now())
		if err != nil || !changed {
			return nil, err
		}
		evt := events.AlertResolved{ShipmentID: shipmentID, AlertID: alertID, Alert: ch.Alert}
		return func() {
			metrics.AlertsResolved.WithLabelValues(string(ch.Alert.Type), model.ResolvedManual).Inc()
			logger.InfoKV(ctx, "Alert resolved", "shipment_id", shipmentID, "alert_id", alertID, "type", ch.Alert.Type)
			e.notifier.Emit(ctx, evt)
		}, nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{Resource: "shipment", ID: shipmentID}
	case errors.Is(err, alerts.ErrAlertNotFound):
		return &NotFoundError{Resource: "alert", ID: alertID}
	}
	return err
}
