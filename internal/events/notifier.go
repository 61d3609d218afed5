package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"shiptwin/internal/logger"
	"shiptwin/internal/metrics"
)

// ErrUnknownKind is returned when subscribing to a kind outside Kinds.
var ErrUnknownKind = errors.New("unknown event kind")

// Handler observes one event. A returned error is logged and otherwise ignored.
type Handler func(ctx context.Context, e Event) error

// Notifier dispatches events synchronously to the handlers registered for
// their kind, in registration order. Delivery is at-most-once and
// best-effort: a failing or panicking handler never affects the emitter or
// the handlers after it.
type Notifier struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

func NewNotifier() *Notifier {
	return &Notifier{handlers: map[Kind][]Handler{}}
}

// Subscribe registers h for events of kind.
func (n *Notifier) Subscribe(kind Kind, h Handler) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if h == nil {
		return errors.New("nil handler")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	// Copy-on-write so Emit can iterate a snapshot without holding the lock.
	hs := make([]Handler, 0, len(n.handlers[kind])+1)
	hs = append(hs, n.handlers[kind]...)
	n.handlers[kind] = append(hs, h)
	return nil
}

// SubscribeAll registers h for every kind.
func (n *Notifier) SubscribeAll(h Handler) {
	for _, k := range Kinds {
		_ = n.Subscribe(k, h)
	}
}

func (n *Notifier) OnTwinUpdated(fn func(context.Context, TwinUpdated) error) {
	_ = n.Subscribe(KindTwinUpdated, func(ctx context.Context, e Event) error { return fn(ctx, e.(TwinUpdated)) })
}

func (n *Notifier) OnAlertRaised(fn func(context.Context, AlertRaised) error) {
	_ = n.Subscribe(KindAlertRaised, func(ctx context.Context, e Event) error { return fn(ctx, e.(AlertRaised)) })
}

func (n *Notifier) OnGeofenceSet(fn func(context.Context, GeofenceSet) error) {
	_ = n.Subscribe(KindGeofenceSet, func(ctx context.Context, e Event) error { return fn(ctx, e.(GeofenceSet)) })
}

func (n *Notifier) OnAlertResolved(fn func(context.Context, AlertResolved) error) {
	_ = n.Subscribe(KindAlertResolved, func(ctx context.Context, e Event) error { return fn(ctx, e.(AlertResolved)) })
}

// Emit delivers e to its subscribers.
func (n *Notifier) Emit(ctx context.Context, e Event) {
	n.mu.RLock()
	hs := n.handlers[e.Kind()]
	n.mu.RUnlock()

	for _, h := range hs {
		if err := call(ctx, h, e); err != nil {
			metrics.ObserverFailures.WithLabelValues(string(e.Kind())).Inc()
			logger.ErrorKV(ctx, "Event observer failed",
				"event", e.Kind(), "shipment_id", e.Shipment(), "error", err)
		}
	}
}

func call(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return h(ctx, e)
}
