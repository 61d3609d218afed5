// Package relay forwards twin events to external brokers without ever
// blocking the engine.
package relay

import (
	"context"
	"time"

	"shiptwin/internal/events"
	"shiptwin/internal/logger"
	"shiptwin/internal/metrics"
)

// Sink publishes one event to an external system.
type Sink interface {
	Name() string
	Send(ctx context.Context, e events.Event) error
}

// Forwarder buffers events for a Sink. When the buffer is full new events
// are dropped and counted.
type Forwarder struct {
	sink    Sink
	queue   chan events.Event
	timeout time.Duration
}

func NewForwarder(sink Sink, buffer int, timeout time.Duration) *Forwarder {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Forwarder{sink: sink, queue: make(chan events.Event, buffer), timeout: timeout}
}

// Handle is a notifier observer.
func (f *Forwarder) Handle(ctx context.Context, e events.Event) error {
	select {
	case f.queue <- e:
	default:
		metrics.RelayDropped.WithLabelValues(f.sink.Name()).Inc()
		logger.WarnKV(ctx, "Relay buffer full, event dropped", "sink", f.sink.Name(),
			"event", e.Kind(), "shipment_id", e.Shipment())
	}
	return nil
}

// Run drains the buffer until ctx is done.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-f.queue:
			f.send(ctx, e)
		}
	}
}

func (f *Forwarder) send(parent context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(parent, f.timeout)
	defer cancel()
	if err := f.sink.Send(ctx, e); err != nil {
		logger.ErrorKV(ctx, "Relay send failed", "sink", f.sink.Name(),
			"event", e.Kind(), "shipment_id", e.Shipment(), "error", err)
	}
}
