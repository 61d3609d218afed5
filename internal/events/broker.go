package events

import (
	"context"
	"sync"
)

// AllShipments subscribes a broker channel to every shipment.
const AllShipments = ""

// Broker fans events out to channel subscribers, optionally filtered by
// shipment. Sends never block: a subscriber whose buffer is full misses the
// event.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // shipmentId -> set of channels
	size int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{subs: map[string]map[chan Event]struct{}{}, size: buffer}
}

func (b *Broker) Subscribe(shipmentID string) chan Event {
	ch := make(chan Event, b.size)
	b.mu.Lock()
	if b.subs[shipmentID] == nil {
		b.subs[shipmentID] = map[chan Event]struct{}{}
	}
	b.subs[shipmentID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(shipmentID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[shipmentID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, shipmentID)
	}
	close(ch)
}

func (b *Broker) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range []string{e.Shipment(), AllShipments} {
		for ch := range b.subs[key] {
			select {
			case ch <- e:
			default:
			}
		}
		if e.Shipment() == AllShipments {
			break
		}
	}
}

// Handle adapts Publish to a notifier Handler.
func (b *Broker) Handle(_ context.Context, e Event) error {
	b.Publish(e)
	return nil
}
