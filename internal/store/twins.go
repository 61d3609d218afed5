package store

import (
	"sync"
	"time"

	"shiptwin/internal/model"
)

// entry guards one twin. mu protects state. Post-mutation callbacks are
// queued under mu and drained in queue order by whichever caller found the
// queue idle, without holding mu. A callback may therefore read the twin, and
// a mutation it makes to the same shipment only enqueues its own callback.
type entry struct {
	mu   sync.RWMutex
	twin *model.Twin

	q        sync.Mutex
	pending  []func() // guarded by q
	draining bool     // guarded by q
}

func newEntry(t *model.Twin) *entry {
	return &entry{twin: t}
}

// mutate applies fn under the write lock and queues its callback. It reports
// whether the caller must drain the queue.
func (e *entry) mutate(fn MutateFunc) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	after, err := fn(e.twin)
	if err != nil || after == nil {
		return false, err
	}

	e.q.Lock()
	defer e.q.Unlock()
	e.pending = append(e.pending, after)
	if e.draining {
		return false, nil
	}
	e.draining = true
	return true, nil
}

// drain runs queued callbacks until the queue is empty. A panicking callback
// hands the queue over to the next mutation.
func (e *entry) drain() {
	defer func() {
		if r := recover(); r != nil {
			e.q.Lock()
			e.draining = false
			e.q.Unlock()
			panic(r)
		}
	}()
	for {
		e.q.Lock()
		if len(e.pending) == 0 {
			e.pending = nil
			e.draining = false
			e.q.Unlock()
			return
		}
		next := e.pending[0]
		e.pending[0] = nil
		e.pending = e.pending[1:]
		e.q.Unlock()

		next()
	}
}

// Twins is a concurrency-safe in-memory twin table. Operations on different
// shipments do not contend beyond the short key-table lookup.
type Twins struct {
	mu    sync.RWMutex
	byID  map[string]*entry // shipmentId -> entry
	order []*entry          // insertion order
	now   func() time.Time
	// onCreate is invoked with the new table size after a twin is created.
	onCreate func(n int)
}

type Option func(*Twins)

// WithClock sets the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Twins) { s.now = now }
}

// WithCreateHook registers a callback invoked after each twin creation.
func WithCreateHook(fn func(n int)) Option {
	return func(s *Twins) { s.onCreate = fn }
}

func NewTwins(opts ...Option) *Twins {
	s := &Twins{byID: map[string]*entry{}, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns a snapshot of the twin.
func (s *Twins) Get(shipmentID string) (*model.Twin, bool) {
	s.mu.RLock()
	e := s.byID[shipmentID]
	s.mu.RUnlock()
	if e == nil {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.twin.Clone(), true
}

// All returns snapshots of every twin in insertion order.
func (s *Twins) All() []*model.Twin {
	s.mu.RLock()
	entries := append([]*entry(nil), s.order...)
	s.mu.RUnlock()

	out := make([]*model.Twin, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		out = append(out, e.twin.Clone())
		e.mu.RUnlock()
	}
	return out
}

func (s *Twins) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// GetOrCreate returns a snapshot of the twin, creating it first if needed.
// Concurrent first arrivals for one key create exactly one twin.
func (s *Twins) GetOrCreate(shipmentID, deviceID string) *model.Twin {
	e := s.entry(shipmentID, deviceID, true)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.twin.Clone()
}

// Update runs fn with exclusive access to the twin. With create set an unseen
// shipment gets a fresh twin, otherwise ErrNotFound is returned. fn must not
// change the twin when it returns an error.
//
// When no other caller is draining the shipment's callbacks, Update returns
// after its own callback and any queued behind it have run. Otherwise the
// callback is left to the active drainer, which includes a mutation made
// from inside a callback.
func (s *Twins) Update(shipmentID, deviceID string, create bool, fn MutateFunc) error {
	e := s.entry(shipmentID, deviceID, create)
	if e == nil {
		return ErrNotFound
	}

	owner, err := e.mutate(fn)
	if err != nil || !owner {
		return err
	}
	e.drain()
	return nil
}

func (s *Twins) entry(shipmentID, deviceID string, create bool) *entry {
	s.mu.RLock()
	e := s.byID[shipmentID]
	s.mu.RUnlock()
	if e != nil || !create {
		return e
	}

	s.mu.Lock()
	if e = s.byID[shipmentID]; e != nil {
		s.mu.Unlock()
		return e
	}
	now := s.now()
	e = newEntry(&model.Twin{
		ShipmentID:      shipmentID,
		DeviceID:        deviceID,
		LocationHistory: []model.Location{},
		Alerts:          []model.Alert{},
		CreatedAt:       now,
		LastUpdated:     now,
	})
	s.byID[shipmentID] = e
	s.order = append(s.order, e)
	n := len(s.order)
	s.mu.Unlock()

	if s.onCreate != nil {
		s.onCreate(n)
	}
	return e
}
