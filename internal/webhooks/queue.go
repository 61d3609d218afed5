package webhooks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Delivery statuses.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Delivery is one queued POST of an event envelope to a target.
type Delivery struct {
	ID            string
	URL           string
	Secret        string
	EventType     string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
	Status        string
	LastError     string
	ResponseCode  int
	LatencyMs     int
}

// Queue is the delivery backlog the worker drains.
type Queue interface {
	Enqueue(ctx context.Context, url, secret, eventType string, payload []byte) (string, error)
	FetchDue(ctx context.Context, limit int) ([]Delivery, error)
	Mark(ctx context.Context, id string, success bool, next time.Time, lastError string, code, latencyMs int) error
	Fail(ctx context.Context, id string, lastError string, code, latencyMs int) error
}

// MemoryQueue keeps deliveries in process. Failed deliveries stay in the
// dead-letter list until the process exits.
type MemoryQueue struct {
	mu    sync.Mutex
	items map[string]*Delivery
	dead  []Delivery
	now   func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{items: map[string]*Delivery{}, now: time.Now}
}

func (q *MemoryQueue) Enqueue(_ context.Context, url, secret, eventType string, payload []byte) (string, error) {
	id := uuid.New().String()
	q.mu.Lock()
	q.items[id] = &Delivery{
		ID:            id,
		URL:           url,
		Secret:        secret,
		EventType:     eventType,
		Payload:       append([]byte(nil), payload...),
		NextAttemptAt: q.now(),
		Status:        StatusPending,
	}
	q.mu.Unlock()
	return id, nil
}

// FetchDue returns up to limit pending deliveries whose next attempt is due,
// oldest first.
func (q *MemoryQueue) FetchDue(_ context.Context, limit int) ([]Delivery, error) {
	now := q.now()
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Delivery
	for _, d := range q.items {
		if d.Status == StatusPending && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Mark records an attempt. Delivered items leave the queue; others are
// rescheduled at next.
func (q *MemoryQueue) Mark(_ context.Context, id string, success bool, next time.Time, lastError string, code, latencyMs int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	d, ok := q.items[id]
	if !ok {
		return nil
	}
	d.Attempts++
	d.LastError, d.ResponseCode, d.LatencyMs = lastError, code, latencyMs
	if success {
		d.Status = StatusDelivered
		delete(q.items, id)
		return nil
	}
	d.NextAttemptAt = next
	return nil
}

// Fail moves the delivery to the dead-letter list.
func (q *MemoryQueue) Fail(_ context.Context, id string, lastError string, code, latencyMs int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	d, ok := q.items[id]
	if !ok {
		return nil
	}
	d.Attempts++
	d.Status = StatusFailed
	d.LastError, d.ResponseCode, d.LatencyMs = lastError, code, latencyMs
	q.dead = append(q.dead, *d)
	delete(q.items, id)
	return nil
}

// Pending returns the number of deliveries still queued.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DeadLetters returns copies of deliveries that exhausted their attempts.
func (q *MemoryQueue) DeadLetters() []Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Delivery(nil), q.dead...)
}
