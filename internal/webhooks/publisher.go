package webhooks

import (
	"context"
	"time"

	"shiptwin/internal/events"
)

// Target is a configured webhook endpoint. An empty Events list receives
// alert and alert:resolved, the notifications settlement systems act on.
type Target struct {
	URL    string        `yaml:"url" validate:"required,url"`
	Secret string        `yaml:"secret"`
	Events []events.Kind `yaml:"events"`
}

var defaultKinds = []events.Kind{events.KindAlertRaised, events.KindAlertResolved}

func (t Target) wants(k events.Kind) bool {
	kinds := t.Events
	if len(kinds) == 0 {
		kinds = defaultKinds
	}
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}

type Publisher struct {
	Queue   Queue
	Targets []Target
	now     func() time.Time
}

func NewPublisher(q Queue, targets []Target) *Publisher {
	return &Publisher{Queue: q, Targets: targets, now: time.Now}
}

// Handle enqueues the event envelope once per interested target. It is
// registered as a notifier observer and never performs network I/O.
func (p *Publisher) Handle(ctx context.Context, e events.Event) error {
	var body []byte
	for _, t := range p.Targets {
		if !t.wants(e.Kind()) {
			continue
		}
		if body == nil {
			b, err := events.Marshal(e, p.now())
			if err != nil {
				return err
			}
			body = b
		}
		if _, err := p.Queue.Enqueue(ctx, t.URL, t.Secret, string(e.Kind()), body); err != nil {
			return err
		}
	}
	return nil
}
