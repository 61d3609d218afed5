// Package alerts applies threshold rules to a twin and manages the alert
// lifecycle: creation, dedup of repeated breaches, and resolution.
//
// The engine mutates the twin it is given and never locks; callers must hold
// exclusive access to the twin for the duration of a call.
package alerts

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"shiptwin/internal/model"
)

// ErrAlertNotFound is returned when resolving an alert id the twin does not hold.
var ErrAlertNotFound = errors.New("alert not found")

type ChangeKind int

const (
	// Raised is a new alert.
	Raised ChangeKind = iota + 1
	// Refreshed is an open alert updated by a repeated breach; not notified.
	Refreshed
	// Resolved is an alert that just transitioned to resolved.
	Resolved
)

func (k ChangeKind) String() string {
	switch k {
	case Raised:
		return "raised"
	case Refreshed:
		return "refreshed"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Change is one lifecycle transition. Alert is a copy taken after the transition.
type Change struct {
	Kind  ChangeKind
	Alert model.Alert
}

type Engine struct {
	rules []Rule
	newID func() string
}

type Option func(*Engine)

// WithRules replaces the sensor/battery rule table.
func WithRules(rules []Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithIDGenerator overrides alert id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		rules: DefaultRules,
		newID: func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs every rule against the merged twin and the latest containment
// result (nil when no geofence is configured). Sensor and battery alerts stay
// open once raised; only a geofence alert is resolved automatically, when the
// twin is back inside.
func (e *Engine) Evaluate(t *model.Twin, c *model.Containment, now time.Time) []Change {
	var changes []Change
	for _, r := range e.rules {
		b, breached := r.Check(t)
		if !breached {
			continue
		}
		changes = append(changes, e.raise(t, r.Type, r.Severity, b, now))
	}

	if t.Geofence == nil || c == nil {
		return changes
	}
	if !c.Inside {
		return append(changes, e.raise(t, model.AlertGeofence, geofenceSeverity, geofenceBreach(t.Geofence, c), now))
	}
	if i := openIndex(t, model.AlertGeofence); i >= 0 {
		changes = append(changes, resolve(t, i, now, model.ResolvedAuto))
	}
	return changes
}

// Resolve marks the alert resolved. Resolving an already resolved alert is a
// no-op reported as ok == false.
func (e *Engine) Resolve(t *model.Twin, alertID string, now time.Time) (ch Change, ok bool, err error) {
	for i := range t.Alerts {
		if t.Alerts[i].ID != alertID {
			continue
		}
		if t.Alerts[i].Resolved {
			return Change{}, false, nil
		}
		return resolve(t, i, now, model.ResolvedManual), true, nil
	}
	return Change{}, false, ErrAlertNotFound
}

// Active returns copies of the unresolved alerts in creation order.
func Active(t *model.Twin) []model.Alert {
	out := []model.Alert{}
	for _, a := range t.Alerts {
		if !a.Resolved {
			out = append(out, a.Clone())
		}
	}
	return out
}

// raise creates an alert of type typ, or refreshes the open one.
func (e *Engine) raise(t *model.Twin, typ model.AlertType, sev model.Severity, b Breach, now time.Time) Change {
	if i := openIndex(t, typ); i >= 0 {
		a := &t.Alerts[i]
		a.Value = b.Value
		a.Threshold = b.Threshold
		a.Message = b.Message
		a.Severity = sev
		a.UpdatedAt = now
		a.Occurrences++
		return Change{Kind: Refreshed, Alert: a.Clone()}
	}

	a := model.Alert{
		ID:          e.newID(),
		Type:        typ,
		Severity:    sev,
		Message:     b.Message,
		Value:       b.Value,
		Threshold:   b.Threshold,
		CreatedAt:   now,
		UpdatedAt:   now,
		Occurrences: 1,
	}
	t.Alerts = append(t.Alerts, a)
	return Change{Kind: Raised, Alert: a.Clone()}
}

func resolve(t *model.Twin, i int, now time.Time, by string) Change {
	a := &t.Alerts[i]
	at := now
	a.Resolved = true
	a.ResolvedAt = &at
	a.ResolvedBy = by
	return Change{Kind: Resolved, Alert: a.Clone()}
}

// openIndex returns the index of the unresolved alert of typ, or -1.
func openIndex(t *model.Twin, typ model.AlertType) int {
	for i := range t.Alerts {
		if t.Alerts[i].Type == typ && !t.Alerts[i].Resolved {
			return i
		}
	}
	return -1
}
