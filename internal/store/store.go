// Package store keeps digital twins in memory, keyed by shipment id.
package store

import (
	"errors"

	"shiptwin/internal/model"
)

// MutateFunc changes a twin under exclusive access. The returned after
// callback, if any, runs once the twin is unlocked, in the same order as the
// mutations of that shipment. It may read or mutate the same shipment.
type MutateFunc func(t *model.Twin) (after func(), err error)

var ErrNotFound = errors.New("not found")
