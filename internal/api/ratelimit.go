package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused device limiter is kept.
const idleLimiterTTL = 10 * time.Minute

// DeviceLimiter applies a token bucket per device id.
type DeviceLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	devices  map[string]*deviceBucket
	now      func() time.Time
	lastScan time.Time
}

type deviceBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewDeviceLimiter(rps float64, burst int) *DeviceLimiter {
	if burst < 1 {
		burst = 1
	}
	return &DeviceLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		devices: map[string]*deviceBucket{},
		now:     time.Now,
	}
}

// Allow reports whether deviceID may send another record now.
func (l *DeviceLimiter) Allow(deviceID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastScan) > idleLimiterTTL {
		for id, b := range l.devices {
			if now.Sub(b.seen) > idleLimiterTTL {
				delete(l.devices, id)
			}
		}
		l.lastScan = now
	}

	b, ok := l.devices[deviceID]
	if !ok {
		b = &deviceBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.devices[deviceID] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
