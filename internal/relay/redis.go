package relay

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"shiptwin/internal/events"
)

// Publisher is the subset of *redis.Client used by RedisSink.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes event envelopes over Redis Pub/Sub. Alert and geofence
// events go to <prefix>:shipment:<id>:alerts, twin updates to
// <prefix>:shipment:<id>:twin.
type RedisSink struct {
	rdb    Publisher
	prefix string
}

func NewRedisSink(rdb Publisher, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "shiptwin"
	}
	return &RedisSink{rdb: rdb, prefix: prefix}
}

// DialRedis connects to the server at url (redis://...) and pings it.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, e events.Event) error {
	body, err := events.Marshal(e, time.Now())
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.rdb.Publish(ctx, s.Channel(e), body).Err()
}

// Channel returns the Pub/Sub channel for e.
func (s *RedisSink) Channel(e events.Event) string {
	suffix := "alerts"
	if e.Kind() == events.KindTwinUpdated {
		suffix = "twin"
	}
	return fmt.Sprintf("%s:shipment:%s:%s", s.prefix, e.Shipment(), suffix)
}
