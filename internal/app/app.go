// Package app assembles the engine, its sinks and the HTTP server into a
// running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"shiptwin/internal/api"
	"shiptwin/internal/config"
	"shiptwin/internal/events"
	"shiptwin/internal/ingest"
	"shiptwin/internal/logger"
	"shiptwin/internal/metrics"
	"shiptwin/internal/relay"
	"shiptwin/internal/tracker"
	"shiptwin/internal/webhooks"
)

// Options are the command-line inputs of the service.
type Options struct {
	ConfigPath string
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, opts *Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if lvl, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(lvl)
	}
	metrics.RegisterDefault()

	engine := tracker.New(tracker.WithHistorySize(cfg.Engine.HistorySize))
	srv := api.NewServer(cfg, engine)

	cleanup, err := wireSinks(ctx, cfg, engine, srv)
	defer cleanup()
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoKV(ctx, "API listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(ctx, "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// wireSinks subscribes the optional downstream sinks. Broker sinks that fail
// to connect are logged and skipped; the engine runs without them.
func wireSinks(ctx context.Context, cfg *config.Config, engine *tracker.Engine, srv *api.Server) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	n := engine.Notifier()

	queue := webhooks.NewMemoryQueue()
	srv.DLQ = queue
	if len(cfg.Webhooks.Targets) > 0 {
		pub := webhooks.NewPublisher(queue, cfg.Webhooks.Targets)
		n.SubscribeAll(pub.Handle)
		go webhooks.NewWorker(queue, cfg.Webhooks.MaxAttempts).Run(ctx)
		logger.InfoKV(ctx, "Webhooks enabled", "targets", len(cfg.Webhooks.Targets))
	}

	if cfg.Redis.URL != "" {
		rdb, err := relay.DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.WarnKV(ctx, "Redis relay disabled", "error", err)
		} else {
			closers = append(closers, func() { _ = rdb.Close() })
			fwd := relay.NewForwarder(relay.NewRedisSink(rdb, cfg.Redis.Prefix), cfg.Relay.Buffer, cfg.Relay.Timeout)
			n.SubscribeAll(fwd.Handle)
			go fwd.Run(ctx)
			logger.Info(ctx, "Redis relay enabled")
		}
	}

	if cfg.RabbitMQ.URL != "" {
		conn, ch, err := relay.DialRabbit(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.WarnKV(ctx, "RabbitMQ relay disabled", "error", err)
		} else {
			closers = append(closers, func() { _ = ch.Close(); _ = conn.Close() })
			fwd := relay.NewForwarder(relay.NewRabbitSink(ch, cfg.RabbitMQ.Exchange), cfg.Relay.Buffer, cfg.Relay.Timeout)
			for _, k := range []events.Kind{events.KindAlertRaised, events.KindAlertResolved} {
				if err := n.Subscribe(k, fwd.Handle); err != nil {
					return cleanup, err
				}
			}
			go fwd.Run(ctx)
			logger.Info(ctx, "RabbitMQ relay enabled")
		}
	}

	if cfg.MQTT.Broker != "" {
		sub := ingest.NewSubscriber(engine)
		if _, err := ingest.Dial(cfg.MQTT.Broker, cfg.MQTT.ClientID, sub); err != nil {
			logger.WarnKV(ctx, "MQTT ingress disabled", "error", err)
		} else {
			closers = append(closers, sub.Stop)
			logger.InfoKV(ctx, "MQTT ingress enabled", "topic", ingest.TopicPattern)
		}
	}

	return cleanup, nil
}
