package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"shiptwin/internal/logger"
	"shiptwin/internal/metrics"
)

// DefaultMaxAttempts bounds delivery attempts before a delivery is dead-lettered.
const DefaultMaxAttempts = 10

type Worker struct {
	Queue       Queue
	HTTP        *http.Client
	MaxAttempts int
	Interval    time.Duration
	BatchSize   int
	// Timeout bounds a single delivery attempt.
	Timeout time.Duration
}

func NewWorker(q Queue, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Worker{
		Queue:       q,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Interval:    time.Second,
		BatchSize:   50,
		Timeout:     10 * time.Second,
	}
}

// Run polls the queue until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOnce(ctx)
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) {
	items, err := w.Queue.FetchDue(ctx, w.BatchSize)
	if err != nil {
		logger.ErrorKV(ctx, "Fetch webhook deliveries failed", "error", err)
		return
	}
	for _, it := range items {
		// Stopping mid-batch leaves the rest due without charging an attempt.
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, it)
	}
}

// deliver makes one attempt under its own timeout and records the outcome
// against ctx, so a slow target never eats into another delivery's budget.
func (w *Worker) deliver(ctx context.Context, it Delivery) {
	success := false
	code := 0
	lastErr := ""

	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err == nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", it.EventType)
		if it.Secret != "" {
			req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload))
		}
		var resp *http.Response
		resp, err = w.HTTP.Do(req)
		if err == nil {
			code = resp.StatusCode
			_ = resp.Body.Close()
			success = code >= 200 && code < 300
		}
	}
	latency := time.Since(start)
	if err != nil {
		lastErr = err.Error()
	} else if !success {
		lastErr = "status " + strconv.Itoa(code)
	}

	status := "ok"
	if !success {
		status = "error"
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency.Milliseconds()))

	ms := int(latency.Milliseconds())
	if !success && it.Attempts+1 >= w.MaxAttempts {
		logger.WarnKV(ctx, "Webhook delivery dead-lettered", "delivery_id", it.ID, "url", it.URL,
			"attempts", it.Attempts+1, "error", lastErr)
		_ = w.Queue.Fail(ctx, it.ID, lastErr, code, ms)
		return
	}
	if !success {
		logger.DebugKV(ctx, "Webhook delivery failed", "delivery_id", it.ID, "attempt", it.Attempts+1, "error", lastErr)
	}
	_ = w.Queue.Mark(ctx, it.ID, success, time.Now().Add(nextBackoff(it.Attempts)), lastErr, code, ms)
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
