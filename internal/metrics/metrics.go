package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// TelemetryIngested counts telemetry records by outcome (accepted, invalid)
	TelemetryIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shiptwin_telemetry_ingested_total", Help: "Telemetry records processed by outcome."},
		[]string{"outcome"},
	)
	// AlertsRaised counts newly created alerts by type
	AlertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shiptwin_alerts_raised_total", Help: "Alerts created by type."},
		[]string{"type"},
	)
	// AlertsResolved counts resolutions by type and mode (auto, manual)
	AlertsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shiptwin_alerts_resolved_total", Help: "Alerts resolved by type and mode."},
		[]string{"type", "mode"},
	)
	// ObserverFailures counts event handlers that returned an error or panicked
	ObserverFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shiptwin_observer_failures_total", Help: "Event observer failures by event kind."},
		[]string{"event"},
	)
	// Twins is the number of twins held in memory
	Twins = prometheus.NewGauge(prometheus.GaugeOpts{Name: "shiptwin_twins", Help: "Digital twins held in memory."})
	// RelayDropped counts events dropped because a relay buffer was full
	RelayDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shiptwin_relay_dropped_total", Help: "Events dropped by relay sink."},
		[]string{"sink"},
	)

	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers all collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(TelemetryIngested, AlertsRaised, AlertsResolved, ObserverFailures, Twins, RelayDropped)
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
