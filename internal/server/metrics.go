package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat outcome label values.
const (
	outcomeOK           = "ok"
	outcomeError        = "error"
	outcomeTimeout      = "timeout"
	outcomeDisconnected = "disconnected"
	outcomeInvalid      = "invalid"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New so tests can inject a fresh registry.
type serverMetrics struct {
	// chatRequestsTotal counts completed /api/chat requests by outcome.
	chatRequestsTotal *prometheus.CounterVec

	// chatDurationSeconds records the wall-clock duration of each /api/chat
	// request from receipt to stream completion.
	chatDurationSeconds *prometheus.HistogramVec

	// chatActiveStreams is the number of /api/chat streams currently open.
	chatActiveStreams prometheus.Gauge

	// chatFramesTotal counts frames written to clients by event name.
	chatFramesTotal *prometheus.CounterVec

	// toolCallsTotal counts search_context invocations by whether they found
	// anything.
	toolCallsTotal *prometheus.CounterVec

	// httpRequestsTotal counts HTTP requests by method, route and status.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of HTTP requests by route.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		chatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of /api/chat requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		chatDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/chat requests from receipt to stream completion.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		chatActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragchat",
			Subsystem: "chat",
			Name:      "active_streams",
			Help:      "Number of /api/chat event streams currently open.",
		}),

		chatFramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "chat",
			Name:      "frames_total",
			Help:      "Event-stream frames written to clients, partitioned by event name.",
		}, []string{"event"}),

		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "chat",
			Name:      "tool_calls_total",
			Help:      "search_context tool calls surfaced to clients, partitioned by found.",
		}, []string{"found"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, route, and status code.",
		}, []string{"method", "route", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
