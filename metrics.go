package fetchkit

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request and
// connection lifecycles. It is safe for concurrent use; all record methods
// are no-ops on a nil collector.
type MetricsCollector struct {
	attemptsTotal    *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	attemptsInFlight *prometheus.GaugeVec

	retriesTotal    *prometheus.CounterVec
	staleDropsTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec

	socketState      *prometheus.GaugeVec
	reconnectsTotal  *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		attemptsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_attempts_total",
				Help: "Total number of fetch attempts fired",
			},
			[]string{"method", "status_code"},
		),
		attemptDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchkit_attempt_duration_seconds",
				Help:    "Duration of fetch attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code"},
		),
		attemptsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_attempts_in_flight",
				Help: "Number of fetch attempts currently in flight",
			},
			[]string{"method"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_retries_total",
				Help: "Total number of retry attempts scheduled",
			},
			[]string{"method", "attempt"},
		),
		staleDropsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_stale_drops_total",
				Help: "Total number of completions discarded because a newer attempt was issued",
			},
			[]string{"method"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		socketState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_socket_state",
				Help: "Current socket state (0=connecting, 1=open, 2=closed, 3=error)",
			},
			[]string{"url"},
		),
		reconnectsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_reconnects_total",
				Help: "Total number of reconnect attempts scheduled",
			},
			[]string{"url"},
		),
		queueDepth: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_pending_queue_depth",
				Help: "Current number of outbound messages waiting for the connection to open",
			},
			[]string{"url"},
		),
		messagesSent: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_messages_sent_total",
				Help: "Total number of outbound socket messages sent",
			},
			[]string{"url"},
		),
		messagesReceived: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_messages_received_total",
				Help: "Total number of valid inbound socket messages",
			},
			[]string{"url"},
		),
		registry: registry,
	}

	return mc
}

// RecordAttempt records attempt count and duration.
func (mc *MetricsCollector) RecordAttempt(method string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.attemptsTotal.WithLabelValues(method, statusCodeStr).Inc()
	mc.attemptDuration.WithLabelValues(method, statusCodeStr).Observe(duration.Seconds())
}

// RecordAttemptStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordAttemptStart(method string) {
	if mc == nil {
		return
	}

	mc.attemptsInFlight.WithLabelValues(method).Inc()
}

// RecordAttemptEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordAttemptEnd(method string) {
	if mc == nil {
		return
	}

	mc.attemptsInFlight.WithLabelValues(method).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method string, attempt int) {
	if mc == nil {
		return
	}

	mc.retriesTotal.WithLabelValues(method, strconv.Itoa(attempt)).Inc()
}

// RecordStaleDrop counts a completion suppressed by the identifier guard.
func (mc *MetricsCollector) RecordStaleDrop(method string) {
	if mc == nil {
		return
	}

	mc.staleDropsTotal.WithLabelValues(method).Inc()
}

// RecordError increments the error counter for a taxonomy type.
func (mc *MetricsCollector) RecordError(errorType string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType).Inc()
}

// RecordSocketState sets the gauge to the state machine position.
func (mc *MetricsCollector) RecordSocketState(url string, state SocketState) {
	if mc == nil {
		return
	}

	mc.socketState.WithLabelValues(url).Set(float64(state))
}

// RecordReconnect counts a scheduled reconnect.
func (mc *MetricsCollector) RecordReconnect(url string) {
	if mc == nil {
		return
	}

	mc.reconnectsTotal.WithLabelValues(url).Inc()
}

// RecordQueueDepth sets the pending outbound queue gauge.
func (mc *MetricsCollector) RecordQueueDepth(url string, depth int) {
	if mc == nil {
		return
	}

	mc.queueDepth.WithLabelValues(url).Set(float64(depth))
}

// RecordMessageSent counts one outbound message.
func (mc *MetricsCollector) RecordMessageSent(url string) {
	if mc == nil {
		return
	}

	mc.messagesSent.WithLabelValues(url).Inc()
}

// RecordMessageReceived counts one valid inbound message.
func (mc *MetricsCollector) RecordMessageReceived(url string) {
	if mc == nil {
		return
	}

	mc.messagesReceived.WithLabelValues(url).Inc()
}
