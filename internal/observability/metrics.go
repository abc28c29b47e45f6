package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sketchpad"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	websocketSessions = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "session_duration_seconds",
			Help:      "Lifetime of upgraded websocket connections in seconds.",
			Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 14400, 86400},
		},
		[]string{"node", "path"},
	)
	commandsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_submitted_total",
			Help:      "Commands accepted into the ledger.",
		},
		[]string{"mode"},
	)
	commandsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Submissions rejected by validation.",
		},
	)
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-client command push attempts.",
		},
		[]string{"result"},
	)
	acks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acks_total",
			Help:      "Client acknowledgments by kind and ledger outcome.",
		},
		[]string{"kind", "result"},
	)
	gcRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_removed_total",
			Help:      "Entries removed by garbage collection tasks.",
		},
		[]string{"task"},
	)
	clientsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients_connected",
			Help:      "Currently connected rendering clients.",
		},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Currently tracked tool-invocation sessions.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			websocketSessions,
			commandsSubmitted,
			commandsRejected,
			deliveries,
			acks,
			gcRemoved,
			clientsConnected,
			sessionsActive,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordWebsocketSession observes one closed websocket connection.
func RecordWebsocketSession(node, path string, lifetime time.Duration) {
	RegisterMetrics()
	websocketSessions.WithLabelValues(node, path).Observe(lifetime.Seconds())
}

func RecordSubmission(mode string) {
	RegisterMetrics()
	commandsSubmitted.WithLabelValues(mode).Inc()
}

func RecordRejection() {
	RegisterMetrics()
	commandsRejected.Inc()
}

func RecordDelivery(success bool) {
	RegisterMetrics()
	result := "ok"
	if !success {
		result = "failed"
	}
	deliveries.WithLabelValues(result).Inc()
}

// RecordAck counts one inbound acknowledgment; accepted=false marks a stale ack.
func RecordAck(kind string, accepted bool) {
	RegisterMetrics()
	result := "accepted"
	if !accepted {
		result = "stale"
	}
	acks.WithLabelValues(kind, result).Inc()
}

func RecordGCRemoved(task string, n int) {
	RegisterMetrics()
	if n <= 0 {
		return
	}
	gcRemoved.WithLabelValues(task).Add(float64(n))
}

func SetClientsConnected(n int) {
	RegisterMetrics()
	clientsConnected.Set(float64(n))
}

func SetSessionsActive(n int) {
	RegisterMetrics()
	sessionsActive.Set(float64(n))
}
