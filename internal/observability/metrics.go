package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	Refreshes      *prometheus.CounterVec
	Heartbeats     prometheus.Counter
	WSConnections  prometheus.Gauge
	RollupRuns     *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of visitor sessions inside the inactivity threshold.",
		}),
		Refreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_refreshes_total",
			Help:      "Dashboard feed recomputation passes by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		Heartbeats: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Session heartbeats recorded.",
		}),
		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Connected dashboard WebSocket clients.",
		}),
		RollupRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollup_runs_total",
			Help:      "Daily analytics rollup passes by outcome.",
		}, []string{"outcome"}),
	}
}

// SetActiveSessions and RefreshObserved satisfy the feed's metrics hook.

func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) RefreshObserved(trigger, outcome string) {
	m.Refreshes.WithLabelValues(trigger, outcome).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
