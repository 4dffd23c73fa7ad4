package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	materializations *prometheus.CounterVec
	slowPath         prometheus.Counter
	resolveDuration  prometheus.Histogram
	sessionsClocked  *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	materializations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clockwise_period_materializations_total",
		Help: "Period instances created lazily by the resolver, by period type.",
	}, []string{"period_type"})
	slowPath := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clockwise_resolver_slow_path_total",
		Help: "Resolver calls that entered the locked slow path.",
	})
	resolveDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "clockwise_resolver_duration_seconds",
		Help:    "Duration of period resolve calls.",
		Buckets: prometheus.DefBuckets,
	})
	sessionsClocked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clockwise_sessions_total",
		Help: "Clock events accepted, by direction.",
	}, []string{"direction"})
	registry.MustRegister(materializations, slowPath, resolveDuration, sessionsClocked)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		materializations: materializations,
		slowPath:         slowPath,
		resolveDuration:  resolveDuration,
		sessionsClocked:  sessionsClocked,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// PeriodMaterialized records a lazily created period instance.
func (m *Metrics) PeriodMaterialized(periodType string) {
	if m == nil {
		return
	}
	m.materializations.WithLabelValues(periodType).Inc()
}

// ResolverSlowPath records a resolve call that missed the fast path.
func (m *Metrics) ResolverSlowPath() {
	if m == nil {
		return
	}
	m.slowPath.Inc()
}

// ObserveResolve records the duration of one resolve call.
func (m *Metrics) ObserveResolve(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(d.Seconds())
}

// SessionClocked records an accepted clock-in or clock-out.
func (m *Metrics) SessionClocked(direction string) {
	if m == nil {
		return
	}
	m.sessionsClocked.WithLabelValues(direction).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}
