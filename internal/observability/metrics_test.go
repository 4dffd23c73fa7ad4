package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics()
	m.PeriodMaterialized("weekly")
	m.PeriodMaterialized("weekly")
	m.ResolverSlowPath()
	m.ObserveResolve(25 * time.Millisecond)
	m.SessionClocked("in")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `clockwise_period_materializations_total{period_type="weekly"} 2`)
	require.Contains(t, body, "clockwise_resolver_slow_path_total 1")
	require.Contains(t, body, `clockwise_sessions_total{direction="in"} 1`)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.PeriodMaterialized("custom")
	m.ResolverSlowPath()
	m.ObserveResolve(time.Second)
	m.SessionClocked("out")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 503, rec.Code)
}
