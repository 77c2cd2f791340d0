package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("create", "ok", time.Now())
	m.ObserveOperation("create", "ok", time.Now())
	m.ObserveOperation("create", "insufficient", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", "insufficient")))
}

func TestCountersIgnoreNonPositive(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AddReserved(15)
	m.AddReserved(0)
	m.AddConverted(-3)
	m.AddCleanupReleased(2)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.ReservedUnits))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConvertedUnits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CleanupReleased))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("release", "ok", time.Now())
		m.AddReserved(1)
		m.OrderEvent("release")
		m.ObserveRequest("health", http.StatusOK, time.Now())
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRequest("health", http.StatusOK, time.Now())

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bouquet_inventory_http_requests_total{handler="health",status="200"} 1`)
}
