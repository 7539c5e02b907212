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

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.TokensIssuedTotal.WithLabelValues(OutcomeOK).Inc()
	m.TokensRedeemedTotal.WithLabelValues(OutcomeExpired).Add(2)
	m.SessionsOpenedTotal.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssuedTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TokensRedeemedTotal.WithLabelValues(OutcomeExpired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsOpenedTotal))

	assert.Panics(t, func() { NewMetrics(reg) }, "duplicate registration must panic")
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordHTTPRequest(http.MethodGet, "/login", http.StatusOK, 10*time.Millisecond)
	m.RecordHTTPRequest(http.MethodGet, "/login", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/login", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.GateDecisionsTotal.WithLabelValues("allow").Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gradebook_gate_decisions_total{decision="allow"} 1`)
}
