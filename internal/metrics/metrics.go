// Package metrics defines the Prometheus metrics of the gradebook server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeExpired = "expired"
	OutcomeUnknown = "unknown_user"
	OutcomeFailed  = "delivery_failed"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Login flow metrics
	TokensIssuedTotal   *prometheus.CounterVec
	TokensRedeemedTotal *prometheus.CounterVec
	GateDecisionsTotal  *prometheus.CounterVec
	SessionsOpenedTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradebook_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gradebook_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TokensIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradebook_tokens_issued_total",
				Help: "Total number of login token requests by outcome",
			},
			[]string{"outcome"},
		),
		TokensRedeemedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradebook_tokens_redeemed_total",
				Help: "Total number of login token redemptions by outcome",
			},
			[]string{"outcome"},
		),
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradebook_gate_decisions_total",
				Help: "Total number of protected resource access decisions",
			},
			[]string{"decision"},
		),
		SessionsOpenedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gradebook_sessions_opened_total",
				Help: "Total number of sessions opened",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokensIssuedTotal,
		m.TokensRedeemedTotal,
		m.GateDecisionsTotal,
		m.SessionsOpenedTotal,
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the HTTP handler exposing the metrics of the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
