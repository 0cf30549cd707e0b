// Package metrics exposes Prometheus instrumentation for the auth core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the counters the auth flow reports into. All fields
// are registered against the registry passed to New.
type Metrics struct {
	loginAttempts  *prometheus.CounterVec
	rateLimited    prometheus.Counter
	limiterOutages prometheus.Counter
	pepperTries    prometheus.Histogram
	fallbackScans  prometheus.Counter
}

// New registers and returns the auth metrics. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome (success, invalid, rate_limited, error).",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "rate_limited_total",
			Help:      "Login attempts rejected by the rate limiter.",
		}),
		limiterOutages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "limiter_outages_total",
			Help:      "Rate limiter backend failures, regardless of fail-open/fail-closed policy.",
		}),
		pepperTries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "auth",
			Name:      "verify_pepper_tries",
			Help:      "Pepper versions tried per verification; 1 means the hint fast path hit.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}),
		fallbackScans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "verify_fallback_scans_total",
			Help:      "Verifications that missed the hint and scanned other pepper versions.",
		}),
	}

	reg.MustRegister(m.loginAttempts, m.rateLimited, m.limiterOutages, m.pepperTries, m.fallbackScans)
	return m
}

// LoginOutcome records one finished login attempt.
func (m *Metrics) LoginOutcome(outcome string) {
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// RateLimited records a limiter rejection.
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// LimiterOutage records an unreachable counter store.
func (m *Metrics) LimiterOutage() {
	m.limiterOutages.Inc()
}

// ObserveVerify implements password.TryRecorder.
func (m *Metrics) ObserveVerify(tries int, matched bool) {
	m.pepperTries.Observe(float64(tries))
	if tries > 1 {
		m.fallbackScans.Inc()
	}
}
