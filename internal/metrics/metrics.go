// ABOUTME: Prometheus metrics for auth resolutions and OTP verifications
// ABOUTME: Registered on a dedicated registry served by the metrics handler

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instruments for the auth core.
type Metrics struct {
	registry *prometheus.Registry

	resolutions        *prometheus.CounterVec
	resolutionDuration prometheus.Histogram
	otpVerifications   *prometheus.CounterVec
}

// New creates the metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drawbridge_auth_resolutions_total",
			Help: "Authentication resolutions by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		resolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drawbridge_auth_resolution_duration_seconds",
			Help:    "Duration of authentication resolutions.",
			Buckets: prometheus.DefBuckets,
		}),
		otpVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drawbridge_otp_verifications_total",
			Help: "Second-factor verifications by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}

	registry.MustRegister(m.resolutions, m.resolutionDuration, m.otpVerifications)
	return m
}

// ObserveResolution records one authentication resolution.
func (m *Metrics) ObserveResolution(strategy, outcome string, duration time.Duration) {
	m.resolutions.WithLabelValues(strategy, outcome).Inc()
	m.resolutionDuration.Observe(duration.Seconds())
}

// ObserveOTPVerification records one second-factor verification attempt.
func (m *Metrics) ObserveOTPVerification(provider, outcome string) {
	m.otpVerifications.WithLabelValues(provider, outcome).Inc()
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
