package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/medicore/auth-service/internal/core/port"
)

// Metrics holds the Prometheus collectors exported by the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	LoginAttempts    *prometheus.CounterVec
	OTPIssuedTotal   *prometheus.CounterVec
	OTPVerifications *prometheus.CounterVec
}

var _ port.MetricsRecorder = (*Metrics)(nil)

// NewMetrics registers the service collectors on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auth",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		OTPIssuedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "otp_issued_total",
			Help:      "One-time codes issued by purpose",
		}, []string{"purpose"}),
		OTPVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "otp_verifications_total",
			Help:      "One-time code verification outcomes",
		}, []string{"purpose", "outcome"}),
	}
}

// LoginAttempt implements port.MetricsRecorder.
func (m *Metrics) LoginAttempt(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// OTPIssued implements port.MetricsRecorder.
func (m *Metrics) OTPIssued(purpose string) {
	m.OTPIssuedTotal.WithLabelValues(purpose).Inc()
}

// OTPVerification implements port.MetricsRecorder.
func (m *Metrics) OTPVerification(purpose, outcome string) {
	m.OTPVerifications.WithLabelValues(purpose, outcome).Inc()
}
