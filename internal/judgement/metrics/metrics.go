package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the judgement module.
type Metrics struct {
	// Judgement requests by result: "created" or "merged"
	RequestsSubmitted *prometheus.CounterVec

	// Message verification outcomes by outcome label
	VerificationOutcome *prometheus.CounterVec

	// Identities reaching full verification
	FullyVerified prometheus.Counter

	// Latency of message verification including storage round trips
	VerifyLatency prometheus.Histogram
}

// New creates a Metrics instance with all judgement metrics registered.
func New() *Metrics {
	return &Metrics{
		RequestsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_judgement_requests_total",
			Help: "Total judgement requests submitted, by result",
		}, []string{"result"}),

		VerificationOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_verification_outcomes_total",
			Help: "Total message verification outcomes",
		}, []string{"outcome"}),

		FullyVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_identities_fully_verified_total",
			Help: "Total identities that reached full verification",
		}),

		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_verify_message_duration_seconds",
			Help:    "Duration of inbound message verification",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncRequest records a submitted judgement request.
func (m *Metrics) IncRequest(result string) {
	if m != nil {
		m.RequestsSubmitted.WithLabelValues(result).Inc()
	}
}

// IncOutcome records a verification outcome.
func (m *Metrics) IncOutcome(outcome string) {
	if m != nil {
		m.VerificationOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncFullyVerified records an identity reaching full verification.
func (m *Metrics) IncFullyVerified() {
	if m != nil {
		m.FullyVerified.Inc()
	}
}

// ObserveVerifyLatency records the duration of a verification pass.
func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}
