package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the event notifier.
type Metrics struct {
	// Completed polling passes
	Ticks prometheus.Counter

	// Events forwarded to the sink
	EventsDelivered prometheus.Counter

	// Events dropped because their record vanished
	EventsSkipped prometheus.Counter

	// Duration of one polling pass
	TickLatency prometheus.Histogram
}

// New creates a Metrics instance with all notifier metrics registered.
func New() *Metrics {
	return &Metrics{
		Ticks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_notifier_ticks_total",
			Help: "Total completed notifier polling passes",
		}),
		EventsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_notifier_events_delivered_total",
			Help: "Total events forwarded to the notification sink",
		}),
		EventsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_notifier_events_skipped_total",
			Help: "Total events dropped because no judgement state was found",
		}),
		TickLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_notifier_tick_duration_seconds",
			Help:    "Duration of one notifier polling pass",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// IncTick records a completed polling pass.
func (m *Metrics) IncTick() {
	if m != nil {
		m.Ticks.Inc()
	}
}

// IncDelivered records an event forwarded to the sink.
func (m *Metrics) IncDelivered() {
	if m != nil {
		m.EventsDelivered.Inc()
	}
}

// IncSkipped records an event dropped for lack of judgement state.
func (m *Metrics) IncSkipped() {
	if m != nil {
		m.EventsSkipped.Inc()
	}
}

// ObserveTick records the duration of a polling pass.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m != nil {
		m.TickLatency.Observe(d.Seconds())
	}
}
