package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SendAttempts counts per-recipient send attempts by outcome.
	SendAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_send_attempts_total",
			Help: "Total per-recipient send attempts by outcome",
		},
		[]string{"outcome"}, // sent or failed
	)

	// DispatchOutcomes counts how dispatch invocations terminated.
	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_dispatch_outcomes_total",
			Help: "Total dispatch loop terminations by resulting campaign status",
		},
		[]string{"status"}, // completed, paused or failed
	)

	// DispatchDuration tracks wall-clock time of whole dispatch invocations.
	// Buckets are coarse: a paced campaign is expected to run for minutes.
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campaign_dispatch_duration_seconds",
			Help:    "Duration of campaign dispatch invocations in seconds",
			Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900, 1800, 3600, 7200},
		},
	)
)

// RecordAttempt records one per-recipient attempt outcome.
func RecordAttempt(outcome string) {
	SendAttempts.WithLabelValues(outcome).Inc()
}

// RecordDispatch records a finished dispatch invocation. Duration is only
// observed for completed runs; paused and failed runs would skew the
// histogram toward their early exits.
func RecordDispatch(status string, seconds float64) {
	DispatchOutcomes.WithLabelValues(status).Inc()
	if seconds > 0 {
		DispatchDuration.Observe(seconds)
	}
}
