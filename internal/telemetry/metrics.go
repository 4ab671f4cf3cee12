package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	TransitionsApplied  = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_transitions_applied_total", Help: "Status transitions written"})
	TransitionsRejected = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_transitions_rejected_total", Help: "Transition requests rejected by the transition table"})
	TransitionConflicts = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_transition_conflicts_total", Help: "Transitions lost to a concurrent update"})
	HistoryFailures     = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_history_failures_total", Help: "Status history appends that failed and were skipped"})
	BroadcastFailures   = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_broadcast_failures_total", Help: "Broadcast publishes that failed and were skipped"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			TransitionsApplied,
			TransitionsRejected,
			TransitionConflicts,
			HistoryFailures,
			BroadcastFailures,
		)
	})
	return promhttp.Handler()
}
