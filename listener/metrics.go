package listener

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics shared by all listener loops,
// labeled per network.
type Metrics struct {
	Ticks              *prometheus.CounterVec
	TickErrors         *prometheus.CounterVec
	EventsDispatched   *prometheus.CounterVec
	DuplicatesSkipped  *prometheus.CounterVec
	PrunedRanges       *prometheus.CounterVec
	CursorSaveFailures *prometheus.CounterVec
	CursorHeight       *prometheus.GaugeVec
}

// NewMetrics creates and registers listener metrics on the given
// registerer. Tests pass a private registry to avoid collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainlistener",
			Subsystem: "listener",
			Name:      "ticks_total",
			Help:      "Total number of completed polling ticks",
		}, []string{"network"}),
		TickErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainlistener",
			Subsystem: "listener",
			Name:      "tick_errors_total",
			Help:      "Total number of ticks aborted by an unrecovered error",
		}, []string{"network"}),
		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainlistener",
			Subsystem: "listener",
			Name:      "events_dispatched_total",
			Help:      "Total number of events dispatched to handlers",
		}, []string{"network", "event"}),
		DuplicatesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainlistener",
			Subsystem: "listener",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of events skipped by the dedup window",
		}, []string{"network"}),
		PrunedRanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainlistener",
			Subsystem: "listener",
			Name:      "pruned_ranges_total",
			Help:      "Total number of fetches abandoned due to pruned history",
		}, []string{"network"}),
		CursorSaveFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainlistener",
			Subsystem: "listener",
			Name:      "cursor_save_failures_total",
			Help:      "Total number of best-effort cursor saves that failed",
		}, []string{"network"}),
		CursorHeight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chainlistener",
			Subsystem: "listener",
			Name:      "cursor_height",
			Help:      "Last fully processed block number per network",
		}, []string{"network"}),
	}
}
