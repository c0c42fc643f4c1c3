package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Intake command metrics
	IntakeTransitions *prometheus.CounterVec
	IntakeRejected    *prometheus.CounterVec
	StockConsumed     prometheus.Counter
	StockRefunded     prometheus.Counter

	// Reconciler metrics
	ReconcilerPasses  *prometheus.CounterVec
	MissedMarked      *prometheus.CounterVec
	PatientsSkipped   prometheus.Counter
	ReconcilerLatency prometheus.Histogram

	// State store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		IntakeTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_transitions_total",
			Help:      "Total number of applied intake state transitions",
		}, []string{"state"}),
		IntakeRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_rejected_total",
			Help:      "Total number of rejected setIntakeState requests",
		}, []string{"reason"}),
		StockConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_units_consumed_total",
			Help:      "Total medication units consumed from packages",
		}),
		StockRefunded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_units_refunded_total",
			Help:      "Total medication units refunded to packages",
		}),
		ReconcilerPasses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_passes_total",
			Help:      "Total number of reconciler passes by mode",
		}, []string{"mode"}),
		MissedMarked: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_missed_marked_total",
			Help:      "Total number of intake slots auto-marked missed",
		}, []string{"mode"}),
		PatientsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_patients_skipped_total",
			Help:      "Patients skipped due to read or parse failures",
		}),
		ReconcilerLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciler_pass_duration_seconds",
			Help:      "Time spent in a single reconciler pass",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		StoreOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_store_operations_total",
			Help:      "Total number of state store operations",
		}, []string{"operation", "status"}),
		StoreLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "state_store_operation_duration_seconds",
			Help:      "Duration of state store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),
	}
}
