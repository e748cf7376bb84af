package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the subsystem's instrumentation. Built once at startup and
// passed by reference to the services that record into it.
type Metrics struct {
	ConflictsDetected  prometheus.Counter
	ConflictsResolved  *prometheus.CounterVec
	ConflictsEscalated prometheus.Counter

	CheckpointsCreated  *prometheus.CounterVec
	CheckpointsRestored prometheus.Counter

	InputsEnqueued  prometheus.Counter
	InputsProcessed *prometheus.CounterVec
	QueueDrainTime  prometheus.Histogram

	ContextUpdates       *prometheus.CounterVec
	ContextSummarized    prometheus.Counter
	ConcurrencyConflicts prometheus.Counter

	SessionsRecovered prometheus.Counter
	SessionsExpired   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConflictsDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabflow_conflicts_detected_total",
			Help: "Conflicts created from divergent concurrent inputs.",
		}),
		ConflictsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabflow_conflicts_resolved_total",
			Help: "Conflicts resolved, by resolution type.",
		}, []string{"resolution"}),
		ConflictsEscalated: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabflow_conflicts_escalated_total",
			Help: "Pending conflicts escalated past their expiry.",
		}),
		CheckpointsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabflow_checkpoints_created_total",
			Help: "Checkpoints created, by trigger type.",
		}, []string{"type"}),
		CheckpointsRestored: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabflow_checkpoints_restored_total",
			Help: "Checkpoint restores performed.",
		}),
		InputsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabflow_inputs_enqueued_total",
			Help: "Participant inputs buffered into the queue.",
		}),
		InputsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabflow_inputs_processed_total",
			Help: "Queued inputs drained, by outcome.",
		}, []string{"outcome"}),
		QueueDrainTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "collabflow_queue_drain_seconds",
			Help:    "Duration of full ProcessQueued drains.",
			Buckets: prometheus.DefBuckets,
		}),
		ContextUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabflow_context_updates_total",
			Help: "Shared context mutations, by kind.",
		}, []string{"kind"}),
		ContextSummarized: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabflow_context_summarized_total",
			Help: "Token-budget summarizations applied to shared contexts.",
		}),
		ConcurrencyConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabflow_concurrency_conflicts_total",
			Help: "Optimistic version checks that failed and asked the caller to retry.",
		}),
		SessionsRecovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabflow_sessions_recovered_total",
			Help: "Reconnections that restored a prior session.",
		}),
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabflow_sessions_expired_total",
			Help: "Sessions deactivated by the idle sweep.",
		}),
	}
}
