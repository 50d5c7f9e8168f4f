package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters for this service. All increment
// helpers are nil-safe so tests can construct services without a registry.
type Metrics struct {
	SoftDeletes      prometheus.Counter
	Restores         prometheus.Counter
	LogReplays       prometheus.Counter
	PermanentDeletes prometheus.Counter
	PurgedEntries    prometheus.Counter
	BatchStamped     prometheus.Counter
}

// New creates and registers all counters on the default registry. Call once
// per process.
func New() *Metrics {
	return &Metrics{
		SoftDeletes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pvsf_admin_soft_deletes_total",
			Help: "Total documents soft-deleted, including batch cleanup",
		}),
		Restores: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pvsf_admin_restores_total",
			Help: "Total soft-deleted documents restored by id",
		}),
		LogReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pvsf_admin_log_replays_total",
			Help: "Total documents restored by replaying a log entry",
		}),
		PermanentDeletes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pvsf_admin_permanent_deletes_total",
			Help: "Total documents permanently removed",
		}),
		PurgedEntries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pvsf_admin_purged_log_entries_total",
			Help: "Total expired operation log entries purged",
		}),
		BatchStamped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pvsf_admin_batch_stamped_documents_total",
			Help: "Total documents stamped by cleanup batch soft-deletes",
		}),
	}
}

func (m *Metrics) IncSoftDeletes() {
	if m != nil {
		m.SoftDeletes.Inc()
	}
}

func (m *Metrics) IncRestores() {
	if m != nil {
		m.Restores.Inc()
	}
}

func (m *Metrics) IncLogReplays() {
	if m != nil {
		m.LogReplays.Inc()
	}
}

func (m *Metrics) IncPermanentDeletes() {
	if m != nil {
		m.PermanentDeletes.Inc()
	}
}

func (m *Metrics) AddPurgedEntries(n int64) {
	if m != nil && n > 0 {
		m.PurgedEntries.Add(float64(n))
	}
}

func (m *Metrics) AddBatchStamped(n int) {
	if m != nil && n > 0 {
		m.BatchStamped.Add(float64(n))
	}
}
