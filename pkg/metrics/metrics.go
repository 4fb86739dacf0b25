package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Case lifecycle
	CaseTransitions *prometheus.CounterVec
	CasesCreated    *prometheus.CounterVec

	// Attachments
	AttachmentOps  *prometheus.CounterVec
	BundleFiles    *prometheus.CounterVec
	BundleDuration prometheus.Histogram

	// Notifications and broadcast
	Notifications    *prometheus.CounterVec
	BroadcastsFailed prometheus.Counter
}

// New registers all application metrics on reg. Passing a fresh registry
// keeps tests independent of the global default.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CaseTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "case_transitions_total",
			Help:      "Total number of case status transitions",
		}, []string{"from", "to"}),
		CasesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_created_total",
			Help:      "Total number of cases created, by initial status",
		}, []string{"status"}),

		AttachmentOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_operations_total",
			Help:      "Total number of attachment operations",
		}, []string{"operation", "status"}),
		BundleFiles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_files_total",
			Help:      "Files considered while building bundles",
		}, []string{"result"}),
		BundleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_build_duration_seconds",
			Help:      "Time spent building attachment bundles",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Lab notifications by channel and outcome",
		}, []string{"channel", "status"}),
		BroadcastsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_failed_total",
			Help:      "Change signals that could not be published",
		}),
	}
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *Metrics {
	return New("test", prometheus.NewRegistry())
}
