package reconcile

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// reconcileMetrics holds the counters recorded during reconciliation.
type reconcileMetrics struct {
	creates  prometheus.Counter
	updates  prometheus.Counter
	grants   prometheus.Counter
	failures prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *reconcileMetrics
)

// metrics returns the process-wide reconciliation counters, registering
// them on first use. Registration is guarded so repeated reconciliations
// in one process (and in tests) share the same collectors.
func metrics() *reconcileMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &reconcileMetrics{
			creates: promauto.NewCounter(prometheus.CounterOpts{
				Name: "provops_secrets_created_total",
				Help: "Total number of secrets created during reconciliation",
			}),
			updates: promauto.NewCounter(prometheus.CounterOpts{
				Name: "provops_secret_versions_added_total",
				Help: "Total number of versions added to existing secrets",
			}),
			grants: promauto.NewCounter(prometheus.CounterOpts{
				Name: "provops_grants_applied_total",
				Help: "Total number of access grants applied to secrets",
			}),
			failures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "provops_reconcile_failures_total",
				Help: "Total number of variables that failed to reconcile",
			}),
		}
	})
	return metricsInstance
}
