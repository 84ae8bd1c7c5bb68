package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepDuration tracks the wall time of each checkout pipeline step
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bake_checkout_step_duration_seconds",
		Help:    "Duration of checkout pipeline steps",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 14), // 10ms to ~80s
	}, []string{"step", "result"})

	// RepoOperations counts version control operations by outcome
	RepoOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bake_repo_operations_total",
		Help: "Total version control operations",
	}, []string{"vcs", "op", "result"})

	// PatchesApplied counts patch files applied per repository
	PatchesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bake_patches_applied_total",
		Help: "Total patch files applied",
	}, []string{"repo"})

	// CheckoutRuns counts complete pipeline runs
	CheckoutRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bake_checkout_runs_total",
		Help: "Total checkout pipeline runs",
	}, []string{"result"})

	// LastRunTimestamp is the unix time of the last finished run
	LastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bake_checkout_last_run_timestamp_seconds",
		Help: "Unix timestamp of the last finished checkout run",
	})
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStep records the duration of a pipeline step.
func ObserveStep(step string, d time.Duration, err error) {
	StepDuration.WithLabelValues(step, result(err)).Observe(d.Seconds())
}

// IncRepoOp records a version control operation (clone, fetch, checkout, patch).
func IncRepoOp(vcs, op string, err error) {
	RepoOperations.WithLabelValues(vcs, op, result(err)).Inc()
}

// IncPatchApplied records one applied patch file.
func IncPatchApplied(repo string) {
	PatchesApplied.WithLabelValues(repo).Inc()
}

// ObserveRun records the outcome of a full checkout run.
func ObserveRun(err error) {
	CheckoutRuns.WithLabelValues(result(err)).Inc()
	LastRunTimestamp.SetToCurrentTime()
}
