package metrics

import "time"

// OrchestratorMetrics observes the processing pipeline: queue depth, job
// outcomes, inference latency and artifact-cache effectiveness. Pass nil
// (or never call InitRegistry) for zero overhead.
type OrchestratorMetrics interface {
	// SetQueueDepth records the number of queued jobs.
	SetQueueDepth(depth int64)
	// IncJobsProcessed counts a finished job by outcome.
	IncJobsProcessed(success bool)
	// ObserveInference records one inference call's duration by
	// operation ("depth", "splat") and outcome.
	ObserveInference(operation string, duration time.Duration, success bool)
	// IncCacheLookup counts an artifact-cache lookup by hit/miss.
	IncCacheLookup(hit bool)
}

// newPrometheusOrchestratorMetrics is installed by the prometheus
// subpackage during its init. The indirection keeps this package free of
// a hard dependency on the implementation.
var newPrometheusOrchestratorMetrics func() OrchestratorMetrics

// RegisterOrchestratorMetricsConstructor installs the implementation
// constructor. Called by pkg/metrics/prometheus.
func RegisterOrchestratorMetricsConstructor(constructor func() OrchestratorMetrics) {
	newPrometheusOrchestratorMetrics = constructor
}

// NewOrchestratorMetrics returns a Prometheus-backed instance, or nil
// when metrics are disabled or no implementation is linked in.
func NewOrchestratorMetrics() OrchestratorMetrics {
	if !IsEnabled() || newPrometheusOrchestratorMetrics == nil {
		return nil
	}
	return newPrometheusOrchestratorMetrics()
}

// defaultMetrics backs the package-level recording helpers.
var defaultMetrics OrchestratorMetrics

// initDefault builds the shared instance once the registry exists.
func initDefault() {
	defaultMetrics = NewOrchestratorMetrics()
}

// SetQueueDepth records the queue depth on the default instance.
func SetQueueDepth(depth int64) {
	if defaultMetrics != nil {
		defaultMetrics.SetQueueDepth(depth)
	}
}

// IncJobsProcessed counts a finished job on the default instance.
func IncJobsProcessed(success bool) {
	if defaultMetrics != nil {
		defaultMetrics.IncJobsProcessed(success)
	}
}

// ObserveInference records an inference call on the default instance.
func ObserveInference(operation string, duration time.Duration, success bool) {
	if defaultMetrics != nil {
		defaultMetrics.ObserveInference(operation, duration, success)
	}
}

// IncCacheLookup counts a cache lookup on the default instance.
func IncCacheLookup(hit bool) {
	if defaultMetrics != nil {
		defaultMetrics.IncCacheLookup(hit)
	}
}
