// Package prometheus provides the Prometheus implementation of the
// orchestrator metrics interface. Importing it (for side effects is
// enough) installs the constructor into pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/metrics"
)

func init() {
	metrics.RegisterOrchestratorMetricsConstructor(NewOrchestratorMetrics)
}

type orchestratorMetrics struct {
	queueDepth        prometheus.Gauge
	jobsProcessed     *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
}

// NewOrchestratorMetrics creates a Prometheus-backed instance, or nil
// when metrics are disabled.
func NewOrchestratorMetrics() metrics.OrchestratorMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &orchestratorMetrics{
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "immichvr_queue_depth",
				Help: "Number of jobs waiting in the processing queue",
			},
		),
		jobsProcessed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "immichvr_jobs_processed_total",
				Help: "Total number of finished jobs by outcome",
			},
			[]string{"outcome"}, // "success", "failure"
		),
		inferenceDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "immichvr_inference_duration_seconds",
				Help: "Duration of inference service calls",
				Buckets: []float64{
					0.5,  // thumbnail on a warm model
					1,    // typical depth call
					2.5,  // full resolution
					5,    // cold-ish model
					10,   // model load included
					30,   // large model on CPU
					60,   // pathological
					120,  // depth deadline
				},
			},
			[]string{"operation", "outcome"},
		),
		cacheLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "immichvr_artifact_cache_lookups_total",
				Help: "Artifact cache lookups by result",
			},
			[]string{"result"}, // "hit", "miss"
		),
	}
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *orchestratorMetrics) SetQueueDepth(depth int64) {
	m.queueDepth.Set(float64(depth))
}

func (m *orchestratorMetrics) IncJobsProcessed(success bool) {
	m.jobsProcessed.WithLabelValues(outcomeLabel(success)).Inc()
}

func (m *orchestratorMetrics) ObserveInference(operation string, duration time.Duration, success bool) {
	m.inferenceDuration.WithLabelValues(operation, outcomeLabel(success)).Observe(duration.Seconds())
}

func (m *orchestratorMetrics) IncCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
