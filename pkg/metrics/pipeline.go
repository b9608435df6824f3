package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records job timings and per-stage outcome counters.
type PipelineMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	stage    *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_job_duration_seconds",
		Help:    "Duration of pipeline jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_job_success",
		Help: "Successful pipeline job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_job_failure",
		Help: "Failed pipeline job executions.",
	}, []string{"job"})
	stage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_outcomes",
		Help: "Per-stage outcome counts (ingested, rejected, rendered, published, ...).",
	}, []string{"stage", "outcome"})
	reg.MustRegister(duration, success, failure, stage)
	return &PipelineMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		stage:    stage,
	}
}

// ObserveDuration records the duration for the named job.
func (p *PipelineMetrics) ObserveDuration(job string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (p *PipelineMetrics) IncSuccess(job string) {
	if p == nil || p.success == nil {
		return
	}
	p.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (p *PipelineMetrics) IncFailure(job string) {
	if p == nil || p.failure == nil {
		return
	}
	p.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncStage increments a stage outcome counter.
func (p *PipelineMetrics) IncStage(stage, outcome string) {
	if p == nil || p.stage == nil {
		return
	}
	p.stage.WithLabelValues(normalizeLabel(stage), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
