package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "wasmrun"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry        *prom.Registry
	stageDuration   *prom.HistogramVec
	buildDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	buildOutcome    *prom.CounterVec
	optimizeRetries prom.Counter
	rebuilds        *prom.CounterVec
	backendRestarts prom.Counter
}

// NewPrometheusRecorder constructs and registers the wasmrun metrics on reg.
// A nil registry creates a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration by profile",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"profile"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by profile and result",
		}, []string{"profile", "result"}),
		optimizeRetries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_retries_total",
			Help:      "Optimizer invocations retried after a transient failure",
		}),
		rebuilds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilds_total",
			Help:      "Watch-triggered rebuilds by watcher and result",
		}, []string{"watcher", "result"}),
		backendRestarts: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "backend_restarts_total",
			Help:      "Backend process respawns",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.optimizeRetries, pr.rebuilds, pr.backendRestarts)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(profile string, d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(profile).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(profile string, result ResultLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(profile, string(result)).Inc()
}

func (p *PrometheusRecorder) IncOptimizerRetry() {
	if p == nil || p.optimizeRetries == nil {
		return
	}
	p.optimizeRetries.Inc()
}

func (p *PrometheusRecorder) IncRebuild(watcher string, result ResultLabel) {
	if p == nil || p.rebuilds == nil {
		return
	}
	p.rebuilds.WithLabelValues(watcher, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBackendRestart() {
	if p == nil || p.backendRestarts == nil {
		return
	}
	p.backendRestarts.Inc()
}
