package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for build, rebuild and process metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(profile string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(profile string, result ResultLabel)
	IncOptimizerRetry()
	IncRebuild(watcher string, result ResultLabel)
	IncBackendRestart()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(string, ResultLabel)        {}
func (NoopRecorder) IncOptimizerRetry()                         {}
func (NoopRecorder) IncRebuild(string, ResultLabel)             {}
func (NoopRecorder) IncBackendRestart()                         {}

// ResultOf maps an error to a ResultLabel.
func ResultOf(err error) ResultLabel {
	if err != nil {
		return ResultFailed
	}
	return ResultSuccess
}
