// Package metrics provides build and dev-loop metrics for wasmrun.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so the pipeline and supervisor never check for nil. When
// `serve.metrics` is enabled the dev server swaps in a PrometheusRecorder and
// exposes its registry through HTTPHandler.
package metrics
