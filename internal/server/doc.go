// Package server implements the embedded development HTTP server: a static file
// handler with single-page-app fallback, an optional live-reload event stream, and
// a pre-bound listener so bind failures surface before any task starts.
package server
