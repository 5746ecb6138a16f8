// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from export runs.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - It is designed to mirror the source abstraction pattern used elsewhere
//     in the project (e.g. source.Fetcher), allowing the rest of the codebase
//     to depend only on this interface while keeping concrete metric systems
//     isolated in subpackages.
//
// The primary use case is instrumentation of export runs (pages fetched,
// rows rendered, bytes streamed, run outcomes) without coupling the engine
// to a specific metrics system such as Prometheus or Datadog.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordRun is a convenience for the common pattern:
// measure latency + success/failure per export run.
func RecordRun(entity, format string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"entity": entity,
		"format": format,
		"status": status,
	}

	backend.IncCounter("export_runs_total", 1, lbls)
	backend.ObserveHistogram("export_run_duration_seconds", d.Seconds(), lbls)
}

// RecordPages increments the page-fetch counter for the given export.
func RecordPages(entity, format string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("export_pages_total", float64(delta), Labels{
		"entity": entity,
		"format": format,
	})
}

// RecordRows increments the rendered-row counter for the given export.
func RecordRows(entity, format string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("export_rows_total", float64(delta), Labels{
		"entity": entity,
		"format": format,
	})
}

// RecordBytes increments the streamed-byte counter for the given export.
func RecordBytes(entity, format string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("export_bytes_total", float64(delta), Labels{
		"entity": entity,
		"format": format,
	})
}
