// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from one diff run.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and
//     timing data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no
//     real backend is configured.
//   - Concrete metric systems (Prometheus, Datadog) are isolated in
//     subpackages, so the rest of the codebase depends only on this
//     interface.
//
// The primary use case is instrumenting the engine's phases (§4.12) and
// row-level outcome counts without coupling the core diff logic to a
// specific metrics system.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends. It is
// intentionally generic so Prometheus, Datadog, or any other system can
// be plugged in.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. a
	// Pushgateway backend with no long-lived scrape endpoint).
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

// RecordPhase is the common pattern: measure one engine phase's latency
// and success/failure, keyed by Phase (§4.10's prepare/partitioning/
// diff_partitions/emit_events/done).
func RecordPhase(phase string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"phase": phase, "status": status}
	backend.IncCounter("csvdiff_phase_total", 1, lbls)
	backend.ObserveHistogram("csvdiff_phase_duration_seconds", d.Seconds(), lbls)
}

// RecordRow increments a row-outcome counter. kind mirrors the Stats
// event's fields: "added", "removed", "changed", "unchanged".
func RecordRow(kind string, delta uint64) {
	if delta == 0 {
		return
	}
	backend.IncCounter("csvdiff_rows_total", float64(delta), Labels{"kind": kind})
}

// RecordPartitions increments the partitions-processed counter by delta,
// the number of Pass-2 partitions completed. The engine calls it once per
// keyed run, after every partition has finished.
func RecordPartitions(delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("csvdiff_partitions_total", float64(delta), nil)
}
