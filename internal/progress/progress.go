// Package progress implements the Progress/Cancel Bus (§4.10): rate-
// limited Progress{phase,done,total} emission plus a one-way cancel
// flag the engine polls at batch boundaries, grounded on this
// codebase's worker-fan-out cancellation pattern (context cancellation
// checked in a select alongside channel work) but specialized to the
// engine's coarse phase sequence rather than per-goroutine worker loops.
package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"csvdiff/internal/diffcore"
)

// DefaultInterval is the minimum spacing between two non-forced Progress
// events, whatever their phase, satisfying the spec's "no more than
// ~8 Hz" bound.
const DefaultInterval = 125 * time.Millisecond

// Bus rate-limits progress emission and exposes a cooperative cancel
// flag. Report, Cancel, and Cancelled are all safe for concurrent use —
// the engine's partition fan-out reports diff_partitions progress from
// every worker goroutine, not just a single producer.
type Bus struct {
	emit     func(diffcore.Event)
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
	cancel   atomic.Bool
}

// New returns a Bus that calls emit for every Progress event that
// survives rate-limiting. interval<=0 uses DefaultInterval.
func New(emit func(diffcore.Event), interval time.Duration) *Bus {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Bus{emit: emit, interval: interval}
}

// Report emits Progress{phase, done, total} unless force is false and
// less than the bus's interval has elapsed since the last emission —
// phase transitions and the terminal done/total for a phase should
// pass force=true so they're never dropped by rate-limiting.
func (b *Bus) Report(phase diffcore.Phase, done, total uint64, force bool) {
	now := time.Now()
	b.mu.Lock()
	if !force && !b.last.IsZero() && now.Sub(b.last) < b.interval {
		b.mu.Unlock()
		return
	}
	b.last = now
	b.mu.Unlock()
	b.emit(&diffcore.ProgressEvent{Phase: phase, Done: done, Total: total})
}

// Cancel sets the one-way cancel flag. Idempotent.
func (b *Bus) Cancel() { b.cancel.Store(true) }

// Cancelled reports whether Cancel has been called.
func (b *Bus) Cancelled() bool { return b.cancel.Load() }

// CheckContext folds ctx's own cancellation into the bus's flag, so
// callers that only have a context (no direct Bus.Cancel caller) still
// get a cancelled DiffError instead of ctx.Err() leaking out raw.
func (b *Bus) CheckContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		b.Cancel()
	default:
	}
	if b.Cancelled() {
		return diffcore.New(diffcore.CodeCancelled, "cancelled")
	}
	return nil
}
