// Package engine is the top-level orchestrator (§4.12): it wires the
// CSV Reader, Schema Validator, Partitioner, Spill Backend, Matchers,
// Event Orderer, Progress/Cancel Bus, and Sink Adapter together behind
// the two entry points the wire contract exposes, DiffPaths and
// DiffBytes. Partition concurrency is an errgroup worker pool, the same
// shape this codebase's own parallel-scan fan-out uses: one error group
// bounded by SetLimit, cancellation propagated via the group's derived
// context.
package engine

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"csvdiff/internal/config"
	"csvdiff/internal/csvreader"
	"csvdiff/internal/diffcore"
	"csvdiff/internal/matcher"
	"csvdiff/internal/metrics"
	"csvdiff/internal/orderer"
	"csvdiff/internal/partition"
	"csvdiff/internal/progress"
	"csvdiff/internal/schema"
	"csvdiff/internal/sink"
	"csvdiff/internal/spill"
)

// State is the engine's own position in the state machine (§4.12),
// exposed for diagnostics and tests; callers never need to drive it.
type State string

const (
	StateInit           State = "INIT"
	StateHeadersRead    State = "HEADERS_READ"
	StatePartitioning   State = "PARTITIONING"
	StateDiffPartitions State = "DIFF_PARTITIONS"
	StateEmitEvents     State = "EMIT_EVENTS"
	StateDone           State = "DONE"
	StateCancel         State = "CANCEL"
	StateAborted        State = "ABORTED"
	StateFailed         State = "FAILED"
)

// Result is what a successful run produces, mirroring the final Stats
// event's fields for callers that want them outside the sink stream.
type Result struct {
	State             State
	RowsTotalCompared uint64
	RowsAdded         uint64
	RowsRemoved       uint64
	RowsChanged       uint64
	RowsUnchanged     uint64
}

// Engine runs one diff to completion against a Config and an
// EventSink. It is not reusable across runs: construct a fresh Engine
// (or just call DiffPaths/DiffBytes, which construct one internally)
// per run.
type Engine struct {
	cfg    *config.Config
	sink   sink.EventSink
	sinkMu sync.Mutex // serializes Emit calls made concurrently from partition workers
	bus    *progress.Bus
	state  State
}

// New builds an Engine for one run. emitProgress gates whether Progress
// events are forwarded to sink at all (§4.10); when false the bus is
// still used internally for cancellation polling, it just never calls
// sink.Emit for progress.
func New(cfg *config.Config, s sink.EventSink) *Engine {
	e := &Engine{cfg: cfg, sink: s, state: StateInit}
	emit := func(ev diffcore.Event) {
		if cfg.EmitProgress {
			e.sinkMu.Lock()
			_ = e.sink.Emit(ev)
			e.sinkMu.Unlock()
		}
	}
	e.bus = progress.New(emit, cfg.ProgressInterval)
	return e
}

// State reports the engine's current position in the state machine.
func (e *Engine) State() State { return e.state }

// DiffPaths runs the engine against two files on disk.
func DiffPaths(ctx context.Context, pathA, pathB string, cfg *config.Config, s sink.EventSink) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fa, err := os.Open(pathA)
	if err != nil {
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "opening %s: %v", pathA, err)
	}
	defer fa.Close()
	fb, err := os.Open(pathB)
	if err != nil {
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "opening %s: %v", pathB, err)
	}
	defer fb.Close()

	e := New(cfg, s)
	return e.run(ctx, fa, fb)
}

// DiffBytes runs the engine against two in-memory buffers — the shape a
// browser-side caller (holding File/Blob contents already read into
// memory) uses.
func DiffBytes(ctx context.Context, a, b []byte, cfg *config.Config, s sink.EventSink) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := New(cfg, s)
	return e.run(ctx, bytes.NewReader(a), bytes.NewReader(b))
}

func (e *Engine) run(ctx context.Context, srcA, srcB io.Reader) (*Result, error) {
	e.bus.Report(diffcore.PhasePrepare, 0, 1, true)

	var result *Result
	var err error
	switch e.cfg.Mode {
	case config.ModeKeyed:
		result, err = e.runKeyed(ctx, srcA, srcB)
	default:
		result, err = e.runStreamed(ctx, srcA, srcB)
	}
	// Close exactly once regardless of outcome, so a Channel-backed
	// consumer's range loop is never left blocked on a run that failed
	// before reaching Stats.
	_ = e.sink.Close()

	if err != nil {
		e.state = stateForError(err)
		return nil, err
	}
	e.state = StateDone
	result.State = StateDone
	return result, nil
}

func stateForError(err error) State {
	if de, ok := diffcore.AsDiffError(err); ok && de.Code == diffcore.CodeCancelled {
		return StateAborted
	}
	return StateFailed
}

// runKeyed drives the out-of-core path: Partitioner → Spill Backend →
// per-partition Matcher (fanned out under an errgroup) → Event Orderer.
func (e *Engine) runKeyed(ctx context.Context, srcA, srcB io.Reader) (*Result, error) {
	backend, err := spill.Open(ctx, e.cfg.SpillBackend, spill.Config{
		Partitions: e.cfg.PartitionCount,
		DSN:        e.cfg.SpillDSN,
		Dir:        e.cfg.SpillDir,
	})
	if err != nil {
		return nil, err
	}
	defer backend.Close(ctx)

	e.state = StatePartitioning
	partitionStart := time.Now()
	manifest, err := partition.Run(ctx, backend, srcA, srcB, partition.Options{
		Mode:       partition.ModeKeyed,
		KeyColumns: e.cfg.KeyColumns,
		HeaderMode: schema.HeaderMode(e.cfg.HeaderMode),
		Partitions: e.cfg.PartitionCount,
		BatchSize:  e.cfg.BatchSize,
		OnProgress: func(bytesRead, bytesTotal uint64) {
			e.bus.Report(diffcore.PhasePartitioning, bytesRead, bytesTotal, false)
		},
	})
	metrics.RecordPhase(string(diffcore.PhasePartitioning), err, time.Since(partitionStart))
	if err != nil {
		return nil, err
	}
	e.bus.Report(diffcore.PhasePartitioning, 1, 1, true)
	e.state = StateHeadersRead

	if err := e.sink.Emit(&diffcore.SchemaEvent{ColumnsA: manifest.ColumnsA, ColumnsB: manifest.ColumnsB}); err != nil {
		return nil, diffcore.Wrap(diffcore.CodeCompareFailed, err, "sink emit failed: %v", err)
	}

	idxA := schema.ComparisonIndexes(manifest.ComparisonColumns, manifest.ColumnsA)
	idxB := schema.ComparisonIndexes(manifest.ComparisonColumns, manifest.ColumnsB)
	encA := diffcore.NewRowEncoder(manifest.ColumnsA)
	encB := diffcore.NewRowEncoder(manifest.ColumnsB)

	partitions := e.cfg.PartitionCount
	if partitions <= 0 {
		partitions = 1
	}
	buffers := make([]*orderer.Buffer, partitions)
	stats := make([]matcher.Stats, partitions)

	e.state = StateDiffPartitions
	diffStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers(e.cfg.MaxPartitionWorkers))

	var completed atomic.Int64
	for p := 0; p < partitions; p++ {
		p := p
		g.Go(func() error {
			if err := e.bus.CheckContext(gctx); err != nil {
				return err
			}
			curA, err := backend.Iterate(gctx, spill.SideA, p)
			if err != nil {
				return err
			}
			defer curA.Close()
			curB, err := backend.Iterate(gctx, spill.SideB, p)
			if err != nil {
				return err
			}
			defer curB.Close()

			buf := orderer.NewBuffer()
			st, err := matcher.Partition(gctx, curA, curB, matcher.KeyedOptions{
				KeyColumns:        e.cfg.KeyColumns,
				ComparisonColumns: manifest.ComparisonColumns,
				CompareIdxA:       idxA,
				CompareIdxB:       idxB,
				EmitUnchanged:     e.cfg.EmitUnchanged,
				EncA:              encA,
				EncB:              encB,
			}, func(ev diffcore.Event, key diffcore.KeyTuple) { buf.Add(key, ev) })
			if err != nil {
				return err
			}
			buffers[p] = buf
			stats[p] = st
			n := completed.Add(1)
			e.bus.Report(diffcore.PhaseDiffPartitions, uint64(n), uint64(partitions), false)
			return nil
		})
	}
	waitErr := g.Wait()
	metrics.RecordPhase(string(diffcore.PhaseDiffPartitions), waitErr, time.Since(diffStart))
	if waitErr != nil {
		return nil, waitErr
	}
	metrics.RecordPartitions(int64(partitions))
	e.bus.Report(diffcore.PhaseDiffPartitions, uint64(partitions), uint64(partitions), true)

	e.state = StateEmitEvents
	e.bus.Report(diffcore.PhaseEmitEvents, 0, 1, true)
	emitStart := time.Now()
	streams := make([]orderer.Stream, partitions)
	for p, buf := range buffers {
		streams[p] = buf.Sorted()
	}
	var emitErr error
	orderer.Merge(streams, func(ev diffcore.Event) {
		if emitErr != nil {
			return
		}
		emitErr = e.sink.Emit(ev)
	})
	if emitErr != nil {
		metrics.RecordPhase(string(diffcore.PhaseEmitEvents), emitErr, time.Since(emitStart))
		return nil, diffcore.Wrap(diffcore.CodeCompareFailed, emitErr, "sink emit failed: %v", emitErr)
	}

	total := sumStats(stats)
	// Reported before Stats so that Stats stays the last event.
	e.bus.Report(diffcore.PhaseDone, 1, 1, true)
	if err := e.emitStats(total); err != nil {
		metrics.RecordPhase(string(diffcore.PhaseEmitEvents), err, time.Since(emitStart))
		return nil, err
	}
	metrics.RecordPhase(string(diffcore.PhaseEmitEvents), nil, time.Since(emitStart))
	return resultFromStats(total), nil
}

// runStreamed drives the positional and multiset matchers, which never
// touch the Spill Backend: both CSV Readers stream directly, so there
// is no separate partitioning pass to report progress for beyond
// reading the two files.
func (e *Engine) runStreamed(ctx context.Context, srcA, srcB io.Reader) (*Result, error) {
	rdA, err := csvreader.Open("A", srcA)
	if err != nil {
		return nil, err
	}
	rdB, err := csvreader.Open("B", srcB)
	if err != nil {
		return nil, err
	}

	if err := schema.ValidateHeader(rdA.Header(), "A"); err != nil {
		return nil, err
	}
	if err := schema.ValidateHeader(rdB.Header(), "B"); err != nil {
		return nil, err
	}
	compareCols, err := schema.ComparisonColumns(rdA.Header(), rdB.Header(), schema.HeaderMode(e.cfg.HeaderMode))
	if err != nil {
		return nil, err
	}
	e.state = StateHeadersRead
	e.bus.Report(diffcore.PhasePartitioning, 1, 1, true)

	if err := e.sink.Emit(&diffcore.SchemaEvent{ColumnsA: rdA.Header(), ColumnsB: rdB.Header()}); err != nil {
		return nil, diffcore.Wrap(diffcore.CodeCompareFailed, err, "sink emit failed: %v", err)
	}

	idxA := schema.ComparisonIndexes(compareCols, rdA.Header())
	idxB := schema.ComparisonIndexes(compareCols, rdB.Header())
	encA := diffcore.NewRowEncoder(rdA.Header())
	encB := diffcore.NewRowEncoder(rdB.Header())

	e.state = StateDiffPartitions
	diffStart := time.Now()
	var stats matcher.Stats
	emit := func(ev diffcore.Event) { _ = e.sink.Emit(ev) }

	if e.cfg.IgnoreRowOrder {
		stats, err = matcher.RunMultiset(ctx, rdA, rdB, matcher.MultisetOptions{
			ComparisonColumns: compareCols,
			CompareIdxA:       idxA,
			CompareIdxB:       idxB,
			EmitUnchanged:     e.cfg.EmitUnchanged,
			EncA:              encA,
			EncB:              encB,
		}, emit)
	} else {
		stats, err = matcher.RunPositional(ctx, rdA, rdB, matcher.PositionalOptions{
			ComparisonColumns: compareCols,
			CompareIdxA:       idxA,
			CompareIdxB:       idxB,
			EmitUnchanged:     e.cfg.EmitUnchanged,
			EncA:              encA,
			EncB:              encB,
		}, emit)
	}
	metrics.RecordPhase(string(diffcore.PhaseDiffPartitions), err, time.Since(diffStart))
	if err != nil {
		return nil, err
	}
	e.bus.Report(diffcore.PhaseDiffPartitions, 1, 1, true)

	e.state = StateEmitEvents
	e.bus.Report(diffcore.PhaseEmitEvents, 0, 1, true)
	emitStart := time.Now()
	// Reported before Stats so that Stats stays the last event.
	e.bus.Report(diffcore.PhaseDone, 1, 1, true)
	err = e.emitStats(stats)
	metrics.RecordPhase(string(diffcore.PhaseEmitEvents), err, time.Since(emitStart))
	if err != nil {
		return nil, err
	}
	return resultFromStats(stats), nil
}

func (e *Engine) emitStats(st matcher.Stats) error {
	metrics.RecordRow("added", st.RowsAdded)
	metrics.RecordRow("removed", st.RowsRemoved)
	metrics.RecordRow("changed", st.RowsChanged)
	metrics.RecordRow("unchanged", st.RowsUnchanged)

	ev := &diffcore.StatsEvent{
		RowsTotalCompared: st.RowsTotalCompared,
		RowsAdded:         st.RowsAdded,
		RowsRemoved:       st.RowsRemoved,
		RowsChanged:       st.RowsChanged,
		RowsUnchanged:     st.RowsUnchanged,
	}
	if err := e.sink.Emit(ev); err != nil {
		return diffcore.Wrap(diffcore.CodeCompareFailed, err, "sink emit failed: %v", err)
	}
	return nil
}

func sumStats(all []matcher.Stats) matcher.Stats {
	var total matcher.Stats
	for _, s := range all {
		total.RowsTotalCompared += s.RowsTotalCompared
		total.RowsAdded += s.RowsAdded
		total.RowsRemoved += s.RowsRemoved
		total.RowsChanged += s.RowsChanged
		total.RowsUnchanged += s.RowsUnchanged
	}
	return total
}

func resultFromStats(st matcher.Stats) *Result {
	return &Result{
		RowsTotalCompared: st.RowsTotalCompared,
		RowsAdded:         st.RowsAdded,
		RowsRemoved:       st.RowsRemoved,
		RowsChanged:       st.RowsChanged,
		RowsUnchanged:     st.RowsUnchanged,
	}
}

func maxWorkers(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
