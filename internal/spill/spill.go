// Package spill is the partition-addressable write-once/read-many store
// for RowRecords. It is the engine's only capability-oriented boundary:
// everything else is tagged-variant dispatch. Concrete backends
// self-register by kind, the same way this codebase's storage backends
// register themselves against a kind string rather than being
// constructed directly by callers.
package spill

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"csvdiff/internal/diffcore"
)

// Side identifies which input file a spilled record came from.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

// Record is one spilled row, ready to be written by a Backend.
type Record struct {
	Key      diffcore.KeyTuple // empty in positional mode
	RowIndex uint64
	Row      diffcore.Row
}

// Backend is the capability every spill implementation must provide.
// Open is called once per run; Close releases all temporary state
// (files, tables, in-memory buffers) regardless of whether the run
// succeeded, was cancelled, or failed.
type Backend interface {
	// Append writes one record to (side, partition) in append-only,
	// batched fashion. Implementations may buffer internally.
	Append(ctx context.Context, side Side, partition int, rec Record) error

	// Flush forces any buffered Append calls to durable storage. The
	// Partitioner calls this at batch boundaries and once more after
	// both sides have been written.
	Flush(ctx context.Context) error

	// Iterate returns a restartable sequence over every record
	// previously appended to (side, partition), in append order.
	Iterate(ctx context.Context, side Side, partition int) (Cursor, error)

	// Close deletes all temporary state. Safe to call more than once.
	Close(ctx context.Context) error
}

// Cursor is a pull-based, single-pass iterator over one partition's
// records, mirroring the CSV Reader's iterator shape.
type Cursor interface {
	// Next returns the next record, or io.EOF when exhausted.
	Next(ctx context.Context) (Record, error)
	Close() error
}

// Factory constructs a Backend from a run-scoped configuration. runID
// isolates concurrent runs sharing the same backend kind (e.g. the same
// scratch database), per §5's "unique run identifier" requirement.
type Factory func(ctx context.Context, runID uuid.UUID, cfg Config) (Backend, error)

// Config is the subset of engine configuration a Backend needs to open
// itself. Fields unrelated to a given backend are simply ignored by it.
type Config struct {
	Partitions int
	// DSN is consulted only by the sql backend; tempdir/memory ignore it.
	DSN string
	// Dir overrides the OS temp directory for the tempdir backend.
	Dir string
}

var (
	mu    sync.RWMutex
	kinds = map[string]Factory{}
)

// Register binds kind to factory. Backend packages call this from an
// init() via a blank import, exactly like this codebase's storage
// backends register themselves against a kind string rather than being
// constructed directly by callers.
func Register(kind string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	kinds[kind] = factory
}

// Open resolves kind to a registered Factory and opens a fresh Backend,
// tagged with a newly minted run id.
func Open(ctx context.Context, kind string, cfg Config) (Backend, error) {
	mu.RLock()
	factory, ok := kinds[kind]
	mu.RUnlock()
	if !ok {
		return nil, diffcore.New(diffcore.CodeStorageError, "unknown spill_backend: %s", kind)
	}
	runID := uuid.New()
	b, err := factory(ctx, runID, cfg)
	if err != nil {
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "opening spill backend %q: %v", kind, err)
	}
	return b, nil
}

// Registered reports whether kind has a registered Factory, mainly for
// config validation before any I/O is attempted.
func Registered(kind string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := kinds[kind]
	return ok
}

func partitionFileName(side Side, partition int) string {
	return fmt.Sprintf("%s_%d.jsonl", side, partition)
}
