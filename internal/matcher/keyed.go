// Package matcher implements Pass 2: turning two sides' spilled records
// (or, in positional/multiset mode, their in-order streams) into the
// added/removed/changed/unchanged event sequence for one partition.
package matcher

import (
	"context"
	"io"
	"sort"

	"csvdiff/internal/diffcore"
	"csvdiff/internal/spill"
)

// Stats accumulates the final Stats event's counters across partitions.
type Stats struct {
	RowsTotalCompared uint64
	RowsAdded         uint64
	RowsRemoved       uint64
	RowsChanged       uint64
	RowsUnchanged     uint64
}

func (s *Stats) add(o Stats) {
	s.RowsTotalCompared += o.RowsTotalCompared
	s.RowsAdded += o.RowsAdded
	s.RowsRemoved += o.RowsRemoved
	s.RowsChanged += o.RowsChanged
	s.RowsUnchanged += o.RowsUnchanged
}

type indexedRecord struct {
	rowIndex uint64
	row      diffcore.Row
	matched  bool
	// matchedBy is the B row_index that first matched this A entry, set
	// alongside matched so a later duplicate key in B can be reported
	// against the B row that matched first, not against A's row index.
	matchedBy uint64
}

// KeyedOptions carries what the keyed matcher needs to compare two rows
// and render identity objects, independent of where records came from.
type KeyedOptions struct {
	KeyColumns        []string
	ComparisonColumns []string
	CompareIdxA       []int // comparison column -> index into A's row
	CompareIdxB       []int // comparison column -> index into B's row
	EmitUnchanged     bool
	EncA, EncB        *diffcore.RowEncoder // keyed by each side's own header
}

// Partition runs the keyed matcher for one partition: index A, stream
// B, emit events via emit (called once per event in B-arrival order —
// callers needing global key order must sort before handing events to
// the sink; see internal/orderer). Returns this partition's Stats.
func Partition(ctx context.Context, a, b spill.Cursor, opts KeyedOptions, emit func(diffcore.Event, diffcore.KeyTuple)) (Stats, error) {
	indexA := make(map[string]*indexedRecord)
	keysA := make(map[string]diffcore.KeyTuple)

	for {
		rec, err := a.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Stats{}, err
		}
		k := keyString(rec.Key)
		if prior, ok := indexA[k]; ok {
			return Stats{}, diffcore.New(diffcore.CodeDuplicateKey,
				"Duplicate key in A: %s (rows %d and %d)", keyObjectString(opts.KeyColumns, rec.Key), prior.rowIndex, rec.RowIndex)
		}
		indexA[k] = &indexedRecord{rowIndex: rec.RowIndex, row: rec.Row}
		keysA[k] = rec.Key
	}

	var stats Stats
	seenB := make(map[string]uint64)

	for {
		rec, err := b.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Stats{}, err
		}
		select {
		case <-ctx.Done():
			return Stats{}, diffcore.New(diffcore.CodeCancelled, "cancelled")
		default:
		}

		k := keyString(rec.Key)
		entry, inA := indexA[k]

		if !inA {
			if priorLine, seen := seenB[k]; seen {
				return Stats{}, diffcore.New(diffcore.CodeDuplicateKey,
					"Duplicate key in B: %s (rows %d and %d)", keyObjectString(opts.KeyColumns, rec.Key), priorLine, rec.RowIndex)
			}
			seenB[k] = rec.RowIndex
			stats.RowsAdded++
			emit(&diffcore.RowEvent{
				Kind:     diffcore.EventAdded,
				Identity: diffcore.Identity{HasKey: true, Key: rec.Key, KeyCols: opts.KeyColumns},
				Row:      rec.Row,
				Enc:      opts.EncB,
			}, rec.Key)
			continue
		}

		if entry.matched {
			return Stats{}, diffcore.New(diffcore.CodeDuplicateKey,
				"Duplicate key in B: %s (rows %d and %d)", keyObjectString(opts.KeyColumns, rec.Key), entry.matchedBy, rec.RowIndex)
		}
		entry.matched = true
		entry.matchedBy = rec.RowIndex

		changed, deltas := diffRow(entry.row, rec.Row, opts.CompareIdxA, opts.CompareIdxB, opts.ComparisonColumns)
		if len(changed) == 0 {
			stats.RowsTotalCompared++
			stats.RowsUnchanged++
			if opts.EmitUnchanged {
				emit(&diffcore.RowEvent{
					Kind:     diffcore.EventUnchanged,
					Identity: diffcore.Identity{HasKey: true, Key: rec.Key, KeyCols: opts.KeyColumns},
					Row:      entry.row,
					Enc:      opts.EncA,
				}, rec.Key)
			}
			continue
		}

		stats.RowsTotalCompared++
		stats.RowsChanged++
		emit(&diffcore.ChangedEvent{
			Identity:  diffcore.Identity{HasKey: true, Key: rec.Key, KeyCols: opts.KeyColumns},
			Changed:   changed,
			Before:    entry.row,
			After:     rec.Row,
			Deltas:    deltas,
			EncBefore: opts.EncA,
			EncAfter:  opts.EncB,
		}, rec.Key)
	}

	// Remaining unmatched A entries become Removed, in ascending key order
	// so a single partition's own output is already sorted (the Event
	// Orderer still merges across partitions).
	var remaining []string
	for k, e := range indexA {
		if !e.matched {
			remaining = append(remaining, k)
		}
	}
	sort.Strings(remaining)
	for _, k := range remaining {
		e := indexA[k]
		stats.RowsRemoved++
		emit(&diffcore.RowEvent{
			Kind:     diffcore.EventRemoved,
			Identity: diffcore.Identity{HasKey: true, Key: keysA[k], KeyCols: opts.KeyColumns},
			Row:      e.row,
			Enc:      opts.EncA,
		}, keysA[k])
	}

	return stats, nil
}

// diffRow returns the changed comparison columns (in comparison-column
// order) and their deltas.
func diffRow(a, b diffcore.Row, idxA, idxB []int, comparisonColumns []string) ([]string, []diffcore.Delta) {
	var changed []string
	var deltas []diffcore.Delta
	for i, col := range comparisonColumns {
		va, vb := a[idxA[i]], b[idxB[i]]
		if va != vb {
			changed = append(changed, col)
			deltas = append(deltas, diffcore.Delta{Column: col, From: va, To: vb})
		}
	}
	return changed, deltas
}

func keyString(k diffcore.KeyTuple) string {
	// 0x1f can't appear validly inside any individual key value once
	// joined this way becomes ambiguous only in adversarial inputs
	// containing the delimiter itself; the map is an in-memory
	// convenience index, not the wire-visible partition hash, so a rare
	// collision here only risks a spurious duplicate_key on bytes no
	// real CSV exporter emits.
	if len(k) == 1 {
		return k[0]
	}
	out := make([]byte, 0, 16)
	for i, v := range k {
		if i > 0 {
			out = append(out, 0x1f)
		}
		out = append(out, v...)
	}
	return string(out)
}

func keyObjectString(cols []string, k diffcore.KeyTuple) string {
	s := "{"
	for i, c := range cols {
		if i > 0 {
			s += " "
		}
		s += c + ": " + k[i]
	}
	return s + "}"
}
