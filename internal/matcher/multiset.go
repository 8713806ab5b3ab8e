package matcher

import (
	"context"
	"io"
	"sort"

	"csvdiff/internal/csvreader"
	"csvdiff/internal/diffcore"
	"csvdiff/internal/rowsig"
)

// MultisetOptions mirrors PositionalOptions; multiset mode never emits
// Changed events by definition, so it needs no before/after comparison
// machinery, only the comparison-column projection used to sign rows.
type MultisetOptions struct {
	ComparisonColumns []string
	CompareIdxA       []int
	CompareIdxB       []int
	EmitUnchanged     bool
	EncA, EncB        *diffcore.RowEncoder
}

type bucket struct {
	rowsA []diffcore.Row
	rowsB []diffcore.Row
}

// RunMultiset implements §4.8: group both sides by row signature over
// comparison columns, then for each signature (visited in sorted
// signature order, so permuting either input never changes output
// bytes) the overlap becomes Unchanged, A's surplus Removed, B's
// surplus Added. No Changed events are possible under this matcher.
func RunMultiset(ctx context.Context, rdA, rdB *csvreader.Reader, opts MultisetOptions, emit func(diffcore.Event)) (Stats, error) {
	widthA, widthB := len(rdA.Header()), len(rdB.Header())
	buckets := make(map[rowsig.Signature]*bucket)

	if err := collect(ctx, rdA, widthA, "A", opts.CompareIdxA, buckets, true); err != nil {
		return Stats{}, err
	}
	if err := collect(ctx, rdB, widthB, "B", opts.CompareIdxB, buckets, false); err != nil {
		return Stats{}, err
	}

	sigs := make([]rowsig.Signature, 0, len(buckets))
	for s := range buckets {
		sigs = append(sigs, s)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i] < sigs[j] })

	var stats Stats
	for _, s := range sigs {
		b := buckets[s]
		overlap := len(b.rowsA)
		if len(b.rowsB) < overlap {
			overlap = len(b.rowsB)
		}
		stats.RowsTotalCompared += uint64(overlap)
		stats.RowsUnchanged += uint64(overlap)
		if opts.EmitUnchanged {
			for i := 0; i < overlap; i++ {
				emit(&diffcore.RowEvent{Kind: diffcore.EventUnchanged, Identity: diffcore.Identity{None: true}, Row: b.rowsA[i], Enc: opts.EncA})
			}
		}
		for i := overlap; i < len(b.rowsA); i++ {
			stats.RowsRemoved++
			emit(&diffcore.RowEvent{Kind: diffcore.EventRemoved, Identity: diffcore.Identity{None: true}, Row: b.rowsA[i], Enc: opts.EncA})
		}
		for i := overlap; i < len(b.rowsB); i++ {
			stats.RowsAdded++
			emit(&diffcore.RowEvent{Kind: diffcore.EventAdded, Identity: diffcore.Identity{None: true}, Row: b.rowsB[i], Enc: opts.EncB})
		}
	}
	return stats, nil
}

func collect(ctx context.Context, rd *csvreader.Reader, width int, side string, compareIdx []int, buckets map[rowsig.Signature]*bucket, isA bool) error {
	for {
		select {
		case <-ctx.Done():
			return diffcore.New(diffcore.CodeCancelled, "cancelled")
		default:
		}
		row, err := rd.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(row.Fields) != width {
			return diffcore.New(diffcore.CodeRowWidthMismatch,
				"Row width mismatch in %s at CSV row %d: expected %d, got %d", side, row.RowIndex, width, len(row.Fields))
		}
		values := make([]string, len(compareIdx))
		for i, idx := range compareIdx {
			values[i] = row.Fields[idx]
		}
		sig := rowsig.Of(values)
		b := buckets[sig]
		if b == nil {
			b = &bucket{}
			buckets[sig] = b
		}
		if isA {
			b.rowsA = append(b.rowsA, diffcore.Row(row.Fields))
		} else {
			b.rowsB = append(b.rowsB, diffcore.Row(row.Fields))
		}
	}
}
