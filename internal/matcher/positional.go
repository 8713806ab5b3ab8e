package matcher

import (
	"context"
	"io"

	"csvdiff/internal/csvreader"
	"csvdiff/internal/diffcore"
)

// PositionalOptions mirrors KeyedOptions without any key-column concept;
// identity is purely the 1-based row index.
type PositionalOptions struct {
	ComparisonColumns []string
	CompareIdxA       []int
	CompareIdxB       []int
	EmitUnchanged     bool
	EncA, EncB        *diffcore.RowEncoder
}

// RunPositional is the row-by-row zipper (§4.7). Unlike the keyed path
// it never touches the Spill Backend: alignment by row index needs no
// index structure, so it streams both CSV Readers directly and emits
// events already in row_index order.
func RunPositional(ctx context.Context, rdA, rdB *csvreader.Reader, opts PositionalOptions, emit func(diffcore.Event)) (Stats, error) {
	widthA, widthB := len(rdA.Header()), len(rdB.Header())
	var stats Stats
	// rowIndex is the aligned position counter (header = row 1), distinct
	// from either reader's own literal source line: alignment is by
	// position, not by whichever side happened to skip more blank spacer
	// lines before reaching this pair.
	rowIndex := uint64(1)

	for {
		rowIndex++
		select {
		case <-ctx.Done():
			return Stats{}, diffcore.New(diffcore.CodeCancelled, "cancelled")
		default:
		}

		rowA, errA := rdA.Next(ctx)
		rowB, errB := rdB.Next(ctx)
		doneA, doneB := errA == io.EOF, errB == io.EOF
		if errA != nil && !doneA {
			return Stats{}, errA
		}
		if errB != nil && !doneB {
			return Stats{}, errB
		}
		if doneA && doneB {
			break
		}

		if doneA {
			if err := checkWidth("B", widthB, rowB); err != nil {
				return Stats{}, err
			}
			stats.RowsAdded++
			emit(&diffcore.RowEvent{Kind: diffcore.EventAdded, Identity: diffcore.Identity{RowIndex: rowIndex}, Row: diffcore.Row(rowB.Fields), Enc: opts.EncB})
			continue
		}
		if doneB {
			if err := checkWidth("A", widthA, rowA); err != nil {
				return Stats{}, err
			}
			stats.RowsRemoved++
			emit(&diffcore.RowEvent{Kind: diffcore.EventRemoved, Identity: diffcore.Identity{RowIndex: rowIndex}, Row: diffcore.Row(rowA.Fields), Enc: opts.EncA})
			continue
		}

		if err := checkWidth("A", widthA, rowA); err != nil {
			return Stats{}, err
		}
		if err := checkWidth("B", widthB, rowB); err != nil {
			return Stats{}, err
		}

		a, b := diffcore.Row(rowA.Fields), diffcore.Row(rowB.Fields)
		changed, deltas := diffRow(a, b, opts.CompareIdxA, opts.CompareIdxB, opts.ComparisonColumns)
		identity := diffcore.Identity{RowIndex: rowIndex}
		if len(changed) == 0 {
			stats.RowsTotalCompared++
			stats.RowsUnchanged++
			if opts.EmitUnchanged {
				emit(&diffcore.RowEvent{Kind: diffcore.EventUnchanged, Identity: identity, Row: a, Enc: opts.EncA})
			}
			continue
		}
		stats.RowsTotalCompared++
		stats.RowsChanged++
		emit(&diffcore.ChangedEvent{Identity: identity, Changed: changed, Before: a, After: b, Deltas: deltas, EncBefore: opts.EncA, EncAfter: opts.EncB})
	}

	return stats, nil
}

func checkWidth(side string, width int, row csvreader.DataRow) error {
	if len(row.Fields) != width {
		return diffcore.New(diffcore.CodeRowWidthMismatch,
			"Row width mismatch in %s at CSV row %d: expected %d, got %d", side, row.RowIndex, width, len(row.Fields))
	}
	return nil
}
