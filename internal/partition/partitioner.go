// Package partition implements Pass 1: stream both CSV sides, validate
// them, compute each row's partition via the key hash, and spill
// records in bounded batches.
package partition

import (
	"context"
	"io"

	"csvdiff/internal/csvreader"
	"csvdiff/internal/diffcore"
	"csvdiff/internal/schema"
	"csvdiff/internal/spill"
)

// Options controls one partitioning run.
type Options struct {
	Mode         Mode
	KeyColumns   []string
	HeaderMode   schema.HeaderMode
	Partitions   int
	BatchSize    int // records per Flush; also the progress-report cadence
	OnProgress   func(bytesRead, bytesTotal uint64)
}

// Mode mirrors config.Mode but lives here to avoid an import cycle
// between config and partition.
type Mode string

const (
	ModeKeyed      Mode = "keyed"
	ModePositional Mode = "positional"
)

// Manifest is the result of partitioning both sides: the reconciled
// headers, comparison columns, and per-partition row counts — the Go
// analogue of PartitionManifest in §3.
type Manifest struct {
	ColumnsA, ColumnsB   []string
	ComparisonColumns    []string
	RowCountA, RowCountB uint64
	PartitionRowsA       []uint64
	PartitionRowsB       []uint64
}

// Run streams srcA/srcB through the CSV Reader and Schema Validator,
// computes each row's partition (in keyed mode) or leaves it unassigned
// (positional mode routes everything to partition 0, since the
// Positional/Multiset Matchers never consult the Spill Backend's
// partitioning — see internal/matcher), and appends every row to backend.
func Run(ctx context.Context, backend spill.Backend, srcA, srcB io.Reader, opts Options) (*Manifest, error) {
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

	compareCols, err := schema.ComparisonColumns(rdA.Header(), rdB.Header(), opts.HeaderMode)
	if err != nil {
		return nil, err
	}

	var keyIdxA, keyIdxB []int
	if opts.Mode == ModeKeyed {
		if len(opts.KeyColumns) == 0 {
			return nil, diffcore.New(diffcore.CodeMissingKeyColumn, "At least one key column is required in keyed mode")
		}
		keyIdxA, keyIdxB, err = schema.ResolveKeyColumns(opts.KeyColumns, rdA.Header(), rdB.Header())
		if err != nil {
			return nil, err
		}
	}

	partitions := opts.Partitions
	if partitions <= 0 {
		partitions = 1
	}

	m := &Manifest{
		ColumnsA:          rdA.Header(),
		ColumnsB:          rdB.Header(),
		ComparisonColumns: compareCols,
		PartitionRowsA:    make([]uint64, partitions),
		PartitionRowsB:    make([]uint64, partitions),
	}

	if err := partitionSide(ctx, backend, rdA, "A", spill.SideA, opts, keyIdxA, partitions, m.PartitionRowsA, &m.RowCountA); err != nil {
		return nil, err
	}
	if err := partitionSide(ctx, backend, rdB, "B", spill.SideB, opts, keyIdxB, partitions, m.PartitionRowsB, &m.RowCountB); err != nil {
		return nil, err
	}
	if err := backend.Flush(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func partitionSide(
	ctx context.Context,
	backend spill.Backend,
	rd *csvreader.Reader,
	sideLabel string,
	side spill.Side,
	opts Options,
	keyIdx []int,
	partitions int,
	partitionRows []uint64,
	rowCount *uint64,
) error {
	width := len(rd.Header())
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 5000
	}
	sinceFlush := 0

	for {
		select {
		case <-ctx.Done():
			return diffcore.New(diffcore.CodeCancelled, "cancelled")
		default:
		}

		row, err := rd.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if len(row.Fields) != width {
			return diffcore.New(diffcore.CodeRowWidthMismatch,
				"Row width mismatch in %s at CSV row %d: expected %d, got %d",
				sideLabel, row.RowIndex, width, len(row.Fields))
		}

		var key diffcore.KeyTuple
		partition := 0
		if opts.Mode == ModeKeyed {
			key = make(diffcore.KeyTuple, len(keyIdx))
			for i, idx := range keyIdx {
				v := row.Fields[idx]
				if v == "" {
					return diffcore.New(diffcore.CodeMissingKeyValue,
						"Missing key value in %s at CSV row %d for key column '%s'",
						sideLabel, row.RowIndex, opts.KeyColumns[i])
				}
				key[i] = v
			}
			partition = diffcore.PartitionForKey(key, partitions)
		}

		rec := spill.Record{Key: key, RowIndex: row.RowIndex, Row: diffcore.Row(row.Fields)}
		if err := backend.Append(ctx, side, partition, rec); err != nil {
			return err
		}
		partitionRows[partition]++
		*rowCount++

		sinceFlush++
		if sinceFlush >= batch {
			sinceFlush = 0
			if err := backend.Flush(ctx); err != nil {
				return err
			}
			if opts.OnProgress != nil {
				opts.OnProgress(rd.BytesRead(), 0)
			}
		}
	}
	return nil
}
