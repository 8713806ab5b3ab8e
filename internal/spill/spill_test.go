package spill

import (
	"context"
	"io"
	"testing"

	"csvdiff/internal/diffcore"
)

func testBackend(t *testing.T, kind string) {
	t.Helper()
	ctx := context.Background()
	b, err := Open(ctx, kind, Config{Partitions: 2})
	if err != nil {
		t.Fatalf("Open(%s): %v", kind, err)
	}
	defer b.Close(ctx)

	recs := []Record{
		{Key: diffcore.KeyTuple{"1"}, RowIndex: 2, Row: diffcore.Row{"1", "Alice"}},
		{Key: diffcore.KeyTuple{"2"}, RowIndex: 3, Row: diffcore.Row{"2", "Bob"}},
	}
	for _, r := range recs {
		if err := b.Append(ctx, SideA, 0, r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	cur, err := b.Iterate(ctx, SideA, 0)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	defer cur.Close()

	var got []Record
	for {
		r, err := cur.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].RowIndex != 2 || got[1].RowIndex != 3 {
		t.Fatalf("row indexes = %d, %d", got[0].RowIndex, got[1].RowIndex)
	}

	emptyCur, err := b.Iterate(ctx, SideA, 1)
	if err != nil {
		t.Fatalf("Iterate empty partition: %v", err)
	}
	defer emptyCur.Close()
	if _, err := emptyCur.Next(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF for untouched partition, got %v", err)
	}
}

func TestTempDirBackend(t *testing.T) { testBackend(t, "tempdir") }
func TestMemoryBackend(t *testing.T)  { testBackend(t, "memory") }

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(context.Background(), "nonexistent", Config{})
	de, ok := diffcore.AsDiffError(err)
	if !ok || de.Code != diffcore.CodeStorageError {
		t.Fatalf("got %v, want storage_error", err)
	}
}
