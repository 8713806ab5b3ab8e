package matcher

import (
	"context"
	"strings"
	"testing"

	"csvdiff/internal/csvreader"
	"csvdiff/internal/diffcore"
)

func openReader(t *testing.T, side, data string) *csvreader.Reader {
	t.Helper()
	rd, err := csvreader.Open(side, strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return rd
}

// TestRunPositionalAlignedCounter mirrors spec §4.7: identity is a pure
// aligned-position counter shared by both sides, unaffected by a blank
// spacer line that only one side contains.
func TestRunPositionalAlignedCounter(t *testing.T) {
	ctx := context.Background()
	rdA := openReader(t, "A", "id,name\n1,Alice\n\n2,Bob\n")
	rdB := openReader(t, "B", "id,name\n1,Alice\n2,Bobby\n")

	enc := diffcore.NewRowEncoder([]string{"id", "name"})
	opts := PositionalOptions{
		ComparisonColumns: []string{"id", "name"},
		CompareIdxA:       []int{0, 1},
		CompareIdxB:       []int{0, 1},
		EncA:              enc,
		EncB:              enc,
	}

	var got []diffcore.Event
	stats, err := RunPositional(ctx, rdA, rdB, opts, func(e diffcore.Event) { got = append(got, e) })
	if err != nil {
		t.Fatal(err)
	}
	if stats.RowsTotalCompared != 2 || stats.RowsChanged != 1 || stats.RowsUnchanged != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1 (unchanged suppressed by default)", len(got))
	}
	ce, ok := got[0].(*diffcore.ChangedEvent)
	if !ok {
		t.Fatalf("got[0] = %T, want *ChangedEvent", got[0])
	}
	if ce.Identity.RowIndex != 3 {
		t.Fatalf("RowIndex = %d, want 3 (A's blank spacer does not shift alignment)", ce.Identity.RowIndex)
	}
}

func TestRunPositionalTailAdded(t *testing.T) {
	ctx := context.Background()
	rdA := openReader(t, "A", "id\n1\n2\n")
	rdB := openReader(t, "B", "id\n1\n2\n3\n4\n")

	enc := diffcore.NewRowEncoder([]string{"id"})
	opts := PositionalOptions{ComparisonColumns: []string{"id"}, CompareIdxA: []int{0}, CompareIdxB: []int{0}, EncA: enc, EncB: enc}

	var got []diffcore.Event
	stats, err := RunPositional(ctx, rdA, rdB, opts, func(e diffcore.Event) { got = append(got, e) })
	if err != nil {
		t.Fatal(err)
	}
	if stats.RowsAdded != 2 {
		t.Fatalf("RowsAdded = %d, want 2", stats.RowsAdded)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	for _, e := range got {
		if e.Type() != diffcore.EventAdded {
			t.Fatalf("event.Type = %s, want added", e.Type())
		}
	}
}
