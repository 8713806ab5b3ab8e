package matcher

import (
	"context"
	"testing"

	"csvdiff/internal/diffcore"
)

// TestRunMultisetPermutationInvariant mirrors spec scenario S4: the same
// two rows presented in swapped order on side B still yield zero
// data events, since multiset comparison is permutation-invariant.
func TestRunMultisetPermutationInvariant(t *testing.T) {
	ctx := context.Background()
	rdA := openReader(t, "A", "id,name\n1,Alice\n2,Bob\n")
	rdB := openReader(t, "B", "id,name\n2,Bob\n1,Alice\n")

	enc := diffcore.NewRowEncoder([]string{"id", "name"})
	opts := MultisetOptions{ComparisonColumns: []string{"id", "name"}, CompareIdxA: []int{0, 1}, CompareIdxB: []int{0, 1}, EncA: enc, EncB: enc}

	var got []diffcore.Event
	stats, err := RunMultiset(ctx, rdA, rdB, opts, func(e diffcore.Event) { got = append(got, e) })
	if err != nil {
		t.Fatal(err)
	}
	if stats.RowsUnchanged != 2 || stats.RowsAdded != 0 || stats.RowsRemoved != 0 || stats.RowsChanged != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(got) != 0 {
		t.Fatalf("got %d events, want 0 (emit_unchanged defaults to false)", len(got))
	}
}

// TestRunMultisetEmitUnchangedHasNoIdentity mirrors spec §3: multiset
// mode's events carry no identity field at all, not a zero-valued one.
func TestRunMultisetEmitUnchangedHasNoIdentity(t *testing.T) {
	ctx := context.Background()
	rdA := openReader(t, "A", "id\n1\n")
	rdB := openReader(t, "B", "id\n1\n")

	enc := diffcore.NewRowEncoder([]string{"id"})
	opts := MultisetOptions{ComparisonColumns: []string{"id"}, CompareIdxA: []int{0}, CompareIdxB: []int{0}, EmitUnchanged: true, EncA: enc, EncB: enc}

	var got []diffcore.Event
	if _, err := RunMultiset(ctx, rdA, rdB, opts, func(e diffcore.Event) { got = append(got, e) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	buf := got[0].AppendJSON(nil)
	if string(buf) != `{"type":"unchanged","row":{"id":"1"}}` {
		t.Fatalf("got %s", buf)
	}
}

// TestRunMultisetDuplicateCountMismatch covers the asymmetric-multiplicity
// case: A has two copies of a row, B has one; the surplus copy in A is
// Removed, not silently dropped.
func TestRunMultisetDuplicateCountMismatch(t *testing.T) {
	ctx := context.Background()
	rdA := openReader(t, "A", "id\n1\n1\n")
	rdB := openReader(t, "B", "id\n1\n")

	enc := diffcore.NewRowEncoder([]string{"id"})
	opts := MultisetOptions{ComparisonColumns: []string{"id"}, CompareIdxA: []int{0}, CompareIdxB: []int{0}, EncA: enc, EncB: enc}

	var got []diffcore.Event
	stats, err := RunMultiset(ctx, rdA, rdB, opts, func(e diffcore.Event) { got = append(got, e) })
	if err != nil {
		t.Fatal(err)
	}
	if stats.RowsUnchanged != 1 || stats.RowsRemoved != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(got) != 1 || got[0].Type() != diffcore.EventRemoved {
		t.Fatalf("got = %+v", got)
	}
}
