package diffcore

import "testing"

func TestStableKeyHashIsDeterministic(t *testing.T) {
	got := StableKeyHash([]string{"123", "eu"})
	const want uint64 = 9476362503708207610
	if got != want {
		t.Fatalf("StableKeyHash = %d, want %d", got, want)
	}
	if p := PartitionForKey([]string{"123", "eu"}, 256); p != 250 {
		t.Fatalf("PartitionForKey = %d, want 250", p)
	}
}

func TestStableKeyHashSingleVsMultiPart(t *testing.T) {
	single := StableKeyHash([]string{"abc"})
	multi := StableKeyHash([]string{"abc", ""})
	if single == multi {
		t.Fatalf("expected delimiter to distinguish %q from %q", "abc", "abc,")
	}
}

func TestKeyTupleLess(t *testing.T) {
	cases := []struct {
		a, b KeyTuple
		want bool
	}{
		{KeyTuple{"1"}, KeyTuple{"2"}, true},
		{KeyTuple{"2"}, KeyTuple{"1"}, false},
		{KeyTuple{"a", "x"}, KeyTuple{"a", "y"}, true},
		{KeyTuple{"a"}, KeyTuple{"a", "y"}, true},
	}
	for _, c := range cases {
		if got := c.a.Less(c.b); got != c.want {
			t.Errorf("%v.Less(%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
