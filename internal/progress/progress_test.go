package progress

import (
	"context"
	"testing"
	"time"

	"csvdiff/internal/diffcore"
)

func TestReportRateLimited(t *testing.T) {
	var n int
	b := New(func(diffcore.Event) { n++ }, time.Hour)
	b.Report(diffcore.PhasePartitioning, 1, 100, false)
	b.Report(diffcore.PhasePartitioning, 2, 100, false)
	b.Report(diffcore.PhasePartitioning, 3, 100, false)
	if n != 1 {
		t.Fatalf("n = %d, want 1 (rate-limited)", n)
	}
}

func TestReportForceBypassesRateLimit(t *testing.T) {
	var n int
	b := New(func(diffcore.Event) { n++ }, time.Hour)
	b.Report(diffcore.PhasePartitioning, 1, 100, false)
	b.Report(diffcore.PhasePartitioning, 100, 100, true)
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}

func TestCancelledAndCheckContext(t *testing.T) {
	b := New(func(diffcore.Event) {}, time.Millisecond)
	if b.Cancelled() {
		t.Fatal("Cancelled before Cancel()")
	}
	b.Cancel()
	if !b.Cancelled() {
		t.Fatal("not Cancelled after Cancel()")
	}
	err := b.CheckContext(context.Background())
	de, ok := diffcore.AsDiffError(err)
	if !ok || de.Code != diffcore.CodeCancelled {
		t.Fatalf("got %v, want cancelled", err)
	}
}

func TestCheckContextPropagatesCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := New(func(diffcore.Event) {}, time.Millisecond)
	err := b.CheckContext(ctx)
	de, ok := diffcore.AsDiffError(err)
	if !ok || de.Code != diffcore.CodeCancelled {
		t.Fatalf("got %v, want cancelled", err)
	}
}
