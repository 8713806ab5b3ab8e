package engine

import (
	"bytes"
	"context"
	"flag"
	"strconv"
	"testing"

	"csvdiff/internal/config"
	"csvdiff/internal/diffcore"
	"csvdiff/internal/sink"
)

func testConfig(t *testing.T, args []string) *config.Config {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := config.LoadFromArgs(fs, func(string) string { return "" }, args)
	cfg.SpillBackend = "memory"
	return cfg
}

func drainChannel(ch <-chan diffcore.Event) []diffcore.Event {
	var out []diffcore.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

// TestDiffBytesS1KeyedBasic mirrors spec scenario S1.
func TestDiffBytesS1KeyedBasic(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, []string{"-mode=keyed", "-key=id", "-partitions=1"})
	s := sink.NewChannel(ctx, 16)

	a := []byte("id,name\n1,Alice\n3,Carol\n")
	b := []byte("id,name\n2,Bob\n3,Caroline\n")

	var result *Result
	var runErr error
	done := make(chan struct{})
	go func() {
		result, runErr = DiffBytes(ctx, a, b, cfg, s)
		close(done)
	}()

	events := drainChannel(s.Events())
	<-done
	if runErr != nil {
		t.Fatal(runErr)
	}
	if result.RowsTotalCompared != 1 || result.RowsAdded != 1 || result.RowsRemoved != 1 || result.RowsChanged != 1 {
		t.Fatalf("result = %+v", result)
	}
	if events[0].Type() != diffcore.EventSchema {
		t.Fatalf("first event = %s, want schema", events[0].Type())
	}
	if events[len(events)-1].Type() != diffcore.EventStats {
		t.Fatalf("last event = %s, want stats", events[len(events)-1].Type())
	}
	// Ascending key order: removed(1), added(2), changed(3).
	dataEvents := events[1 : len(events)-1]
	if len(dataEvents) != 3 {
		t.Fatalf("got %d data events, want 3", len(dataEvents))
	}
	if dataEvents[0].Type() != diffcore.EventRemoved || dataEvents[1].Type() != diffcore.EventAdded || dataEvents[2].Type() != diffcore.EventChanged {
		t.Fatalf("data event order wrong: %v %v %v", dataEvents[0].Type(), dataEvents[1].Type(), dataEvents[2].Type())
	}
}

// TestDiffBytesS2SortedHeaderMode mirrors spec scenario S2.
func TestDiffBytesS2SortedHeaderMode(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, []string{"-mode=keyed", "-key=id", "-header-mode=sorted", "-partitions=1"})
	s := sink.NewChannel(ctx, 16)

	a := []byte("id,name\n1,A\n")
	b := []byte("name,id\nA,1\n")

	var result *Result
	var runErr error
	done := make(chan struct{})
	go func() {
		result, runErr = DiffBytes(ctx, a, b, cfg, s)
		close(done)
	}()
	events := drainChannel(s.Events())
	<-done
	if runErr != nil {
		t.Fatal(runErr)
	}
	if result.RowsUnchanged != 1 || result.RowsChanged != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (schema + stats, no row events)", len(events))
	}
	se, ok := events[0].(*diffcore.SchemaEvent)
	if !ok {
		t.Fatalf("events[0] = %T", events[0])
	}
	if se.ColumnsA[0] != "id" || se.ColumnsB[0] != "name" {
		t.Fatalf("schema columns: a=%v b=%v", se.ColumnsA, se.ColumnsB)
	}
}

// TestDiffBytesS3PositionalDefault mirrors spec scenario S3.
func TestDiffBytesS3PositionalDefault(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, []string{"-mode=positional"})
	s := sink.NewChannel(ctx, 16)

	a := []byte("id,name\n1,Alice\n2,Bob\n")
	b := []byte("id,name\n1,Alicia\n")

	var result *Result
	var runErr error
	done := make(chan struct{})
	go func() {
		result, runErr = DiffBytes(ctx, a, b, cfg, s)
		close(done)
	}()
	events := drainChannel(s.Events())
	<-done
	if runErr != nil {
		t.Fatal(runErr)
	}
	if result.RowsTotalCompared != 1 || result.RowsChanged != 1 || result.RowsRemoved != 1 {
		t.Fatalf("result = %+v", result)
	}
	dataEvents := events[1 : len(events)-1]
	if len(dataEvents) != 2 {
		t.Fatalf("got %d data events, want 2", len(dataEvents))
	}
	ce, ok := dataEvents[0].(*diffcore.ChangedEvent)
	if !ok || ce.Identity.RowIndex != 2 {
		t.Fatalf("dataEvents[0] = %+v", dataEvents[0])
	}
	re, ok := dataEvents[1].(*diffcore.RowEvent)
	if !ok || re.Kind != diffcore.EventRemoved || re.Identity.RowIndex != 3 {
		t.Fatalf("dataEvents[1] = %+v", dataEvents[1])
	}
}

// TestDiffBytesS4MultisetPermutation mirrors spec scenario S4.
func TestDiffBytesS4MultisetPermutation(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, []string{"-mode=positional", "-ignore-row-order=true"})
	s := sink.NewChannel(ctx, 16)

	a := []byte("x\n1\n2\n")
	b := []byte("x\n2\n1\n")

	var result *Result
	var runErr error
	done := make(chan struct{})
	go func() {
		result, runErr = DiffBytes(ctx, a, b, cfg, s)
		close(done)
	}()
	events := drainChannel(s.Events())
	<-done
	if runErr != nil {
		t.Fatal(runErr)
	}
	if result.RowsUnchanged != 2 || result.RowsChanged != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (schema + stats only)", len(events))
	}
}

// TestDiffBytesS5DuplicateKey mirrors spec scenario S5.
func TestDiffBytesS5DuplicateKey(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, []string{"-mode=keyed", "-key=id", "-partitions=1"})
	s := sink.NewChannel(ctx, 16)

	a := []byte("id,v\n1,a\n1,b\n")
	b := []byte("id,v\n1,a\n")

	var runErr error
	done := make(chan struct{})
	go func() {
		_, runErr = DiffBytes(ctx, a, b, cfg, s)
		close(done)
	}()
	drainChannel(s.Events())
	<-done
	de, ok := diffcore.AsDiffError(runErr)
	if !ok || de.Code != diffcore.CodeDuplicateKey {
		t.Fatalf("got %v, want duplicate_key", runErr)
	}
}

// TestDiffBytesS6PartitionInvariance mirrors spec scenario S6: running
// the same inputs at partition_count in {1, 4, 64} must produce
// byte-identical JSONL output, since the Event Orderer's k-way merge
// always yields a single global key-ascending stream regardless of how
// many partitions Pass 1 routed records through.
func TestDiffBytesS6PartitionInvariance(t *testing.T) {
	ctx := context.Background()

	var a, b bytes.Buffer
	a.WriteString("id,name\n")
	b.WriteString("id,name\n")
	for i := 0; i < 40; i++ {
		a.WriteString(rowLine(i, "a"))
		if i%3 != 0 { // drop every third id from B -> removed
			b.WriteString(rowLine(i, "b"))
		}
	}
	for i := 40; i < 50; i++ { // added-only ids
		b.WriteString(rowLine(i, "b"))
	}
	aBytes, bBytes := a.Bytes(), b.Bytes()

	var outputs [][]byte
	for _, partitions := range []int{1, 4, 64} {
		cfg := testConfig(t, []string{"-mode=keyed", "-key=id"})
		cfg.PartitionCount = partitions

		var out bytes.Buffer
		s := sink.NewWriter(&out)
		if _, err := DiffBytes(ctx, aBytes, bBytes, cfg, s); err != nil {
			t.Fatalf("partitions=%d: %v", partitions, err)
		}
		outputs = append(outputs, out.Bytes())
	}

	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Fatalf("output at partitions index %d differs from partitions=1 baseline", i)
		}
	}
}

func rowLine(id int, name string) string {
	s := strconv.Itoa(id)
	return s + "," + name + s + "\n"
}
