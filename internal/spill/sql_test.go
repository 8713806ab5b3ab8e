package spill

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"csvdiff/internal/diffcore"
)

func TestResolveDriver(t *testing.T) {
	cases := []struct {
		dsn, wantDriver string
	}{
		{"", "sqlite"},
		{"postgres://u:p@host/db", "pgx"},
		{"postgresql://u:p@host/db", "pgx"},
		{"sqlserver://u:p@host/db", "sqlserver"},
		{"u:p@tcp(host:3306)/db", "mysql"},
		{"file:scratch.db", "sqlite"},
	}
	for _, c := range cases {
		driver, _ := resolveDriver(c.dsn)
		if driver != c.wantDriver {
			t.Errorf("resolveDriver(%q) driver = %s, want %s", c.dsn, driver, c.wantDriver)
		}
	}
}

func TestPlaceholderStyleMarks(t *testing.T) {
	if got := placeholderStyleFor("pgx").marks(3); got[0] != "$1" || got[2] != "$3" {
		t.Fatalf("pgx marks = %v", got)
	}
	if got := placeholderStyleFor("sqlserver").marks(2); got[0] != "@p1" || got[1] != "@p2" {
		t.Fatalf("sqlserver marks = %v", got)
	}
	if got := placeholderStyleFor("mysql").marks(2); got[0] != "?" || got[1] != "?" {
		t.Fatalf("mysql marks = %v", got)
	}
	if got := placeholderStyleFor("sqlite").marks(1); got[0] != "?" {
		t.Fatalf("sqlite marks = %v", got)
	}
}

// TestSQLBackendSQLite exercises the sql backend end-to-end against the
// embedded sqlite scratch store, the default when spill_backend=sql is
// selected with no DSN.
func TestSQLBackendSQLite(t *testing.T) {
	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "scratch.db") + "?mode=rwc"

	ctx := context.Background()
	b, err := Open(ctx, "sql", Config{Partitions: 1, DSN: dsn})
	if err != nil {
		t.Fatalf("Open(sql): %v", err)
	}
	defer b.Close(ctx)

	rec := Record{Key: diffcore.KeyTuple{"1"}, RowIndex: 2, Row: diffcore.Row{"1", "Alice"}}
	if err := b.Append(ctx, SideA, 0, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	cur, err := b.Iterate(ctx, SideA, 0)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	defer cur.Close()

	got, err := cur.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.RowIndex != 2 || got.Row[1] != "Alice" {
		t.Fatalf("got %+v", got)
	}
	if _, err := cur.Next(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
