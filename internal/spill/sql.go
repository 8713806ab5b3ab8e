package spill

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"csvdiff/internal/diffcore"
)

func init() {
	Register("sql", openSQLBackend)
}

// sqlBackend stores spilled records in a scratch SQL table instead of a
// temp directory, for hosts without writable local disk. It is a
// supplement beyond the three backend kinds named in the wire contract,
// not a replacement for any of them.
//
// Records are kept as portable parameterized INSERTs rather than each
// driver's bespoke bulk-load path (COPY FROM / TVP CopyIn) — those are
// write-once/append patterns tuned for throughput into a permanent
// table; this backend only needs write-once/read-many against a scratch
// table whose entire purpose is to be dropped at Close.
type sqlBackend struct {
	db     *sql.DB
	table  string
	ownsDB bool
	ph     placeholderStyle
}

func openSQLBackend(ctx context.Context, runID uuid.UUID, cfg Config) (Backend, error) {
	driverName, dsn := resolveDriver(cfg.DSN)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "opening sql spill backend (%s): %v", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "connecting sql spill backend (%s): %v", driverName, err)
	}

	table := "csvdiff_spill_" + strings.ReplaceAll(runID.String(), "-", "")
	ddl := fmt.Sprintf(`CREATE TABLE %s (
		side TEXT NOT NULL,
		partition INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		row_index INTEGER NOT NULL,
		key_json TEXT NOT NULL,
		row_json TEXT NOT NULL
	)`, table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "creating scratch table: %v", err)
	}

	return &sqlBackend{db: db, table: table, ownsDB: true, ph: placeholderStyleFor(driverName)}, nil
}

// placeholderStyle distinguishes the three parameter-marker conventions
// the registered drivers use: database/sql never normalizes these, so
// the sql spill backend must build each driver's own marker syntax
// rather than assuming "?" works everywhere, the same way the teacher's
// sqlTx.CopyInto builds "@pN" markers itself for its generic SQL adapter
// instead of relying on a single hardcoded style.
type placeholderStyle int

const (
	placeholderQuestion placeholderStyle = iota // mysql, sqlite
	placeholderDollar                           // pgx/stdlib
	placeholderAtP                              // sqlserver
)

func placeholderStyleFor(driverName string) placeholderStyle {
	switch driverName {
	case "pgx":
		return placeholderDollar
	case "sqlserver":
		return placeholderAtP
	default:
		return placeholderQuestion
	}
}

func (ph placeholderStyle) marks(n int) []string {
	out := make([]string, n)
	for i := range out {
		switch ph {
		case placeholderDollar:
			out[i] = fmt.Sprintf("$%d", i+1)
		case placeholderAtP:
			out[i] = fmt.Sprintf("@p%d", i+1)
		default:
			out[i] = "?"
		}
	}
	return out
}

// resolveDriver maps a DSN to a registered database/sql driver name.
// Absent a DSN it falls back to an embedded sqlite scratch file, never
// silently falling back to the memory backend (that would violate the
// documented default-per-platform semantics of spill_backend: sql).
func resolveDriver(dsn string) (driver, resolvedDSN string) {
	switch {
	case dsn == "":
		return "sqlite", "file:csvdiff-scratch.db?mode=rwc&_pragma=journal_mode(WAL)"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn
	case strings.HasPrefix(dsn, "sqlserver://"):
		return "sqlserver", dsn
	case strings.Contains(dsn, "@tcp("):
		return "mysql", dsn
	default:
		return "sqlite", dsn
	}
}

func (b *sqlBackend) Append(ctx context.Context, side Side, partition int, rec Record) error {
	keyBuf, err := encodeStringArray(rec.Key)
	if err != nil {
		return err
	}
	rowBuf, err := encodeStringArray(rec.Row)
	if err != nil {
		return err
	}
	marks := b.ph.marks(6)
	q := fmt.Sprintf(`INSERT INTO %s (side, partition, seq, row_index, key_json, row_json) VALUES (%s)`,
		b.table, strings.Join(marks, ", "))
	_, err = b.db.ExecContext(ctx, q, string(side), partition, rec.RowIndex, rec.RowIndex, string(keyBuf), string(rowBuf))
	if err != nil {
		return diffcore.Wrap(diffcore.CodeStorageError, err, "inserting spill record: %v", err)
	}
	return nil
}

func (b *sqlBackend) Flush(ctx context.Context) error { return nil }

func (b *sqlBackend) Iterate(ctx context.Context, side Side, partition int) (Cursor, error) {
	marks := b.ph.marks(2)
	q := fmt.Sprintf(`SELECT row_index, key_json, row_json FROM %s WHERE side = %s AND partition = %s ORDER BY seq`,
		b.table, marks[0], marks[1])
	rows, err := b.db.QueryContext(ctx, q, string(side), partition)
	if err != nil {
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "reading spill partition: %v", err)
	}
	return &sqlCursor{rows: rows}, nil
}

func (b *sqlBackend) Close(ctx context.Context) error {
	_, _ = b.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+b.table)
	if b.ownsDB {
		return b.db.Close()
	}
	return nil
}

type sqlCursor struct {
	rows *sql.Rows
}

func (c *sqlCursor) Next(ctx context.Context) (Record, error) {
	select {
	case <-ctx.Done():
		return Record{}, diffcore.New(diffcore.CodeCancelled, "cancelled")
	default:
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return Record{}, diffcore.Wrap(diffcore.CodeStorageError, err, "scanning spill partition: %v", err)
		}
		return Record{}, io.EOF
	}
	var (
		rowIndex uint64
		keyJSON  string
		rowJSON  string
	)
	if err := c.rows.Scan(&rowIndex, &keyJSON, &rowJSON); err != nil {
		return Record{}, diffcore.Wrap(diffcore.CodeStorageError, err, "scanning spill record: %v", err)
	}
	key, err := decodeStringArray([]byte(keyJSON))
	if err != nil {
		return Record{}, err
	}
	row, err := decodeStringArray([]byte(rowJSON))
	if err != nil {
		return Record{}, err
	}
	return Record{Key: diffcore.KeyTuple(key), RowIndex: rowIndex, Row: diffcore.Row(row)}, nil
}

func (c *sqlCursor) Close() error { return c.rows.Close() }

func encodeStringArray(vals []string) ([]byte, error) {
	b, err := json.Marshal(vals)
	if err != nil {
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "encoding spill record: %v", err)
	}
	return b, nil
}

func decodeStringArray(b []byte) ([]string, error) {
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "decoding spill record: %v", err)
	}
	return out, nil
}
