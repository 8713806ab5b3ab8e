package spill

// Registers the "pgx" database/sql driver name used when spill_dsn starts
// with postgres:// or postgresql://, backing the sql spill backend with
// pgx/v5's connection pooling and COPY-capable wire protocol.
import _ "github.com/jackc/pgx/v5/stdlib"
