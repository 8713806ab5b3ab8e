package spill

// Registers the "mysql" database/sql driver name used when spill_dsn
// matches the go-sql-driver/mysql "user:pass@tcp(host:port)/db" form.
import _ "github.com/go-sql-driver/mysql"
