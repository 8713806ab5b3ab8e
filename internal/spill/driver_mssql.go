package spill

// Registers the "sqlserver" database/sql driver name used when spill_dsn
// starts with sqlserver://.
import _ "github.com/microsoft/go-mssqldb"
