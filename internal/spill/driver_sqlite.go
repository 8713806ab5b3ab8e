package spill

// Registers the "sqlite" database/sql driver name, used as the default
// embedded scratch store when spill_backend is sql but no DSN is given.
// modernc.org/sqlite is pure Go (no cgo), matching the rest of this
// module's dependency-free build story.
import _ "modernc.org/sqlite"
