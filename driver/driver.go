// Package driver registers the "parallaxdb" database/sql driver and offers
// small helpers for opening databases.
package driver

import (
	"database/sql"

	id "github.com/SimonWaldherr/parallaxdb/internal/driver"
	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// DriverName is the registered database/sql driver name.
const DriverName = id.DriverName

// ErrTxUnsupported is returned when a transaction is started.
var ErrTxUnsupported = id.ErrTxUnsupported

// Open is a convenience wrapper around sql.Open(DriverName, dsn).
// The DSN has the form mem://?name=<db>[&busy_timeout=250ms].
func Open(dsn string) (*sql.DB, error) { return sql.Open(DriverName, dsn) }

// OpenInMemory opens the named shared in-memory database.
func OpenInMemory(name string) (*sql.DB, error) { return id.OpenInMemory(name) }

// OpenDB returns a *sql.DB backed by an existing catalog.
func OpenDB(db *storage.DB) *sql.DB { return id.OpenDB(db) }
