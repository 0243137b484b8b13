// Package database provides SQLite storage for the supervisor's event
// history.
//
// It wraps database/sql with lifecycle management (directory creation,
// WAL mode, busy timeout, restrictive file permissions) and a small
// embedded-migration runner. Migration files live in the top-level
// migrations/ directory and are compiled into the binary; the migrations
// package registers them via the MigrationsFS variable at init time.
package database
