// Package postgres provides PostgreSQL-backed implementations of the
// store interfaces. All stores accept a store.DBTX so they can run
// against either a connection pool or an open transaction, and they map
// driver errors to the store sentinel errors.
package postgres
