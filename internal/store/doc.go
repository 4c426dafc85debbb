// Package store persists captures and their derived entities in SQLite.
//
// Every query method lives on an embedded queries type that runs against
// either the shared connection or an open transaction, so callers can
// compose multi-step writes with RunInTransaction and reuse the same
// surface for reads.
package store
