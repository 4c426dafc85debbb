// Package scheduler runs named background tasks immediately or on an
// interval, with keep-or-replace semantics for duplicate names.
package scheduler
