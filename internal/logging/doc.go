// Package logging wires slog handlers and shared attribute helpers for
// captor components.
package logging
