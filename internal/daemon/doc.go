// Package daemon wires the background services together and enforces
// single-instance execution.
package daemon
