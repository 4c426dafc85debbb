// Package analytics delivers pipeline events to an optional collector.
//
// When no endpoint is configured every tracker method is a no-op, so callers
// can emit events unconditionally.
package analytics
