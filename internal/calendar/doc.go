// Package calendar syncs schedule captures to an external calendar bridge.
package calendar
