// Package pipeline contains the capture lifecycle services: intake, applying
// classifier results, and user-driven reclassification.
package pipeline
