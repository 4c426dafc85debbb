// Package config loads, validates, and normalizes captor configuration
// from TOML files.
package config
