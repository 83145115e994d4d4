// Package config loads, normalizes, and validates slayer configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// engine and CLI need: data/log directories, auto-save cadence, store quota,
// compression threshold, and chunked-collection limits.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
