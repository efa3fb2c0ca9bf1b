// Package config loads, normalizes, and validates Deckforge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files with unknown keys rejected so misspelled
// settings fail fast. The Config type centralizes every knob the daemon and
// CLI need: directories, capability connection settings, chunking strategy
// parameters, and workflow timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
