// Package config loads, normalizes, and validates dsrec configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DSREC_BROADCAST_ADDR and NTFY_TOPIC. The Config type centralizes every knob
// the recorder daemon and CLI need, so the node role, sync channel, sensor
// drivers and output directories are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical layout names, and clear validation errors.
package config
