// Package config loads, normalizes, and validates Spool configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SPOOL_IDENTITY_FILE. The Config type centralizes every knob the CLI, the
// importer, and the API server need, so storage directories, pipeline worker
// counts, and keyring locations are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
