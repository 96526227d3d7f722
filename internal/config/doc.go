// Package config loads, normalizes, and validates Attune configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ATTUNE_PUBLIC_BASE_URL. The Config type centralizes every knob the daemon
// and CLI need, so the work directory, external tool names, and the API bind
// address are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
