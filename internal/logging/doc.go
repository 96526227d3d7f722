// Package logging builds the slog loggers used across the daemon and CLI.
//
// It offers a human-oriented console handler, a JSON handler for machine
// consumption, multi-writer output (stdout plus the daemon log file), and
// helpers that derive structured fields from request contexts so every record
// tied to a queue job carries its job ID, stage, and correlation ID.
package logging
