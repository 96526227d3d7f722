// Package services defines shared utilities consumed by the workflow stage
// handlers and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent across the pipeline.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform.
package services
