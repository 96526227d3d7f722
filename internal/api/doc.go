// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal queue models into transport-friendly DTOs
// that the CLI and browser front ends can render without coupling to
// internal types, and provides the HTTP client the CLI uses to talk to a
// running daemon.
//
// # Key Types
//
// QueueJob: transport representation of a conversion job with progress,
// work file paths, and error details.
//
// WorkflowStatus: daemon running state, queue stats, stage health, and
// last processed job.
//
// DaemonStatus: aggregated runtime information including external
// dependency availability and work directory disk usage.
//
// ConvertRequest/ConvertResponse: the synchronous conversion contract,
// with the success/error envelope that listen, download, and share links
// hang off.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Internal enums (queue.Status) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds.
package api
