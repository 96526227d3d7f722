// Package main hosts the Attune CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against a running daemon, queue maintenance operations, dependency
// checks, and configuration scaffolding. It centralizes configuration
// resolution and daemon address discovery so subcommands can focus on user
// experience instead of wiring. Queue commands fall back to opening the
// store directly when no daemon answers, so a stopped installation can
// still be inspected and repaired.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
