// Package daemon coordinates the long-running Attune process and its HTTP
// surface.
//
// It wires configuration, queue storage, the workflow manager, and the
// retention sweeper into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon owns the HTTP API that browser
// front ends and the CLI talk to: the synchronous conversion endpoint,
// the listen/download/share file routes, and queue administration.
//
// Keep orchestration logic here: individual workflow steps should live in
// their respective packages while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
