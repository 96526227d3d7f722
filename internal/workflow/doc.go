// Package workflow advances conversion jobs through the configured processing
// stages.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// jobs into registered stage handlers (fetch, convert) while capturing progress
// and failure metadata. It also aggregates queue stats, calls stage health
// checks, and emits queue-level notifications when processing starts or
// completes.
//
// A configurable pool of workers polls for jobs; each worker claims a job with
// a compare-and-set status transition so two workers never process the same
// job. Add new lifecycle stages by extending StageSet, updating the queue
// status enums, and teaching the manager how to transition jobs; this package
// is the authoritative home for that coordination logic.
package workflow
