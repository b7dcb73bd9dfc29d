// Package memory tracks per-conversation token usage and consolidates ended
// conversations into each agent's durable knowledge store.
//
// The generation service reports cumulative token totals per transcript, so
// Tracker stores the latest observed value rather than summing deltas. When a
// conversation ends, or its usage crosses the configured threshold,
// Consolidator extracts both directional transcripts into one memory
// document per participant, uploads them, deletes the transcripts and resets
// the counters.
//
// Both participants may attempt consolidation of the same conversation
// concurrently. The transcript delete is the claim: exactly one caller's
// delete succeeds and that caller consolidates for both sides; the other
// observes the resource gone and treats its attempt as a completed no-op.
package memory
