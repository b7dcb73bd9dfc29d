// Package core provides the foundational domain types and interfaces used by
// the town simulation. It defines the core abstractions for:
//
//   - Agents (autonomous conversational participants with durable memory)
//   - Players (the world-visible identity an agent speaks through)
//   - Conversations (two-party exchanges with a forward-only lifecycle)
//   - Operations (asynchronous agent actions tracked via fencing tokens)
//   - Pluggable stores for world state and the generation service contract
//
// The package intentionally keeps implementation concerns (persistence,
// provisioning, turn orchestration, consolidation) out of scope, exposing
// small interfaces to enable custom backends and extensions.
package core
