// Package convo owns the start/continue/leave/end state machine for a
// conversation between two participants.
//
// The external scheduler decides which agent holds the active turn and calls
// exactly one lifecycle method per conversation per tick; the manager does
// not arbitrate turn order. It provisions transcript resources through the
// provisioner, requests turn content through the orchestrator, and applies
// effects only after the operation fence accepts the completion, so a
// completion racing a newer operation can never double-apply.
//
// Reaching the terminal ended state marks both participants' agents for
// memory consolidation; Remember performs it under an OpRemember fence.
package convo
