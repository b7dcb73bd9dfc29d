// Package fence guards each agent's single in-flight asynchronous operation.
//
// An agent dispatches at most one generation request at a time. Begin mints a
// fresh fencing token and records it on the agent; Complete accepts a token
// and reports whether it still matches. A mismatch means the completion
// belongs to a superseded operation and must be discarded without touching
// state. Superseding (Begin while an operation is in flight) is the only
// cancellation mechanism the simulation has.
package fence
