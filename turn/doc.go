// Package turn assembles and dispatches the generation request for a single
// conversation turn.
//
// A turn is one of three kinds: the opening line, a continuation, or a
// valedictory message. The orchestrator builds the instruction text from the
// counterpart's identity and the single most recent counterpart message,
// never the full transcript, since the generation service carries multi-turn
// memory in the transcript resource itself. It derives the stop-sequence set
// from the "<counterpart> to <speaker>:" pattern, and dispatches. It never
// mutates conversation state; applying effects is the lifecycle manager's
// job once the completion passes the operation fence.
package turn
