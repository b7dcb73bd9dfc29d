package fence

import (
	"time"

	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/logging"
)

// Fence mints and validates per-agent operation tokens. It mutates the agent
// record handed to it; persistence of that record stays with the caller so a
// tick can batch its world-state writes.
type Fence struct {
	log logging.Logger
}

// New constructs a Fence with a non-nil logger.
func New(log logging.Logger) *Fence {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Fence{log: log}
}

// Begin records a new in-progress operation on the agent and returns its
// fencing token. Any operation already in flight is superseded: the slot is
// cleared before the new operation is assigned, so the stale completion will
// fail the token comparison when it eventually arrives.
func (f *Fence) Begin(agent *core.Agent, kind core.OperationKind) string {
	if prev := agent.InProgress; prev != nil {
		f.log.Debug("superseding in-progress operation",
			"agent_id", agent.ID, "operation_id", prev.ID, "kind", prev.Kind.String())
		agent.InProgress = nil
	}
	op := &core.Operation{ID: core.NewID(), Kind: kind, Started: time.Now().UTC()}
	agent.InProgress = op
	return op.ID
}

// Complete validates a completion token against the agent's current
// operation. On a match it clears the slot and returns true, signaling the
// caller may apply the operation's effects. On a mismatch (stale or
// superseded completion) it logs, leaves all state untouched and returns
// false.
func (f *Fence) Complete(agent *core.Agent, operationID string) bool {
	cur := agent.InProgress
	if cur == nil || cur.ID != operationID {
		f.log.Warn("dropping stale operation completion",
			"agent_id", agent.ID, "operation_id", operationID)
		return false
	}
	agent.InProgress = nil
	return true
}
