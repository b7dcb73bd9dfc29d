package memory

import (
	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/logging"
)

// DefaultThreshold is the cumulative token count above which a
// conversation's transcript is consolidated into long-term memory.
const DefaultThreshold = 1000

// Tracker maintains the per-agent, per-conversation usage records. It
// mutates the agent record handed to it; persisting the record stays with
// the caller's tick.
type Tracker struct {
	threshold int
	log       logging.Logger
}

// NewTracker creates a Tracker. A threshold of 0 falls back to
// DefaultThreshold.
func NewTracker(threshold int, log logging.Logger) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Tracker{threshold: threshold, log: log}
}

// RecordUsage stores the latest cumulative token total the service reported
// for one conversation, creating the record if absent. A total below the
// stored value is a stale report from a superseded request and is ignored,
// keeping the counter monotonic between resets.
func (t *Tracker) RecordUsage(agent *core.Agent, conversationKey string, totalTokens int) {
	if u := agent.UsageFor(conversationKey); u != nil && totalTokens < u.TokenCount {
		t.log.Debug("ignoring stale usage report",
			"agent_id", agent.ID, "conversation_key", conversationKey,
			"reported", totalTokens, "stored", u.TokenCount)
		return
	}
	agent.SetUsage(conversationKey, totalTokens)
}

// OverThreshold reports whether the agent's recorded usage for a
// conversation has crossed the consolidation threshold.
func (t *Tracker) OverThreshold(agent *core.Agent, conversationKey string) bool {
	u := agent.UsageFor(conversationKey)
	return u != nil && u.TokenCount > t.threshold
}

// Threshold returns the configured consolidation threshold.
func (t *Tracker) Threshold() int { return t.threshold }
