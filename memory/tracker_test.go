package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/ai-town/core"
)

func TestTracker_RecordUsageSetsCumulative(t *testing.T) {
	tr := NewTracker(1000, nil)
	agent := core.NewAgent("agent-1", "player-1")

	tr.RecordUsage(agent, "Alice-Bob", 200)
	require.NotNil(t, agent.UsageFor("Alice-Bob"))
	assert.Equal(t, 200, agent.UsageFor("Alice-Bob").TokenCount)

	// Cumulative totals replace, they do not sum.
	tr.RecordUsage(agent, "Alice-Bob", 350)
	assert.Equal(t, 350, agent.UsageFor("Alice-Bob").TokenCount)

	// One record per conversation key.
	tr.RecordUsage(agent, "Alice-Carol", 10)
	assert.Len(t, agent.Usage, 2)
}

func TestTracker_MonotonicBetweenResets(t *testing.T) {
	tr := NewTracker(1000, nil)
	agent := core.NewAgent("agent-1", "player-1")

	tr.RecordUsage(agent, "Alice-Bob", 500)
	// A stale lower report never decreases the counter.
	tr.RecordUsage(agent, "Alice-Bob", 300)
	assert.Equal(t, 500, agent.UsageFor("Alice-Bob").TokenCount)

	// Only an explicit consolidation reset moves it back to zero.
	agent.SetUsage("Alice-Bob", 0)
	assert.Equal(t, 0, agent.UsageFor("Alice-Bob").TokenCount)
}

func TestTracker_OverThreshold(t *testing.T) {
	tr := NewTracker(1000, nil)
	agent := core.NewAgent("agent-1", "player-1")

	assert.False(t, tr.OverThreshold(agent, "Alice-Bob"))
	tr.RecordUsage(agent, "Alice-Bob", 1000)
	assert.False(t, tr.OverThreshold(agent, "Alice-Bob"))
	tr.RecordUsage(agent, "Alice-Bob", 1500)
	assert.True(t, tr.OverThreshold(agent, "Alice-Bob"))
}

func TestTracker_DefaultThreshold(t *testing.T) {
	tr := NewTracker(0, nil)
	assert.Equal(t, DefaultThreshold, tr.Threshold())
}
