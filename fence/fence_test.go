package fence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/logging"
)

func TestFence_BeginAndComplete(t *testing.T) {
	f := New(logging.NoOpLogger{})
	agent := core.NewAgent("agent-1", "player-1")

	opID := f.Begin(agent, core.OpDoSomething)
	require.NotEmpty(t, opID)
	require.NotNil(t, agent.InProgress)
	assert.Equal(t, opID, agent.InProgress.ID)
	assert.Equal(t, core.OpDoSomething, agent.InProgress.Kind)

	accepted := f.Complete(agent, opID)
	assert.True(t, accepted)
	assert.Nil(t, agent.InProgress)
}

func TestFence_StaleCompletionRejected(t *testing.T) {
	f := New(nil)
	agent := core.NewAgent("agent-1", "player-1")

	op1 := f.Begin(agent, core.OpDoSomething)
	// A new operation supersedes op1 before its completion arrives.
	op2 := f.Begin(agent, core.OpSendMessage)
	require.NotEqual(t, op1, op2)
	require.NotNil(t, agent.InProgress)
	assert.Equal(t, op2, agent.InProgress.ID)

	// op1's late completion must be rejected without mutating the slot.
	assert.False(t, f.Complete(agent, op1))
	require.NotNil(t, agent.InProgress)
	assert.Equal(t, op2, agent.InProgress.ID)

	// op2's own completion is honored.
	assert.True(t, f.Complete(agent, op2))
	assert.Nil(t, agent.InProgress)
}

func TestFence_CompleteWithoutOperation(t *testing.T) {
	f := New(nil)
	agent := core.NewAgent("agent-1", "player-1")

	assert.False(t, f.Complete(agent, "never-issued"))
	assert.Nil(t, agent.InProgress)
}

func TestFence_SingleSlotInvariant(t *testing.T) {
	f := New(nil)
	agent := core.NewAgent("agent-1", "player-1")

	// Repeated Begin calls never stack operations; exactly one slot exists.
	for i := 0; i < 5; i++ {
		f.Begin(agent, core.OpRemember)
		require.NotNil(t, agent.InProgress)
	}
}
