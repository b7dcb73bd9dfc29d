package testutil

import (
	"time"

	"github.com/EmbeddedLLM/ai-town/core"
)

// AgentBuilder provides a fluent helper for constructing agents in tests.
// Example:
//
//	agent := NewAgentBuilder("agent-1", "player-1").Store("Alice").Template("Alice").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type AgentBuilder struct {
	agent *core.Agent
}

// NewAgentBuilder creates a builder for an agent bound to a player. The
// knowledge store and chat template default to the agent ID.
func NewAgentBuilder(id, playerID string) *AgentBuilder {
	return &AgentBuilder{agent: &core.Agent{
		ID:               id,
		PlayerID:         playerID,
		KnowledgeStoreID: id,
		ChatTemplateID:   id,
	}}
}

// Store sets the knowledge store ID (chainable).
func (b *AgentBuilder) Store(id string) *AgentBuilder { b.agent.KnowledgeStoreID = id; return b }

// Template sets the chat template ID (chainable).
func (b *AgentBuilder) Template(id string) *AgentBuilder { b.agent.ChatTemplateID = id; return b }

// InProgress marks an operation as in flight (chainable).
func (b *AgentBuilder) InProgress(kind core.OperationKind, opID string) *AgentBuilder {
	b.agent.InProgress = &core.Operation{ID: opID, Kind: kind, Started: time.Now().UTC()}
	return b
}

// ToRemember marks a conversation for consolidation (chainable).
func (b *AgentBuilder) ToRemember(conversationID string) *AgentBuilder {
	b.agent.ToRemember = conversationID
	return b
}

// Usage seeds a cumulative token total for a conversation key (chainable).
func (b *AgentBuilder) Usage(conversationKey string, tokens int) *AgentBuilder {
	b.agent.SetUsage(conversationKey, tokens)
	return b
}

// Build returns the constructed agent.
func (b *AgentBuilder) Build() *core.Agent { return b.agent }

// ConversationBuilder provides a fluent helper for constructing
// conversations in tests.
type ConversationBuilder struct {
	conv *core.Conversation
}

// NewConversationBuilder creates a builder for a conversation between two
// players, starting in the invited state.
func NewConversationBuilder(id string, a, b *core.Player) *ConversationBuilder {
	return &ConversationBuilder{
		conv: core.NewConversation(id, core.ConversationKey(a.Name, b.Name), a.ID, b.ID),
	}
}

// State forces the conversation state (chainable).
func (b *ConversationBuilder) State(s core.ConversationState) *ConversationBuilder {
	b.conv.State = s
	return b
}

// Messages sets the message count (chainable).
func (b *ConversationBuilder) Messages(n int) *ConversationBuilder {
	b.conv.NumMessages = n
	return b
}

// Created overrides the creation time (chainable).
func (b *ConversationBuilder) Created(t time.Time) *ConversationBuilder {
	b.conv.Created = t
	return b
}

// Build returns the constructed conversation.
func (b *ConversationBuilder) Build() *core.Conversation { return b.conv }

// SeedWorld stores players, agents and conversations, panicking on error.
// Intended for test fixtures where a failed put is a programming mistake.
func SeedWorld(w core.WorldStore, players []*core.Player, agents []*core.Agent, convs []*core.Conversation) {
	for _, p := range players {
		if err := w.PutPlayer(p); err != nil {
			panic(err)
		}
	}
	for _, a := range agents {
		if err := w.PutAgent(a); err != nil {
			panic(err)
		}
	}
	for _, c := range convs {
		if err := w.PutConversation(c); err != nil {
			panic(err)
		}
	}
}
