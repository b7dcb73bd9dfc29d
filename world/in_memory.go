package world

import (
	"fmt"
	"sync"

	"github.com/EmbeddedLLM/ai-town/core"
)

// InMemoryStore is a volatile core.WorldStore keeping all entities in
// process-local maps. It is safe for concurrent access and best suited for
// tests or ephemeral demo worlds. Every returned record is a clone, so a
// caller's snapshot stays consistent for the duration of its orchestration
// call regardless of later writes.
type InMemoryStore struct {
	mu            sync.RWMutex
	agents        map[string]*core.Agent
	players       map[string]*core.Player
	conversations map[string]*core.Conversation
	agentByPlayer map[string]string
}

var _ core.WorldStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory world store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		agents:        make(map[string]*core.Agent),
		players:       make(map[string]*core.Player),
		conversations: make(map[string]*core.Conversation),
		agentByPlayer: make(map[string]string),
	}
}

// GetAgent returns a clone of the agent record.
func (s *InMemoryStore) GetAgent(id string) (*core.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %q: %w", id, core.ErrNotFound)
	}
	return agent.Clone(), nil
}

// PutAgent stores a clone of the agent record, replacing any previous state.
func (s *InMemoryStore) PutAgent(agent *core.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent.Clone()
	s.agentByPlayer[agent.PlayerID] = agent.ID
	return nil
}

// AgentForPlayer resolves the agent controlling a player. Human players have
// no agent and yield ErrNotFound.
func (s *InMemoryStore) AgentForPlayer(playerID string) (*core.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.agentByPlayer[playerID]
	if !ok {
		return nil, fmt.Errorf("agent for player %q: %w", playerID, core.ErrNotFound)
	}
	return s.agents[id].Clone(), nil
}

// GetPlayer returns a clone of the player record.
func (s *InMemoryStore) GetPlayer(id string) (*core.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("player %q: %w", id, core.ErrNotFound)
	}
	return player.Clone(), nil
}

// PutPlayer stores a clone of the player record.
func (s *InMemoryStore) PutPlayer(player *core.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = player.Clone()
	return nil
}

// GetConversation returns a clone of the conversation record.
func (s *InMemoryStore) GetConversation(id string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", id, core.ErrNotFound)
	}
	return conv.Clone(), nil
}

// PutConversation stores a clone of the conversation record.
func (s *InMemoryStore) PutConversation(conv *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = conv.Clone()
	return nil
}
