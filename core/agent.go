package core

import "time"

// OperationKind categorizes the asynchronous actions an agent can have in
// flight. The set is closed; presence of an Operation with one of these kinds
// is the only "busy" state an agent carries.
type OperationKind int

const (
	// OpRemember covers memory consolidation of an ended conversation.
	OpRemember OperationKind = iota
	// OpDoSomething covers free-form world actions (wander, invite, wait).
	OpDoSomething
	// OpSendMessage covers generating and emitting a conversation message.
	OpSendMessage
)

// String returns the string representation of the operation kind.
func (k OperationKind) String() string {
	switch k {
	case OpRemember:
		return "remember"
	case OpDoSomething:
		return "doSomething"
	case OpSendMessage:
		return "sendMessage"
	default:
		return "unknown"
	}
}

// Operation records a single dispatched asynchronous action. ID is the
// fencing token minted at dispatch time; a completion is honored only while
// its ID still matches the agent's current operation.
type Operation struct {
	ID      string        `json:"id"`
	Kind    OperationKind `json:"kind"`
	Started time.Time     `json:"started"`
}

// ConversationUsage tracks the cumulative token usage an agent has observed
// for one conversation. TokenCount holds the latest cumulative total reported
// by the generation service, not a running sum of deltas; it only moves
// backward on an explicit consolidation reset.
type ConversationUsage struct {
	ConversationKey string `json:"conversation_key"`
	TokenCount      int    `json:"token_count"`
}

// Agent is the durable record for one autonomous participant. It owns the
// single in-progress operation slot, the per-conversation usage list and the
// handles to its generation-service resources. The conversation it belongs to
// is owned by the world store, not by either participant.
//
// Invariant: at most one non-nil InProgress at a time; an agent never holds
// two concurrent generation requests.
type Agent struct {
	ID                string              `json:"id"`
	PlayerID          string              `json:"player_id"`
	InProgress        *Operation          `json:"in_progress,omitempty"`
	LastConversation  string              `json:"last_conversation,omitempty"`
	LastInviteAttempt time.Time           `json:"last_invite_attempt,omitempty"`
	ToRemember        string              `json:"to_remember,omitempty"`
	KnowledgeStoreID  string              `json:"knowledge_store_id,omitempty"`
	ChatTemplateID    string              `json:"chat_template_id,omitempty"`
	Usage             []ConversationUsage `json:"usage,omitempty"`
}

// NewAgent creates an agent bound to a player.
func NewAgent(id, playerID string) *Agent {
	return &Agent{ID: id, PlayerID: playerID}
}

// UsageFor returns the usage record for a conversation key, or nil.
func (a *Agent) UsageFor(key string) *ConversationUsage {
	for i := range a.Usage {
		if a.Usage[i].ConversationKey == key {
			return &a.Usage[i]
		}
	}
	return nil
}

// SetUsage stores the latest cumulative token count for a conversation,
// creating the record if absent. At most one record exists per key.
func (a *Agent) SetUsage(key string, totalTokens int) {
	if u := a.UsageFor(key); u != nil {
		u.TokenCount = totalTokens
		return
	}
	a.Usage = append(a.Usage, ConversationUsage{ConversationKey: key, TokenCount: totalTokens})
}

// Clone returns a deep copy of the agent safe for independent mutation.
func (a *Agent) Clone() *Agent {
	clone := *a
	if a.InProgress != nil {
		op := *a.InProgress
		clone.InProgress = &op
	}
	clone.Usage = make([]ConversationUsage, len(a.Usage))
	copy(clone.Usage, a.Usage)
	return &clone
}
