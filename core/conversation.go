package core

import (
	"fmt"
	"time"
)

// ConversationState is the lifecycle position of a conversation. States only
// advance forward; a conversation is never revived after StateEnded.
type ConversationState int

const (
	// StateInvited means one side has invited the other; only the initiator
	// may start the exchange.
	StateInvited ConversationState = iota
	// StateParticipating means both sides are exchanging messages.
	StateParticipating
	// StateLeaving means one side has decided to leave and a valedictory
	// message is being produced.
	StateLeaving
	// StateEnded is terminal and triggers usage-based memory consolidation.
	StateEnded
)

// String returns the string representation of the conversation state.
func (s ConversationState) String() string {
	switch s {
	case StateInvited:
		return "invited"
	case StateParticipating:
		return "participating"
	case StateLeaving:
		return "leaving"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Conversation is a two-party exchange. It is jointly referenced by both
// participants' agents but owned by the world store.
type Conversation struct {
	ID           string            `json:"id"`
	Key          string            `json:"key"`
	Participants [2]string         `json:"participants"` // player ids
	Created      time.Time         `json:"created"`
	NumMessages  int               `json:"num_messages"`
	State        ConversationState `json:"state"`
}

// NewConversation creates a conversation between two players in the invited
// state. Key must be the deterministic ConversationKey of the participants'
// display names.
func NewConversation(id, key, playerA, playerB string) *Conversation {
	return &Conversation{
		ID:           id,
		Key:          key,
		Participants: [2]string{playerA, playerB},
		Created:      time.Now().UTC(),
		State:        StateInvited,
	}
}

// Advance moves the conversation to next, enforcing the forward-only order
// invited -> participating -> leaving -> ended. Skipping intermediate states
// is allowed (an invited conversation may end without a single reply); moving
// backward or out of the terminal state is not.
func (c *Conversation) Advance(next ConversationState) error {
	if c.State == StateEnded {
		return fmt.Errorf("advance %s: %w", c.Key, ErrConversationEnded)
	}
	if next <= c.State {
		return fmt.Errorf("conversation %s cannot move %s -> %s", c.Key, c.State, next)
	}
	c.State = next
	return nil
}

// Other returns the counterpart player id for one participant.
func (c *Conversation) Other(playerID string) string {
	if c.Participants[0] == playerID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// Clone returns a copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	return &clone
}

// ConversationKey derives the deterministic conversation key from the two
// participants' display names, ordering lexicographically so both sides
// compute the same key.
func ConversationKey(nameA, nameB string) string {
	if nameB < nameA {
		nameA, nameB = nameB, nameA
	}
	return nameA + "-" + nameB
}

// TranscriptID derives the directional transcript resource id for one
// speaking direction of a conversation. Both directions (A to B and B to A)
// back the same conversation; each holds the rows generated on behalf of its
// speaker.
func TranscriptID(speaker, listener string) string {
	return speaker + "_to_" + listener
}
