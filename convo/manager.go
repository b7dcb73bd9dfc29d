package convo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/fence"
	"github.com/EmbeddedLLM/ai-town/logging"
	"github.com/EmbeddedLLM/ai-town/memory"
	"github.com/EmbeddedLLM/ai-town/provision"
	"github.com/EmbeddedLLM/ai-town/turn"
)

// Turn is the applied outcome of one lifecycle call: the fencing token of
// the dispatched operation and the generated content.
type Turn struct {
	OperationID string
	Content     string
	TotalTokens int
}

// Manager drives conversation lifecycles. All world reads within one call
// operate on the store's consistent snapshots; writes happen only after the
// fence accepts the operation's completion.
type Manager struct {
	world   core.WorldStore
	prov    *provision.Provisioner
	orch    *turn.Orchestrator
	fence   *fence.Fence
	tracker *memory.Tracker
	cons    *memory.Consolidator
	log     logging.Logger
}

// NewManager wires a Manager from its collaborators.
func NewManager(
	world core.WorldStore,
	prov *provision.Provisioner,
	orch *turn.Orchestrator,
	f *fence.Fence,
	tracker *memory.Tracker,
	cons *memory.Consolidator,
	log logging.Logger,
) *Manager {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Manager{world: world, prov: prov, orch: orch, fence: f, tracker: tracker, cons: cons, log: log}
}

// Invite creates a conversation between the initiating agent's player and
// the invitee, in the invited state. Only the initiator may later call
// Start.
func (m *Manager) Invite(ctx context.Context, agentID, inviteePlayerID string) (*core.Conversation, error) {
	agent, err := m.world.GetAgent(agentID)
	if err != nil {
		return nil, fmt.Errorf("invite: %w", err)
	}
	self, err := m.world.GetPlayer(agent.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("invite: %w", err)
	}
	invitee, err := m.world.GetPlayer(inviteePlayerID)
	if err != nil {
		return nil, fmt.Errorf("invite: %w", err)
	}

	conv := core.NewConversation(core.NewID(), core.ConversationKey(self.Name, invitee.Name), self.ID, invitee.ID)
	if err := m.world.PutConversation(conv); err != nil {
		return nil, fmt.Errorf("invite: %w", err)
	}

	agent.LastInviteAttempt = time.Now().UTC()
	agent.LastConversation = conv.ID
	if err := m.world.PutAgent(agent); err != nil {
		return nil, fmt.Errorf("invite: %w", err)
	}
	m.log.Info("conversation invited", "conversation", conv.Key, "initiator", self.Name, "invitee", invitee.Name)
	return conv, nil
}

// Start generates the opening line of an invited conversation. The
// initiator provisions transcripts for both speaking directions first, since
// either side may need to continue the thread next turn; the human side of a
// mixed conversation has no chat template and is provisioned lazily on its
// counterpart's first continuation instead.
func (m *Manager) Start(ctx context.Context, agentID, conversationID string) (*Turn, error) {
	agent, conv, self, other, err := m.load(agentID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.State != core.StateInvited {
		return nil, fmt.Errorf("start %q: state is %s, want %s", conv.Key, conv.State, core.StateInvited)
	}

	if err := m.prov.EnsureConversationTranscript(ctx, agent.ChatTemplateID, core.TranscriptID(self.Name, other.Name)); err != nil {
		return nil, err
	}
	if counterpart, err := m.world.AgentForPlayer(other.ID); err == nil {
		if err := m.prov.EnsureConversationTranscript(ctx, counterpart.ChatTemplateID, core.TranscriptID(other.Name, self.Name)); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("start %q: %w", conv.Key, err)
	}

	result, err := m.dispatch(ctx, agent, conv, self, other, turn.KindStart, nil)
	if err != nil {
		return nil, err
	}
	if err := conv.Advance(core.StateParticipating); err != nil {
		return nil, err
	}
	return result, m.persist(agent, conv)
}

// Continue replies to the counterpart's most recent message. Only that
// single message is carried as context; the transcript resource holds the
// rest of the thread.
func (m *Manager) Continue(ctx context.Context, agentID, conversationID string, lastMessage *turn.Message) (*Turn, error) {
	agent, conv, self, other, err := m.load(agentID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.State != core.StateParticipating {
		return nil, fmt.Errorf("continue %q: state is %s, want %s", conv.Key, conv.State, core.StateParticipating)
	}

	// A human-initiated conversation skips the Start provisioning chain, so
	// the agent provisions its own transcript on first continuation.
	if other.Human {
		if err := m.prov.EnsureConversationTranscript(ctx, agent.ChatTemplateID, core.TranscriptID(self.Name, other.Name)); err != nil {
			return nil, err
		}
	}

	result, err := m.dispatch(ctx, agent, conv, self, other, turn.KindContinue, lastMessage)
	if err != nil {
		return nil, err
	}
	return result, m.persist(agent, conv)
}

// Leave generates a valedictory message and moves the conversation to its
// terminal state for both sides. Participants with non-zero recorded usage
// are marked for consolidation.
func (m *Manager) Leave(ctx context.Context, agentID, conversationID string, lastMessage *turn.Message) (*Turn, error) {
	agent, conv, self, other, err := m.load(agentID, conversationID)
	if err != nil {
		return nil, err
	}
	if err := conv.Advance(core.StateLeaving); err != nil {
		return nil, err
	}

	result, err := m.dispatch(ctx, agent, conv, self, other, turn.KindLeave, lastMessage)
	if err != nil {
		return nil, err
	}
	if err := conv.Advance(core.StateEnded); err != nil {
		return nil, err
	}
	if err := m.persist(agent, conv); err != nil {
		return nil, err
	}
	m.markForConsolidation(conv)
	return result, nil
}

// Remember consolidates the conversation the agent was marked to remember.
// It returns true when this agent's invocation performed the consolidation;
// false means either nothing was pending or the counterpart won the claim,
// both of which are success.
func (m *Manager) Remember(ctx context.Context, agentID string) (bool, error) {
	agent, err := m.world.GetAgent(agentID)
	if err != nil {
		return false, fmt.Errorf("remember: %w", err)
	}
	if agent.ToRemember == "" {
		return false, nil
	}
	conversationID := agent.ToRemember

	opID := m.fence.Begin(agent, core.OpRemember)
	if err := m.world.PutAgent(agent); err != nil {
		return false, fmt.Errorf("remember: %w", err)
	}

	winner, err := m.cons.MaybeConsolidate(ctx, conversationID)
	if err != nil {
		return false, err
	}

	// The consolidator may have rewritten this agent's record (usage reset,
	// marker cleared); apply the fenced completion to the fresh copy.
	fresh, err := m.world.GetAgent(agentID)
	if err != nil {
		return winner, fmt.Errorf("remember: %w", err)
	}
	if !m.fence.Complete(fresh, opID) {
		return winner, nil
	}
	if fresh.ToRemember == conversationID {
		fresh.ToRemember = ""
	}
	return winner, m.world.PutAgent(fresh)
}

// load resolves the acting agent, the conversation and both players.
func (m *Manager) load(agentID, conversationID string) (*core.Agent, *core.Conversation, *core.Player, *core.Player, error) {
	agent, err := m.world.GetAgent(agentID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load agent: %w", err)
	}
	conv, err := m.world.GetConversation(conversationID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load conversation: %w", err)
	}
	self, err := m.world.GetPlayer(agent.PlayerID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load player: %w", err)
	}
	other, err := m.world.GetPlayer(conv.Other(self.ID))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load counterpart: %w", err)
	}
	return agent, conv, self, other, nil
}

// dispatch runs one fenced generation: begin the operation, request content,
// and apply the usage effects only if the completion still matches the
// fence. A fenced-off completion yields ErrStaleOperation and no mutation.
func (m *Manager) dispatch(ctx context.Context, agent *core.Agent, conv *core.Conversation, self, other *core.Player, kind turn.Kind, lastMessage *turn.Message) (*Turn, error) {
	opID := m.fence.Begin(agent, core.OpSendMessage)
	if err := m.world.PutAgent(agent); err != nil {
		return nil, fmt.Errorf("persist operation: %w", err)
	}

	prompt := turn.Prompt{
		Actor:               self.Name,
		Counterpart:         other.Name,
		CounterpartIdentity: other.Identity,
		Created:             conv.Created,
		Now:                 time.Now().UTC(),
		LastMessage:         lastMessage,
	}
	res, err := m.orch.Dispatch(ctx, kind, core.TranscriptID(self.Name, other.Name), prompt)
	if err != nil {
		// The operation stays in flight; the next Begin supersedes it and
		// the scheduler retries on a later tick.
		return nil, err
	}

	if !m.fence.Complete(agent, opID) {
		m.log.Warn("turn completion superseded", "agent_id", agent.ID, "operation_id", opID)
		return nil, fmt.Errorf("apply turn %q: %w", conv.Key, core.ErrStaleOperation)
	}
	conv.NumMessages++
	agent.LastConversation = conv.ID
	m.tracker.RecordUsage(agent, conv.Key, res.TotalTokens)
	if m.tracker.OverThreshold(agent, conv.Key) {
		agent.ToRemember = conv.ID
	}
	return &Turn{OperationID: opID, Content: res.Content, TotalTokens: res.TotalTokens}, nil
}

// persist writes back the agent and conversation records mutated by an
// accepted completion.
func (m *Manager) persist(agent *core.Agent, conv *core.Conversation) error {
	if err := m.world.PutAgent(agent); err != nil {
		return fmt.Errorf("persist agent: %w", err)
	}
	if err := m.world.PutConversation(conv); err != nil {
		return fmt.Errorf("persist conversation: %w", err)
	}
	return nil
}

// markForConsolidation flags both participants' agents whose recorded usage
// for the ended conversation is non-zero.
func (m *Manager) markForConsolidation(conv *core.Conversation) {
	for _, playerID := range conv.Participants {
		agent, err := m.world.AgentForPlayer(playerID)
		if err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				m.log.Error("mark for consolidation failed", "player_id", playerID, "error", err)
			}
			continue
		}
		u := agent.UsageFor(conv.Key)
		if u == nil || u.TokenCount == 0 {
			continue
		}
		agent.ToRemember = conv.ID
		if err := m.world.PutAgent(agent); err != nil {
			m.log.Error("mark for consolidation failed", "agent_id", agent.ID, "error", err)
		}
	}
}
