// Package aitown provides a high-level façade over the conversation
// lifecycle machinery (world state, operation fencing, resource
// provisioning, turn orchestration and memory consolidation) enabling rapid
// construction of simulated towns of social agents. Most applications
// interact with this package by:
//  1. Creating a Town via New() (optionally overriding the default in-memory
//     world store and generation service)
//  2. Adding players and agents (AddPlayer, AddAgent)
//  3. Driving conversations (Invite, Start, Continue, Leave) and memory
//     formation (Remember)
//
// The façade delegates orchestration to convo.Manager while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable world
// store, a real generation backend and a structured logger.
package aitown

import (
	"context"
	"errors"
	"fmt"

	"github.com/EmbeddedLLM/ai-town/convo"
	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/fence"
	"github.com/EmbeddedLLM/ai-town/genai"
	"github.com/EmbeddedLLM/ai-town/internal/prompt"
	"github.com/EmbeddedLLM/ai-town/logging"
	"github.com/EmbeddedLLM/ai-town/memory"
	"github.com/EmbeddedLLM/ai-town/provision"
	"github.com/EmbeddedLLM/ai-town/turn"
	"github.com/EmbeddedLLM/ai-town/world"
)

// Options configures the Town instance.
type Options struct {
	// WorldStore holds players, agents and conversations (defaults to an
	// in-memory implementation if not provided).
	WorldStore core.WorldStore

	// Service is the generation backend (defaults to the in-memory mock).
	Service core.GenerationService

	// MemoryThreshold is the cumulative token total above which an agent is
	// marked to consolidate a conversation into long-term memory. Zero
	// selects the default.
	MemoryThreshold int

	// MaxTurnTokens caps the completion length of a single turn. Zero
	// selects the orchestrator default.
	MaxTurnTokens int

	// Stream requests streamed generation from backends that support it.
	Stream bool

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Town is the high-level façade aggregating the underlying services.
type Town struct {
	opts    Options
	world   core.WorldStore
	svc     core.GenerationService
	prov    *provision.Provisioner
	manager *convo.Manager
}

// New creates a new Town instance with optional overrides. Any unset service
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Town {
	opts := Options{
		WorldStore: world.NewInMemoryStore(),
		Service:    genai.NewInMemoryService(),
		Stream:     true,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	prov := provision.New(opts.Service, func(o *provision.Options) {
		o.Logger = opts.Logger
	})
	orch := turn.New(opts.Service, func(o *turn.Options) {
		if opts.MaxTurnTokens > 0 {
			o.MaxTokens = opts.MaxTurnTokens
		}
		o.Stream = opts.Stream
		o.Logger = opts.Logger
	})
	f := fence.New(opts.Logger)
	tracker := memory.NewTracker(opts.MemoryThreshold, opts.Logger)
	cons := memory.NewConsolidator(opts.WorldStore, opts.Service, prov, opts.Logger)
	manager := convo.NewManager(opts.WorldStore, prov, orch, f, tracker, cons, opts.Logger)

	return &Town{opts: opts, world: opts.WorldStore, svc: opts.Service, prov: prov, manager: manager}
}

// World exposes the underlying world store.
func (t *Town) World() core.WorldStore { return t.world }

// Conversations exposes the underlying lifecycle manager for callers that
// need it directly.
func (t *Town) Conversations() *convo.Manager { return t.manager }

// AddPlayer registers a player in the world. Human players have no agent and
// speak through the transcript rows their counterparts record.
func (t *Town) AddPlayer(p *core.Player) error {
	if p.ID == "" {
		p.ID = core.NewID()
	}
	return t.world.PutPlayer(p)
}

// AddAgent registers an agent for a player and provisions its generation
// resources (knowledge store, chat template, retrieval wiring). The system
// prompt typically carries the player's identity; it may reference the
// player through template markers such as {{.Name}} and {{.Identity}}.
func (t *Town) AddAgent(ctx context.Context, playerID, systemPrompt string) (*core.Agent, error) {
	player, err := t.world.GetPlayer(playerID)
	if err != nil {
		return nil, fmt.Errorf("add agent: %w", err)
	}
	if existing, err := t.world.AgentForPlayer(player.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("add agent: %w", err)
	}
	rendered, err := prompt.Render(systemPrompt, player)
	if err != nil {
		return nil, fmt.Errorf("add agent: render system prompt: %w", err)
	}
	if err := t.prov.EnsureAgentResources(ctx, player.Name, rendered); err != nil {
		return nil, err
	}
	agent := &core.Agent{
		ID:               core.NewID(),
		PlayerID:         player.ID,
		KnowledgeStoreID: player.Name,
		ChatTemplateID:   player.Name,
	}
	if err := t.world.PutAgent(agent); err != nil {
		return nil, fmt.Errorf("add agent: %w", err)
	}
	return agent, nil
}

// Invite creates a conversation between an agent's player and the invitee.
func (t *Town) Invite(ctx context.Context, agentID, inviteePlayerID string) (*core.Conversation, error) {
	return t.manager.Invite(ctx, agentID, inviteePlayerID)
}

// Start generates the opening line of an invited conversation.
func (t *Town) Start(ctx context.Context, agentID, conversationID string) (*convo.Turn, error) {
	return t.manager.Start(ctx, agentID, conversationID)
}

// Continue replies to the counterpart's most recent message.
func (t *Town) Continue(ctx context.Context, agentID, conversationID string, lastMessage *turn.Message) (*convo.Turn, error) {
	return t.manager.Continue(ctx, agentID, conversationID, lastMessage)
}

// Leave generates a goodbye and ends the conversation for both sides.
func (t *Town) Leave(ctx context.Context, agentID, conversationID string, lastMessage *turn.Message) (*convo.Turn, error) {
	return t.manager.Leave(ctx, agentID, conversationID, lastMessage)
}

// Remember consolidates the agent's marked conversation into long-term
// memory. It reports whether this call performed the consolidation.
func (t *Town) Remember(ctx context.Context, agentID string) (bool, error) {
	return t.manager.Remember(ctx, agentID)
}
