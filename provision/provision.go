package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/logging"
)

// Options configure the provisioner's retrieval defaults.
type Options struct {
	// RerankModel is passed to the generation service when wiring a
	// knowledge store into a chat template.
	RerankModel string
	// TopK is the number of retrieved memory snippets per generation.
	TopK int
	// Logger receives non-fatal provisioning failures.
	Logger logging.Logger
}

// Provisioner performs idempotent creation and deletion of per-agent
// resources against the generation service. Knowledge stores and chat
// templates are keyed by the agent's display name; transcripts by their
// directional transcript id.
type Provisioner struct {
	svc  core.GenerationService
	opts Options
}

// New creates a Provisioner. Unset options fall back to defaults.
func New(svc core.GenerationService, optFns ...func(o *Options)) *Provisioner {
	opts := Options{
		RerankModel: "bge-reranker-large",
		TopK:        3,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Provisioner{svc: svc, opts: opts}
}

// EnsureKnowledgeStore creates the agent's long-term memory store if it does
// not already exist.
func (p *Provisioner) EnsureKnowledgeStore(ctx context.Context, agentName string) error {
	err := p.svc.CreateKnowledgeStore(ctx, agentName)
	if err != nil && !errors.Is(err, core.ErrAlreadyExists) {
		p.opts.Logger.Error("create knowledge store failed", "agent", agentName, "error", err)
		return fmt.Errorf("ensure knowledge store %q: %w", agentName, err)
	}
	return nil
}

// EnsureChatTemplate creates the agent's persistent chat template carrying
// its system prompt.
func (p *Provisioner) EnsureChatTemplate(ctx context.Context, agentName, systemPrompt string) error {
	err := p.svc.CreateChatTemplate(ctx, agentName, systemPrompt)
	if err != nil && !errors.Is(err, core.ErrAlreadyExists) {
		p.opts.Logger.Error("create chat template failed", "agent", agentName, "error", err)
		return fmt.Errorf("ensure chat template %q: %w", agentName, err)
	}
	return nil
}

// ConfigureRetrieval wires the agent's knowledge store into its chat
// template so generations retrieve consolidated memories.
func (p *Provisioner) ConfigureRetrieval(ctx context.Context, agentName string) error {
	err := p.svc.ConfigureRetrieval(ctx, agentName, agentName, p.opts.RerankModel, p.opts.TopK)
	if err != nil && !errors.Is(err, core.ErrAlreadyExists) {
		p.opts.Logger.Error("configure retrieval failed", "agent", agentName, "error", err)
		return fmt.Errorf("configure retrieval %q: %w", agentName, err)
	}
	return nil
}

// EnsureAgentResources runs the full per-agent pipeline in dependency order:
// knowledge store, chat template, retrieval configuration. The chain stops at
// the first failure so dependent steps never run against missing resources;
// the error is returned for the caller's retry policy and is safe to retry
// since every step is idempotent.
func (p *Provisioner) EnsureAgentResources(ctx context.Context, agentName, systemPrompt string) error {
	if err := p.EnsureKnowledgeStore(ctx, agentName); err != nil {
		return err
	}
	if err := p.EnsureChatTemplate(ctx, agentName, systemPrompt); err != nil {
		return err
	}
	return p.ConfigureRetrieval(ctx, agentName)
}

// EnsureConversationTranscript duplicates the agent's chat template into a
// transient transcript for one speaking direction of a conversation.
func (p *Provisioner) EnsureConversationTranscript(ctx context.Context, templateID, transcriptID string) error {
	err := p.svc.DuplicateTemplateAsTranscript(ctx, templateID, transcriptID)
	if err != nil && !errors.Is(err, core.ErrAlreadyExists) {
		p.opts.Logger.Error("duplicate transcript failed", "template", templateID, "transcript", transcriptID, "error", err)
		return fmt.Errorf("ensure transcript %q: %w", transcriptID, err)
	}
	return nil
}

// DeleteConversationTranscript removes a transcript and reports whether this
// caller performed the deletion. A transcript that is already gone is not an
// error: it means the other participant claimed it first, and the caller
// should treat its own consolidation pass as a completed no-op.
func (p *Provisioner) DeleteConversationTranscript(ctx context.Context, transcriptID string) (bool, error) {
	err := p.svc.DeleteResource(ctx, transcriptID, core.KindTranscript)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		p.opts.Logger.Error("delete transcript failed", "transcript", transcriptID, "error", err)
		return false, fmt.Errorf("delete transcript %q: %w", transcriptID, err)
	}
	return true, nil
}
