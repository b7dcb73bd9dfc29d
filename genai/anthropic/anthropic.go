// Package anthropic backs the generation service with the Anthropic
// Messages API. Resource bookkeeping stays in-process via genai.Resources;
// only Generate reaches the API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/genai"
)

// Options configures the Anthropic service adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Service implements core.GenerationService on top of the Anthropic
// Messages API.
type Service struct {
	*genai.Resources
	client *anthropic.Client
	opts   Options
}

var _ core.GenerationService = (*Service)(nil)

// NewService creates a new Anthropic service using the official client
func NewService(optFns ...func(o *Options)) *Service {
	opts := defaultOptions(optFns)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Service{Resources: genai.NewResources(), client: &client, opts: opts}
}

// NewServiceFromClient creates a new Anthropic service from an existing client
func NewServiceFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Service {
	return &Service{Resources: genai.NewResources(), client: client, opts: defaultOptions(optFns)}
}

func defaultOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Generate implements core.GenerationService. The transcript's system
// prompt, retrieved memories and exchange history become the message list;
// a pending AI prefix rides as an assistant prefill message. Streaming is
// not implemented yet and falls back to a blocking call.
//
// TODO: implement Messages streaming with event accumulation.
func (s *Service) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResult, error) {
	pc, err := s.PromptContext(req.TranscriptID)
	if err != nil {
		return nil, err
	}

	messages := make([]anthropic.MessageParam, 0, len(pc.History)*2+2)
	for _, row := range pc.History {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(row.UserText)))
		messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(row.AIText)))
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserText)))
	if req.AIText != "" {
		messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(req.AIText)))
	}

	maxTokens := s.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:       s.opts.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(s.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt(pc)}},
	}
	if len(req.Stop) > 0 {
		stop := req.Stop
		if len(stop) > core.MaxStopSequences {
			stop = stop[:core.MaxStopSequences]
		}
		params.StopSequences = stop
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(req.AIText)
	for _, block := range resp.Content {
		if block.Type == "text" {
			builder.WriteString(block.AsText().Text)
		}
	}
	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)

	total, err := s.AppendExchange(req.TranscriptID, req.UserText, builder.String(), tokens)
	if err != nil {
		return nil, err
	}
	return &core.GenerateResult{Content: builder.String(), TotalTokens: total}, nil
}

func systemPrompt(pc *genai.PromptContext) string {
	if len(pc.Memories) == 0 {
		return pc.SystemPrompt
	}
	var b strings.Builder
	b.WriteString(pc.SystemPrompt)
	b.WriteString("\n\nRelevant memories:\n")
	for _, m := range pc.Memories {
		b.WriteString("- ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	return b.String()
}
