// Package openai backs the generation service with the OpenAI Chat
// Completions API. Resource bookkeeping (knowledge stores, chat templates,
// transcripts) stays in-process via genai.Resources; only Generate reaches
// the API, with retrieved memories folded into the system prompt.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/genai"
)

// Options configure the OpenAI service adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Service implements core.GenerationService on top of the OpenAI Chat
// Completions API.
type Service struct {
	*genai.Resources
	client *openai.Client
	opts   Options
}

var _ core.GenerationService = (*Service)(nil)

// NewService creates a new OpenAI service using the official client
func NewService(optFns ...func(o *Options)) *Service {
	client := openai.NewClient()
	return NewServiceFromClient(&client, optFns...)
}

// NewServiceFromClient creates a new OpenAI service from an existing client
func NewServiceFromClient(client *openai.Client, optFns ...func(o *Options)) *Service {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{Resources: genai.NewResources(), client: client, opts: opts}
}

// Generate implements core.GenerationService. The transcript's system
// prompt, retrieved memories and exchange history become the chat messages;
// the completed exchange is appended to the transcript and the cumulative
// token total returned.
func (s *Service) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResult, error) {
	pc, err := s.PromptContext(req.TranscriptID)
	if err != nil {
		return nil, err
	}
	params := s.buildParams(pc, req)
	if req.Stream {
		return s.generateStreaming(ctx, req, params)
	}
	return s.generateBlocking(ctx, req, params)
}

// buildParams assembles the chat completion request from the transcript
// context and the pending exchange.
func (s *Service) buildParams(pc *genai.PromptContext, req core.GenerateRequest) openai.ChatCompletionNewParams {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(pc)),
	}
	for _, row := range pc.History {
		messages = append(messages, openai.UserMessage(row.UserText))
		messages = append(messages, openai.AssistantMessage(row.AIText))
	}
	userText := req.UserText
	if req.AIText != "" {
		// Chat Completions has no assistant prefill, so the partial AI
		// text rides along as instruction context.
		userText = fmt.Sprintf("%s\n\nContinue this reply: %s", userText, req.AIText)
	}
	messages = append(messages, openai.UserMessage(userText))

	maxTokens := s.opts.MaxCompletionTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               s.opts.Model,
		Temperature:         openai.Float(s.opts.Temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if len(req.Stop) > 0 {
		stop := req.Stop
		if len(stop) > core.MaxStopSequences {
			stop = stop[:core.MaxStopSequences]
		}
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: stop}
	}
	return params
}

func (s *Service) generateBlocking(ctx context.Context, req core.GenerateRequest, params openai.ChatCompletionNewParams) (*core.GenerateResult, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	content := req.AIText + resp.Choices[0].Message.Content
	return s.record(req, content, int(resp.Usage.TotalTokens))
}

func (s *Service) generateStreaming(ctx context.Context, req core.GenerateRequest, params openai.ChatCompletionNewParams) (*core.GenerateResult, error) {
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}
	stream := s.client.Chat.Completions.NewStreaming(ctx, params)
	var builder strings.Builder
	builder.WriteString(req.AIText)
	var totalTokens int
	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				builder.WriteString(ch.Delta.Content)
			}
		}
		if ck.Usage.TotalTokens > 0 {
			totalTokens = int(ck.Usage.TotalTokens)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai streaming error: %w", err)
	}
	return s.record(req, builder.String(), totalTokens)
}

// record appends the finished exchange to the transcript and reports the
// new cumulative total.
func (s *Service) record(req core.GenerateRequest, content string, tokens int) (*core.GenerateResult, error) {
	total, err := s.AppendExchange(req.TranscriptID, req.UserText, content, tokens)
	if err != nil {
		return nil, err
	}
	return &core.GenerateResult{Content: content, TotalTokens: total}, nil
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
