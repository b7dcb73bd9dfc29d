package genai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/EmbeddedLLM/ai-town/core"
)

// InMemoryService is a process-local core.GenerationService with
// deterministic replies, for tests and offline demos. Resource semantics
// come from the embedded Resources; Generate answers with the canned
// response registered for the user text, or a deterministic echo.
type InMemoryService struct {
	*Resources

	respMu    sync.Mutex
	responses map[string]string
}

var _ core.GenerationService = (*InMemoryService)(nil)

// NewInMemoryService creates an empty in-memory generation service.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{
		Resources: NewResources(),
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a user text.
func (s *InMemoryService) AddResponse(userText, content string) {
	s.respMu.Lock()
	defer s.respMu.Unlock()
	s.responses[userText] = content
}

// Generate implements core.GenerationService. The reply is the canned
// response for the user text when one is registered, otherwise a
// deterministic echo. Content is truncated at the first stop sequence and
// the exchange is appended to the transcript.
func (s *InMemoryService) Generate(_ context.Context, req core.GenerateRequest) (*core.GenerateResult, error) {
	if _, err := s.PromptContext(req.TranscriptID); err != nil {
		return nil, err
	}
	s.respMu.Lock()
	content := s.responses[req.UserText]
	s.respMu.Unlock()
	if content == "" {
		content = fmt.Sprintf("Mock reply to: %s", req.UserText)
	}
	if req.AIText != "" {
		content = req.AIText + content
	}
	for _, stop := range req.Stop {
		if idx := strings.Index(content, stop); idx >= 0 {
			content = content[:idx]
		}
	}
	total, err := s.AppendExchange(req.TranscriptID, req.UserText, content, estimateTokens(req.UserText)+estimateTokens(content))
	if err != nil {
		return nil, err
	}
	return &core.GenerateResult{Content: content, TotalTokens: total}, nil
}

// estimateTokens approximates the service's token accounting closely enough
// for threshold tests: one token per four characters, minimum one.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
