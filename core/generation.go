package core

import (
	"context"
	"time"
)

// MaxStopSequences is the generation service's limit on stop sequences per
// request. Derived stop sets are capped to this length before dispatch.
const MaxStopSequences = 4

// ResourceKind identifies the class of a durable generation-service resource
// for deletion calls.
type ResourceKind int

const (
	// KindKnowledgeStore is an agent's long-term memory document store.
	KindKnowledgeStore ResourceKind = iota
	// KindChatTemplate is an agent's persistent chat template (system
	// prompt + retrieval configuration).
	KindChatTemplate
	// KindTranscript is a transient per-conversation transcript duplicated
	// from a chat template.
	KindTranscript
)

// String returns the string representation of the resource kind.
func (k ResourceKind) String() string {
	switch k {
	case KindKnowledgeStore:
		return "knowledgeStore"
	case KindChatTemplate:
		return "chatTemplate"
	case KindTranscript:
		return "transcript"
	default:
		return "unknown"
	}
}

// Row is one user/AI exchange stored in a transcript. ListRows returns rows
// newest-first; consolidation reverses them to chronological order.
type Row struct {
	UserText string    `json:"user_text"`
	AIText   string    `json:"ai_text"`
	Created  time.Time `json:"created"`
}

// GenerateRequest is the normalized input for one generation call against a
// transcript. AIText optionally seeds the assistant turn; Stop carries the
// derived stop-sequence set (at most MaxStopSequences entries).
type GenerateRequest struct {
	TranscriptID string   `json:"transcript_id"`
	UserText     string   `json:"user_text"`
	AIText       string   `json:"ai_text,omitempty"`
	MaxTokens    int      `json:"max_tokens"`
	Stop         []string `json:"stop,omitempty"`
	Stream       bool     `json:"stream,omitempty"`
}

// GenerateResult carries the generated content and the cumulative token
// total the service has observed for the transcript. TotalTokens is
// cumulative per transcript, which is why the usage tracker stores the
// latest value rather than summing.
type GenerateResult struct {
	Content     string `json:"content"`
	TotalTokens int    `json:"total_tokens"`
}

// GenerationService is the abstract contract for the external generation /
// retrieval backend. All creation and duplication calls are idempotent from
// the caller's perspective: ErrAlreadyExists is equivalent to success and
// never an error to orchestration logic. DeleteResource returns ErrNotFound
// when the resource is already gone, which consolidation uses as its
// first-writer-wins claim signal.
type GenerationService interface {
	CreateKnowledgeStore(ctx context.Context, id string) error
	CreateChatTemplate(ctx context.Context, id, systemPrompt string) error
	ConfigureRetrieval(ctx context.Context, templateID, storeID, rerankModel string, topK int) error
	DuplicateTemplateAsTranscript(ctx context.Context, templateID, transcriptID string) error

	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// ListRows returns up to limit rows of a transcript starting at offset,
	// ordered newest-first.
	ListRows(ctx context.Context, transcriptID string, offset, limit int) ([]Row, error)

	UploadDocument(ctx context.Context, storeID, filename, content string) error

	DeleteResource(ctx context.Context, id string, kind ResourceKind) error
}
