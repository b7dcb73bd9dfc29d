package genai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/EmbeddedLLM/ai-town/core"
)

// retrievalConfig records how a chat template pulls memories from a
// knowledge store.
type retrievalConfig struct {
	storeID     string
	rerankModel string
	topK        int
}

type template struct {
	systemPrompt string
	retrieval    *retrievalConfig
}

type transcript struct {
	templateID   string
	systemPrompt string
	rows         []core.Row // chronological; ListRows reverses
	totalTokens  int        // cumulative per transcript
}

type document struct {
	filename string
	content  string
}

type knowledgeStore struct {
	documents []document
}

// PromptContext is the material a Generate implementation assembles its
// provider request from: the transcript's system prompt, the retrieved
// memory snippets, and the chronological exchange history.
type PromptContext struct {
	SystemPrompt string
	Memories     []string
	History      []core.Row
}

// Resources implements every core.GenerationService method except Generate:
// the durable bookkeeping of knowledge stores, chat templates and
// transcripts. Provider adapters embed it and supply their own Generate;
// InMemoryService completes it with deterministic canned replies.
//
// Semantics mirror the external service precisely enough for orchestration:
// creates answer AlreadyExists on repeats, deletes answer NotFound once the
// resource is gone, ListRows is newest-first, and token totals are
// cumulative per transcript.
//
// Concurrency: protected by a single mutex, which also makes DeleteResource
// the atomic claim point consolidation relies on.
type Resources struct {
	mu          sync.Mutex
	stores      map[string]*knowledgeStore
	templates   map[string]*template
	transcripts map[string]*transcript
}

// NewResources creates empty resource bookkeeping.
func NewResources() *Resources {
	return &Resources{
		stores:      make(map[string]*knowledgeStore),
		templates:   make(map[string]*template),
		transcripts: make(map[string]*transcript),
	}
}

// CreateKnowledgeStore implements core.GenerationService.
func (r *Resources) CreateKnowledgeStore(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[id]; ok {
		return fmt.Errorf("knowledge store %q: %w", id, core.ErrAlreadyExists)
	}
	r.stores[id] = &knowledgeStore{}
	return nil
}

// CreateChatTemplate implements core.GenerationService.
func (r *Resources) CreateChatTemplate(_ context.Context, id, systemPrompt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[id]; ok {
		return fmt.Errorf("chat template %q: %w", id, core.ErrAlreadyExists)
	}
	r.templates[id] = &template{systemPrompt: systemPrompt}
	return nil
}

// ConfigureRetrieval implements core.GenerationService. Reconfiguring an
// already wired template overwrites the previous configuration.
func (r *Resources) ConfigureRetrieval(_ context.Context, templateID, storeID, rerankModel string, topK int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl, ok := r.templates[templateID]
	if !ok {
		return fmt.Errorf("chat template %q: %w", templateID, core.ErrNotFound)
	}
	if _, ok := r.stores[storeID]; !ok {
		return fmt.Errorf("knowledge store %q: %w", storeID, core.ErrNotFound)
	}
	tpl.retrieval = &retrievalConfig{storeID: storeID, rerankModel: rerankModel, topK: topK}
	return nil
}

// DuplicateTemplateAsTranscript implements core.GenerationService.
func (r *Resources) DuplicateTemplateAsTranscript(_ context.Context, templateID, transcriptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl, ok := r.templates[templateID]
	if !ok {
		return fmt.Errorf("chat template %q: %w", templateID, core.ErrNotFound)
	}
	if _, ok := r.transcripts[transcriptID]; ok {
		return fmt.Errorf("transcript %q: %w", transcriptID, core.ErrAlreadyExists)
	}
	r.transcripts[transcriptID] = &transcript{templateID: templateID, systemPrompt: tpl.systemPrompt}
	return nil
}

// ListRows implements core.GenerationService, returning rows newest-first.
func (r *Resources) ListRows(_ context.Context, transcriptID string, offset, limit int) ([]core.Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr, ok := r.transcripts[transcriptID]
	if !ok {
		return nil, fmt.Errorf("transcript %q: %w", transcriptID, core.ErrNotFound)
	}
	rows := make([]core.Row, 0, limit)
	for i := len(tr.rows) - 1 - offset; i >= 0 && len(rows) < limit; i-- {
		rows = append(rows, tr.rows[i])
	}
	return rows, nil
}

// UploadDocument implements core.GenerationService. Re-uploading a filename
// replaces its content.
func (r *Resources) UploadDocument(_ context.Context, storeID, filename, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[storeID]
	if !ok {
		return fmt.Errorf("knowledge store %q: %w", storeID, core.ErrNotFound)
	}
	for i := range store.documents {
		if store.documents[i].filename == filename {
			store.documents[i].content = content
			return nil
		}
	}
	store.documents = append(store.documents, document{filename: filename, content: content})
	return nil
}

// DeleteResource implements core.GenerationService. Deleting an absent
// resource returns ErrNotFound; under the mutex this makes delete an atomic
// first-writer-wins claim.
func (r *Resources) DeleteResource(_ context.Context, id string, kind core.ResourceKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case core.KindKnowledgeStore:
		if _, ok := r.stores[id]; !ok {
			return fmt.Errorf("%s %q: %w", kind, id, core.ErrNotFound)
		}
		delete(r.stores, id)
	case core.KindChatTemplate:
		if _, ok := r.templates[id]; !ok {
			return fmt.Errorf("%s %q: %w", kind, id, core.ErrNotFound)
		}
		delete(r.templates, id)
	case core.KindTranscript:
		if _, ok := r.transcripts[id]; !ok {
			return fmt.Errorf("%s %q: %w", kind, id, core.ErrNotFound)
		}
		delete(r.transcripts, id)
	default:
		return fmt.Errorf("resource kind %d: %w", kind, core.ErrNotFound)
	}
	return nil
}

// PromptContext assembles the generation material for a transcript: system
// prompt, retrieved memory snippets (most recent first, capped at the
// template's topK) and the chronological history.
func (r *Resources) PromptContext(transcriptID string) (*PromptContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr, ok := r.transcripts[transcriptID]
	if !ok {
		return nil, fmt.Errorf("transcript %q: %w", transcriptID, core.ErrNotFound)
	}
	pc := &PromptContext{SystemPrompt: tr.systemPrompt}
	pc.History = make([]core.Row, len(tr.rows))
	copy(pc.History, tr.rows)

	if tpl, ok := r.templates[tr.templateID]; ok && tpl.retrieval != nil {
		if store, ok := r.stores[tpl.retrieval.storeID]; ok {
			docs := store.documents
			for i := len(docs) - 1; i >= 0 && len(pc.Memories) < tpl.retrieval.topK; i-- {
				pc.Memories = append(pc.Memories, docs[i].content)
			}
		}
	}
	return pc, nil
}

// AppendExchange records one completed user/AI exchange on the transcript
// and returns the new cumulative token total.
func (r *Resources) AppendExchange(transcriptID, userText, aiText string, tokens int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr, ok := r.transcripts[transcriptID]
	if !ok {
		return 0, fmt.Errorf("transcript %q: %w", transcriptID, core.ErrNotFound)
	}
	tr.rows = append(tr.rows, core.Row{UserText: userText, AIText: aiText, Created: time.Now().UTC()})
	tr.totalTokens += tokens
	return tr.totalTokens, nil
}

// Documents returns a copy of a knowledge store's documents keyed by
// filename, or nil when the store does not exist. Test helper.
func (r *Resources) Documents(storeID string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[storeID]
	if !ok {
		return nil
	}
	docs := make(map[string]string, len(store.documents))
	for _, d := range store.documents {
		docs[d.filename] = d.content
	}
	return docs
}

// HasTranscript reports whether a transcript currently exists. Test helper.
func (r *Resources) HasTranscript(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.transcripts[id]
	return ok
}
