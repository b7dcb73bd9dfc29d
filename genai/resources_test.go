package genai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/ai-town/core"
)

func TestResources_PromptContextCarriesMemoriesAndHistory(t *testing.T) {
	ctx := context.Background()
	r := NewResources()
	require.NoError(t, r.CreateKnowledgeStore(ctx, "Alice"))
	require.NoError(t, r.CreateChatTemplate(ctx, "Alice", "You are Alice."))
	require.NoError(t, r.ConfigureRetrieval(ctx, "Alice", "Alice", "bge-reranker-large", 2))
	require.NoError(t, r.DuplicateTemplateAsTranscript(ctx, "Alice", "Alice_to_Bob"))

	require.NoError(t, r.UploadDocument(ctx, "Alice", "m1.txt", "Bob collects stamps."))
	require.NoError(t, r.UploadDocument(ctx, "Alice", "m2.txt", "Bob dislikes rain."))
	require.NoError(t, r.UploadDocument(ctx, "Alice", "m3.txt", "Bob plays chess."))

	_, err := r.AppendExchange("Alice_to_Bob", "Say hello.", "Alice: Hello Bob!", 5)
	require.NoError(t, err)

	pc, err := r.PromptContext("Alice_to_Bob")
	require.NoError(t, err)
	assert.Equal(t, "You are Alice.", pc.SystemPrompt)
	// Capped at topK, most recent uploads first.
	assert.Equal(t, []string{"Bob plays chess.", "Bob dislikes rain."}, pc.Memories)
	require.Len(t, pc.History, 1)
	assert.Equal(t, "Alice: Hello Bob!", pc.History[0].AIText)
}

func TestResources_PromptContextUnknownTranscript(t *testing.T) {
	r := NewResources()
	_, err := r.PromptContext("nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestResources_AppendExchangeAccumulatesTokens(t *testing.T) {
	ctx := context.Background()
	r := NewResources()
	require.NoError(t, r.CreateChatTemplate(ctx, "Alice", ""))
	require.NoError(t, r.DuplicateTemplateAsTranscript(ctx, "Alice", "t1"))

	total, err := r.AppendExchange("t1", "a", "b", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, total)

	total, err = r.AppendExchange("t1", "c", "d", 5)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
}
