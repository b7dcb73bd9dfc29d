package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/genai"
)

// MockService for verifying call ordering on failure paths.
type MockService struct {
	mock.Mock
}

var _ core.GenerationService = (*MockService)(nil)

func (m *MockService) CreateKnowledgeStore(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockService) CreateChatTemplate(ctx context.Context, id, systemPrompt string) error {
	args := m.Called(ctx, id, systemPrompt)
	return args.Error(0)
}

func (m *MockService) ConfigureRetrieval(ctx context.Context, templateID, storeID, rerankModel string, topK int) error {
	args := m.Called(ctx, templateID, storeID, rerankModel, topK)
	return args.Error(0)
}

func (m *MockService) DuplicateTemplateAsTranscript(ctx context.Context, templateID, transcriptID string) error {
	args := m.Called(ctx, templateID, transcriptID)
	return args.Error(0)
}

func (m *MockService) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*core.GenerateResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) ListRows(ctx context.Context, transcriptID string, offset, limit int) ([]core.Row, error) {
	args := m.Called(ctx, transcriptID, offset, limit)
	if rows := args.Get(0); rows != nil {
		return rows.([]core.Row), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) UploadDocument(ctx context.Context, storeID, filename, content string) error {
	args := m.Called(ctx, storeID, filename, content)
	return args.Error(0)
}

func (m *MockService) DeleteResource(ctx context.Context, id string, kind core.ResourceKind) error {
	args := m.Called(ctx, id, kind)
	return args.Error(0)
}

func TestProvisioner_EnsureIsIdempotent(t *testing.T) {
	svc := genai.NewInMemoryService()
	p := New(svc)
	ctx := context.Background()

	require.NoError(t, p.EnsureKnowledgeStore(ctx, "Alice"))
	require.NoError(t, p.EnsureKnowledgeStore(ctx, "Alice"))
	assert.NotNil(t, svc.Documents("Alice"), "exactly one underlying store exists")

	require.NoError(t, p.EnsureChatTemplate(ctx, "Alice", "You are Alice."))
	require.NoError(t, p.EnsureChatTemplate(ctx, "Alice", "You are Alice."))

	require.NoError(t, p.EnsureConversationTranscript(ctx, "Alice", "Alice_to_Bob"))
	require.NoError(t, p.EnsureConversationTranscript(ctx, "Alice", "Alice_to_Bob"))
	assert.True(t, svc.HasTranscript("Alice_to_Bob"))
}

func TestProvisioner_EnsureAgentResourcesOrderAndStop(t *testing.T) {
	svc := new(MockService)
	p := New(svc)
	ctx := context.Background()

	boom := errors.New("service unavailable")
	svc.On("CreateKnowledgeStore", ctx, "Alice").Return(boom)

	err := p.EnsureAgentResources(ctx, "Alice", "You are Alice.")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// Dependent steps never run after the first failure.
	svc.AssertNotCalled(t, "CreateChatTemplate", mock.Anything, mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "ConfigureRetrieval", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisioner_EnsureAgentResourcesFullPipeline(t *testing.T) {
	svc := genai.NewInMemoryService()
	p := New(svc, func(o *Options) { o.TopK = 5 })
	ctx := context.Background()

	require.NoError(t, p.EnsureAgentResources(ctx, "Alice", "You are Alice."))
	// Retrying the whole pipeline succeeds without side effects.
	require.NoError(t, p.EnsureAgentResources(ctx, "Alice", "You are Alice."))
}

func TestProvisioner_DeleteTranscriptClaim(t *testing.T) {
	svc := genai.NewInMemoryService()
	p := New(svc)
	ctx := context.Background()

	require.NoError(t, p.EnsureChatTemplate(ctx, "Alice", ""))
	require.NoError(t, p.EnsureConversationTranscript(ctx, "Alice", "Alice_to_Bob"))

	claimed, err := p.DeleteConversationTranscript(ctx, "Alice_to_Bob")
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second delete observes the resource gone and reports a clean no-op.
	claimed, err = p.DeleteConversationTranscript(ctx, "Alice_to_Bob")
	require.NoError(t, err)
	assert.False(t, claimed)
}
