package memory

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/genai"
	"github.com/EmbeddedLLM/ai-town/internal/testutil"
	"github.com/EmbeddedLLM/ai-town/provision"
	"github.com/EmbeddedLLM/ai-town/world"
)

type consolidationFixture struct {
	world *world.InMemoryStore
	svc   *genai.InMemoryService
	cons  *Consolidator
	conv  *core.Conversation
}

// newFixture builds a two-agent world with both directional transcripts
// populated with one exchange each.
func newFixture(t *testing.T) *consolidationFixture {
	t.Helper()
	mock := genai.NewInMemoryService()
	return newFixtureWith(t, mock, mock)
}

// newFixtureWith seeds the same world against an arbitrary service; mock is
// the in-memory backend behind it, used for canned responses and assertions.
func newFixtureWith(t *testing.T, svc core.GenerationService, mock *genai.InMemoryService) *consolidationFixture {
	t.Helper()
	ctx := context.Background()
	ws := world.NewInMemoryStore()
	prov := provision.New(svc)

	alicePlayer := &core.Player{ID: "p-alice", Name: "Alice", Identity: "Alice tends the town garden."}
	bobPlayer := &core.Player{ID: "p-bob", Name: "Bob", Identity: "Bob is a retired sailor."}
	require.NoError(t, ws.PutPlayer(alicePlayer))
	require.NoError(t, ws.PutPlayer(bobPlayer))

	alice := testutil.NewAgentBuilder("a-alice", "p-alice").Store("Alice").Template("Alice").Build()
	bob := testutil.NewAgentBuilder("a-bob", "p-bob").Store("Bob").Template("Bob").Build()

	require.NoError(t, prov.EnsureAgentResources(ctx, "Alice", "You are Alice."))
	require.NoError(t, prov.EnsureAgentResources(ctx, "Bob", "You are Bob."))
	require.NoError(t, prov.EnsureConversationTranscript(ctx, "Alice", "Alice_to_Bob"))
	require.NoError(t, prov.EnsureConversationTranscript(ctx, "Bob", "Bob_to_Alice"))

	conv := testutil.NewConversationBuilder("conv-1", alicePlayer, bobPlayer).State(core.StateEnded).Build()
	require.NoError(t, ws.PutConversation(conv))

	mock.AddResponse("Bob to Alice: How is the garden?", "The roses are doing well, thank you Bob.")
	_, err := svc.Generate(ctx, core.GenerateRequest{
		TranscriptID: "Alice_to_Bob",
		UserText:     "Bob to Alice: How is the garden?",
	})
	require.NoError(t, err)

	mock.AddResponse("Alice to Bob: Any news from the harbor?", "The fishing boats came in early today.")
	_, err = svc.Generate(ctx, core.GenerateRequest{
		TranscriptID: "Bob_to_Alice",
		UserText:     "Alice to Bob: Any news from the harbor?",
	})
	require.NoError(t, err)

	alice.SetUsage(conv.Key, 1500)
	bob.SetUsage(conv.Key, 1200)
	require.NoError(t, ws.PutAgent(alice))
	require.NoError(t, ws.PutAgent(bob))

	return &consolidationFixture{
		world: ws,
		svc:   mock,
		cons:  NewConsolidator(ws, svc, prov, nil),
		conv:  conv,
	}
}

func TestConsolidator_ExtractsAndResets(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	winner, err := fx.cons.MaybeConsolidate(ctx, "conv-1")
	require.NoError(t, err)
	assert.True(t, winner)

	aliceDocs := fx.svc.Documents("Alice")
	require.Len(t, aliceDocs, 1)
	var doc string
	for _, d := range aliceDocs {
		doc = d
	}
	// Counterpart identity prepended once.
	assert.True(t, strings.HasPrefix(doc, "Bob is a retired sailor.\n"), doc)
	// The counterpart utterance is kept verbatim from its marker onward.
	assert.Contains(t, doc, "Bob to Alice: How is the garden?")
	// The agent turn is prefixed with the speaker's name.
	assert.Contains(t, doc, "Alice: The roses are doing well, thank you Bob.")

	bobDocs := fx.svc.Documents("Bob")
	require.Len(t, bobDocs, 1)

	// Transcripts deleted, counters reset.
	assert.False(t, fx.svc.HasTranscript("Alice_to_Bob"))
	assert.False(t, fx.svc.HasTranscript("Bob_to_Alice"))
	alice, err := fx.world.GetAgent("a-alice")
	require.NoError(t, err)
	assert.Equal(t, 0, alice.UsageFor(fx.conv.Key).TokenCount)
	bob, err := fx.world.GetAgent("a-bob")
	require.NoError(t, err)
	assert.Equal(t, 0, bob.UsageFor(fx.conv.Key).TokenCount)
}

func TestConsolidator_SecondAttemptIsNoOp(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	winner, err := fx.cons.MaybeConsolidate(ctx, "conv-1")
	require.NoError(t, err)
	require.True(t, winner)

	winner, err = fx.cons.MaybeConsolidate(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, winner)

	// Still exactly one document per participant.
	assert.Len(t, fx.svc.Documents("Alice"), 1)
	assert.Len(t, fx.svc.Documents("Bob"), 1)
}

func TestConsolidator_ConcurrentExactlyOnce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Both participants race consolidation of the same ended conversation.
	var wg sync.WaitGroup
	results := make([]bool, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fx.cons.MaybeConsolidate(ctx, "conv-1")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, results[0], results[1], "exactly one side wins the claim")

	assert.Len(t, fx.svc.Documents("Alice"), 1)
	assert.Len(t, fx.svc.Documents("Bob"), 1)
	assert.False(t, fx.svc.HasTranscript("Alice_to_Bob"))
	assert.False(t, fx.svc.HasTranscript("Bob_to_Alice"))
}

// deleteHookService lets a test interpose on resource deletions.
type deleteHookService struct {
	*genai.InMemoryService
	hook func(id string)
}

func (s *deleteHookService) DeleteResource(ctx context.Context, id string, kind core.ResourceKind) error {
	if s.hook != nil {
		s.hook(id)
	}
	return s.InMemoryService.DeleteResource(ctx, id, kind)
}

// A caller parked between its claim delete and its cleanup delete must not
// let the other participant win the claim as well: the second caller sees
// only the surviving transcript, yet still targets the already-claimed one.
func TestConsolidator_ClaimRaceSingleWinner(t *testing.T) {
	mock := genai.NewInMemoryService()
	svc := &deleteHookService{InMemoryService: mock}
	fx := newFixtureWith(t, svc, mock)
	ctx := context.Background()

	claimed := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	svc.hook = func(id string) {
		// The cleanup delete of Bob_to_Alice only follows a won claim.
		if id == "Bob_to_Alice" {
			once.Do(func() {
				close(claimed)
				<-release
			})
		}
	}

	type outcome struct {
		winner bool
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		winner, err := fx.cons.MaybeConsolidate(ctx, "conv-1")
		done <- outcome{winner, err}
	}()

	<-claimed
	second, err := fx.cons.MaybeConsolidate(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, second, "claim already taken")

	close(release)
	first := <-done
	require.NoError(t, first.err)
	assert.True(t, first.winner)

	assert.Len(t, fx.svc.Documents("Alice"), 1)
	assert.Len(t, fx.svc.Documents("Bob"), 1)
	assert.False(t, fx.svc.HasTranscript("Alice_to_Bob"))
	assert.False(t, fx.svc.HasTranscript("Bob_to_Alice"))
}

func TestConsolidator_MarkerlessRowBecomesSummary(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// A row without the counterpart marker is a prior consolidated summary.
	fx.svc.AddResponse("Greet Bob and start the conversation.", "Hello Bob, lovely day!")
	_, err := fx.svc.Generate(ctx, core.GenerateRequest{
		TranscriptID: "Alice_to_Bob",
		UserText:     "Greet Bob and start the conversation.",
	})
	require.NoError(t, err)

	winner, err := fx.cons.MaybeConsolidate(ctx, "conv-1")
	require.NoError(t, err)
	require.True(t, winner)

	for _, doc := range fx.svc.Documents("Alice") {
		assert.Contains(t, doc, "summary of conversation that ended at")
		assert.NotContains(t, doc, "Greet Bob and start the conversation.")
	}
}

func TestConsolidator_HumanCounterpartSkipped(t *testing.T) {
	ctx := context.Background()
	ws := world.NewInMemoryStore()
	svc := genai.NewInMemoryService()
	prov := provision.New(svc)

	require.NoError(t, ws.PutPlayer(&core.Player{ID: "p-alice", Name: "Alice"}))
	require.NoError(t, ws.PutPlayer(&core.Player{ID: "p-human", Name: "Visitor", Human: true}))

	alice := core.NewAgent("a-alice", "p-alice")
	alice.KnowledgeStoreID = "Alice"
	alice.ChatTemplateID = "Alice"
	require.NoError(t, prov.EnsureAgentResources(ctx, "Alice", "You are Alice."))
	require.NoError(t, prov.EnsureConversationTranscript(ctx, "Alice", "Alice_to_Visitor"))
	_, err := svc.Generate(ctx, core.GenerateRequest{
		TranscriptID: "Alice_to_Visitor",
		UserText:     "Visitor to Alice: Hello there!",
	})
	require.NoError(t, err)

	conv := core.NewConversation("conv-h", core.ConversationKey("Alice", "Visitor"), "p-alice", "p-human")
	require.NoError(t, conv.Advance(core.StateEnded))
	require.NoError(t, ws.PutConversation(conv))
	alice.SetUsage(conv.Key, 800)
	require.NoError(t, ws.PutAgent(alice))

	cons := NewConsolidator(ws, svc, prov, nil)
	winner, err := cons.MaybeConsolidate(ctx, "conv-h")
	require.NoError(t, err)
	assert.True(t, winner)

	// Only the agent side receives a document; the human has no store.
	assert.Len(t, svc.Documents("Alice"), 1)
	assert.Nil(t, svc.Documents("Visitor"))
	assert.False(t, svc.HasTranscript("Alice_to_Visitor"))
}

func TestBuildDocument_Ordering(t *testing.T) {
	counterpart := &core.Player{Name: "Bob", Identity: "Bob is a retired sailor."}
	rows := []core.Row{
		{UserText: "Bob to Alice: Hello!", AIText: "Hello Bob."},
		{UserText: "Bob to Alice: Goodbye!", AIText: "See you, Bob."},
	}
	doc := buildDocument(rows, "Alice", counterpart, time.Now())
	first := strings.Index(doc, "Hello!")
	second := strings.Index(doc, "Goodbye!")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second, "rows render oldest-first")
}
