package turn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/logging"
)

// Kind distinguishes the three turn shapes.
type Kind int

const (
	// KindStart opens a conversation with a greeting.
	KindStart Kind = iota
	// KindContinue replies to the counterpart's most recent message.
	KindContinue
	// KindLeave produces a valedictory message before ending.
	KindLeave
)

// Message is one utterance exchanged between two participants, carried as
// turn context in its wire form "<speaker> to <listener>: <text>".
type Message struct {
	Speaker  string
	Listener string
	Text     string
}

// Format renders the message in its wire form.
func (m Message) Format() string {
	return fmt.Sprintf("%s to %s: %s", m.Speaker, m.Listener, m.Text)
}

// Prompt carries everything needed to build one turn's instruction text. The
// acting agent's own identity is never included; it is already baked into
// its persistent chat template.
type Prompt struct {
	Actor               string
	Counterpart         string
	CounterpartIdentity string
	Created             time.Time
	Now                 time.Time
	LastMessage         *Message // nil for a start turn
}

// StopSequences derives the stop set preventing the model from speaking for
// the counterpart: the "<counterpart> to <actor>:" marker plus its
// case-folded variant, capped at the service limit.
func StopSequences(counterpart, actor string) []string {
	marker := fmt.Sprintf("%s to %s:", counterpart, actor)
	stops := []string{marker}
	if folded := strings.ToLower(marker); folded != marker {
		stops = append(stops, folded)
	}
	if len(stops) > core.MaxStopSequences {
		stops = stops[:core.MaxStopSequences]
	}
	return stops
}

// Options configure the orchestrator's generation parameters.
type Options struct {
	// MaxTokens is the token ceiling per turn.
	MaxTokens int
	// Stream requests streaming generation from the service.
	Stream bool
	// Logger receives dispatch telemetry.
	Logger logging.Logger
}

// Orchestrator builds and dispatches turn requests against the generation
// service.
type Orchestrator struct {
	svc  core.GenerationService
	opts Options
}

// New creates an Orchestrator. Unset options fall back to defaults.
func New(svc core.GenerationService, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxTokens: 300,
		Stream:    true,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Orchestrator{svc: svc, opts: opts}
}

// BuildRequest assembles the generation request for one turn without
// dispatching it.
func (o *Orchestrator) BuildRequest(kind Kind, transcriptID string, p Prompt) core.GenerateRequest {
	return core.GenerateRequest{
		TranscriptID: transcriptID,
		UserText:     strings.Join(instructionLines(kind, p), "\n"),
		MaxTokens:    o.opts.MaxTokens,
		Stop:         StopSequences(p.Counterpart, p.Actor),
		Stream:       o.opts.Stream,
	}
}

// Dispatch builds the request and sends it to the generation service,
// returning the generated content and cumulative token total. The caller
// applies any state effects after fencing.
func (o *Orchestrator) Dispatch(ctx context.Context, kind Kind, transcriptID string, p Prompt) (*core.GenerateResult, error) {
	req := o.BuildRequest(kind, transcriptID, p)
	start := time.Now()
	res, err := o.svc.Generate(ctx, req)
	if err != nil {
		o.opts.Logger.Error("turn generation failed",
			"transcript_id", transcriptID, "duration", time.Since(start), "error", err)
		return nil, fmt.Errorf("dispatch turn for %q: %w", transcriptID, err)
	}
	o.opts.Logger.Debug("turn generated",
		"transcript_id", transcriptID, "tokens", res.TotalTokens, "duration", time.Since(start))
	return res, nil
}

// instructionLines produces the ordered instruction text for a turn.
func instructionLines(kind Kind, p Prompt) []string {
	lines := []string{
		fmt.Sprintf("You are talking to %s. %s", p.Counterpart, p.CounterpartIdentity),
		ageLine(p.Created, p.Now),
	}
	if p.LastMessage != nil {
		lines = append(lines, p.LastMessage.Format())
	}
	switch kind {
	case KindStart:
		lines = append(lines, fmt.Sprintf("Greet %s and start the conversation.", p.Counterpart))
	case KindContinue:
		lines = append(lines, fmt.Sprintf("Reply to %s. Do not speak for them.", p.Counterpart))
	case KindLeave:
		lines = append(lines, fmt.Sprintf("Politely let %s know you have to go, then say goodbye.", p.Counterpart))
	}
	return lines
}

// ageLine frames how long the conversation has been going.
func ageLine(created, now time.Time) string {
	elapsed := now.Sub(created)
	if elapsed < time.Minute {
		return "The conversation started just now."
	}
	return fmt.Sprintf("You have been talking for about %d minutes.", int(elapsed.Minutes()))
}
