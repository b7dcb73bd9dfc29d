package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/EmbeddedLLM/ai-town/core"
	"github.com/EmbeddedLLM/ai-town/logging"
	"github.com/EmbeddedLLM/ai-town/provision"
)

const listPageSize = 100

// Consolidator turns an ended conversation's transcripts into durable memory
// documents.
type Consolidator struct {
	world core.WorldStore
	svc   core.GenerationService
	prov  *provision.Provisioner
	log   logging.Logger
}

// NewConsolidator creates a Consolidator.
func NewConsolidator(world core.WorldStore, svc core.GenerationService, prov *provision.Provisioner, log logging.Logger) *Consolidator {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Consolidator{world: world, svc: svc, prov: prov, log: log}
}

// participant bundles one side's world records and transcript rows.
type participant struct {
	player       *core.Player
	agent        *core.Agent // nil for human participants
	transcriptID string
	rows         []core.Row // oldest-first
}

// MaybeConsolidate consolidates the conversation if this caller wins the
// claim. It returns true when this invocation performed the consolidation
// and false when the other participant already had, which is success, not
// an error. Both participants' transcripts are handled in the single winning
// call: one document per participant is uploaded, both transcripts are
// deleted, and both usage counters reset to zero.
func (c *Consolidator) MaybeConsolidate(ctx context.Context, conversationID string) (bool, error) {
	start := time.Now()
	conv, err := c.world.GetConversation(conversationID)
	if err != nil {
		return false, fmt.Errorf("consolidate %q: %w", conversationID, err)
	}

	sides, err := c.loadParticipants(ctx, conv)
	if err != nil {
		return false, err
	}

	// The delete of the claim transcript is the claim. The target is fixed
	// by the participants alone, never by which transcripts currently exist,
	// so concurrent callers always race on the same resource and exactly one
	// wins; the loser discards whatever it read above.
	claimTarget := claimTranscript(sides)
	if claimTarget == "" {
		c.log.Debug("no agent participants to consolidate", "conversation", conv.Key)
		return false, nil
	}
	claimed, err := c.prov.DeleteConversationTranscript(ctx, claimTarget)
	if err != nil {
		return false, err
	}
	if !claimed {
		c.log.Debug("lost consolidation claim", "conversation", conv.Key)
		return false, nil
	}
	for _, side := range sides {
		if side.transcriptID == claimTarget {
			continue
		}
		if _, err := c.prov.DeleteConversationTranscript(ctx, side.transcriptID); err != nil {
			// The consolidation is already committed; the transcript stays
			// orphaned until an operator removes it.
			c.log.Error("transcript cleanup failed",
				"conversation", conv.Key, "transcript", side.transcriptID, "error", err)
		}
	}

	docs := 0
	for i, side := range sides {
		other := sides[1-i]
		if side.agent == nil {
			continue
		}
		if len(side.rows) > 0 {
			doc := buildDocument(side.rows, side.player.Name, other.player, time.Now().UTC())
			filename := fmt.Sprintf("conversation-%s-%d.txt", conv.Key, conv.Created.Unix())
			if err := c.svc.UploadDocument(ctx, side.agent.KnowledgeStoreID, filename, doc); err != nil {
				c.log.Error("memory upload failed",
					"agent_id", side.agent.ID, "conversation", conv.Key, "error", err)
				continue
			}
			docs++
		}
		side.agent.SetUsage(conv.Key, 0)
		if side.agent.ToRemember == conv.ID {
			side.agent.ToRemember = ""
		}
		if err := c.world.PutAgent(side.agent); err != nil {
			return true, fmt.Errorf("persist agent %q after consolidation: %w", side.agent.ID, err)
		}
	}
	c.log.Info("conversation consolidated",
		"conversation", conv.Key, "documents", docs, "duration", time.Since(start))
	return true, nil
}

// loadParticipants resolves both sides' players, agents and transcript rows.
// A missing transcript yields empty rows; a missing agent marks a human
// participant.
func (c *Consolidator) loadParticipants(ctx context.Context, conv *core.Conversation) ([2]*participant, error) {
	var sides [2]*participant
	for i, playerID := range conv.Participants {
		player, err := c.world.GetPlayer(playerID)
		if err != nil {
			return sides, fmt.Errorf("consolidate %q: player %q: %w", conv.Key, playerID, err)
		}
		sides[i] = &participant{player: player}
	}
	for i := range sides {
		agent, err := c.world.AgentForPlayer(sides[i].player.ID)
		switch {
		case err == nil:
			sides[i].agent = agent
		case errors.Is(err, core.ErrNotFound):
			// Human participant; no memory document for them.
		default:
			return sides, fmt.Errorf("consolidate %q: %w", conv.Key, err)
		}
	}
	for i := range sides {
		speaker := sides[i].player.Name
		listener := sides[1-i].player.Name
		sides[i].transcriptID = core.TranscriptID(speaker, listener)
		rows, err := c.listAllRows(ctx, sides[i].transcriptID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			// Already deleted or never provisioned.
		case err != nil:
			return sides, fmt.Errorf("consolidate %q: %w", sides[i].transcriptID, err)
		default:
			sides[i].rows = rows
		}
	}
	return sides, nil
}

// claimTranscript picks the transcript whose deletion serves as the
// consolidation claim. The target is the speaking direction of the
// lexicographically first agent participant and depends only on the
// conversation's membership, so both racers delete the same resource.
// Empty when neither participant is an agent.
func claimTranscript(sides [2]*participant) string {
	var claim *participant
	for _, side := range sides {
		if side.agent == nil {
			continue
		}
		if claim == nil || side.player.Name < claim.player.Name {
			claim = side
		}
	}
	if claim == nil {
		return ""
	}
	return claim.transcriptID
}

// listAllRows pages through the full history of a transcript and returns it
// oldest-first.
func (c *Consolidator) listAllRows(ctx context.Context, transcriptID string) ([]core.Row, error) {
	var newestFirst []core.Row
	for offset := 0; ; offset += listPageSize {
		page, err := c.svc.ListRows(ctx, transcriptID, offset, listPageSize)
		if err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, page...)
		if len(page) < listPageSize {
			break
		}
	}
	rows := make([]core.Row, len(newestFirst))
	for i, row := range newestFirst {
		rows[len(rows)-1-i] = row
	}
	return rows, nil
}

// buildDocument renders one participant's memory of the conversation. User
// rows carrying the counterpart's "<name> to <name>:" marker are the
// counterpart's actual utterances and are kept verbatim from the marker
// onward; marker-less rows were prior consolidated summaries and are
// replaced with a synthetic marker line. The paired agent turn is always
// appended, prefixed with the speaker's name. The counterpart's identity
// line is prepended once when available.
func buildDocument(rows []core.Row, speaker string, counterpart *core.Player, endedAt time.Time) string {
	var b strings.Builder
	if counterpart.Identity != "" {
		b.WriteString(counterpart.Identity)
		b.WriteString("\n")
	}
	marker := fmt.Sprintf("%s to %s:", counterpart.Name, speaker)
	for _, row := range rows {
		if idx := strings.Index(row.UserText, marker); idx >= 0 {
			b.WriteString(row.UserText[idx:])
		} else {
			b.WriteString(fmt.Sprintf("summary of conversation that ended at %s", endedAt.Format(time.RFC3339)))
		}
		b.WriteString("\n")
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(row.AIText)
		b.WriteString("\n")
	}
	return b.String()
}
