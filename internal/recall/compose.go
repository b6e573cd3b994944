package recall

import (
	"context"
	"io"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/rcliao/companion-state/internal/model"
)

// ComposeParams holds parameters for context composition.
type ComposeParams struct {
	ConversationID string
	CharacterID    string
	Message        string
	WindowSize     int // <= 0 uses the composer default
	RelevanceLimit int // <= 0 uses the composer default
}

// Defaults are the configured window and relevance sizes.
type Defaults struct {
	WindowSize     int
	RelevanceLimit int
}

// Composer merges the recency window with relevance matches.
type Composer struct {
	transcript TranscriptSource
	facts      FactSource
	searcher   *Searcher
	defaults   Defaults
	logger     *log.Logger
}

// NewComposer builds a Composer. A nil logger discards output.
func NewComposer(transcript TranscriptSource, facts FactSource, searcher *Searcher, defaults Defaults, logger *log.Logger) *Composer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Composer{
		transcript: transcript,
		facts:      facts,
		searcher:   searcher,
		defaults:   defaults,
		logger:     logger,
	}
}

// Compose returns the prompt context for the current message: the last
// WindowSize transcript entries united with up to RelevanceLimit relevance
// matches, deduplicated and sorted by timestamp ascending.
//
// A failing relevance search degrades to the recency window alone.
func (c *Composer) Compose(ctx context.Context, p ComposeParams) ([]Entry, error) {
	window := lo.Ternary(p.WindowSize > 0, p.WindowSize, c.defaults.WindowSize)
	limit := lo.Ternary(p.RelevanceLimit > 0, p.RelevanceLimit, c.defaults.RelevanceLimit)

	recent, err := c.transcript.Recent(ctx, p.ConversationID, window)
	if err != nil {
		return nil, errors.Wrap(err, "recency window")
	}
	if len(recent) == 0 {
		return []Entry{}, nil
	}

	entries := lo.Map(recent, func(e model.TranscriptEntry, _ int) Entry { return fromTranscript(e) })

	if c.searcher != nil && limit > 0 {
		matches, err := c.searcher.Search(ctx, SearchParams{
			ConversationID: p.ConversationID,
			CharacterID:    p.CharacterID,
			Query:          p.Message,
			Limit:          limit,
		})
		if err != nil {
			c.logger.Warn("relevance search failed, using recency window only",
				"conversation", p.ConversationID, "error", err)
		} else {
			entries = append(entries, matches...)
		}
	}

	entries = lo.UniqBy(entries, Entry.key)
	sortChronological(entries)
	return entries, nil
}

// Seed returns the character's non-hidden facts with importance >= min,
// oldest first, for the opening turn of a new conversation. Store failures
// are logged and yield no seed context.
func (c *Composer) Seed(ctx context.Context, characterID string, min int) []Entry {
	if c.facts == nil {
		return []Entry{}
	}
	recs, err := c.facts.ListAboveImportance(ctx, characterID, min)
	if err != nil {
		c.logger.Warn("seed context unavailable", "character", characterID, "error", err)
		return []Entry{}
	}
	entries := lo.Map(recs, func(r model.MemoryRecord, _ int) Entry { return fromMemory(r) })
	sortChronological(entries)
	return entries
}

func sortChronological(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.key() < b.key()
	})
}
