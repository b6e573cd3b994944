// Package recall selects which prior exchanges and facts resurface for a turn.
// Relevance is lexical: keyword overlap, ranked by importance then recency.
package recall

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/rcliao/companion-state/internal/keywords"
	"github.com/rcliao/companion-state/internal/model"
)

// Source tells where a context entry came from.
type Source string

const (
	SourceTranscript Source = "transcript"
	SourceMemory     Source = "memory"
)

// Entry is one item of composed context.
type Entry struct {
	ID         string           `json:"id"`
	Source     Source           `json:"source"`
	Role       model.Role       `json:"role,omitempty"`
	MemoryType model.MemoryType `json:"memory_type,omitempty"`
	Content    string           `json:"content"`
	Importance int              `json:"importance"`
	Timestamp  time.Time        `json:"timestamp"`
}

func (e Entry) key() string { return string(e.Source) + ":" + e.ID }

// TranscriptSource is the read side of the conversation log.
type TranscriptSource interface {
	Recent(ctx context.Context, conversationID string, n int) ([]model.TranscriptEntry, error)
	Entries(ctx context.Context, conversationID string) ([]model.TranscriptEntry, error)
}

// FactSource is the read side of the fact store.
type FactSource interface {
	// ListAboveImportance returns the character's non-hidden records with
	// importance >= min.
	ListAboveImportance(ctx context.Context, characterID string, min int) ([]model.MemoryRecord, error)
}

// SearchParams holds parameters for a relevance search.
type SearchParams struct {
	ConversationID string
	CharacterID    string
	Query          string
	Limit          int
}

// DefaultSearchTimeout bounds the store queries of one search.
const DefaultSearchTimeout = 2 * time.Second

// Searcher ranks transcript entries and memory records against a query.
type Searcher struct {
	transcript TranscriptSource
	facts      FactSource
	timeout    time.Duration
}

// NewSearcher builds a Searcher. facts may be nil to search the transcript only.
// A non-positive timeout uses DefaultSearchTimeout.
func NewSearcher(transcript TranscriptSource, facts FactSource, timeout time.Duration) *Searcher {
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	return &Searcher{transcript: transcript, facts: facts, timeout: timeout}
}

// Search returns up to p.Limit entries that share at least one keyword with
// p.Query. Store failures come back wrapped as model.ErrStoreUnavailable.
func (s *Searcher) Search(ctx context.Context, p SearchParams) ([]Entry, error) {
	kws := keywords.Extract(p.Query)
	if len(kws) == 0 || p.Limit <= 0 {
		return []Entry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var candidates []Entry

	if p.ConversationID != "" {
		entries, err := s.transcript.Entries(ctx, p.ConversationID)
		if err != nil {
			return nil, model.StoreUnavailable(err, "search transcript")
		}
		for _, e := range entries {
			if keywords.Overlaps(kws, e.Content) {
				candidates = append(candidates, fromTranscript(e))
			}
		}
	}

	if s.facts != nil && p.CharacterID != "" {
		// Matching runs here rather than in SQL so facts and transcript
		// entries see the same normalisation.
		recs, err := s.facts.ListAboveImportance(ctx, p.CharacterID, model.MinImportance)
		if err != nil {
			return nil, model.StoreUnavailable(err, "search facts")
		}
		for _, r := range recs {
			if !r.IsHidden && keywords.Overlaps(kws, r.Content) {
				candidates = append(candidates, fromMemory(r))
			}
		}
	}

	rank(candidates)
	if len(candidates) > p.Limit {
		candidates = candidates[:p.Limit]
	}
	return lo.Ternary(candidates == nil, []Entry{}, candidates), nil
}

// rank orders by importance desc, then timestamp desc, then id for stability.
func rank(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.key() > b.key()
	})
}

func fromTranscript(e model.TranscriptEntry) Entry {
	return Entry{
		ID:         e.ID,
		Source:     SourceTranscript,
		Role:       e.Role,
		Content:    e.Content,
		Importance: model.NeutralImportance,
		Timestamp:  e.Timestamp,
	}
}

func fromMemory(r model.MemoryRecord) Entry {
	return Entry{
		ID:         r.ID,
		Source:     SourceMemory,
		MemoryType: r.MemoryType,
		Content:    r.Content,
		Importance: r.Importance,
		Timestamp:  r.CreatedAt,
	}
}
