package recall

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/store"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type failingFacts struct{ err error }

func (f failingFacts) ListAboveImportance(context.Context, string, int) ([]model.MemoryRecord, error) {
	return nil, f.err
}

// blockingFacts waits for the search deadline.
type blockingFacts struct{}

func (blockingFacts) ListAboveImportance(ctx context.Context, _ string, _ int) ([]model.MemoryRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingTranscript struct{}

func (failingTranscript) Recent(context.Context, string, int) ([]model.TranscriptEntry, error) {
	return nil, errors.New("disk on fire")
}

func (failingTranscript) Entries(context.Context, string) ([]model.TranscriptEntry, error) {
	return nil, errors.New("disk on fire")
}

type fixture struct {
	store *store.SQLiteStore
	conv  *model.Conversation
	base  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := newStore(t)
	conv, err := s.CreateConversation(context.Background(), "aria", "u1")
	require.NoError(t, err)
	return &fixture{store: s, conv: conv, base: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fixture) say(t *testing.T, minute int, role model.Role, content string) *model.TranscriptEntry {
	t.Helper()
	e, err := f.store.Append(context.Background(), f.conv.ID, role, content, f.base.Add(time.Duration(minute)*time.Minute))
	require.NoError(t, err)
	return e
}

func (f *fixture) remember(t *testing.T, content string, typ model.MemoryType, importance int) *model.MemoryRecord {
	t.Helper()
	m, err := f.store.Insert(context.Background(), model.MemoryRecord{
		CharacterID: "aria", Content: content, MemoryType: typ, Importance: importance,
		CreatedAt: f.base.Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	return m
}

func assertChronological(t *testing.T, entries []Entry) {
	t.Helper()
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.Before(entries[i-1].Timestamp),
			"entry %d (%s) is older than entry %d (%s)", i, entries[i].Timestamp, i-1, entries[i-1].Timestamp)
	}
}

func TestCompose_EmptyConversation(t *testing.T) {
	f := newFixture(t)
	f.remember(t, "User loves the beach", model.Permanent, 5)
	c := NewComposer(f.store, f.store, NewSearcher(f.store, f.store, 0), Defaults{WindowSize: 10, RelevanceLimit: 5}, nil)

	got, err := c.Compose(context.Background(), ComposeParams{
		ConversationID: f.conv.ID, CharacterID: "aria", Message: "I like the beach",
	})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCompose_DeduplicatesAndSorts(t *testing.T) {
	f := newFixture(t)
	early := f.say(t, 0, model.RoleUser, "My dog Biscuit chewed my shoes")
	f.say(t, 1, model.RoleAssistant, "Oh no, poor shoes!")
	f.say(t, 2, model.RoleUser, "Anyway, what's for dinner")
	f.say(t, 3, model.RoleAssistant, "Maybe pasta?")
	inWindow := f.say(t, 4, model.RoleUser, "Biscuit wants pasta too")
	fact := f.remember(t, "User's dog is named Biscuit", model.Permanent, 5)

	c := NewComposer(f.store, f.store, NewSearcher(f.store, f.store, 0), Defaults{}, nil)
	got, err := c.Compose(context.Background(), ComposeParams{
		ConversationID: f.conv.ID, CharacterID: "aria",
		Message: "How is Biscuit doing?", WindowSize: 2, RelevanceLimit: 5,
	})
	require.NoError(t, err)

	ids := map[string]int{}
	for _, e := range got {
		ids[e.key()]++
	}
	for k, n := range ids {
		assert.Equal(t, 1, n, "duplicate entry %s", k)
	}
	assert.Contains(t, ids, "transcript:"+early.ID, "relevant old turn must be recalled")
	assert.Contains(t, ids, "transcript:"+inWindow.ID)
	assert.Contains(t, ids, "memory:"+fact.ID)
	// window (2) + early match + fact; the window hit on "Biscuit" counts once
	assert.Len(t, got, 4)
	assertChronological(t, got)
	assert.Equal(t, fact.ID, got[0].ID, "fact predates the conversation")
}

func TestCompose_FallsBackWhenSearchFails(t *testing.T) {
	f := newFixture(t)
	f.say(t, 0, model.RoleUser, "hello there")
	f.say(t, 1, model.RoleAssistant, "hi! how was the beach?")

	var buf bytes.Buffer
	logger := log.New(&buf)
	searcher := NewSearcher(f.store, failingFacts{err: errors.New("connection refused")}, 0)
	c := NewComposer(f.store, nil, searcher, Defaults{WindowSize: 10, RelevanceLimit: 5}, logger)

	got, err := c.Compose(context.Background(), ComposeParams{
		ConversationID: f.conv.ID, CharacterID: "aria", Message: "the beach was great",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello there", got[0].Content)
	assert.Contains(t, buf.String(), "relevance search failed")
}

func TestCompose_FallsBackOnSearchTimeout(t *testing.T) {
	f := newFixture(t)
	f.say(t, 0, model.RoleUser, "tell me about the beach")

	searcher := NewSearcher(f.store, blockingFacts{}, 20*time.Millisecond)
	c := NewComposer(f.store, nil, searcher, Defaults{WindowSize: 10, RelevanceLimit: 5}, nil)

	got, err := c.Compose(context.Background(), ComposeParams{
		ConversationID: f.conv.ID, CharacterID: "aria", Message: "beach",
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCompose_RecencyWindowErrorPropagates(t *testing.T) {
	c := NewComposer(failingTranscript{}, nil, nil, Defaults{WindowSize: 5}, nil)
	_, err := c.Compose(context.Background(), ComposeParams{ConversationID: "x", Message: "hi"})
	assert.Error(t, err)
}

func TestSearch_StoreErrorIsStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	s := NewSearcher(f.store, failingFacts{err: errors.New("boom")}, 0)
	_, err := s.Search(context.Background(), SearchParams{
		ConversationID: f.conv.ID, CharacterID: "aria", Query: "beach", Limit: 5,
	})
	assert.True(t, errors.Is(err, model.ErrStoreUnavailable), "got %v", err)
}

func TestSearch_BeachSurvivesClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	permanent := f.remember(t, "User's favourite place is the beach", model.Permanent, 5)
	sibling := f.remember(t, "Went to the beach last weekend", model.ShortTerm, 2)
	f.remember(t, "Hates mountains", model.LongTerm, 4)

	s := NewSearcher(f.store, f.store, 0)
	got, err := s.Search(ctx, SearchParams{CharacterID: "aria", Query: "I like the beach", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, permanent.ID, got[0].ID, "importance ranks first")
	assert.Equal(t, sibling.ID, got[1].ID)

	_, err = f.store.DeleteNonPermanent(ctx, "aria")
	require.NoError(t, err)

	got, err = s.Search(ctx, SearchParams{CharacterID: "aria", Query: "I like the beach", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, permanent.ID, got[0].ID)
}

func TestSearch_FactsAndTranscriptShareNormalisation(t *testing.T) {
	f := newFixture(t)
	street := f.remember(t, "Lives on Hauptstraße", model.Permanent, 5)
	school := f.remember(t, "Loves the ÉCOLE near home", model.Permanent, 5)
	cafe := f.remember(t, "Favourite cafe\u0301 downtown", model.Permanent, 5)
	said := f.say(t, 0, model.RoleUser, "Lives on Hauptstraße")

	s := NewSearcher(f.store, f.store, 0)
	search := func(q string) []string {
		t.Helper()
		got, err := s.Search(context.Background(), SearchParams{
			ConversationID: f.conv.ID, CharacterID: "aria", Query: q, Limit: 10,
		})
		require.NoError(t, err)
		keys := make([]string, 0, len(got))
		for _, e := range got {
			keys = append(keys, e.key())
		}
		return keys
	}

	assert.ElementsMatch(t, []string{"memory:" + street.ID, "transcript:" + said.ID}, search("Hauptstraße"))
	assert.ElementsMatch(t, []string{"memory:" + street.ID, "transcript:" + said.ID}, search("HAUPTSTRASSE"))
	assert.Equal(t, []string{"memory:" + school.ID}, search("école"))
	assert.Equal(t, []string{"memory:" + cafe.ID}, search("café"))
}

func TestSearch_RankingAndLimit(t *testing.T) {
	f := newFixture(t)
	older := f.say(t, 0, model.RoleUser, "coffee in the morning")
	newer := f.say(t, 5, model.RoleUser, "coffee again in the evening")
	f.say(t, 6, model.RoleAssistant, "tea is nice too")
	low := f.remember(t, "Drinks coffee black", model.ShortTerm, 1)
	high := f.remember(t, "Allergic to coffee beans? No, loves coffee", model.Permanent, 5)

	s := NewSearcher(f.store, f.store, 0)
	got, err := s.Search(context.Background(), SearchParams{
		ConversationID: f.conv.ID, CharacterID: "aria", Query: "coffee", Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{high.ID, newer.ID, older.ID, low.ID},
		[]string{got[0].ID, got[1].ID, got[2].ID, got[3].ID})

	limited, err := s.Search(context.Background(), SearchParams{
		ConversationID: f.conv.ID, CharacterID: "aria", Query: "coffee", Limit: 2,
	})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSearch_HiddenAndStopWordsExcluded(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Insert(context.Background(), model.MemoryRecord{
		CharacterID: "aria", Content: "secret beach plan", MemoryType: model.LongTerm, Importance: 5, IsHidden: true,
	})
	require.NoError(t, err)
	f.say(t, 0, model.RoleUser, "the and are")

	s := NewSearcher(f.store, f.store, 0)
	got, err := s.Search(context.Background(), SearchParams{
		ConversationID: f.conv.ID, CharacterID: "aria", Query: "beach", Limit: 5,
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Search(context.Background(), SearchParams{
		ConversationID: f.conv.ID, CharacterID: "aria", Query: "the and are", Limit: 5,
	})
	require.NoError(t, err)
	assert.Empty(t, got, "stop-words never match")
}

func TestSeed(t *testing.T) {
	f := newFixture(t)
	f.remember(t, "Name is Sam", model.Permanent, 5)
	f.remember(t, "Works nights", model.LongTerm, 4)
	f.remember(t, "Had toast", model.ShortTerm, 1)

	c := NewComposer(f.store, f.store, nil, Defaults{}, nil)
	got := c.Seed(context.Background(), "aria", 4)
	assert.Len(t, got, 2)
	assertChronological(t, got)

	degraded := NewComposer(f.store, failingFacts{err: errors.New("down")}, nil, Defaults{}, nil)
	assert.Empty(t, degraded.Seed(context.Background(), "aria", 4))
}
