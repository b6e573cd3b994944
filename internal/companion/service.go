// Package companion ties the store, recall, evolution and conflict packages
// into per-turn operations on one character and user relationship.
package companion

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/rcliao/companion-state/internal/config"
	"github.com/rcliao/companion-state/internal/conflict"
	"github.com/rcliao/companion-state/internal/evolution"
	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/personality"
	"github.com/rcliao/companion-state/internal/recall"
	"github.com/rcliao/companion-state/internal/store"
)

// Service serializes mutations per relationship. Different pairings proceed
// concurrently.
type Service struct {
	store       store.Store
	composer    *recall.Composer
	searcher    *recall.Searcher
	engine      *evolution.Engine
	resolver    *conflict.Resolver
	personality *personality.Personality
	seedMin     int
	logger      *log.Logger
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*pairLock
}

// pairLock is dropped from Service.locks once no caller holds or waits on it.
type pairLock struct {
	sync.Mutex
	refs int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option { return func(s *Service) { s.logger = l } }

// WithPersonality sets the traits new relationships start from.
func WithPersonality(p *personality.Personality) Option {
	return func(s *Service) { s.personality = p }
}

// WithEngine replaces the evolution engine, e.g. to plug in tone analysis.
func WithEngine(e *evolution.Engine) Option { return func(s *Service) { s.engine = e } }

// WithClock sets the clock used for transcript timestamps and history records.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService wires a Service over st using the sizes and timeouts in cfg.
func NewService(st store.Store, cfg *config.Config, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, model.Configurationf("companion: store is required")
	}
	if cfg == nil {
		return nil, model.Configurationf("companion: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		store:   st,
		seedMin: cfg.SeedMinImportance,
		logger:  log.New(io.Discard),
		now:     time.Now,
		locks:   make(map[string]*pairLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.personality == nil {
		s.personality = personality.Default()
	}
	if err := s.personality.Validate(); err != nil {
		return nil, err
	}
	if s.engine == nil {
		s.engine = evolution.NewEngine(evolution.WithClock(s.now))
	}
	s.resolver = conflict.NewResolver(s.now)
	s.searcher = recall.NewSearcher(st, st, cfg.SearchTimeout)
	s.composer = recall.NewComposer(st, st, s.searcher, recall.Defaults{
		WindowSize:     cfg.WindowSize,
		RelevanceLimit: cfg.RelevanceLimit,
	}, s.logger)
	return s, nil
}

func (s *Service) lock(characterID, userID string) func() {
	key := characterID + "\x00" + userID
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &pairLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *Service) heldLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// loadOrCreate returns the persisted relationship or a fresh, unsaved one
// built from the service personality.
func (s *Service) loadOrCreate(ctx context.Context, characterID, userID string) (*model.Relationship, error) {
	rel, err := s.store.LoadRelationship(ctx, characterID, userID)
	if errors.Is(err, model.ErrNotFound) {
		return s.personality.NewRelationship(characterID, userID), nil
	}
	if err != nil {
		return nil, model.StoreUnavailable(err, "load relationship")
	}
	return rel, nil
}

// StartConversation opens a conversation and makes sure the relationship exists.
func (s *Service) StartConversation(ctx context.Context, characterID, userID string) (*model.Conversation, error) {
	if strings.TrimSpace(characterID) == "" || strings.TrimSpace(userID) == "" {
		return nil, model.Validationf("character and user ids are required")
	}
	defer s.lock(characterID, userID)()

	rel, err := s.loadOrCreate(ctx, characterID, userID)
	if err != nil {
		return nil, err
	}
	if rel.UpdatedAt.IsZero() {
		if err := s.store.SaveRelationship(ctx, rel); err != nil {
			return nil, err
		}
	}

	conv, err := s.store.CreateConversation(ctx, characterID, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("conversation started", "conversation", conv.ID, "character", characterID, "user", userID)
	return conv, nil
}

// ComposeContext returns the prompt context for message in the conversation.
func (s *Service) ComposeContext(ctx context.Context, conversationID, message string) ([]recall.Entry, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.composer.Compose(ctx, recall.ComposeParams{
		ConversationID: conv.ID,
		CharacterID:    conv.CharacterID,
		Message:        message,
	})
}

// Search runs a relevance search over a conversation and its character's facts.
// An empty conversationID searches the facts only.
func (s *Service) Search(ctx context.Context, characterID, conversationID, query string, limit int) ([]recall.Entry, error) {
	return s.searcher.Search(ctx, recall.SearchParams{
		ConversationID: conversationID,
		CharacterID:    characterID,
		Query:          query,
		Limit:          limit,
	})
}

// SeedContext returns the character's important facts for a new conversation.
func (s *Service) SeedContext(ctx context.Context, characterID string) []recall.Entry {
	return s.composer.Seed(ctx, characterID, s.seedMin)
}

// Fact is a memory to promote into the fact store alongside a turn.
type Fact struct {
	Content    string
	MemoryType model.MemoryType
	Importance int
	Metadata   map[string]any
}

// Turn is one completed exchange.
type Turn struct {
	ConversationID string
	UserMessage    string
	Response       string
	Remember       []Fact
}

// TurnResult reports what a recorded turn changed.
type TurnResult struct {
	UserEntry      *model.TranscriptEntry   `json:"user_entry"`
	AssistantEntry *model.TranscriptEntry   `json:"assistant_entry"`
	Interaction    *model.InteractionRecord `json:"interaction"`
	Facts          []model.MemoryRecord     `json:"facts,omitempty"`
	TrustLevel     float64                  `json:"trust_level"`
	Traits         model.TraitSet           `json:"traits"`
}

// RecordTurn appends both sides of the exchange to the transcript, stores
// any promoted facts, evolves the relationship and persists it. Evolution runs
// first so a misconfigured personality writes nothing.
func (s *Service) RecordTurn(ctx context.Context, t Turn) (*TurnResult, error) {
	if strings.TrimSpace(t.UserMessage) == "" || strings.TrimSpace(t.Response) == "" {
		return nil, model.Validationf("turn needs both a user message and a response")
	}
	conv, err := s.store.GetConversation(ctx, t.ConversationID)
	if err != nil {
		return nil, err
	}
	facts := make([]model.MemoryRecord, 0, len(t.Remember))
	for _, f := range t.Remember {
		rec := model.MemoryRecord{
			CharacterID: conv.CharacterID,
			Content:     f.Content,
			MemoryType:  f.MemoryType,
			Importance:  f.Importance,
			Metadata:    f.Metadata,
		}
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		facts = append(facts, rec)
	}

	defer s.lock(conv.CharacterID, conv.UserID)()

	rel, err := s.loadOrCreate(ctx, conv.CharacterID, conv.UserID)
	if err != nil {
		return nil, err
	}
	interaction, err := s.engine.ProcessInteraction(rel, t.UserMessage, t.Response)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	user, err := s.store.Append(ctx, conv.ID, model.RoleUser, t.UserMessage, at)
	if err != nil {
		return nil, err
	}
	assistant, err := s.store.Append(ctx, conv.ID, model.RoleAssistant, t.Response, at.Add(time.Nanosecond))
	if err != nil {
		return nil, err
	}

	stored := make([]model.MemoryRecord, 0, len(facts))
	for _, rec := range facts {
		m, err := s.store.Insert(ctx, rec)
		if err != nil {
			return nil, err
		}
		stored = append(stored, *m)
	}

	if err := s.store.SaveRelationship(ctx, rel); err != nil {
		return nil, err
	}

	s.logger.Debug("turn recorded",
		"conversation", conv.ID, "trust", rel.Trust.Level(), "facts", len(stored))
	return &TurnResult{
		UserEntry:      user,
		AssistantEntry: assistant,
		Interaction:    interaction,
		Facts:          stored,
		TrustLevel:     rel.Trust.Level(),
		Traits:         rel.Traits.Clone(),
	}, nil
}

// ResolveConflict applies a conflict to the relationship and persists it.
func (s *Service) ResolveConflict(ctx context.Context, characterID, userID, description string, category conflict.Category, severity float64) (*conflict.Resolution, error) {
	defer s.lock(characterID, userID)()

	rel, err := s.loadOrCreate(ctx, characterID, userID)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(rel, description, category, severity)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveRelationship(ctx, rel); err != nil {
		return nil, err
	}
	s.logger.Info("conflict resolved",
		"character", characterID, "user", userID, "category", category, "delta", res.TrustDelta)
	return &res, nil
}

// ClearResult counts what ClearConversation removed.
type ClearResult struct {
	TranscriptEntries int64 `json:"transcript_entries"`
	Memories          int64 `json:"memories"`
}

// ClearConversation drops the transcript and the character's non-permanent
// memories. Permanent memories and relationship state survive.
func (s *Service) ClearConversation(ctx context.Context, conversationID string) (*ClearResult, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer s.lock(conv.CharacterID, conv.UserID)()

	entries, err := s.store.ClearTranscript(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	memories, err := s.store.DeleteNonPermanent(ctx, conv.CharacterID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("conversation cleared",
		"conversation", conv.ID, "entries", entries, "memories", memories)
	return &ClearResult{TranscriptEntries: entries, Memories: memories}, nil
}

// DeleteCharacter removes everything stored for the character.
func (s *Service) DeleteCharacter(ctx context.Context, characterID string) error {
	if strings.TrimSpace(characterID) == "" {
		return model.Validationf("character id is required")
	}
	if err := s.store.DeleteCharacter(ctx, characterID); err != nil {
		return err
	}
	s.logger.Info("character deleted", "character", characterID)
	return nil
}

// Relationship returns the persisted relationship, or model.ErrNotFound.
func (s *Service) Relationship(ctx context.Context, characterID, userID string) (*model.Relationship, error) {
	defer s.lock(characterID, userID)()
	return s.store.LoadRelationship(ctx, characterID, userID)
}

// ExportRelationship renders the persisted relationship as indented JSON.
func (s *Service) ExportRelationship(ctx context.Context, characterID, userID string) ([]byte, error) {
	rel, err := s.Relationship(ctx, characterID, userID)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(rel, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode relationship")
	}
	return b, nil
}

// ImportRelationship restores an exported relationship. Importing over an
// existing pairing is rejected so persisted history is never rewritten.
func (s *Service) ImportRelationship(ctx context.Context, data []byte) (*model.Relationship, error) {
	var rel model.Relationship
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, model.Validationf("decode relationship: %v", err)
	}
	if err := rel.Validate(); err != nil {
		return nil, err
	}
	if err := rel.Traits.Require(evolution.RequiredTraits()...); err != nil {
		return nil, err
	}
	if rel.Interactions == nil {
		rel.Interactions = []model.InteractionRecord{}
	}
	if rel.Conflicts == nil {
		rel.Conflicts = []model.ConflictRecord{}
	}

	defer s.lock(rel.CharacterID, rel.UserID)()

	_, err := s.store.LoadRelationship(ctx, rel.CharacterID, rel.UserID)
	switch {
	case err == nil:
		return nil, model.Validationf("relationship %s/%s already exists", rel.CharacterID, rel.UserID)
	case !errors.Is(err, model.ErrNotFound):
		return nil, err
	}
	if err := s.store.SaveRelationship(ctx, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}
