// Package store provides the fact store, transcript and relationship
// persistence interfaces and their SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/rcliao/companion-state/internal/model"
)

// FactStore is the character-scoped memory record surface.
type FactStore interface {
	// Insert validates and stores a record. ID and CreatedAt are assigned when empty.
	Insert(ctx context.Context, rec model.MemoryRecord) (*model.MemoryRecord, error)

	// GetByID returns model.ErrNotFound when no record has the id.
	GetByID(ctx context.Context, id string) (*model.MemoryRecord, error)

	// Search returns records whose content contains substring (case-insensitive),
	// ordered by importance desc then created_at desc.
	Search(ctx context.Context, characterID, substring string, excludeHidden bool) ([]model.MemoryRecord, error)

	// DeleteNonPermanent removes every short_term and long_term record of the
	// character. Permanent records are never touched.
	DeleteNonPermanent(ctx context.Context, characterID string) (int64, error)

	CountByCharacter(ctx context.Context, characterID string) (int, error)

	// ListAboveImportance returns non-hidden records with importance >= min.
	ListAboveImportance(ctx context.Context, characterID string, min int) ([]model.MemoryRecord, error)

	// Delete removes one record by id, permanent or not.
	Delete(ctx context.Context, id string) error
}

// Transcript is the conversation log surface.
type Transcript interface {
	CreateConversation(ctx context.Context, characterID, userID string) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)

	// Append writes one immutable entry. A zero ts means now.
	Append(ctx context.Context, conversationID string, role model.Role, content string, ts time.Time) (*model.TranscriptEntry, error)

	// Recent returns the last n entries ordered oldest to newest.
	Recent(ctx context.Context, conversationID string, n int) ([]model.TranscriptEntry, error)

	// Entries returns the whole transcript ordered oldest to newest.
	Entries(ctx context.Context, conversationID string) ([]model.TranscriptEntry, error)

	ClearTranscript(ctx context.Context, conversationID string) (int64, error)
}

// Relationships persists trait sets, trust and the append-only histories.
type Relationships interface {
	// LoadRelationship returns model.ErrNotFound when the pairing has no state.
	LoadRelationship(ctx context.Context, characterID, userID string) (*model.Relationship, error)

	// SaveRelationship upserts trust and traits and appends history records
	// that are not yet persisted. Persisted history is never rewritten.
	SaveRelationship(ctx context.Context, rel *model.Relationship) error
}

// Store is everything the companion service needs from persistence.
type Store interface {
	FactStore
	Transcript
	Relationships

	// DeleteCharacter removes every record, conversation and relationship of
	// the character, permanent memories included.
	DeleteCharacter(ctx context.Context, characterID string) error

	Close() error
}
