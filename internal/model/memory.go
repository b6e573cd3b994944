// Package model defines the core companion-state data types.
package model

import (
	"strings"
	"time"
)

// MemoryType classifies how long a memory record should survive.
type MemoryType string

const (
	ShortTerm MemoryType = "short_term"
	LongTerm  MemoryType = "long_term"
	Permanent MemoryType = "permanent"
)

// ValidMemoryTypes are the allowed memory types.
var ValidMemoryTypes = map[MemoryType]bool{
	ShortTerm: true,
	LongTerm:  true,
	Permanent: true,
}

const (
	MinImportance = 1
	MaxImportance = 5
	// NeutralImportance ranks transcript entries against memory records.
	NeutralImportance = 3
)

// MemoryRecord is a persisted fact scoped to one character.
type MemoryRecord struct {
	ID          string         `json:"id"`
	CharacterID string         `json:"character_id"`
	Content     string         `json:"content"`
	MemoryType  MemoryType     `json:"memory_type"`
	Importance  int            `json:"importance"`
	IsHidden    bool           `json:"is_hidden"`
	CreatedAt   time.Time      `json:"created_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Validate rejects records the fact store must not accept.
func (m MemoryRecord) Validate() error {
	if strings.TrimSpace(m.CharacterID) == "" {
		return Validationf("memory record: character id is required")
	}
	if strings.TrimSpace(m.Content) == "" {
		return Validationf("memory record: content is required")
	}
	if !ValidMemoryTypes[m.MemoryType] {
		return Validationf("memory record: invalid memory type %q (valid: short_term, long_term, permanent)", m.MemoryType)
	}
	if m.Importance < MinImportance || m.Importance > MaxImportance {
		return Validationf("memory record: importance %d outside %d-%d", m.Importance, MinImportance, MaxImportance)
	}
	return nil
}

// Role is the speaker of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TranscriptEntry is one immutable turn of a conversation.
type TranscriptEntry struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// Conversation ties a transcript to a character and user pairing.
type Conversation struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}
