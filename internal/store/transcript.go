package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rcliao/companion-state/internal/model"
)

type entryRow struct {
	ID             string `db:"id"`
	ConversationID string `db:"conversation_id"`
	Role           string `db:"role"`
	Content        string `db:"content"`
	CreatedAt      string `db:"created_at"`
}

func (r entryRow) toModel() model.TranscriptEntry {
	return model.TranscriptEntry{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           model.Role(r.Role),
		Content:        r.Content,
		Timestamp:      parseTime(r.CreatedAt),
	}
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, characterID, userID string) (*model.Conversation, error) {
	if strings.TrimSpace(characterID) == "" || strings.TrimSpace(userID) == "" {
		return nil, model.Validationf("conversation: character and user ids are required")
	}
	c := &model.Conversation{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, character_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.CharacterID, c.UserID, formatTime(c.CreatedAt))
	if err != nil {
		return nil, errors.Wrap(err, "insert conversation")
	}
	return c, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var row struct {
		ID          string `db:"id"`
		CharacterID string `db:"character_id"`
		UserID      string `db:"user_id"`
		CreatedAt   string `db:"created_at"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT id, character_id, user_id, created_at FROM conversations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("conversation %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get conversation")
	}
	return &model.Conversation{
		ID:          row.ID,
		CharacterID: row.CharacterID,
		UserID:      row.UserID,
		CreatedAt:   parseTime(row.CreatedAt),
	}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, conversationID string, role model.Role, content string, ts time.Time) (*model.TranscriptEntry, error) {
	if role != model.RoleUser && role != model.RoleAssistant {
		return nil, model.Validationf("transcript: invalid role %q", role)
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	e := &model.TranscriptEntry{
		ID:             s.newID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      ts.UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.ConversationID, string(e.Role), e.Content, formatTime(e.Timestamp))
	if err != nil {
		return nil, errors.Wrap(err, "append transcript")
	}
	return e, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, conversationID string, n int) ([]model.TranscriptEntry, error) {
	if n <= 0 {
		return []model.TranscriptEntry{}, nil
	}
	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, conversation_id, role, content, created_at FROM (
			SELECT id, conversation_id, role, content, created_at FROM transcript
			WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC`, conversationID, n)
	if err != nil {
		return nil, errors.Wrap(err, "recent transcript")
	}
	return entriesToModels(rows), nil
}

func (s *SQLiteStore) Entries(ctx context.Context, conversationID string) ([]model.TranscriptEntry, error) {
	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, conversation_id, role, content, created_at FROM transcript
		 WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "list transcript")
	}
	return entriesToModels(rows), nil
}

func (s *SQLiteStore) ClearTranscript(ctx context.Context, conversationID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcript WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return 0, errors.Wrap(err, "clear transcript")
	}
	return res.RowsAffected()
}

func entriesToModels(rows []entryRow) []model.TranscriptEntry {
	out := make([]model.TranscriptEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
