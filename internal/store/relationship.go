package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/rcliao/companion-state/internal/model"
)

type interactionRow struct {
	UserMessage       string          `db:"user_message"`
	CharacterResponse string          `db:"character_response"`
	CreatedAt         string          `db:"created_at"`
	EmotionalTone     sql.NullFloat64 `db:"emotional_tone"`
	TrustImpact       sql.NullFloat64 `db:"trust_impact"`
}

type conflictRow struct {
	Description string          `db:"description"`
	CreatedAt   string          `db:"created_at"`
	Severity    float64         `db:"severity"`
	Category    string          `db:"category"`
	Resolution  sql.NullString  `db:"resolution"`
	Impact      sql.NullFloat64 `db:"impact"`
}

func (s *SQLiteStore) LoadRelationship(ctx context.Context, characterID, userID string) (*model.Relationship, error) {
	var row struct {
		Trust     float64 `db:"trust_level"`
		Traits    string  `db:"traits"`
		UpdatedAt string  `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT trust_level, traits, updated_at FROM relationships WHERE character_id = ? AND user_id = ?`,
		characterID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("relationship %s/%s", characterID, userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get relationship")
	}

	trust, err := model.RestoreTrust(row.Trust)
	if err != nil {
		return nil, err
	}
	rel := &model.Relationship{
		CharacterID:  characterID,
		UserID:       userID,
		Trust:        trust,
		Traits:       model.TraitSet{},
		Interactions: []model.InteractionRecord{},
		Conflicts:    []model.ConflictRecord{},
		UpdatedAt:    parseTime(row.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(row.Traits), &rel.Traits); err != nil {
		return nil, errors.Wrap(err, "decode traits")
	}

	var irows []interactionRow
	err = s.db.SelectContext(ctx, &irows,
		`SELECT user_message, character_response, created_at, emotional_tone, trust_impact
		 FROM interactions WHERE character_id = ? AND user_id = ? ORDER BY id ASC`, characterID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list interactions")
	}
	for _, r := range irows {
		rel.Interactions = append(rel.Interactions, model.InteractionRecord{
			UserMessage:       r.UserMessage,
			CharacterResponse: r.CharacterResponse,
			Timestamp:         parseTime(r.CreatedAt),
			EmotionalTone:     nullFloat(r.EmotionalTone),
			TrustImpact:       nullFloat(r.TrustImpact),
		})
	}

	var crows []conflictRow
	err = s.db.SelectContext(ctx, &crows,
		`SELECT description, created_at, severity, category, resolution, impact
		 FROM conflicts WHERE character_id = ? AND user_id = ? ORDER BY id ASC`, characterID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list conflicts")
	}
	for _, r := range crows {
		rel.Conflicts = append(rel.Conflicts, model.ConflictRecord{
			Description: r.Description,
			Timestamp:   parseTime(r.CreatedAt),
			Severity:    r.Severity,
			Category:    r.Category,
			Resolution:  r.Resolution.String,
			Impact:      nullFloat(r.Impact),
		})
	}
	return rel, nil
}

func (s *SQLiteStore) SaveRelationship(ctx context.Context, rel *model.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	traits, err := json.Marshal(rel.Traits)
	if err != nil {
		return errors.Wrap(err, "encode traits")
	}
	rel.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO relationships (character_id, user_id, trust_level, traits, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(character_id, user_id) DO UPDATE SET
			trust_level = excluded.trust_level,
			traits = excluded.traits,
			updated_at = excluded.updated_at`,
		rel.CharacterID, rel.UserID, rel.Trust.Level(), string(traits), formatTime(rel.UpdatedAt))
	if err != nil {
		return errors.Wrap(err, "upsert relationship")
	}

	if err := appendInteractions(ctx, tx, rel); err != nil {
		return err
	}
	if err := appendConflicts(ctx, tx, rel); err != nil {
		return err
	}
	return tx.Commit()
}

func persistedCount(ctx context.Context, tx *sqlx.Tx, table string, rel *model.Relationship) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM `+table+` WHERE character_id = ? AND user_id = ?`, rel.CharacterID, rel.UserID)
	return n, errors.Wrapf(err, "count %s", table)
}

func appendInteractions(ctx context.Context, tx *sqlx.Tx, rel *model.Relationship) error {
	n, err := persistedCount(ctx, tx, "interactions", rel)
	if err != nil {
		return err
	}
	if n > len(rel.Interactions) {
		return model.Validationf("relationship %s/%s: interaction history is append-only (%d persisted, %d held)",
			rel.CharacterID, rel.UserID, n, len(rel.Interactions))
	}
	for _, r := range rel.Interactions[n:] {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO interactions (character_id, user_id, user_message, character_response, created_at, emotional_tone, trust_impact)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rel.CharacterID, rel.UserID, r.UserMessage, r.CharacterResponse, formatTime(r.Timestamp),
			r.EmotionalTone, r.TrustImpact)
		if err != nil {
			return errors.Wrap(err, "insert interaction")
		}
	}
	return nil
}

func appendConflicts(ctx context.Context, tx *sqlx.Tx, rel *model.Relationship) error {
	n, err := persistedCount(ctx, tx, "conflicts", rel)
	if err != nil {
		return err
	}
	if n > len(rel.Conflicts) {
		return model.Validationf("relationship %s/%s: conflict history is append-only (%d persisted, %d held)",
			rel.CharacterID, rel.UserID, n, len(rel.Conflicts))
	}
	for _, r := range rel.Conflicts[n:] {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO conflicts (character_id, user_id, description, created_at, severity, category, resolution, impact)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rel.CharacterID, rel.UserID, r.Description, formatTime(r.Timestamp), r.Severity, r.Category,
			r.Resolution, r.Impact)
		if err != nil {
			return errors.Wrap(err, "insert conflict")
		}
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
