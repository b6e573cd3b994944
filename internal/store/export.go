package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/rcliao/companion-state/internal/model"
)

// ExportAll returns all memory records, optionally filtered by character.
func (s *SQLiteStore) ExportAll(ctx context.Context, characterID string) ([]model.MemoryRecord, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories`
	args := []interface{}{}
	if characterID != "" {
		query += ` WHERE character_id = ?`
		args = append(args, characterID)
	}
	query += ` ORDER BY character_id, created_at, id`

	var rows []memoryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "export memories")
	}
	return toModels(rows)
}

// Import stores records from an export. Records whose id already exists are skipped.
func (s *SQLiteStore) Import(ctx context.Context, records []model.MemoryRecord) (int, error) {
	imported := 0
	for _, m := range records {
		if m.ID != "" {
			if _, err := s.GetByID(ctx, m.ID); err == nil {
				continue
			} else if !errors.Is(err, model.ErrNotFound) {
				return imported, err
			}
		}
		if _, err := s.Insert(ctx, m); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
