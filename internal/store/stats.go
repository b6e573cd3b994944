package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath          string           `json:"db_path"`
	DBSizeBytes     int64            `json:"db_size_bytes"`
	TotalMemories   int              `json:"total_memories"`
	PermanentCount  int              `json:"permanent_memories"`
	Conversations   int              `json:"conversations"`
	TranscriptTurns int              `json:"transcript_entries"`
	Relationships   int              `json:"relationships"`
	Characters      []CharacterStats `json:"characters"`
}

// CharacterStats holds per-character memory counts.
type CharacterStats struct {
	CharacterID string `json:"character_id"`
	Memories    int    `json:"memories"`
	Permanent   int    `json:"permanent"`
	Hidden      int    `json:"hidden"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath, Characters: []CharacterStats{}}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.GetContext(ctx, &st.TotalMemories, `SELECT COUNT(*) FROM memories`)
	s.db.GetContext(ctx, &st.PermanentCount, `SELECT COUNT(*) FROM memories WHERE memory_type = 'permanent'`)
	s.db.GetContext(ctx, &st.Conversations, `SELECT COUNT(*) FROM conversations`)
	s.db.GetContext(ctx, &st.TranscriptTurns, `SELECT COUNT(*) FROM transcript`)
	s.db.GetContext(ctx, &st.Relationships, `SELECT COUNT(*) FROM relationships`)

	var rows []struct {
		CharacterID string `db:"character_id"`
		Memories    int    `db:"memories"`
		Permanent   int    `db:"permanent"`
		Hidden      int    `db:"hidden"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT character_id,
		       COUNT(*) AS memories,
		       SUM(CASE WHEN memory_type = 'permanent' THEN 1 ELSE 0 END) AS permanent,
		       SUM(is_hidden) AS hidden
		FROM memories GROUP BY character_id ORDER BY memories DESC`)
	if err != nil {
		return st, err
	}
	for _, r := range rows {
		st.Characters = append(st.Characters, CharacterStats(r))
	}
	return st, nil
}
