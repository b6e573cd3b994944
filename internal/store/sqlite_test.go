package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/companion-state/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustInsert(t *testing.T, s *SQLiteStore, rec model.MemoryRecord) *model.MemoryRecord {
	t.Helper()
	m, err := s.Insert(context.Background(), rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return m
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := mustInsert(t, s, model.MemoryRecord{
		CharacterID: "aria", Content: "User's sister is called Ana",
		MemoryType: model.LongTerm, Importance: 4,
		Metadata: map[string]any{"source": "extraction"},
	})
	if mem.ID == "" {
		t.Error("expected non-empty ID")
	}
	if mem.CreatedAt.IsZero() {
		t.Error("expected created_at to be assigned")
	}

	got, err := s.GetByID(ctx, mem.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != mem.Content || got.Importance != 4 || got.MemoryType != model.LongTerm {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Metadata["source"] != "extraction" {
		t.Errorf("expected metadata source, got %v", got.Metadata)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetByID(context.Background(), "nope")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cases := []model.MemoryRecord{
		{CharacterID: "aria", Content: "x", MemoryType: model.ShortTerm, Importance: 0},
		{CharacterID: "aria", Content: "x", MemoryType: model.ShortTerm, Importance: 6},
		{CharacterID: "aria", Content: "x", MemoryType: "episodic", Importance: 3},
		{CharacterID: "", Content: "x", MemoryType: model.ShortTerm, Importance: 3},
	}
	for _, c := range cases {
		if _, err := s.Insert(ctx, c); !errors.Is(err, model.ErrValidation) {
			t.Errorf("insert %+v: expected validation error, got %v", c, err)
		}
	}
	n, _ := s.CountByCharacter(ctx, "aria")
	if n != 0 {
		t.Errorf("expected no rows written, got %d", n)
	}
}

func TestSearchOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	low := mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "went to the beach once", MemoryType: model.ShortTerm, Importance: 2, CreatedAt: base})
	highOld := mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "loves the Beach", MemoryType: model.Permanent, Importance: 5, CreatedAt: base})
	highNew := mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "beach house in July", MemoryType: model.LongTerm, Importance: 5, CreatedAt: base.Add(time.Hour)})
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "secret beach", MemoryType: model.LongTerm, Importance: 5, IsHidden: true})
	mustInsert(t, s, model.MemoryRecord{CharacterID: "other", Content: "beach too", MemoryType: model.LongTerm, Importance: 5})

	got, err := s.Search(ctx, "aria", "beach", true)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{highNew.ID, highOld.ID, low.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s (%q)", i, id, got[i].ID, got[i].Content)
		}
	}

	withHidden, _ := s.Search(ctx, "aria", "beach", false)
	if len(withHidden) != 4 {
		t.Errorf("expected 4 including hidden, got %d", len(withHidden))
	}
}

func TestSearchEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "100% sure", MemoryType: model.ShortTerm, Importance: 3})
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "1000 sure", MemoryType: model.ShortTerm, Importance: 3})

	got, _ := s.Search(ctx, "aria", "0%", true)
	if len(got) != 1 {
		t.Fatalf("expected literal %% match only, got %d", len(got))
	}
}

func TestDeleteNonPermanentKeepsPermanent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "core fact", MemoryType: model.Permanent, Importance: 5})
	}
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "passing remark", MemoryType: model.ShortTerm, Importance: 1})
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "weekly plan", MemoryType: model.LongTerm, Importance: 3})
	mustInsert(t, s, model.MemoryRecord{CharacterID: "kai", Content: "other character", MemoryType: model.ShortTerm, Importance: 3})

	removed, err := s.DeleteNonPermanent(ctx, "aria")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	n, _ := s.CountByCharacter(ctx, "aria")
	if n != 3 {
		t.Errorf("expected 3 permanent records left, got %d", n)
	}
	if n, _ := s.CountByCharacter(ctx, "kai"); n != 1 {
		t.Errorf("other character must be untouched, got %d", n)
	}
}

func TestDeleteByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "core", MemoryType: model.Permanent, Importance: 5})

	if err := s.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, m.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListAboveImportance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "a", MemoryType: model.Permanent, Importance: 5})
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "b", MemoryType: model.LongTerm, Importance: 4})
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "c", MemoryType: model.LongTerm, Importance: 3})
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "d", MemoryType: model.LongTerm, Importance: 5, IsHidden: true})

	got, err := s.ListAboveImportance(ctx, "aria", 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if got[0].Content != "a" {
		t.Errorf("expected highest importance first, got %q", got[0].Content)
	}
}

func TestDeleteCharacterCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "core", MemoryType: model.Permanent, Importance: 5})
	conv, _ := s.CreateConversation(ctx, "aria", "u1")
	s.Append(ctx, conv.ID, model.RoleUser, "hello", time.Time{})
	rel := model.NewRelationship("aria", "u1", model.TraitSet{"empathy": {Value: 0.5}})
	if err := s.SaveRelationship(ctx, rel); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteCharacter(ctx, "aria"); err != nil {
		t.Fatalf("delete character: %v", err)
	}
	if n, _ := s.CountByCharacter(ctx, "aria"); n != 0 {
		t.Errorf("expected permanent memory removed by cascade, got %d", n)
	}
	if _, err := s.GetConversation(ctx, conv.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected conversation removed, got %v", err)
	}
	if entries, _ := s.Entries(ctx, conv.ID); len(entries) != 0 {
		t.Errorf("expected transcript removed, got %d", len(entries))
	}
	if _, err := s.LoadRelationship(ctx, "aria", "u1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected relationship removed, got %v", err)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	mustInsert(t, s, model.MemoryRecord{CharacterID: "aria", Content: "kept", MemoryType: model.Permanent, Importance: 5})
	s.Close()

	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if n, _ := s2.CountByCharacter(context.Background(), "aria"); n != 1 {
		t.Errorf("expected 1 after reopen, got %d", n)
	}
}

func TestCorruptMetadataIsReported(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := mustInsert(t, s, model.MemoryRecord{
		CharacterID: "aria", Content: "Plays cello", MemoryType: model.LongTerm, Importance: 3,
		Metadata: map[string]any{"source": "chat"},
	})
	if _, err := s.db.ExecContext(ctx, `UPDATE memories SET metadata = '{not json' WHERE id = ?`, mem.ID); err != nil {
		t.Fatalf("corrupt metadata: %v", err)
	}

	if _, err := s.GetByID(ctx, mem.ID); err == nil {
		t.Fatal("expected error for corrupt metadata on get")
	}
	if _, err := s.ListAboveImportance(ctx, "aria", model.MinImportance); err == nil {
		t.Fatal("expected error for corrupt metadata on list")
	}
}
