package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/rcliao/companion-state/internal/model"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// timeFormat keeps a fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *log.Logger

	mu      sync.Mutex
	entropy *rand.Rand
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger routes migration progress to logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *SQLiteStore) { s.logger = logger }
}

// NewSQLiteStore opens or creates a SQLite database at the given path and
// applies pending migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create db dir")
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}

	s := &SQLiteStore{
		db:      db,
		logger:  log.New(io.Discard),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db.DB, fsys)
	if err != nil {
		return errors.Wrap(err, "goose provider")
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		s.logger.Info("applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

type memoryRow struct {
	ID          string         `db:"id"`
	CharacterID string         `db:"character_id"`
	Content     string         `db:"content"`
	MemoryType  string         `db:"memory_type"`
	Importance  int            `db:"importance"`
	IsHidden    bool           `db:"is_hidden"`
	CreatedAt   string         `db:"created_at"`
	Metadata    sql.NullString `db:"metadata"`
}

const memoryColumns = `id, character_id, content, memory_type, importance, is_hidden, created_at, metadata`

func (r memoryRow) toModel() (model.MemoryRecord, error) {
	m := model.MemoryRecord{
		ID:          r.ID,
		CharacterID: r.CharacterID,
		Content:     r.Content,
		MemoryType:  model.MemoryType(r.MemoryType),
		Importance:  r.Importance,
		IsHidden:    r.IsHidden,
		CreatedAt:   parseTime(r.CreatedAt),
	}
	if r.Metadata.Valid && r.Metadata.String != "" {
		if err := json.Unmarshal([]byte(r.Metadata.String), &m.Metadata); err != nil {
			return model.MemoryRecord{}, errors.Wrapf(err, "decode metadata of memory %s", r.ID)
		}
	}
	return m, nil
}

func toModels(rows []memoryRow) ([]model.MemoryRecord, error) {
	out := make([]model.MemoryRecord, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec model.MemoryRecord) (*model.MemoryRecord, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	var metaPtr *string
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return nil, model.Validationf("memory record: metadata is not JSON encodable: %v", err)
		}
		m := string(b)
		metaPtr = &m
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CharacterID, rec.Content, string(rec.MemoryType), rec.Importance,
		rec.IsHidden, formatTime(rec.CreatedAt), metaPtr)
	if err != nil {
		return nil, errors.Wrap(err, "insert memory")
	}
	return &rec, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.MemoryRecord, error) {
	var row memoryRow
	err := s.db.GetContext(ctx, &row, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("memory %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get memory")
	}
	m, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) Search(ctx context.Context, characterID, substring string, excludeHidden bool) ([]model.MemoryRecord, error) {
	where := []string{"character_id = ?", `content LIKE ? ESCAPE '\'`}
	args := []interface{}{characterID, "%" + escapeLike(substring) + "%"}
	if excludeHidden {
		where = append(where, "is_hidden = 0")
	}

	var rows []memoryRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+memoryColumns+` FROM memories WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY importance DESC, created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "search memories")
	}
	return toModels(rows)
}

func (s *SQLiteStore) DeleteNonPermanent(ctx context.Context, characterID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE character_id = ? AND memory_type != ?`,
		characterID, string(model.Permanent))
	if err != nil {
		return 0, errors.Wrap(err, "delete non-permanent memories")
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) CountByCharacter(ctx context.Context, characterID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM memories WHERE character_id = ?`, characterID); err != nil {
		return 0, errors.Wrap(err, "count memories")
	}
	return n, nil
}

func (s *SQLiteStore) ListAboveImportance(ctx context.Context, characterID string, min int) ([]model.MemoryRecord, error) {
	var rows []memoryRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE character_id = ? AND is_hidden = 0 AND importance >= ?
		 ORDER BY importance DESC, created_at DESC, id DESC`, characterID, min)
	if err != nil {
		return nil, errors.Wrap(err, "list memories")
	}
	return toModels(rows)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete memory")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFoundf("memory %s", id)
	}
	return nil
}

func (s *SQLiteStore) DeleteCharacter(ctx context.Context, characterID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM memories WHERE character_id = ?`,
		`DELETE FROM conversations WHERE character_id = ?`,
		`DELETE FROM relationships WHERE character_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, characterID); err != nil {
			return errors.Wrap(err, "delete character")
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
