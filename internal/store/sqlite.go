package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/branchlog/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		path:    dbPath,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return newID(s.entropy)
}

func newID(entropy *rand.Rand) string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		version     INTEGER NOT NULL DEFAULT 1,
		supersedes  TEXT,
		note        TEXT,
		active_id   INTEGER NOT NULL,
		root_id     INTEGER NOT NULL,
		timelines   INTEGER NOT NULL DEFAULT 0,
		records     INTEGER NOT NULL DEFAULT 0,
		snapshot    TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		deleted_at  TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_name_version ON checkpoints(name, version);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_created ON checkpoints(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_deleted ON checkpoints(deleted_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const checkpointColumns = `id, name, version, supersedes, note, active_id, root_id,
	timelines, records, created_at, deleted_at`

func (s *SQLiteStore) Save(ctx context.Context, p SaveParams) (*model.Checkpoint, error) {
	if err := validateName(p.Name); err != nil {
		return nil, err
	}
	body, err := json.Marshal(p.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	now := time.Now().UTC()
	snap := p.Snapshot.Clone()
	cp := &model.Checkpoint{
		ID:        s.newID(),
		Name:      p.Name,
		Note:      p.Note,
		CreatedAt: now,
		Snapshot:  &snap,
	}
	cp.Summarize()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Versions keep counting past deleted rows so (name, version) stays unique.
	var maxVersion sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM checkpoints WHERE name = ?`, p.Name).Scan(&maxVersion); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	cp.Version = int(maxVersion.Int64) + 1

	var prevID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM checkpoints
		 WHERE name = ? AND deleted_at IS NULL
		 ORDER BY version DESC LIMIT 1`, p.Name).Scan(&prevID)
	var supersedes *string
	if err == nil {
		cp.Supersedes = prevID
		supersedes = &prevID
	}

	var note *string
	if p.Note != "" {
		note = &p.Note
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (id, name, version, supersedes, note, active_id, root_id, timelines, records, snapshot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.Name, cp.Version, supersedes, note, cp.ActiveID, cp.RootID,
		cp.Timelines, cp.Records, string(body), now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cp, nil
}

func (s *SQLiteStore) Get(ctx context.Context, p GetParams) ([]model.Checkpoint, error) {
	var query string
	var args []interface{}

	if p.History {
		query = `SELECT ` + checkpointColumns + `, snapshot
				 FROM checkpoints WHERE name = ? AND deleted_at IS NULL
				 ORDER BY version DESC`
		args = []interface{}{p.Name}
	} else if p.Version > 0 {
		query = `SELECT ` + checkpointColumns + `, snapshot
				 FROM checkpoints WHERE name = ? AND version = ? AND deleted_at IS NULL
				 LIMIT 1`
		args = []interface{}{p.Name, p.Version}
	} else {
		query = `SELECT ` + checkpointColumns + `, snapshot
				 FROM checkpoints WHERE name = ? AND deleted_at IS NULL
				 ORDER BY version DESC LIMIT 1`
		args = []interface{}{p.Name}
	}

	cps, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p.Name)
	}
	return cps, nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.Checkpoint, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT c.id, c.name, c.version, c.supersedes, c.note, c.active_id, c.root_id,
		       c.timelines, c.records, c.created_at, c.deleted_at, NULL
		FROM checkpoints c
		INNER JOIN (
			SELECT name, MAX(version) AS max_ver
			FROM checkpoints WHERE deleted_at IS NULL
			GROUP BY name
		) latest ON c.name = latest.name AND c.version = latest.max_ver
		ORDER BY c.created_at DESC, c.name
		LIMIT ?`
	return s.query(ctx, query, limit)
}

func (s *SQLiteStore) Rm(ctx context.Context, p RmParams) error {
	if p.Hard {
		if p.AllVersions {
			res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE name = ?`, p.Name)
			return notFoundIfNone(res, err, p.Name)
		}
		id, err := s.latestID(ctx, p.Name)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, id)
		return err
	}

	now := time.Now().UTC().Format(timeFormat)
	if p.AllVersions {
		res, err := s.db.ExecContext(ctx,
			`UPDATE checkpoints SET deleted_at = ? WHERE name = ? AND deleted_at IS NULL`,
			now, p.Name)
		return notFoundIfNone(res, err, p.Name)
	}

	// Soft-delete latest version only
	id, err := s.latestID(ctx, p.Name)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE checkpoints SET deleted_at = ? WHERE id = ?`, now, id)
	return err
}

func (s *SQLiteStore) latestID(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM checkpoints WHERE name = ? AND deleted_at IS NULL ORDER BY version DESC LIMIT 1`,
		name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return id, err
}

func notFoundIfNone(res sql.Result, err error, name string) error {
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]model.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cps []model.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckpoint(row scanner) (model.Checkpoint, error) {
	var cp model.Checkpoint
	var supersedes, note, deletedAt, snapshot sql.NullString
	var createdAt string

	err := row.Scan(
		&cp.ID, &cp.Name, &cp.Version, &supersedes, &note,
		&cp.ActiveID, &cp.RootID, &cp.Timelines, &cp.Records,
		&createdAt, &deletedAt, &snapshot,
	)
	if err != nil {
		return cp, err
	}

	cp.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	if supersedes.Valid {
		cp.Supersedes = supersedes.String
	}
	if note.Valid {
		cp.Note = note.String
	}
	if deletedAt.Valid {
		t, _ := time.Parse(timeFormat, deletedAt.String)
		cp.DeletedAt = &t
	}
	if snapshot.Valid {
		var snap model.ForestSnapshot
		if err := json.Unmarshal([]byte(snapshot.String), &snap); err != nil {
			return cp, fmt.Errorf("decode snapshot %s: %w", cp.ID, err)
		}
		cp.Snapshot = &snap
	}

	return cp, nil
}
