package store

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rcliao/branchlog/internal/model"
)

// SearchParams holds parameters for searching checkpoint history.
type SearchParams struct {
	Name  string
	Query string
	Limit int
}

// Search finds live checkpoints, any version, whose note or log name contains
// the query (case-insensitive). Snapshots are not loaded.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Checkpoint, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "%" + p.Query + "%"

	where := []string{"deleted_at IS NULL", "(note LIKE ? OR name LIKE ?)"}
	args := []interface{}{query, query}

	if p.Name != "" {
		where = append(where, "name = ?")
		args = append(args, p.Name)
	}
	args = append(args, limit)

	sql := `SELECT ` + checkpointColumns + `, NULL
	        FROM checkpoints WHERE ` + strings.Join(where, " AND ") + `
	        ORDER BY created_at DESC, version DESC
	        LIMIT ?`
	return s.query(ctx, sql, args...)
}

// Search finds live checkpoints, any version, whose note or log name contains
// the query (case-insensitive). Snapshots are not loaded.
func (s *BadgerStore) Search(ctx context.Context, p SearchParams) ([]model.Checkpoint, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	q := strings.ToLower(p.Query)

	prefix := []byte(checkpointPrefix)
	if p.Name != "" {
		prefix = namePrefix(p.Name)
	}

	var out []model.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		all, err := scan(txn, prefix)
		if err != nil {
			return err
		}
		for _, cp := range live(all) {
			if strings.Contains(strings.ToLower(cp.Note), q) || strings.Contains(strings.ToLower(cp.Name), q) {
				cp.Snapshot = nil
				out = append(out, cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b model.Checkpoint) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Version, a.Version)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
