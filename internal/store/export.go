package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/branchlog/internal/model"
)

// ExportAll returns all non-deleted checkpoints, optionally filtered by name.
func (s *SQLiteStore) ExportAll(ctx context.Context, name string) ([]model.Checkpoint, error) {
	where := []string{"deleted_at IS NULL"}
	args := []interface{}{}

	if name != "" {
		where = append(where, "name = ?")
		args = append(args, name)
	}

	query := `SELECT ` + checkpointColumns + `, snapshot
	          FROM checkpoints WHERE ` + strings.Join(where, " AND ") + ` ORDER BY name, version`
	return s.query(ctx, query, args...)
}

// Import stores checkpoints from an export. Each becomes a new version of its log.
func (s *SQLiteStore) Import(ctx context.Context, checkpoints []model.Checkpoint) (int, error) {
	return importInto(ctx, s, checkpoints)
}

func importInto(ctx context.Context, s Store, checkpoints []model.Checkpoint) (int, error) {
	imported := 0
	for _, cp := range checkpoints {
		if cp.Snapshot == nil {
			return imported, fmt.Errorf("checkpoint %s/%d has no snapshot", cp.Name, cp.Version)
		}
		_, err := s.Save(ctx, SaveParams{
			Name:     cp.Name,
			Snapshot: *cp.Snapshot,
			Note:     cp.Note,
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
