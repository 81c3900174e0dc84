package store

import (
	"context"
	"os"
)

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Backend: BackendSQLite, Path: s.path}

	// DB file size
	if info, err := os.Stat(s.path); err == nil {
		st.SizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkpoints`).Scan(&st.TotalCheckpoints)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkpoints WHERE deleted_at IS NULL`).Scan(&st.ActiveCheckpoints)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, latest.versions, c.records
		FROM checkpoints c
		INNER JOIN (
			SELECT name, COUNT(*) AS versions, MAX(version) AS max_ver
			FROM checkpoints WHERE deleted_at IS NULL
			GROUP BY name
		) latest ON c.name = latest.name AND c.version = latest.max_ver
		ORDER BY c.name`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ls LogStats
		rows.Scan(&ls.Name, &ls.Versions, &ls.Records)
		st.Logs = append(st.Logs, ls)
	}

	return st, nil
}
