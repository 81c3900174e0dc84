// Package store persists forest snapshots as named, versioned checkpoints.
// Two backends implement Store: SQLite (the default) and Badger.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rcliao/branchlog/internal/model"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// ErrNotFound is returned when no live checkpoint matches a lookup.
var ErrNotFound = errors.New("checkpoint not found")

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SaveParams holds parameters for storing a checkpoint.
type SaveParams struct {
	Name     string
	Snapshot model.ForestSnapshot
	Note     string
}

// GetParams holds parameters for retrieving a checkpoint.
type GetParams struct {
	Name    string
	History bool
	Version int // 0 means latest
}

// ListParams holds parameters for listing checkpoints.
type ListParams struct {
	Limit int
}

// RmParams holds parameters for deleting a checkpoint.
type RmParams struct {
	Name        string
	AllVersions bool
	Hard        bool
}

// Stats holds store statistics.
type Stats struct {
	Backend           string     `json:"backend"`
	Path              string     `json:"path"`
	SizeBytes         int64      `json:"size_bytes"`
	TotalCheckpoints  int        `json:"total_checkpoints"`
	ActiveCheckpoints int        `json:"active_checkpoints"`
	Logs              []LogStats `json:"logs"`
}

// LogStats holds per-log counts.
type LogStats struct {
	Name     string `json:"name"`
	Versions int    `json:"versions"`
	Records  int    `json:"records"`
}

// Store defines the checkpoint storage interface.
type Store interface {
	// Save stores a new version of the named log. Returns the created checkpoint.
	Save(ctx context.Context, p SaveParams) (*model.Checkpoint, error)

	// Get retrieves checkpoints by name, snapshot included.
	// Returns a slice (single element normally, newest first with History=true).
	Get(ctx context.Context, p GetParams) ([]model.Checkpoint, error)

	// List returns the latest version of every log, without snapshots.
	List(ctx context.Context, p ListParams) ([]model.Checkpoint, error)

	// Search finds checkpoints whose note or log name matches a substring.
	Search(ctx context.Context, p SearchParams) ([]model.Checkpoint, error)

	// Rm soft-deletes (or hard-deletes) a checkpoint.
	Rm(ctx context.Context, p RmParams) error

	// ExportAll returns every live checkpoint, optionally filtered by name.
	ExportAll(ctx context.Context, name string) ([]model.Checkpoint, error)

	// Import stores checkpoints from an export as new versions.
	Import(ctx context.Context, checkpoints []model.Checkpoint) (int, error)

	// Stats returns store statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close closes the store.
	Close() error
}

// Latest returns the latest live checkpoint of name.
func Latest(ctx context.Context, s Store, name string) (*model.Checkpoint, error) {
	cps, err := s.Get(ctx, GetParams{Name: name})
	if err != nil {
		return nil, err
	}
	return &cps[0], nil
}

// Open opens the named backend at path. For Badger, path is a directory.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case "", BackendSQLite:
		return NewSQLiteStore(path)
	case BackendBadger:
		cfg := DefaultBadgerConfig(path)
		cfg.Logger = logger
		return NewBadgerStore(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("checkpoint name is required")
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("checkpoint name %q must not contain '/'", name)
	}
	return nil
}
