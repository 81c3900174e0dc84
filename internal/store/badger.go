package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rcliao/branchlog/internal/model"
)

const checkpointPrefix = "ckpt/"

// BadgerConfig holds configuration for a Badger-backed store.
type BadgerConfig struct {
	// Path is the directory for Badger files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives Badger's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns a durable configuration rooted at path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// InMemoryBadgerConfig returns a configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// BadgerStore implements Store on an embedded Badger key-value database.
// Each checkpoint version is one JSON value under ckpt/<name>/<version>.
type BadgerStore struct {
	db      *badger.DB
	path    string
	entropy *rand.Rand
}

// NewBadgerStore opens a Badger database with the given configuration.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{
		db:      db,
		path:    cfg.Path,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func checkpointKey(name string, version int) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", checkpointPrefix, name, version))
}

func namePrefix(name string) []byte {
	return []byte(checkpointPrefix + name + "/")
}

// scan decodes every checkpoint under prefix in key order.
func scan(txn *badger.Txn, prefix []byte) ([]model.Checkpoint, error) {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var cps []model.Checkpoint
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var cp model.Checkpoint
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &cp)
		})
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		cps = append(cps, cp)
	}
	return cps, nil
}

func live(cps []model.Checkpoint) []model.Checkpoint {
	return slices.DeleteFunc(cps, func(cp model.Checkpoint) bool { return cp.DeletedAt != nil })
}

// header is the part of a stored checkpoint Save needs to chain versions.
type header struct {
	ID        string     `json:"id"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// lastVersion walks name's keys newest first. It returns the highest stored
// version and the id of the newest live checkpoint, decoding only headers.
func lastVersion(txn *badger.Txn, name string) (int, string, error) {
	prefix := namePrefix(name)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := append(slices.Clone(prefix), 0xFF)
	version := 0
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		if version == 0 {
			v, err := strconv.Atoi(strings.TrimPrefix(string(item.Key()), string(prefix)))
			if err != nil {
				return 0, "", fmt.Errorf("parse version from %s: %w", item.Key(), err)
			}
			version = v
		}
		var h header
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &h) }); err != nil {
			return 0, "", fmt.Errorf("decode %s: %w", item.Key(), err)
		}
		if h.DeletedAt == nil {
			return version, h.ID, nil
		}
	}
	return version, "", nil
}

func put(txn *badger.Txn, cp model.Checkpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return txn.Set(checkpointKey(cp.Name, cp.Version), b)
}

func (s *BadgerStore) Save(ctx context.Context, p SaveParams) (*model.Checkpoint, error) {
	if err := validateName(p.Name); err != nil {
		return nil, err
	}
	snap := p.Snapshot.Clone()
	cp := model.Checkpoint{
		ID:        newID(s.entropy),
		Name:      p.Name,
		Note:      p.Note,
		CreatedAt: time.Now().UTC(),
		Snapshot:  &snap,
	}
	cp.Summarize()

	err := s.db.Update(func(txn *badger.Txn) error {
		last, supersedes, err := lastVersion(txn, p.Name)
		if err != nil {
			return err
		}
		cp.Version = last + 1
		cp.Supersedes = supersedes
		return put(txn, cp)
	})
	if err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}
	return &cp, nil
}

func (s *BadgerStore) Get(ctx context.Context, p GetParams) ([]model.Checkpoint, error) {
	var cps []model.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		all, err := scan(txn, namePrefix(p.Name))
		cps = live(all)
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(cps)

	switch {
	case p.History:
	case p.Version > 0:
		i := slices.IndexFunc(cps, func(cp model.Checkpoint) bool { return cp.Version == p.Version })
		if i < 0 {
			cps = nil
		} else {
			cps = cps[i : i+1]
		}
	case len(cps) > 0:
		cps = cps[:1]
	}
	if len(cps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p.Name)
	}
	return cps, nil
}

func (s *BadgerStore) List(ctx context.Context, p ListParams) ([]model.Checkpoint, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	latest := make(map[string]model.Checkpoint)
	err := s.db.View(func(txn *badger.Txn) error {
		all, err := scan(txn, []byte(checkpointPrefix))
		for _, cp := range live(all) {
			if prev, ok := latest[cp.Name]; !ok || cp.Version > prev.Version {
				cp.Snapshot = nil
				latest[cp.Name] = cp
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Checkpoint, 0, len(latest))
	for _, cp := range latest {
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b model.Checkpoint) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *BadgerStore) Rm(ctx context.Context, p RmParams) error {
	return s.db.Update(func(txn *badger.Txn) error {
		all, err := scan(txn, namePrefix(p.Name))
		if err != nil {
			return err
		}
		targets := live(slices.Clone(all))
		if p.Hard && p.AllVersions {
			targets = all
		}
		if len(targets) == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, p.Name)
		}
		if !p.AllVersions {
			targets = targets[len(targets)-1:]
		}

		now := time.Now().UTC()
		for _, cp := range targets {
			if p.Hard {
				if err := txn.Delete(checkpointKey(cp.Name, cp.Version)); err != nil {
					return err
				}
				continue
			}
			cp.DeletedAt = &now
			if err := put(txn, cp); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExportAll returns all non-deleted checkpoints, optionally filtered by name.
func (s *BadgerStore) ExportAll(ctx context.Context, name string) ([]model.Checkpoint, error) {
	prefix := []byte(checkpointPrefix)
	if name != "" {
		prefix = namePrefix(name)
	}
	var cps []model.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		all, err := scan(txn, prefix)
		cps = live(all)
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(cps, func(a, b model.Checkpoint) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Version, b.Version)
	})
	return cps, nil
}

// Import stores checkpoints from an export. Each becomes a new version of its log.
func (s *BadgerStore) Import(ctx context.Context, checkpoints []model.Checkpoint) (int, error) {
	return importInto(ctx, s, checkpoints)
}

// Stats returns database statistics.
func (s *BadgerStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Backend: BackendBadger, Path: s.path}
	lsm, vlog := s.db.Size()
	st.SizeBytes = lsm + vlog

	logs := make(map[string]*LogStats)
	err := s.db.View(func(txn *badger.Txn) error {
		all, err := scan(txn, []byte(checkpointPrefix))
		st.TotalCheckpoints = len(all)
		for _, cp := range live(all) {
			st.ActiveCheckpoints++
			ls, ok := logs[cp.Name]
			if !ok {
				ls = &LogStats{Name: cp.Name}
				logs[cp.Name] = ls
			}
			ls.Versions++
			ls.Records = cp.Records
		}
		return err
	})
	if err != nil {
		return st, err
	}

	for _, ls := range logs {
		st.Logs = append(st.Logs, *ls)
	}
	slices.SortFunc(st.Logs, func(a, b LogStats) int { return cmp.Compare(a.Name, b.Name) })
	return st, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
