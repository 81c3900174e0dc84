package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rcliao/branchlog/internal/forest"
	"github.com/rcliao/branchlog/internal/store"
)

// session is one named log loaded from the store into a live forest.
type session struct {
	store   store.Store
	name    string
	forest  *forest.Forest
	version int
	exists  bool
}

// openSession loads the latest checkpoint of name. A log that has never been
// saved yields an uninitialized forest.
func openSession(ctx context.Context, s store.Store, name string, logger *slog.Logger) (*session, error) {
	sess := &session{
		store:  s,
		name:   name,
		forest: forest.New(forest.Options{Logger: logger}),
	}
	cp, err := store.Latest(ctx, s, name)
	if errors.Is(err, store.ErrNotFound) {
		return sess, nil
	}
	if err != nil {
		return nil, err
	}
	if cp.Snapshot == nil {
		return nil, fmt.Errorf("checkpoint %s/%d has no snapshot", name, cp.Version)
	}
	if err := sess.forest.ReconstructAll(*cp.Snapshot); err != nil {
		return nil, err
	}
	// Reconstruction leaves every timer paused; pick up where the last
	// invocation left a running log.
	if active, ok := cp.Snapshot.Timeline(cp.Snapshot.ActiveID); ok && !active.Timer.Paused {
		sess.forest.Resume()
	}
	sess.version = cp.Version
	sess.exists = true
	return sess, nil
}

// requireInitialized fails unless the log has been created with init.
func (s *session) requireInitialized() error {
	if !s.forest.IsInitialized() {
		return fmt.Errorf("log %q is not initialized (run init first)", s.name)
	}
	return nil
}

// save stores the forest as a new version of the log.
func (s *session) save(ctx context.Context, note string) error {
	cp, err := s.store.Save(ctx, store.SaveParams{
		Name:     s.name,
		Snapshot: s.forest.ExtractAll(),
		Note:     note,
	})
	if err != nil {
		return err
	}
	s.version = cp.Version
	s.exists = true
	return nil
}

// statusView is the JSON shape printed after every mutating command.
type statusView struct {
	OK       bool     `json:"ok"`
	Log      string   `json:"log"`
	Version  int      `json:"version"`
	ActiveID uint32   `json:"active_id"`
	RootID   uint32   `json:"root_id"`
	Branches []uint32 `json:"branches"`
	Started  bool     `json:"started"`
	Paused   bool     `json:"paused"`
	Records  int      `json:"records"`
}

func (s *session) status() statusView {
	return statusView{
		OK:       true,
		Log:      s.name,
		Version:  s.version,
		ActiveID: s.forest.ActiveID(),
		RootID:   s.forest.RootID(),
		Branches: s.forest.Branches(),
		Started:  s.forest.IsStarted(),
		Paused:   s.forest.IsPaused(),
		Records:  s.forest.Count(),
	}
}

// mutate loads the log, applies fn and saves the result under the note fn
// returns.
func mutate(ctx context.Context, s store.Store, name string, logger *slog.Logger, fn func(*session) (string, error)) (*session, error) {
	sess, err := openSession(ctx, s, name, logger)
	if err != nil {
		return nil, err
	}
	if err := sess.requireInitialized(); err != nil {
		return nil, err
	}
	note, err := fn(sess)
	if err != nil {
		return nil, err
	}
	if err := sess.save(ctx, note); err != nil {
		return nil, err
	}
	return sess, nil
}
