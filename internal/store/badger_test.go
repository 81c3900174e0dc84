package store

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

func TestBadgerReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "badger")

	s, err := Open(BackendBadger, dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first, err := s.Save(ctx, SaveParams{Name: "default", Snapshot: snapshotWith(t, 2)})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(BackendBadger, dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := Latest(ctx, s, "default")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.ID != first.ID || got.Records != first.Records {
		t.Errorf("expected %s with %d records, got %s with %d", first.ID, first.Records, got.ID, got.Records)
	}
}

func TestBadgerRequiresPath(t *testing.T) {
	if _, err := NewBadgerStore(BadgerConfig{}); err == nil {
		t.Error("expected error without path")
	}
}

func TestBadgerLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := &badgerLogger{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Warningf("value log %d\n", 3)
	l.Debugf("compaction")

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="value log 3"`) {
		t.Errorf("expected trimmed warning, got %q", out)
	}
	if !strings.Contains(out, "level=DEBUG msg=compaction") {
		t.Errorf("expected debug line, got %q", out)
	}
}

func TestBadgerLastVersion(t *testing.T) {
	ctx := context.Background()
	s, err := NewBadgerStore(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var ids []string
	for i := 1; i <= 3; i++ {
		cp, err := s.Save(ctx, SaveParams{Name: "default", Snapshot: snapshotWith(t, i)})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		ids = append(ids, cp.ID)
	}
	if _, err := s.Save(ctx, SaveParams{Name: "default-other", Snapshot: snapshotWith(t, 1)}); err != nil {
		t.Fatalf("save other: %v", err)
	}
	if err := s.Rm(ctx, RmParams{Name: "default"}); err != nil {
		t.Fatalf("rm: %v", err)
	}

	err = s.db.View(func(txn *badger.Txn) error {
		version, id, err := lastVersion(txn, "default")
		if err != nil {
			return err
		}
		if version != 3 || id != ids[1] {
			t.Errorf("expected version 3 and live %s, got %d and %s", ids[1], version, id)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	next, err := s.Save(ctx, SaveParams{Name: "default", Snapshot: snapshotWith(t, 4)})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if next.Version != 4 || next.Supersedes != ids[1] {
		t.Errorf("expected version 4 superseding %s, got %d superseding %s", ids[1], next.Version, next.Supersedes)
	}
}
