package timeline

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rcliao/branchlog/internal/clock"
	apperrors "github.com/rcliao/branchlog/internal/errors"
	"github.com/rcliao/branchlog/internal/model"
)

func note(t *testing.T, text string) model.Payload {
	t.Helper()
	p, err := model.NewPayload("note", map[string]string{"text": text})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	return p
}

func noteText(t *testing.T, r model.Record) string {
	t.Helper()
	var v map[string]string
	if err := r.Payload.Decode(&v); err != nil {
		t.Fatalf("decode record %d (%s): %v", r.ID, r.Payload.Type, err)
	}
	return v["text"]
}

func assertUniqueIDs(t *testing.T, recs []model.Record) {
	t.Helper()
	seen := map[uint64]bool{}
	for _, r := range recs {
		if seen[r.ID] {
			t.Errorf("duplicate event id %d", r.ID)
		}
		seen[r.ID] = true
	}
}

func assertSorted(t *testing.T, recs []model.Record) {
	t.Helper()
	for i := 1; i < len(recs); i++ {
		if recs[i].Timestamp < recs[i-1].Timestamp {
			t.Errorf("timestamp decreases at %d: %d < %d", i, recs[i].Timestamp, recs[i-1].Timestamp)
		}
	}
}

func TestStartAppendsActivation(t *testing.T) {
	tl := NewRoot(1, clock.NewManual(epoch))
	if tl.IsStarted() {
		t.Fatal("expected new timeline not started")
	}
	if !tl.Start() {
		t.Fatal("expected first start to succeed")
	}
	if tl.Start() {
		t.Error("expected second start to fail")
	}
	if tl.Count() != 1 {
		t.Fatalf("expected 1 record, got %d", tl.Count())
	}
	last, err := tl.LastRecord()
	if err != nil {
		t.Fatalf("last record: %v", err)
	}
	if !last.Payload.IsActivation() {
		t.Errorf("expected activation marker, got %s", last.Payload.Type)
	}
	if tl.IsPaused() {
		t.Error("expected started timeline to be running")
	}
}

func TestAppendAndPeek(t *testing.T) {
	c := clock.NewManual(epoch)
	tl := NewRoot(1, c)
	tl.Start()
	for i, text := range []string{"a", "b", "c"} {
		c.Advance(time.Duration(10*(i+1)) * time.Millisecond)
		tl.Append(note(t, text))
	}

	recs := tl.Records()
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}
	assertUniqueIDs(t, recs)
	assertSorted(t, recs)
	if recs[3].Timestamp != 60 {
		t.Errorf("expected last timestamp 60, got %d", recs[3].Timestamp)
	}

	r, err := tl.Peek(2)
	if err != nil || !r.Equal(recs[2]) {
		t.Errorf("expected peek(2) to equal records[2], got %+v (%v)", r, err)
	}
	r, err = tl.Peek(-2)
	if err != nil || !r.Equal(recs[2]) {
		t.Errorf("expected peek(-2) to equal records[2], got %+v (%v)", r, err)
	}

	for _, idx := range []int{4, -5, 100} {
		if _, err := tl.Peek(idx); !errors.Is(err, apperrors.ErrOutOfRange) {
			t.Errorf("expected out of range for %d, got %v", idx, err)
		}
	}
}

func TestLastRecordEmpty(t *testing.T) {
	tl := NewRoot(1, clock.NewManual(epoch))
	if _, err := tl.LastRecord(); !errors.Is(err, apperrors.ErrOutOfRange) {
		t.Errorf("expected out of range on empty timeline, got %v", err)
	}
}

func TestRemoveSplitMarkerDropsOwnedBranch(t *testing.T) {
	tl := NewRoot(1, clock.NewManual(epoch))
	tl.Start()
	marker := tl.Append(model.SplitPayload(2))
	if !tl.OwnsBranch(2) {
		t.Fatal("expected branch 2 to be owned after split marker")
	}
	if !tl.Remove(marker.ID) {
		t.Fatal("expected remove to succeed")
	}
	if tl.OwnsBranch(2) {
		t.Error("expected branch 2 to be released")
	}
	if tl.Remove(marker.ID) {
		t.Error("expected second remove to fail")
	}
}

func TestDetachBranch(t *testing.T) {
	tl := NewRoot(1, clock.NewManual(epoch))
	tl.Start()
	tl.Append(model.SplitPayload(2))
	tl.Append(note(t, "after"))

	if !tl.DetachBranch(2) {
		t.Fatal("expected detach to succeed")
	}
	if tl.OwnsBranch(2) || tl.Count() != 2 {
		t.Errorf("expected marker gone, got %d records owned=%v", tl.Count(), tl.OwnedBranches())
	}
	if tl.DetachBranch(2) {
		t.Error("expected second detach to fail")
	}
}

// fork mirrors what a forest does on split.
func fork(parent *Timeline, id uint32, c clock.Clock) *Timeline {
	parent.Append(model.SplitPayload(id))
	offset := parent.ProcessedTime()
	parent.Pause()
	return NewBranch(id, parent.LatestEventID(), offset, c)
}

func TestMergeFromTip(t *testing.T) {
	c := clock.NewManual(epoch)
	parent := NewRoot(1, c)
	parent.Start()
	c.Advance(10 * time.Millisecond)
	parent.Append(note(t, "a"))

	branch := fork(parent, 2, c)
	if branch.ForkWatermark() != 3 {
		t.Errorf("expected watermark 3, got %d", branch.ForkWatermark())
	}
	branch.Start()
	c.Advance(5 * time.Millisecond)
	branch.Append(note(t, "x"))
	c.Advance(5 * time.Millisecond)
	branch.Append(note(t, "y"))

	if !parent.IsMergeableFromTip(branch) {
		t.Fatal("expected tip merge")
	}
	if !parent.Merge(branch) {
		t.Fatal("expected merge to succeed")
	}

	recs := parent.Records()
	if len(recs) != 5 {
		t.Fatalf("expected 5 records, got %d", len(recs))
	}
	if !recs[2].Payload.IsActivation() || noteText(t, recs[3]) != "x" || noteText(t, recs[4]) != "y" {
		t.Errorf("expected branch records appended in order, got %+v", recs[2:])
	}
	if recs[4].Timestamp != 20 {
		t.Errorf("expected branch timestamp 20 in parent coordinates, got %d", recs[4].Timestamp)
	}
	if parent.OwnsBranch(2) {
		t.Error("expected branch released after merge")
	}
	if !parent.IsPaused() {
		t.Error("expected merge to keep the parent paused")
	}
	assertUniqueIDs(t, recs)
	assertSorted(t, recs)

	if parent.ProcessedTime() != 20 {
		t.Errorf("expected processed time caught up to 20, got %d", parent.ProcessedTime())
	}

	parent.Resume()
	next := parent.Append(note(t, "z"))
	if next.ID <= recs[4].ID {
		t.Errorf("expected new id after merged ids, got %d", next.ID)
	}
	if next.Timestamp < recs[4].Timestamp {
		t.Errorf("expected appended timestamp at or after %d, got %d", recs[4].Timestamp, next.Timestamp)
	}
	assertSorted(t, parent.Records())
}

func TestMergeFromBaseInterleaves(t *testing.T) {
	c := clock.NewManual(epoch)
	parent := NewRoot(1, c)
	parent.Start()
	c.Advance(10 * time.Millisecond)
	parent.Append(note(t, "a"))
	parent.Append(model.SplitPayload(2))
	branch := NewBranch(2, parent.LatestEventID(), parent.ProcessedTime(), c)
	branch.Start()

	step := func(tl *Timeline, text string) {
		c.Advance(5 * time.Millisecond)
		tl.Append(note(t, text))
	}
	step(parent, "p1") // 15
	step(branch, "b1") // 20
	step(parent, "p2") // 25
	branch.Append(note(t, "b2"))
	step(branch, "b3") // 30

	if parent.IsMergeableFromTip(branch) {
		t.Fatal("expected base merge")
	}
	if !parent.Merge(branch) {
		t.Fatal("expected merge to succeed")
	}

	var got []string
	for _, r := range parent.Records()[2:] {
		if r.Payload.IsActivation() {
			got = append(got, "act")
			continue
		}
		got = append(got, noteText(t, r))
	}
	want := []string{"act", "p1", "b1", "p2", "b2", "b3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged order mismatch (-want +got):\n%s", diff)
	}
	assertSorted(t, parent.Records())
	assertUniqueIDs(t, parent.Records())
	if parent.OwnsBranch(2) {
		t.Error("expected branch released")
	}

	// The parent stood at 25 while the branch ran to 30.
	if parent.ProcessedTime() != 30 {
		t.Errorf("expected processed time caught up to 30, got %d", parent.ProcessedTime())
	}
	parent.Append(note(t, "p3"))
	assertSorted(t, parent.Records())
}

func TestMergeUnownedBranch(t *testing.T) {
	c := clock.NewManual(epoch)
	parent := NewRoot(1, c)
	parent.Start()
	stranger := NewBranch(9, 0, 0, c)
	stranger.Start()

	if parent.Merge(stranger) {
		t.Error("expected merge of unowned branch to fail")
	}
	if parent.Merge(nil) {
		t.Error("expected merge of nil to fail")
	}
}

// TestMergeFromBaseProperty checks that the interleave keeps both sources in
// order, keeps every record, and yields a timestamp-sorted tail.
func TestMergeFromBaseProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := clock.NewManual(epoch)

	for iter := 0; iter < 200; iter++ {
		parent := NewRoot(1, c)
		parent.Start()
		branch := NewBranch(2, 0, 0, c)
		branch.Start()
		parent.Append(model.SplitPayload(2))

		tail := randomTimestamps(rng, rng.Intn(8))
		side := randomTimestamps(rng, rng.Intn(8))
		for i, ts := range tail {
			parent.records = append(parent.records, model.Record{ID: parent.ids.Next(), Timestamp: ts, Payload: note(t, "p"+string(rune('a'+i)))})
		}
		branch.records = nil
		for i, ts := range side {
			branch.records = append(branch.records, model.Record{ID: uint64(i + 1), Timestamp: ts, Payload: note(t, "b"+string(rune('a'+i)))})
		}

		if !parent.Merge(branch) {
			t.Fatalf("iter %d: expected merge", iter)
		}
		recs := parent.Records()[1:]
		if len(recs) != len(tail)+len(side) {
			t.Fatalf("iter %d: expected %d records, got %d", iter, len(tail)+len(side), len(recs))
		}
		assertSorted(t, recs)
		assertUniqueIDs(t, parent.Records())

		var ps, bs []string
		for _, r := range recs {
			text := noteText(t, r)
			if text[0] == 'p' {
				ps = append(ps, text)
			} else {
				bs = append(bs, text)
			}
		}
		for i, text := range ps {
			if text != "p"+string(rune('a'+i)) {
				t.Fatalf("iter %d: parent order broken: %v", iter, ps)
			}
		}
		for i, text := range bs {
			if text != "b"+string(rune('a'+i)) {
				t.Fatalf("iter %d: branch order broken: %v", iter, bs)
			}
		}

		// Ties keep the parent record first.
		for i := 1; i < len(recs); i++ {
			if recs[i].Timestamp == recs[i-1].Timestamp && noteText(t, recs[i])[0] == 'p' && noteText(t, recs[i-1])[0] == 'b' {
				t.Fatalf("iter %d: branch record placed before equal parent record at %d", iter, i)
			}
		}
	}
}

func randomTimestamps(rng *rand.Rand, n int) []int64 {
	out := make([]int64, n)
	var ts int64
	for i := range out {
		ts += int64(rng.Intn(4))
		out[i] = ts
	}
	return out
}

func TestReconstructLeavesStartedAndPaused(t *testing.T) {
	c := clock.NewManual(epoch)
	tl := NewRoot(1, c)
	tl.Start()
	c.Advance(30 * time.Millisecond)
	tl.Append(note(t, "a"))
	tl.Append(model.SplitPayload(5))
	s := tl.Extract()

	other := clock.NewManual(epoch.Add(time.Hour))
	cp := NewRoot(1, other)
	cp.Append(note(t, "stale"))
	if err := cp.Reconstruct(s); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if !cp.IsStarted() || !cp.IsPaused() {
		t.Errorf("expected started and paused, got started=%v paused=%v", cp.IsStarted(), cp.IsPaused())
	}
	if cp.Count() != 3 || !cp.OwnsBranch(5) {
		t.Errorf("expected 3 records owning 5, got %d owned=%v", cp.Count(), cp.OwnedBranches())
	}
	if cp.ProcessedTime() != 30 {
		t.Errorf("expected processed time 30, got %d", cp.ProcessedTime())
	}

	cp.Resume()
	r := cp.Append(note(t, "b"))
	if r.ID != 4 {
		t.Errorf("expected next id 4, got %d", r.ID)
	}
}

func TestReconstructDerivesOwnedFromMarkers(t *testing.T) {
	c := clock.NewManual(epoch)
	tl := NewRoot(1, c)
	tl.Start()
	tl.Append(model.SplitPayload(4))
	tl.Append(note(t, "a"))
	tl.Append(model.SplitPayload(6))
	s := tl.Extract()
	s.OwnedBranches = []uint32{4, 8}

	cp := NewRoot(1, c)
	if err := cp.Reconstruct(s); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if diff := cmp.Diff([]uint32{4, 6}, cp.OwnedBranches()); diff != "" {
		t.Errorf("owned branches mismatch (-want +got):\n%s", diff)
	}
	if cp.OwnsBranch(8) {
		t.Error("expected branch 8 without a marker not to be owned")
	}
}

func TestReconstructWrongID(t *testing.T) {
	c := clock.NewManual(epoch)
	tl := NewRoot(1, c)
	tl.Start()
	err := NewRoot(2, c).Reconstruct(tl.Extract())
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestReplicate(t *testing.T) {
	c := clock.NewManual(epoch)
	tl := NewBranch(3, 7, 120, c)
	tl.Start()
	for _, text := range []string{"a", "b", "c"} {
		c.Advance(17 * time.Millisecond)
		tl.Append(note(t, text))
	}
	tl.Pause()

	cp, err := tl.Replicate()
	if err != nil {
		t.Fatalf("replicate: %v", err)
	}
	if cp.Kind() != KindBranch || cp.ForkWatermark() != 7 {
		t.Errorf("expected branch with watermark 7, got %s/%d", cp.Kind(), cp.ForkWatermark())
	}
	if diff := cmp.Diff(tl.Extract(), cp.Extract()); diff != "" {
		t.Errorf("replica mismatch (-want +got):\n%s", diff)
	}

	cp.Resume()
	cp.Append(note(t, "d"))
	if tl.Count() != 4 {
		t.Errorf("expected original untouched with 4 records, got %d", tl.Count())
	}
}
