// Package timeline implements a single append-mostly event log with its own
// processed-time timer. A timeline is either the root of a forest or a branch
// forked from another timeline; the two differ only in the fork offset and
// watermark they carry.
package timeline

import (
	"slices"
	"strconv"

	"github.com/rcliao/branchlog/internal/clock"
	apperrors "github.com/rcliao/branchlog/internal/errors"
	"github.com/rcliao/branchlog/internal/idalloc"
	"github.com/rcliao/branchlog/internal/model"
)

// Kind tags a timeline as a forest root or a forked branch.
type Kind int

const (
	KindRoot Kind = iota
	KindBranch
)

func (k Kind) String() string {
	if k == KindBranch {
		return "branch"
	}
	return "root"
}

// Timeline is an ordered sequence of event records plus a timer, a branch id,
// and the set of branch ids forked directly from it.
//
// A Timeline is not safe for concurrent mutation.
type Timeline struct {
	id        uint32
	kind      Kind
	watermark uint64
	clock     clock.Clock

	started bool
	records []model.Record
	owned   map[uint32]struct{}
	ids     *idalloc.Allocator[uint64]
	timer   *Timer
}

// NewRoot returns an unstarted root timeline.
func NewRoot(id uint32, c clock.Clock) *Timeline {
	return &Timeline{
		id:    id,
		kind:  KindRoot,
		clock: c,
		owned: make(map[uint32]struct{}),
		ids:   idalloc.New[uint64](),
		timer: NewTimer(c),
	}
}

// NewBranch returns an unstarted branch timeline. watermark is the parent's
// latest event id at the fork; splitOffset is the parent's processed time.
func NewBranch(id uint32, watermark uint64, splitOffset int64, c clock.Clock) *Timeline {
	return &Timeline{
		id:        id,
		kind:      KindBranch,
		watermark: watermark,
		clock:     c,
		owned:     make(map[uint32]struct{}),
		ids:       idalloc.New[uint64](),
		timer:     NewBranchTimer(c, splitOffset),
	}
}

// ID returns the branch id.
func (t *Timeline) ID() uint32 { return t.id }

// Kind returns the root/branch tag.
func (t *Timeline) Kind() Kind { return t.kind }

// IsBranch reports whether the timeline was forked from another.
func (t *Timeline) IsBranch() bool { return t.kind == KindBranch }

// ForkWatermark returns the parent's latest event id at fork time. Zero for roots.
func (t *Timeline) ForkWatermark() uint64 { return t.watermark }

// LatestEventID returns the last event id this timeline allocated.
func (t *Timeline) LatestEventID() uint64 { return t.ids.Current() }

// IsStarted reports whether Start has been called (or the timeline was reconstructed).
func (t *Timeline) IsStarted() bool { return t.started }

// IsPaused reports whether the timer is paused.
func (t *Timeline) IsPaused() bool { return t.timer.IsPaused() }

// ProcessedTime returns the timer's processed time in milliseconds.
func (t *Timeline) ProcessedTime() int64 { return t.timer.ProcessedTime() }

// Start appends an activation marker and starts the timer. Returns false if
// the timeline was already started.
func (t *Timeline) Start() bool {
	if t.started {
		return false
	}
	t.Append(model.ActivationPayload())
	t.timer.Start()
	t.started = true
	return true
}

// Pause pauses the timer.
func (t *Timeline) Pause() { t.timer.Pause() }

// Resume resumes the timer.
func (t *Timeline) Resume() { t.timer.Resume() }

// Append records p at the tail, stamped with the current processed time.
func (t *Timeline) Append(p model.Payload) model.Record {
	rec := model.Record{
		ID:        t.ids.Next(),
		Timestamp: t.timer.ProcessedTime(),
		Payload:   p.Clone(),
	}
	t.records = append(t.records, rec)
	t.track(rec)
	return rec.Clone()
}

// Remove deletes the most recent record with the given id. Returns false when
// no record matches.
func (t *Timeline) Remove(eventID uint64) bool {
	for i := len(t.records) - 1; i >= 0; i-- {
		if t.records[i].ID != eventID {
			continue
		}
		t.untrack(t.records[i])
		t.records = slices.Delete(t.records, i, i+1)
		return true
	}
	return false
}

// DetachBranch deletes the split marker that forked branchID, so the branch is
// no longer referenced. Returns false when no marker matches.
func (t *Timeline) DetachBranch(branchID uint32) bool {
	for i := len(t.records) - 1; i >= 0; i-- {
		if target, ok := t.records[i].Payload.SplitTarget(); ok && target == branchID {
			delete(t.owned, branchID)
			t.records = slices.Delete(t.records, i, i+1)
			return true
		}
	}
	return false
}

// Peek returns the record at index; negative indexes count from the end.
func (t *Timeline) Peek(index int) (model.Record, error) {
	i := index
	if i < 0 {
		i += len(t.records)
	}
	if i < 0 || i >= len(t.records) {
		return model.Record{}, apperrors.WithMetadata(apperrors.CodeOutOfRange,
			"record index out of range",
			map[string]string{"index": strconv.Itoa(index), "count": strconv.Itoa(len(t.records))})
	}
	return t.records[i].Clone(), nil
}

// Count returns the number of records.
func (t *Timeline) Count() int { return len(t.records) }

// LastRecord returns the tail record.
func (t *Timeline) LastRecord() (model.Record, error) {
	return t.Peek(-1)
}

// Records returns a copy of all records in order.
func (t *Timeline) Records() []model.Record {
	out := make([]model.Record, len(t.records))
	for i, r := range t.records {
		out[i] = r.Clone()
	}
	return out
}

// OwnsBranch reports whether branchID was forked directly from this timeline.
func (t *Timeline) OwnsBranch(branchID uint32) bool {
	_, ok := t.owned[branchID]
	return ok
}

// OwnedBranches returns the directly forked branch ids in ascending order.
func (t *Timeline) OwnedBranches() []uint32 {
	out := make([]uint32, 0, len(t.owned))
	for id := range t.owned {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// IsMergeableFromTip reports whether the tail record is the split marker that
// forked branch, i.e. nothing happened here since the fork.
func (t *Timeline) IsMergeableFromTip(branch *Timeline) bool {
	if branch == nil || len(t.records) == 0 {
		return false
	}
	target, ok := t.records[len(t.records)-1].Payload.SplitTarget()
	return ok && target == branch.id
}

// Merge folds branch's records back into this timeline and drops the split
// marker that forked it. Returns false when branch is not owned here.
//
// Merged records are renumbered with this timeline's event ids so ids stay
// unique within the sequence. Processed time is advanced to the latest merged
// timestamp so records appended afterwards keep the sequence sorted.
func (t *Timeline) Merge(branch *Timeline) bool {
	if branch == nil {
		return false
	}
	if t.IsMergeableFromTip(branch) {
		t.mergeFromTip(branch)
	} else if !t.mergeFromBase(branch) {
		return false
	}
	if n := len(t.records); n > 0 {
		t.timer.CatchUp(t.records[n-1].Timestamp)
	}
	return true
}

// mergeFromTip replaces the trailing split marker with the branch's records.
// Branch timestamps already share this timeline's time coordinate.
func (t *Timeline) mergeFromTip(branch *Timeline) {
	t.records = t.records[:len(t.records)-1]
	delete(t.owned, branch.id)

	wasPaused := t.timer.IsPaused()
	t.timer.Pause()
	for _, r := range branch.records {
		t.records = append(t.records, t.adopt(r))
	}
	if !wasPaused {
		t.timer.Resume()
	}
}

// mergeFromBase interleaves the branch's records into the tail recorded since
// the fork. Each branch record lands before the first tail record with a
// strictly greater timestamp; ties keep the tail record first.
func (t *Timeline) mergeFromBase(branch *Timeline) bool {
	at := -1
	for i, r := range t.records {
		if target, ok := r.Payload.SplitTarget(); ok && target == branch.id {
			at = i
			break
		}
	}
	if at < 0 {
		return false
	}
	delete(t.owned, branch.id)

	tail := t.records[at+1:]
	merged := make([]model.Record, 0, len(t.records)-1+len(branch.records))
	merged = append(merged, t.records[:at]...)

	i := 0
	for _, r := range branch.records {
		for i < len(tail) && tail[i].Timestamp <= r.Timestamp {
			merged = append(merged, tail[i])
			i++
		}
		merged = append(merged, t.adopt(r))
	}
	merged = append(merged, tail[i:]...)
	t.records = merged
	return true
}

// adopt copies a foreign record under a fresh local id.
func (t *Timeline) adopt(r model.Record) model.Record {
	r = r.Clone()
	r.ID = t.ids.Next()
	t.track(r)
	return r
}

func (t *Timeline) track(r model.Record) {
	if target, ok := r.Payload.SplitTarget(); ok {
		t.owned[target] = struct{}{}
	}
}

func (t *Timeline) untrack(r model.Record) {
	if target, ok := r.Payload.SplitTarget(); ok {
		delete(t.owned, target)
	}
}

// Extract returns a deep snapshot of records, owned branches and timer.
func (t *Timeline) Extract() model.TimelineSnapshot {
	return model.TimelineSnapshot{
		BranchID:      t.id,
		Records:       t.Records(),
		OwnedBranches: t.OwnedBranches(),
		Timer:         t.timer.Extract(),
	}
}

// Reconstruct replaces all state with the snapshot. The timeline is left
// started and paused regardless of the snapshot's paused flag. Owned branches
// are derived from the split markers in the records; the snapshot's
// OwnedBranches field is not consulted.
func (t *Timeline) Reconstruct(s model.TimelineSnapshot) error {
	if s.BranchID != t.id {
		return apperrors.Newf(apperrors.CodeInvalidArgument,
			"snapshot of timeline %d cannot reconstruct timeline %d", s.BranchID, t.id)
	}
	if err := t.timer.Reconstruct(s.Timer); err != nil {
		return err
	}
	t.timer.Pause()

	t.Clear()
	var maxID uint64
	for _, r := range s.Records {
		r = r.Clone()
		t.records = append(t.records, r)
		t.track(r)
		maxID = max(maxID, r.ID)
	}
	t.ids.Set(maxID)
	t.started = true
	return nil
}

// Clear discards all records and owned branch ids.
func (t *Timeline) Clear() {
	t.records = nil
	t.owned = make(map[uint32]struct{})
}

// Replicate returns an independent copy rebuilt from this timeline's snapshot.
func (t *Timeline) Replicate() (*Timeline, error) {
	var cp *Timeline
	if t.kind == KindBranch {
		cp = NewBranch(t.id, t.watermark, t.timer.SplitOffset(), t.clock)
	} else {
		cp = NewRoot(t.id, t.clock)
	}
	if err := cp.Reconstruct(t.Extract()); err != nil {
		return nil, err
	}
	return cp, nil
}
