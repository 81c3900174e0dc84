package forest

import (
	"cmp"
	"slices"
	"strconv"

	apperrors "github.com/rcliao/branchlog/internal/errors"
	"github.com/rcliao/branchlog/internal/model"
	"github.com/rcliao/branchlog/internal/timeline"
)

// ExtractAll returns a deep snapshot of every timeline in the pool, ordered
// by branch id.
func (f *Forest) ExtractAll() model.ForestSnapshot {
	s := model.ForestSnapshot{
		ActiveID:  f.activeID,
		RootID:    f.rootID,
		Timelines: make([]model.TimelineSnapshot, 0, len(f.pool)),
	}
	for _, id := range f.Branches() {
		s.Timelines = append(s.Timelines, f.pool[id].Extract())
	}
	return s
}

// ReconstructAll discards the current pool and rebuilds it from s. Branches
// are rebuilt by walking split markers outward from the root, so every
// rebuilt branch is reachable from it. Every timeline comes back started and
// paused.
//
// A snapshot without its root or active entry is rejected before the current
// pool is touched. Any later failure leaves the forest empty and uninitialized.
func (f *Forest) ReconstructAll(s model.ForestSnapshot) error {
	for _, id := range []uint32{s.RootID, s.ActiveID} {
		if _, ok := s.Timeline(id); !ok {
			f.logger.Warn("snapshot rejected", "missing_id", id)
			return apperrors.WithMetadata(apperrors.CodeIntegrity,
				"snapshot has no entry for timeline "+strconv.FormatUint(uint64(id), 10),
				map[string]string{"branch_id": strconv.FormatUint(uint64(id), 10)})
		}
	}

	f.reset()
	if err := f.rebuild(s); err != nil {
		f.reset()
		f.logger.Warn("forest reconstruction failed", "error", err)
		return err
	}
	f.logger.Debug("forest reconstructed",
		"root_id", f.rootID, "active_id", f.activeID, "timelines", len(f.pool))
	return nil
}

func (f *Forest) reset() {
	for _, tl := range f.pool {
		tl.Pause()
	}
	clear(f.pool)
	f.rootID = 0
	f.activeID = 0
	f.ids.Reset()
}

func (f *Forest) rebuild(s model.ForestSnapshot) error {
	entry, ok := s.Timeline(s.RootID)
	if !ok {
		return apperrors.Newf(apperrors.CodeIntegrity, "snapshot has no root timeline %d", s.RootID)
	}
	root := timeline.NewRoot(s.RootID, f.clock)
	if err := root.Reconstruct(entry); err != nil {
		return apperrors.Wrap(apperrors.CodeIntegrity, "restore root timeline", err)
	}
	f.pool[root.ID()] = root
	maxID := root.ID()

	queue := []*timeline.Timeline{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, marker := range parent.Records() {
			id, ok := marker.Payload.SplitTarget()
			if !ok {
				continue
			}
			if _, dup := f.pool[id]; dup {
				return apperrors.Newf(apperrors.CodeIntegrity, "branch %d is referenced more than once", id)
			}
			entry, ok := s.Timeline(id)
			if !ok {
				return apperrors.Newf(apperrors.CodeIntegrity,
					"timeline %d splits to branch %d which is missing from the snapshot", parent.ID(), id)
			}
			branch := timeline.NewBranch(id, marker.ID, marker.Timestamp, f.clock)
			if err := branch.Reconstruct(entry); err != nil {
				return apperrors.Wrap(apperrors.CodeIntegrity, "restore branch timeline", err)
			}
			f.pool[id] = branch
			maxID = max(maxID, id)
			queue = append(queue, branch)
		}
	}

	if _, ok := f.pool[s.ActiveID]; !ok {
		return apperrors.Newf(apperrors.CodeIntegrity, "active timeline %d is not reachable from root %d", s.ActiveID, s.RootID)
	}
	if n := len(s.Timelines) - len(f.pool); n > 0 {
		f.logger.Warn("unreachable timelines ignored", "count", n)
	}
	f.rootID = s.RootID
	f.activeID = s.ActiveID
	f.ids.Set(maxID)
	return nil
}

// Replicate returns an independent forest rebuilt from this forest's snapshot,
// sharing its clock and logger. Timelines of the copy come back paused.
func (f *Forest) Replicate() (*Forest, error) {
	cp := New(Options{Clock: f.clock, Logger: f.logger})
	if !f.IsInitialized() {
		return cp, nil
	}
	if err := cp.ReconstructAll(f.ExtractAll()); err != nil {
		return nil, err
	}
	return cp, nil
}

// Flatten returns the linear history that leads to branchID: the records of
// every ancestor up to and including the split marker of the next branch on
// the path, followed by the branch's own records, ordered by timestamp and
// with record ids renumbered 1..n. The result carries branchID's id and timer and
// no owned branches.
func (f *Forest) Flatten(branchID uint32) (model.TimelineSnapshot, error) {
	from, ok := f.pool[branchID]
	if !ok {
		return model.TimelineSnapshot{}, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown branch %d", branchID)
	}
	chain := f.lineage(from)
	slices.Reverse(chain)

	out := model.TimelineSnapshot{
		BranchID:      branchID,
		OwnedBranches: []uint32{},
		Timer:         from.Extract().Timer,
	}
	for i, tl := range chain {
		recs := tl.Records()
		if i+1 < len(chain) {
			// Ancestors contribute their history up to the fork only.
			next := chain[i+1].ID()
			cut := slices.IndexFunc(recs, func(r model.Record) bool {
				target, ok := r.Payload.SplitTarget()
				return ok && target == next
			})
			if cut < 0 {
				return model.TimelineSnapshot{}, apperrors.Newf(apperrors.CodeIntegrity,
					"timeline %d owns branch %d but holds no split marker for it", tl.ID(), next)
			}
			recs = recs[:cut+1]
		}
		out.Records = append(out.Records, recs...)
	}
	slices.SortStableFunc(out.Records, func(a, b model.Record) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	for i := range out.Records {
		out.Records[i].ID = uint64(i + 1)
	}
	return out, nil
}

// FlattenActive flattens the active timeline's history.
func (f *Forest) FlattenActive() (model.TimelineSnapshot, error) {
	return f.Flatten(f.activeID)
}
