// Package forest manages a branchable event log: a pool of timelines keyed by
// branch id, one permanent root, and one active timeline that receives events.
//
// The active timeline can be split into a new branch, abandoned in favour of
// its parent (backtrack), discarded (rollback), or folded back into its parent
// (merge). The whole forest extracts to a plain snapshot and reconstructs from
// one, re-anchoring every timer to the reconstructing process's clock.
//
// A Forest is not safe for concurrent structural mutation; callers that share
// one across goroutines must serialize access.
package forest

import (
	"log/slog"
	"slices"
	"strconv"

	"github.com/rcliao/branchlog/internal/clock"
	apperrors "github.com/rcliao/branchlog/internal/errors"
	"github.com/rcliao/branchlog/internal/idalloc"
	"github.com/rcliao/branchlog/internal/logging"
	"github.com/rcliao/branchlog/internal/model"
	"github.com/rcliao/branchlog/internal/timeline"
)

// Options configures a Forest. The zero value uses the system clock and
// discards logs.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// Forest is the branch manager.
type Forest struct {
	clock  clock.Clock
	logger *slog.Logger

	pool     map[uint32]*timeline.Timeline
	rootID   uint32
	activeID uint32
	ids      *idalloc.Allocator[uint32]
}

// New returns an uninitialized forest.
func New(opts Options) *Forest {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Forest{
		clock:  c,
		logger: logger,
		pool:   make(map[uint32]*timeline.Timeline),
		ids:    idalloc.New[uint32](),
	}
}

// Initialize creates the root timeline and makes it active. Returns false if
// the forest already has a root.
func (f *Forest) Initialize() bool {
	if f.active() != nil {
		return false
	}
	id := f.ids.Next()
	root := timeline.NewRoot(id, f.clock)
	f.pool[id] = root
	f.rootID = id
	f.activeID = id
	f.logger.Debug("forest initialized", "root_id", id)
	return true
}

// IsInitialized reports whether the forest has a root and an active timeline.
func (f *Forest) IsInitialized() bool { return f.active() != nil }

// RootID returns the root branch id, or 0 when uninitialized.
func (f *Forest) RootID() uint32 { return f.rootID }

// ActiveID returns the active branch id, or 0 when uninitialized.
func (f *Forest) ActiveID() uint32 { return f.activeID }

// Branches returns every branch id in the pool in ascending order.
func (f *Forest) Branches() []uint32 {
	out := make([]uint32, 0, len(f.pool))
	for id := range f.pool {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Has reports whether branchID is in the pool.
func (f *Forest) Has(branchID uint32) bool {
	_, ok := f.pool[branchID]
	return ok
}

func (f *Forest) active() *timeline.Timeline {
	return f.pool[f.activeID]
}

// IsStarted reports whether the active timeline has been started.
func (f *Forest) IsStarted() bool {
	a := f.active()
	return a != nil && a.IsStarted()
}

// IsPaused reports whether the active timeline is paused.
func (f *Forest) IsPaused() bool {
	a := f.active()
	return a != nil && a.IsPaused()
}

// Start starts the active timeline. Returns false if already started.
func (f *Forest) Start() bool {
	a := f.active()
	if a == nil {
		return false
	}
	return a.Start()
}

// Pause pauses the active timeline. Returns false unless it was running.
func (f *Forest) Pause() bool {
	a := f.active()
	if a == nil || !a.IsStarted() || a.IsPaused() {
		return false
	}
	a.Pause()
	return true
}

// Resume resumes the active timeline. Returns false unless it was paused.
func (f *Forest) Resume() bool {
	a := f.active()
	if a == nil || !a.IsStarted() || !a.IsPaused() {
		return false
	}
	a.Resume()
	return true
}

// Append records p on the active timeline. It fails with a not-ready error
// unless the active timeline is started and running.
func (f *Forest) Append(p model.Payload) (model.Record, error) {
	a := f.active()
	switch {
	case a == nil:
		return model.Record{}, apperrors.New(apperrors.CodeNotReady, "forest not initialized")
	case !a.IsStarted():
		return model.Record{}, apperrors.Newf(apperrors.CodeNotReady, "timeline %d not started", a.ID())
	case a.IsPaused():
		return model.Record{}, apperrors.Newf(apperrors.CodeNotReady, "timeline %d is paused", a.ID())
	case p.Type.IsReserved():
		return model.Record{}, apperrors.Newf(apperrors.CodeInvalidArgument, "payload type %q is reserved", p.Type)
	}
	return a.Append(p), nil
}

// Peek returns a record of the active timeline; negative indexes count from the end.
func (f *Forest) Peek(index int) (model.Record, error) {
	a := f.active()
	if a == nil {
		return model.Record{}, apperrors.New(apperrors.CodeOutOfRange, "forest not initialized")
	}
	return a.Peek(index)
}

// Count returns the number of records on the active timeline.
func (f *Forest) Count() int {
	a := f.active()
	if a == nil {
		return 0
	}
	return a.Count()
}

// Split forks a new branch from the active timeline and makes it active. The
// parent is paused and the new branch is not started. When startParent is set
// an unstarted parent is started (and immediately paused) first.
// Returns the new branch id, or 0 when uninitialized.
func (f *Forest) Split(startParent bool) uint32 {
	prev := f.active()
	if prev == nil {
		return 0
	}

	id := f.ids.Next()
	prev.Append(model.SplitPayload(id))
	offset := prev.ProcessedTime()
	prev.Pause()

	branch := timeline.NewBranch(id, prev.LatestEventID(), offset, f.clock)
	f.pool[id] = branch
	f.activeID = id

	if startParent && prev.Start() {
		prev.Pause()
	}
	f.logger.Debug("timeline split", "parent_id", prev.ID(), "branch_id", id, "offset_ms", offset)
	return id
}

// parentOf returns the pool member that owns branchID.
func (f *Forest) parentOf(branchID uint32) *timeline.Timeline {
	for _, tl := range f.pool {
		if tl.OwnsBranch(branchID) {
			return tl
		}
	}
	return nil
}

func (f *Forest) orphanError(branchID uint32) error {
	f.logger.Warn("branch has no parent", "branch_id", branchID)
	return apperrors.WithMetadata(apperrors.CodeIntegrity,
		"branch "+strconv.FormatUint(uint64(branchID), 10)+" has no parent in the pool",
		map[string]string{"branch_id": strconv.FormatUint(uint64(branchID), 10)})
}

// Backtrack pauses the active branch and makes its parent active, leaving the
// branch in the pool. Returns the parent id, or 0 when the active timeline is
// the root.
func (f *Forest) Backtrack(resume bool) (uint32, error) {
	a := f.active()
	if a == nil || !a.IsBranch() || a.ID() == f.rootID {
		return 0, nil
	}
	a.Pause()
	parent := f.parentOf(a.ID())
	if parent == nil {
		return 0, f.orphanError(a.ID())
	}
	f.activeID = parent.ID()
	if resume {
		parent.Resume()
	}
	f.logger.Debug("timeline backtracked", "from_id", a.ID(), "to_id", parent.ID())
	return parent.ID(), nil
}

// Rollback backtracks and discards the branch that was left, including its
// split marker in the parent. Returns the parent id, or 0 when the active
// timeline is the root.
func (f *Forest) Rollback(resume bool) (uint32, error) {
	left := f.activeID
	parentID, err := f.Backtrack(resume)
	if err != nil || parentID == 0 {
		return parentID, err
	}
	f.pool[parentID].DetachBranch(left)
	f.discard(left)
	f.logger.Debug("timeline rolled back", "branch_id", left, "parent_id", parentID)
	return parentID, nil
}

// discard removes a branch and, recursively, everything forked from it.
func (f *Forest) discard(branchID uint32) {
	tl, ok := f.pool[branchID]
	if !ok {
		return
	}
	for _, child := range tl.OwnedBranches() {
		f.discard(child)
	}
	tl.Pause()
	delete(f.pool, branchID)
}

// Merge folds the active branch into its parent, removes the branch and makes
// the parent active. Returns false when the active timeline is not a branch.
func (f *Forest) Merge(resume bool) (bool, error) {
	a := f.active()
	if a == nil || !a.IsBranch() {
		return false, nil
	}
	parent := f.parentOf(a.ID())
	if parent == nil {
		return false, f.orphanError(a.ID())
	}
	tip := parent.IsMergeableFromTip(a)
	if !parent.Merge(a) {
		return false, apperrors.Newf(apperrors.CodeIntegrity,
			"timeline %d owns branch %d but holds no split marker for it", parent.ID(), a.ID())
	}
	a.Pause()
	delete(f.pool, a.ID())
	f.activeID = parent.ID()
	if resume {
		parent.Resume()
	}
	f.logger.Debug("timeline merged", "branch_id", a.ID(), "parent_id", parent.ID(), "tip", tip)
	return true, nil
}

// IsMergeable reports whether the active branch can be merged by a pure tail
// append into its parent.
func (f *Forest) IsMergeable() bool {
	a := f.active()
	if a == nil || !a.IsBranch() {
		return false
	}
	parent := f.parentOf(a.ID())
	return parent != nil && parent.IsMergeableFromTip(a)
}

// lineage returns the active timeline's ancestor chain, active first.
func (f *Forest) lineage(from *timeline.Timeline) []*timeline.Timeline {
	var chain []*timeline.Timeline
	seen := make(map[uint32]bool)
	for tl := from; tl != nil && !seen[tl.ID()]; tl = f.parentOf(tl.ID()) {
		seen[tl.ID()] = true
		chain = append(chain, tl)
	}
	return chain
}

// TrimInactiveBranches drops every timeline that is not on the active
// timeline's ancestor chain, and the split markers that pointed at them.
// Returns the removed branch ids.
func (f *Forest) TrimInactiveBranches() []uint32 {
	keep := make(map[uint32]bool)
	for _, tl := range f.lineage(f.active()) {
		keep[tl.ID()] = true
	}

	var removed []uint32
	for _, id := range f.Branches() {
		if keep[id] {
			continue
		}
		f.pool[id].Pause()
		delete(f.pool, id)
		removed = append(removed, id)
	}
	for id := range keep {
		tl := f.pool[id]
		for _, child := range tl.OwnedBranches() {
			if !keep[child] {
				tl.DetachBranch(child)
			}
		}
	}
	if len(removed) > 0 {
		f.logger.Debug("inactive branches trimmed", "removed", removed)
	}
	return removed
}

// BranchInfo describes one pool member.
type BranchInfo struct {
	ID       uint32   `json:"id"`
	ParentID uint32   `json:"parent_id,omitempty"`
	Kind     string   `json:"kind"`
	Active   bool     `json:"active"`
	Started  bool     `json:"started"`
	Paused   bool     `json:"paused"`
	Records  int      `json:"records"`
	Owned    []uint32 `json:"owned,omitempty"`
	Time     int64    `json:"processed_ms"`
}

// Describe returns a summary of every timeline in the pool, ordered by id.
func (f *Forest) Describe() []BranchInfo {
	out := make([]BranchInfo, 0, len(f.pool))
	for _, id := range f.Branches() {
		tl := f.pool[id]
		info := BranchInfo{
			ID:      id,
			Kind:    tl.Kind().String(),
			Active:  id == f.activeID,
			Started: tl.IsStarted(),
			Paused:  tl.IsPaused(),
			Records: tl.Count(),
			Owned:   tl.OwnedBranches(),
			Time:    tl.ProcessedTime(),
		}
		if p := f.parentOf(id); p != nil {
			info.ParentID = p.ID()
		}
		out = append(out, info)
	}
	return out
}
