package timeline

import (
	"time"

	"github.com/rcliao/branchlog/internal/clock"
	apperrors "github.com/rcliao/branchlog/internal/errors"
	"github.com/rcliao/branchlog/internal/model"
)

// Timer measures processed time: time since Start minus time spent paused.
// A branch timer adds a fixed split offset, the parent's processed time at the
// fork, so that processed time is continuous across the fork point.
//
// Pause instants, resume instants and accumulated pause are kept in
// milliseconds relative to the start instant. Only the start instant is tied to
// the clock, which is what makes a snapshot portable.
type Timer struct {
	clock  clock.Clock
	branch bool
	offset int64

	started     bool
	start       time.Time
	paused      bool
	pausedAt    int64
	resumedAt   int64
	totalPaused int64
}

// NewTimer returns an inert root timer.
func NewTimer(c clock.Clock) *Timer {
	return &Timer{clock: c}
}

// NewBranchTimer returns an inert branch timer offset by the parent's processed time.
func NewBranchTimer(c clock.Clock, splitOffset int64) *Timer {
	return &Timer{clock: c, branch: true, offset: splitOffset}
}

// IsBranch reports whether the timer carries a split offset.
func (t *Timer) IsBranch() bool { return t.branch }

// SplitOffset returns the fixed offset of a branch timer.
func (t *Timer) SplitOffset() int64 { return t.offset }

// IsPaused reports whether the timer is paused.
func (t *Timer) IsPaused() bool { return t.paused }

// Start fixes the zero instant and clears all accounting.
func (t *Timer) Start() {
	t.started = true
	t.start = t.clock.Now()
	t.paused = false
	t.pausedAt = 0
	t.resumedAt = 0
	t.totalPaused = 0
}

// Pause freezes processed time. No-op when already paused.
func (t *Timer) Pause() {
	if t.paused {
		return
	}
	t.paused = true
	t.pausedAt = t.sinceStart()
}

// Resume unfreezes processed time. No-op when not paused.
func (t *Timer) Resume() {
	if !t.paused {
		return
	}
	t.paused = false
	t.resumedAt = t.sinceStart()
	t.totalPaused += t.resumedAt - t.pausedAt
}

// ProcessedTime returns elapsed non-paused milliseconds plus the split offset.
func (t *Timer) ProcessedTime() int64 {
	return t.elapsed() - t.totalPaused + t.offset
}

// CatchUp advances processed time to ts when it lags behind, without counting
// the jump as pause. The start instant moves back and the relative pause and
// resume instants shift with it, so accumulated pause is unchanged.
func (t *Timer) CatchUp(ts int64) {
	diff := ts - t.ProcessedTime()
	if diff <= 0 {
		return
	}
	t.start = t.start.Add(-time.Duration(diff) * time.Millisecond)
	t.pausedAt += diff
	t.resumedAt += diff
}

// sinceStart is the raw wall-clock distance from the start instant.
func (t *Timer) sinceStart() int64 {
	if !t.started {
		return 0
	}
	return t.clock.Now().Sub(t.start).Milliseconds()
}

// elapsed is sinceStart frozen at the pause instant while paused.
func (t *Timer) elapsed() int64 {
	if t.paused {
		return t.pausedAt
	}
	return t.sinceStart()
}

// Extract returns the portable timer state. A paused timer reports its elapsed
// time as of the pause instant.
func (t *Timer) Extract() model.TimerSnapshot {
	s := model.TimerSnapshot{
		Paused:              t.paused,
		LastPauseInstant:    t.pausedAt,
		LastResumeInstant:   t.resumedAt,
		TotalPausedDuration: t.totalPaused,
		ElapsedSinceStart:   t.elapsed(),
	}
	if t.branch {
		off := t.offset
		s.SplitOffset = &off
	}
	return s
}

// Reconstruct re-anchors the start instant to now - elapsedSinceStart and
// restores the accumulated pause verbatim. The timer comes back running;
// callers pause or resume explicitly.
func (t *Timer) Reconstruct(s model.TimerSnapshot) error {
	if t.branch && s.SplitOffset == nil {
		return apperrors.New(apperrors.CodeInvalidArgument, "branch timer requires a branch timer snapshot")
	}
	if !t.branch && s.SplitOffset != nil {
		return apperrors.New(apperrors.CodeInvalidArgument, "root timer cannot restore a branch timer snapshot")
	}

	t.started = true
	t.start = t.clock.Now().Add(-time.Duration(s.ElapsedSinceStart) * time.Millisecond)
	t.paused = false
	t.pausedAt = s.LastPauseInstant
	t.resumedAt = s.LastResumeInstant
	t.totalPaused = s.TotalPausedDuration
	if s.SplitOffset != nil {
		t.offset = *s.SplitOffset
	}
	return nil
}
