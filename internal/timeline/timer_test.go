package timeline

import (
	"errors"
	"testing"
	"time"

	"github.com/rcliao/branchlog/internal/clock"
	apperrors "github.com/rcliao/branchlog/internal/errors"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTimerPauseFreezesProcessedTime(t *testing.T) {
	c := clock.NewManual(epoch)
	tm := NewTimer(c)

	if got := tm.ProcessedTime(); got != 0 {
		t.Fatalf("expected inert timer at 0, got %d", got)
	}

	tm.Start()
	c.Advance(100 * time.Millisecond)
	if got := tm.ProcessedTime(); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}

	tm.Pause()
	c.Advance(250 * time.Millisecond)
	if got := tm.ProcessedTime(); got != 100 {
		t.Errorf("expected processed time frozen at 100, got %d", got)
	}

	tm.Pause() // no-op
	tm.Resume()
	c.Advance(40 * time.Millisecond)
	if got := tm.ProcessedTime(); got != 140 {
		t.Errorf("expected 140 after resume, got %d", got)
	}

	tm.Resume() // no-op
	s := tm.Extract()
	if s.TotalPausedDuration != 250 {
		t.Errorf("expected 250ms paused, got %d", s.TotalPausedDuration)
	}
	if s.LastPauseInstant != 100 || s.LastResumeInstant != 350 {
		t.Errorf("expected pause/resume at 100/350, got %d/%d", s.LastPauseInstant, s.LastResumeInstant)
	}
	if s.ElapsedSinceStart != 390 {
		t.Errorf("expected 390 elapsed, got %d", s.ElapsedSinceStart)
	}
}

func TestTimerCatchUp(t *testing.T) {
	c := clock.NewManual(epoch)
	tm := NewTimer(c)
	tm.Start()
	c.Advance(100 * time.Millisecond)
	tm.Pause()
	c.Advance(50 * time.Millisecond)

	tm.CatchUp(60) // behind already
	if got := tm.ProcessedTime(); got != 100 {
		t.Errorf("expected catch up to a past instant to be a no-op, got %d", got)
	}

	tm.CatchUp(180)
	if got := tm.ProcessedTime(); got != 180 {
		t.Errorf("expected 180 while paused, got %d", got)
	}
	tm.Resume()
	c.Advance(20 * time.Millisecond)
	if got := tm.ProcessedTime(); got != 200 {
		t.Errorf("expected 200 after resume, got %d", got)
	}
	if s := tm.Extract(); s.TotalPausedDuration != 50 {
		t.Errorf("expected 50ms paused, got %d", s.TotalPausedDuration)
	}

	tm.CatchUp(300)
	if got := tm.ProcessedTime(); got != 300 {
		t.Errorf("expected 300 while running, got %d", got)
	}
	c.Advance(10 * time.Millisecond)
	if got := tm.ProcessedTime(); got != 310 {
		t.Errorf("expected 310, got %d", got)
	}
}

func TestTimerReconstructPreservesProcessedTime(t *testing.T) {
	c := clock.NewManual(epoch)
	tm := NewTimer(c)
	tm.Start()
	c.Advance(200 * time.Millisecond)
	tm.Pause()
	c.Advance(50 * time.Millisecond)
	tm.Resume()
	c.Advance(30 * time.Millisecond)

	s := tm.Extract()
	if s.Paused {
		t.Fatal("expected running snapshot")
	}
	want := tm.ProcessedTime()
	if want != 230 {
		t.Fatalf("expected 230 processed, got %d", want)
	}

	// A different process, hours later.
	other := clock.NewManual(epoch.Add(5 * time.Hour))
	cp := NewTimer(other)
	if err := cp.Reconstruct(s); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if got := cp.ProcessedTime(); got != want {
		t.Errorf("expected %d after reconstruct, got %d", want, got)
	}
	if cp.IsPaused() {
		t.Error("expected reconstruct not to restore the paused flag")
	}

	other.Advance(10 * time.Millisecond)
	if got := cp.ProcessedTime(); got != want+10 {
		t.Errorf("expected %d, got %d", want+10, got)
	}
}

func TestTimerReconstructPausedSnapshot(t *testing.T) {
	c := clock.NewManual(epoch)
	tm := NewTimer(c)
	tm.Start()
	c.Advance(100 * time.Millisecond)
	tm.Pause()
	c.Advance(time.Minute)

	s := tm.Extract()
	if !s.Paused || s.ElapsedSinceStart != 100 {
		t.Fatalf("expected paused snapshot frozen at 100, got %+v", s)
	}

	other := clock.NewManual(epoch.Add(24 * time.Hour))
	cp := NewTimer(other)
	if err := cp.Reconstruct(s); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	cp.Pause()
	other.Advance(time.Second)
	if got := cp.ProcessedTime(); got != 100 {
		t.Errorf("expected 100 while paused, got %d", got)
	}
	cp.Resume()
	other.Advance(5 * time.Millisecond)
	if got := cp.ProcessedTime(); got != 105 {
		t.Errorf("expected 105 after resume, got %d", got)
	}
}

func TestBranchTimerOffset(t *testing.T) {
	c := clock.NewManual(epoch)
	tm := NewBranchTimer(c, 500)

	if got := tm.ProcessedTime(); got != 500 {
		t.Errorf("expected offset 500 before start, got %d", got)
	}
	tm.Start()
	c.Advance(10 * time.Millisecond)
	if got := tm.ProcessedTime(); got != 510 {
		t.Errorf("expected 510, got %d", got)
	}

	s := tm.Extract()
	if !s.IsBranch() || *s.SplitOffset != 500 {
		t.Fatalf("expected branch snapshot with offset 500, got %+v", s)
	}
	if got := s.ProcessedTime(); got != 510 {
		t.Errorf("expected snapshot processed time 510, got %d", got)
	}

	cp := NewBranchTimer(clock.NewManual(epoch.Add(time.Hour)), 0)
	if err := cp.Reconstruct(s); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if cp.SplitOffset() != 500 || cp.ProcessedTime() != 510 {
		t.Errorf("expected offset 500 and 510 processed, got %d and %d", cp.SplitOffset(), cp.ProcessedTime())
	}
}

func TestTimerReconstructKindMismatch(t *testing.T) {
	c := clock.NewManual(epoch)
	root := NewTimer(c)
	root.Start()
	branch := NewBranchTimer(c, 10)
	branch.Start()

	err := NewBranchTimer(c, 0).Reconstruct(root.Extract())
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for root snapshot into branch timer, got %v", err)
	}
	err = NewTimer(c).Reconstruct(branch.Extract())
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for branch snapshot into root timer, got %v", err)
	}
}

func TestTimerSystemClockResumption(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps")
	}
	tm := NewTimer(clock.System{})
	tm.Start()
	time.Sleep(20 * time.Millisecond)
	tm.Pause()
	before := tm.ProcessedTime()
	time.Sleep(100 * time.Millisecond)

	cp := NewTimer(clock.System{})
	if err := cp.Reconstruct(tm.Extract()); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	cp.Pause()
	if diff := cp.ProcessedTime() - before; diff < -5 || diff > 5 {
		t.Errorf("expected processed time within 5ms of %d, got %d", before, cp.ProcessedTime())
	}
}
