package model

// TimerSnapshot is the portable state of a timeline timer. Instants are
// milliseconds relative to the timer's own start, so they survive a move to a
// different process. SplitOffset is set only for branch timers.
type TimerSnapshot struct {
	Paused              bool   `json:"paused"`
	LastPauseInstant    int64  `json:"lastPauseInstant"`
	LastResumeInstant   int64  `json:"lastResumeInstant"`
	TotalPausedDuration int64  `json:"totalPausedDuration"`
	ElapsedSinceStart   int64  `json:"elapsedSinceStart"`
	SplitOffset         *int64 `json:"splitOffset,omitempty"`
}

// IsBranch reports whether the snapshot came from a branch timer.
func (s TimerSnapshot) IsBranch() bool {
	return s.SplitOffset != nil
}

// ProcessedTime is the processed time the timer reported when extracted.
func (s TimerSnapshot) ProcessedTime() int64 {
	t := s.ElapsedSinceStart - s.TotalPausedDuration
	if s.SplitOffset != nil {
		t += *s.SplitOffset
	}
	return t
}

// Clone returns a deep copy of s.
func (s TimerSnapshot) Clone() TimerSnapshot {
	if s.SplitOffset != nil {
		off := *s.SplitOffset
		s.SplitOffset = &off
	}
	return s
}

// Record is one event in a timeline. ID is unique within its owning timeline;
// Timestamp is the timeline's processed time at append, not wall-clock time.
type Record struct {
	ID        uint64  `json:"id"`
	Timestamp int64   `json:"timestamp"`
	Payload   Payload `json:"payload"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Payload = r.Payload.Clone()
	return r
}

// Equal reports whether r and o are structurally equal.
func (r Record) Equal(o Record) bool {
	return r.ID == o.ID && r.Timestamp == o.Timestamp && r.Payload.Equal(o.Payload)
}

// TimelineSnapshot is the extraction of a single timeline.
type TimelineSnapshot struct {
	BranchID      uint32        `json:"branchId"`
	Records       []Record      `json:"records"`
	OwnedBranches []uint32      `json:"ownedBranches"`
	Timer         TimerSnapshot `json:"timer"`
}

// Clone returns a deep copy of s.
func (s TimelineSnapshot) Clone() TimelineSnapshot {
	out := TimelineSnapshot{
		BranchID:      s.BranchID,
		Records:       make([]Record, len(s.Records)),
		OwnedBranches: append([]uint32(nil), s.OwnedBranches...),
		Timer:         s.Timer.Clone(),
	}
	for i, r := range s.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// Append adds other's records after s's records. Owned branches of other are
// not carried over.
func (s *TimelineSnapshot) Append(other TimelineSnapshot) {
	for _, r := range other.Records {
		s.Records = append(s.Records, r.Clone())
	}
}

// ForestSnapshot is the extraction of a whole branch forest.
type ForestSnapshot struct {
	ActiveID  uint32             `json:"activeId"`
	RootID    uint32             `json:"rootId"`
	Timelines []TimelineSnapshot `json:"timelines"`
}

// Clone returns a deep copy of s.
func (s ForestSnapshot) Clone() ForestSnapshot {
	out := ForestSnapshot{
		ActiveID:  s.ActiveID,
		RootID:    s.RootID,
		Timelines: make([]TimelineSnapshot, len(s.Timelines)),
	}
	for i, tl := range s.Timelines {
		out.Timelines[i] = tl.Clone()
	}
	return out
}

// Timeline returns the entry with the given branch id.
func (s ForestSnapshot) Timeline(id uint32) (TimelineSnapshot, bool) {
	for _, tl := range s.Timelines {
		if tl.BranchID == id {
			return tl, true
		}
	}
	return TimelineSnapshot{}, false
}
