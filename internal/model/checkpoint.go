// Package model defines the event record, payload and snapshot types shared by
// timelines, forests and the checkpoint store.
package model

import "time"

// Checkpoint is one stored version of a named forest.
type Checkpoint struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Version    int             `json:"version"`
	Supersedes string          `json:"supersedes,omitempty"`
	Note       string          `json:"note,omitempty"`
	ActiveID   uint32          `json:"active_id"`
	RootID     uint32          `json:"root_id"`
	Timelines  int             `json:"timelines"`
	Records    int             `json:"records"`
	CreatedAt  time.Time       `json:"created_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
	Snapshot   *ForestSnapshot `json:"snapshot,omitempty"`
}

// Summarize fills the denormalised counters from the snapshot.
func (c *Checkpoint) Summarize() {
	if c.Snapshot == nil {
		return
	}
	c.ActiveID = c.Snapshot.ActiveID
	c.RootID = c.Snapshot.RootID
	c.Timelines = len(c.Snapshot.Timelines)
	c.Records = 0
	for _, tl := range c.Snapshot.Timelines {
		c.Records += len(tl.Records)
	}
}
