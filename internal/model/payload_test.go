package model

import (
	"encoding/json"
	"testing"
)

func TestSplitPayloadRoundTrip(t *testing.T) {
	p := SplitPayload(7)
	target, ok := p.SplitTarget()
	if !ok || target != 7 {
		t.Fatalf("expected split target 7, got %d (ok=%v)", target, ok)
	}

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Payload
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(p) {
		t.Errorf("expected %s, got %s", p.Data, back.Data)
	}
	if target, ok := back.SplitTarget(); !ok || target != 7 {
		t.Errorf("expected split target 7 after round trip, got %d", target)
	}
}

func TestOpaquePayloadIsNotSplit(t *testing.T) {
	p, err := NewPayload("game.roll", map[string]int{"split": 3})
	if err != nil {
		t.Fatalf("new payload: %v", err)
	}
	if _, ok := p.SplitTarget(); ok {
		t.Error("expected opaque payload not to be a split marker")
	}
	if p.IsActivation() {
		t.Error("expected opaque payload not to be an activation marker")
	}
	if !ActivationPayload().IsActivation() {
		t.Error("expected activation payload to be an activation marker")
	}
}

func TestRawPayloadCompacts(t *testing.T) {
	p, err := RawPayload("note", []byte("{ \"text\" : \"hi\" }\n"))
	if err != nil {
		t.Fatalf("raw payload: %v", err)
	}
	if string(p.Data) != `{"text":"hi"}` {
		t.Errorf("expected compact json, got %s", p.Data)
	}

	if _, err := RawPayload("note", []byte("{oops")); err == nil {
		t.Error("expected error for invalid json")
	}
	if _, err := RawPayload("", nil); err == nil {
		t.Error("expected error for empty type")
	}
}

func TestCloneIsDeep(t *testing.T) {
	p, _ := RawPayload("note", []byte(`{"a":1}`))
	c := p.Clone()
	c.Data[2] = 'b'
	if string(p.Data) != `{"a":1}` {
		t.Errorf("expected original untouched, got %s", p.Data)
	}
}

func TestForestSnapshotClone(t *testing.T) {
	off := int64(40)
	s := ForestSnapshot{
		ActiveID: 2,
		RootID:   1,
		Timelines: []TimelineSnapshot{
			{BranchID: 1, Records: []Record{{ID: 1, Payload: SplitPayload(2)}}, OwnedBranches: []uint32{2}},
			{BranchID: 2, Timer: TimerSnapshot{SplitOffset: &off}},
		},
	}
	c := s.Clone()
	*c.Timelines[1].Timer.SplitOffset = 99
	c.Timelines[0].OwnedBranches[0] = 9

	if *s.Timelines[1].Timer.SplitOffset != 40 {
		t.Error("expected split offset to be deep copied")
	}
	if s.Timelines[0].OwnedBranches[0] != 2 {
		t.Error("expected owned branches to be deep copied")
	}
	if _, ok := s.Timeline(2); !ok {
		t.Error("expected to find timeline 2")
	}
	if got := c.Timelines[1].Timer.ProcessedTime(); got != 99 {
		t.Errorf("expected processed time 99, got %d", got)
	}
}
