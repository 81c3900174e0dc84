package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadType identifies the kind of an event payload.
type PayloadType string

// Reserved payload types interpreted by timelines. Everything else is opaque.
const (
	// PayloadActivation marks the moment a timeline was started. It carries no data.
	PayloadActivation PayloadType = "timeline.activated"
	// PayloadSplit marks the fork of a child branch. Data is a SplitMarker.
	PayloadSplit PayloadType = "timeline.split"
)

// IsValid reports whether the payload type is usable.
func (t PayloadType) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// IsReserved reports whether the type is one of the markers timelines interpret.
func (t PayloadType) IsReserved() bool {
	return t == PayloadActivation || t == PayloadSplit
}

// Payload is an opaque structured event body. Data holds compact JSON.
type Payload struct {
	Type PayloadType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SplitMarker is the data of a PayloadSplit payload.
type SplitMarker struct {
	TargetBranchID uint32 `json:"targetBranchId"`
}

// NewPayload marshals v as the payload data.
func NewPayload(t PayloadType, v any) (Payload, error) {
	if !t.IsValid() {
		return Payload{}, fmt.Errorf("empty payload type")
	}
	if v == nil {
		return Payload{Type: t}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Payload{Type: t, Data: b}, nil
}

// RawPayload validates and compacts raw JSON data into a payload.
func RawPayload(t PayloadType, data []byte) (Payload, error) {
	if !t.IsValid() {
		return Payload{}, fmt.Errorf("empty payload type")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Payload{Type: t}, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return Payload{}, fmt.Errorf("invalid payload json: %w", err)
	}
	return Payload{Type: t, Data: buf.Bytes()}, nil
}

// ActivationPayload returns the marker appended when a timeline starts.
func ActivationPayload() Payload {
	return Payload{Type: PayloadActivation}
}

// SplitPayload returns the marker appended when branch target is forked.
func SplitPayload(target uint32) Payload {
	b, _ := json.Marshal(SplitMarker{TargetBranchID: target})
	return Payload{Type: PayloadSplit, Data: b}
}

// SplitTarget returns the forked branch id when p is a split marker.
func (p Payload) SplitTarget() (uint32, bool) {
	if p.Type != PayloadSplit {
		return 0, false
	}
	var m SplitMarker
	if err := json.Unmarshal(p.Data, &m); err != nil {
		return 0, false
	}
	return m.TargetBranchID, true
}

// IsActivation reports whether p marks a timeline start.
func (p Payload) IsActivation() bool {
	return p.Type == PayloadActivation
}

// Decode unmarshals the payload data into v.
func (p Payload) Decode(v any) error {
	if len(p.Data) == 0 {
		return fmt.Errorf("payload %s has no data", p.Type)
	}
	return json.Unmarshal(p.Data, v)
}

// Clone returns a deep copy of p.
func (p Payload) Clone() Payload {
	if p.Data == nil {
		return Payload{Type: p.Type}
	}
	return Payload{Type: p.Type, Data: bytes.Clone(p.Data)}
}

// Equal reports whether p and o carry the same type and data.
func (p Payload) Equal(o Payload) bool {
	return p.Type == o.Type && bytes.Equal(p.Data, o.Data)
}
