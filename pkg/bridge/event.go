package bridge

import (
	"encoding/json"
	"fmt"
)

// RemoteEvent is the wire representation of one routed event. Channel
// doubles as the dispatch route, so a RemoteEvent can be handed straight
// to an async runtime keyed on Route().
type RemoteEvent struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Route returns the channel name.
func (e RemoteEvent) Route() string { return e.Channel }

// EncodeEvent serializes an event to a single text frame.
func EncodeEvent(e RemoteEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses a text frame. Frames without a channel are
// rejected.
func DecodeEvent(data []byte) (RemoteEvent, error) {
	var e RemoteEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return RemoteEvent{}, fmt.Errorf("bridge: decode event: %w", err)
	}
	if e.Channel == "" {
		return RemoteEvent{}, fmt.Errorf("bridge: decode event: missing channel")
	}
	return e, nil
}
