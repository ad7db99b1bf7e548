package model

import "time"

// StreamState is the connection state of an ingested stream.
type StreamState int

const (
	StreamConnecting StreamState = iota
	StreamLive
	StreamError
)

func (s StreamState) String() string {
	switch s {
	case StreamConnecting:
		return "connecting"
	case StreamLive:
		return "live"
	case StreamError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s StreamState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StreamStatus is a point-in-time view of one stream.
type StreamStatus struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	State       StreamState `json:"state"`
	LastError   string      `json:"last_error,omitempty"`
	LastFrameAt time.Time   `json:"last_frame_at"`
	Published   uint64      `json:"published"`
	Dropped     uint64      `json:"dropped"`
	Taken       uint64      `json:"taken"`
}
