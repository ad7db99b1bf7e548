package model

import "time"

// HistoryEntry is an archived emitted detection.
type HistoryEntry struct {
	ID          string    `json:"id"`
	StreamID    string    `json:"stream_id"`
	Class       string    `json:"class"`
	Confidence  float64   `json:"confidence"`
	Region      Region    `json:"region"`
	FrameWidth  int       `json:"frame_width"`
	FrameHeight int       `json:"frame_height"`
	Timestamp   time.Time `json:"timestamp"`
	ImagePath   string    `json:"image_path"`
	// Replaces is the id of the emission this one superseded, if any.
	Replaces string `json:"replaces,omitempty"`
}
