package model

import "time"

// IgnoreEntry excludes future detections of a class in a region of a stream.
type IgnoreEntry struct {
	ID        string    `json:"id"`
	StreamID  string    `json:"stream_id"`
	Class     string    `json:"class"`
	Region    Region    `json:"region"`
	CreatedAt time.Time `json:"created_at"`
	// SourceID is the history entry the exclusion was created from.
	SourceID string `json:"source_id,omitempty"`
}
