package model

import "time"

// Inference is one object reported by the detection model for a frame.
type Inference struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Region     Region  `json:"region"`
}

// RawDetection is an Inference tagged with the stream and frame it came from.
type RawDetection struct {
	StreamID       string    `json:"stream_id"`
	Class          string    `json:"class"`
	Confidence     float64   `json:"confidence"`
	Region         Region    `json:"region"`
	FrameSeq       uint64    `json:"frame_seq"`
	FrameTimestamp time.Time `json:"frame_timestamp"`
}
