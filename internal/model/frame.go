package model

import "time"

// Frame is a single decoded image of one stream.
//
// Data holds the encoded image (JPEG) and must not be modified once the frame
// has been published: the same slice is shared by the slot, the inference
// workers and the live views.
type Frame struct {
	StreamID  string
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
}
