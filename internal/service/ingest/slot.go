package ingest

import (
	"sync/atomic"

	"camwatch/internal/model"
)

// FrameSlot holds at most one frame of a stream.
//
// Publish always replaces whatever is in the slot and never blocks. TakeLatest
// hands out the current frame once: a second call before the next Publish
// reports nothing new. Any number of goroutines may call either method.
type FrameSlot struct {
	current   atomic.Pointer[model.Frame]
	seq       atomic.Uint64 // last assigned sequence number
	lastTaken atomic.Uint64 // sequence number of the last frame handed out
	closed    atomic.Bool

	published atomic.Uint64
	dropped   atomic.Uint64 // frames overwritten before anyone took them
	taken     atomic.Uint64
}

// SlotStats are the lifetime counters of a slot.
type SlotStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Taken     uint64 `json:"taken"`
	LastSeq   uint64 `json:"last_seq"`
}

// Publish stores frame under the next sequence number and returns that number.
// It returns 0 once the slot is closed.
func (s *FrameSlot) Publish(frame model.Frame) uint64 {
	if s.closed.Load() {
		return 0
	}

	frame.Seq = s.seq.Add(1)
	next := &frame
	for {
		prev := s.current.Load()
		if prev != nil && prev.Seq > next.Seq {
			// A concurrent publisher already stored a newer frame.
			s.published.Add(1)
			s.dropped.Add(1)
			return next.Seq
		}
		if s.current.CompareAndSwap(prev, next) {
			s.published.Add(1)
			if prev != nil && prev.Seq > s.lastTaken.Load() {
				s.dropped.Add(1)
			}
			return next.Seq
		}
	}
}

// TakeLatest returns the newest frame if it has not been handed out yet.
func (s *FrameSlot) TakeLatest() (model.Frame, bool) {
	for {
		frame := s.current.Load()
		if frame == nil {
			return model.Frame{}, false
		}
		last := s.lastTaken.Load()
		if frame.Seq <= last {
			return model.Frame{}, false
		}
		if s.lastTaken.CompareAndSwap(last, frame.Seq) {
			s.taken.Add(1)
			return *frame, true
		}
	}
}

// Peek returns the current frame without consuming it.
func (s *FrameSlot) Peek() (model.Frame, bool) {
	frame := s.current.Load()
	if frame == nil {
		return model.Frame{}, false
	}
	return *frame, true
}

// Close stops the slot from accepting frames. The last frame stays readable.
func (s *FrameSlot) Close() {
	s.closed.Store(true)
}

// Stats returns the slot counters.
func (s *FrameSlot) Stats() SlotStats {
	return SlotStats{
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
		Taken:     s.taken.Load(),
		LastSeq:   s.seq.Load(),
	}
}
