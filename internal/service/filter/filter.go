package filter

import (
	"sort"
	"sync/atomic"

	"camwatch/internal/config"
	"camwatch/internal/model"
)

// Verdict is the outcome of filtering one detection.
type Verdict int

const (
	Keep Verdict = iota
	DropDisabled
	DropConfidence
	DropArea
)

func (v Verdict) String() string {
	switch v {
	case Keep:
		return "keep"
	case DropDisabled:
		return "class disabled"
	case DropConfidence:
		return "below confidence"
	case DropArea:
		return "below minimum area"
	default:
		return "unknown"
	}
}

// ClassSettings are the per-class filter inputs.
type ClassSettings struct {
	Label         string  `json:"label"`
	Enabled       bool    `json:"enabled"`
	MinConfidence float64 `json:"min_confidence"`
	AlertSound    string  `json:"alert_sound,omitempty"`
}

// Settings is an immutable snapshot of the filter configuration. Classes
// without an entry are disabled.
type Settings struct {
	Classes map[string]ClassSettings `json:"classes"`
	MinArea int                      `json:"min_area"`
}

// NewSettings builds a snapshot from the configured interests.
func NewSettings(interests []config.Interest, minArea int) *Settings {
	s := &Settings{Classes: make(map[string]ClassSettings, len(interests)), MinArea: minArea}
	for _, i := range interests {
		s.Classes[i.Class] = ClassSettings{
			Label:         i.Label,
			Enabled:       i.Enabled,
			MinConfidence: i.MinConfidence,
			AlertSound:    i.AlertSound,
		}
	}
	return s
}

// Check decides whether a detection passes. It has no side effects.
func (s *Settings) Check(d model.RawDetection) Verdict {
	class, ok := s.Classes[d.Class]
	if !ok || !class.Enabled {
		return DropDisabled
	}
	if d.Confidence < class.MinConfidence {
		return DropConfidence
	}
	if s.MinArea > 0 && d.Region.Area() < s.MinArea {
		return DropArea
	}
	return Keep
}

// Class returns the settings of one class.
func (s *Settings) Class(name string) (ClassSettings, bool) {
	c, ok := s.Classes[name]
	return c, ok
}

// ClassNames returns the configured classes in name order.
func (s *Settings) ClassNames() []string {
	names := make([]string, 0, len(s.Classes))
	for name := range s.Classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With returns a copy with one class replaced.
func (s *Settings) With(name string, class ClassSettings) *Settings {
	next := &Settings{Classes: make(map[string]ClassSettings, len(s.Classes)+1), MinArea: s.MinArea}
	for k, v := range s.Classes {
		next.Classes[k] = v
	}
	next.Classes[name] = class
	return next
}

// Holder publishes settings snapshots to the pipeline. Readers always see a
// complete snapshot.
type Holder struct {
	current atomic.Pointer[Settings]
}

func NewHolder(initial *Settings) *Holder {
	h := &Holder{}
	h.current.Store(initial)
	return h
}

func (h *Holder) Load() *Settings {
	return h.current.Load()
}

// Update applies fn to the current snapshot and stores the result. It retries
// when another writer stored a snapshot in between.
func (h *Holder) Update(fn func(*Settings) *Settings) *Settings {
	for {
		old := h.current.Load()
		next := fn(old)
		if h.current.CompareAndSwap(old, next) {
			return next
		}
	}
}

// ReplaceInterests swaps in new interests and keeps the minimum area.
func (h *Holder) ReplaceInterests(interests []config.Interest) *Settings {
	return h.Update(func(old *Settings) *Settings {
		return NewSettings(interests, old.MinArea)
	})
}

// WithMinArea returns a copy with a new minimum area.
func (s *Settings) WithMinArea(minArea int) *Settings {
	return &Settings{Classes: s.Classes, MinArea: minArea}
}
