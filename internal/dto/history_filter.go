// HistoryFilters describe user-provided filters to narrow the history list.
package dto

import (
	"time"

	"camwatch/internal/model"
)

type HistoryFilters struct {
	Stream     string
	Class      string
	DateAfter  time.Time
	DateBefore time.Time
}

// Match reports whether an entry passes every set filter. DateBefore is
// inclusive of the whole day.
func (f *HistoryFilters) Match(e model.HistoryEntry) bool {
	if f.Stream != "" && e.StreamID != f.Stream {
		return false
	}
	if f.Class != "" && e.Class != f.Class {
		return false
	}
	if !f.DateAfter.IsZero() && e.Timestamp.Before(f.DateAfter) {
		return false
	}
	if !f.DateBefore.IsZero() && !e.Timestamp.Before(f.DateBefore.AddDate(0, 0, 1)) {
		return false
	}
	return true
}
