package dto

import (
	"encoding/json"

	"camwatch/internal/model"
)

// HistoryInfo is one history card as shown in the gallery.
type HistoryInfo struct {
	model.HistoryEntry
	StreamLabel string `json:"streamLabel"`
	ClassLabel  string `json:"classLabel"`
}

// MarshalJSON adds the gallery date and time-of-day strings.
func (h HistoryInfo) MarshalJSON() ([]byte, error) {
	type Alias HistoryInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      h.Timestamp.Format("02-01-2006"),
		TimeOfDay: h.Timestamp.Format("15:04:05"),
		Alias:     (Alias)(h),
	})
}
