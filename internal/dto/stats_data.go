package dto

import (
	"camwatch/internal/model"
	"camwatch/internal/service/alert"
	"camwatch/internal/service/events"
	"camwatch/internal/service/manager"
	"camwatch/internal/service/scheduler"
)

// StatsData is the runtime overview served on /api/stats.
type StatsData struct {
	Streams    []model.StreamStatus `json:"streams"`
	Pipeline   manager.Stats        `json:"pipeline"`
	Inference  scheduler.Stats      `json:"inference"`
	Events     events.Stats         `json:"events"`
	Alerts     alert.Stats          `json:"alerts"`
	History    int                  `json:"history"`
	HistoryMax int                  `json:"historyMax"`
	Ignores    int                  `json:"ignores"`
	Viewers    int                  `json:"viewers"`
}
