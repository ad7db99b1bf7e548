package handler

import (
	"encoding/json"
	"net/http"

	"camwatch/internal/dto"
	"camwatch/internal/logger"
	"camwatch/internal/service/filter"
)

func settingsData(s *filter.Settings) dto.SettingsData {
	data := dto.SettingsData{MinArea: s.MinArea, Classes: []dto.ClassSetting{}}
	for _, name := range s.ClassNames() {
		c, _ := s.Class(name)
		data.Classes = append(data.Classes, dto.ClassSetting{
			Class:         name,
			Label:         c.Label,
			Enabled:       c.Enabled,
			MinConfidence: c.MinConfidence,
			AlertSound:    c.AlertSound,
		})
	}
	return data
}

// SettingsHandler serves the filter settings on GET and applies a
// dto.SettingsUpdate on POST. Changes take effect for the next detection.
func SettingsHandler(holder *filter.Holder, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, logger, http.StatusOK, settingsData(holder.Load()))
			return
		case http.MethodPost:
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var update dto.SettingsUpdate
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&update); err != nil {
			http.Error(w, "Invalid settings: "+err.Error(), http.StatusBadRequest)
			return
		}
		if update.MinConfidence != nil && (*update.MinConfidence < 0 || *update.MinConfidence > 1) {
			http.Error(w, "minConfidence must be within [0,1]", http.StatusBadRequest)
			return
		}
		if update.MinArea != nil && *update.MinArea < 0 {
			http.Error(w, "minArea must not be negative", http.StatusBadRequest)
			return
		}
		if update.Class == "" && (update.Enabled != nil || update.MinConfidence != nil) {
			http.Error(w, "class required", http.StatusBadRequest)
			return
		}

		next := holder.Update(func(s *filter.Settings) *filter.Settings {
			if update.Class != "" {
				c, ok := s.Class(update.Class)
				if !ok {
					c = filter.ClassSettings{Label: update.Class}
				}
				if update.Enabled != nil {
					c.Enabled = *update.Enabled
				}
				if update.MinConfidence != nil {
					c.MinConfidence = *update.MinConfidence
				}
				s = s.With(update.Class, c)
			}
			if update.MinArea != nil {
				s = s.WithMinArea(*update.MinArea)
			}
			return s
		})

		logger.Info("Settings updated: %+v", update)
		writeJSON(w, logger, http.StatusOK, settingsData(next))
	}
}
