package handler

import (
	"net/http"

	"camwatch/internal/config"
	"camwatch/internal/dto"
	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/service/filter"
	"camwatch/internal/service/history"
	"camwatch/internal/service/manager"
	"camwatch/internal/storage"
)

// GetHistoryHandler returns a page of the detection history, newest first.
func GetHistoryHandler(store *history.Store, settings *filter.Holder, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filters := &dto.HistoryFilters{
			Stream:     q.Get("camera"),
			Class:      q.Get("object"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
		}

		classes := settings.Load()
		first := (page - 1) * limit
		matched := 0
		entries := make([]dto.HistoryInfo, 0, limit)
		for e := range store.List() {
			if !filters.Match(e) {
				continue
			}
			if matched >= first && matched < first+limit {
				entries = append(entries, historyInfo(e, classes, cfg))
			}
			matched++
		}

		writeJSON(w, logger, http.StatusOK, dto.HistoryData{
			Entries:     entries,
			Length:      matched,
			Max:         store.Max(),
			TotalPages:  (matched + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

func historyInfo(e model.HistoryEntry, classes *filter.Settings, cfg *config.Config) dto.HistoryInfo {
	info := dto.HistoryInfo{HistoryEntry: e, StreamLabel: e.StreamID, ClassLabel: e.Class}
	if s, ok := cfg.Stream(e.StreamID); ok && s.Label != "" {
		info.StreamLabel = s.Label
	}
	if c, ok := classes.Class(e.Class); ok && c.Label != "" {
		info.ClassLabel = c.Label
	}
	return info
}

// ViewHistoryImageHandler serves the artifact named by the "image" query parameter.
func ViewHistoryImageHandler(images *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		path, err := images.Path(image)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, path)
	}
}

// DeleteHistoryHandler removes one history entry and its image.
func DeleteHistoryHandler(mng *manager.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost, http.MethodDelete) {
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Id required", http.StatusBadRequest)
			return
		}
		if err := mng.DeleteHistory(id); err != nil {
			writeError(w, logger, err)
			return
		}

		logger.Info("Deleted history entry: %s", id)
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "id": id})
	}
}

// ClearHistoryHandler deletes every history entry and image.
func ClearHistoryHandler(store *history.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost, http.MethodDelete) {
			return
		}
		if err := store.Clear(); err != nil {
			logger.Error("Error clearing history: %v", err)
		}
		logger.Info("History cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

// IgnoreFromHistoryHandler excludes future detections like the given entry.
func IgnoreFromHistoryHandler(mng *manager.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Id required", http.StatusBadRequest)
			return
		}
		entry, err := mng.IgnoreFromHistory(id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, entry)
	}
}
