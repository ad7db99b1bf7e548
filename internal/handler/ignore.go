package handler

import (
	"net/http"

	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/service/ignore"
	"camwatch/internal/service/manager"
)

// GetIgnoresHandler lists the exclusions, oldest first.
func GetIgnoresHandler(list *ignore.List, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := list.All()
		if entries == nil {
			entries = []model.IgnoreEntry{}
		}
		writeJSON(w, logger, http.StatusOK, entries)
	}
}

// DeleteIgnoreHandler removes one exclusion.
func DeleteIgnoreHandler(mng *manager.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost, http.MethodDelete) {
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Id required", http.StatusBadRequest)
			return
		}
		if err := mng.RemoveIgnore(id); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "id": id})
	}
}
