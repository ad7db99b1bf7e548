package handler

import (
	"net/http"

	"camwatch/internal/dto"
	"camwatch/internal/logger"
)

// StatsHandler serves the runtime counters.
func StatsHandler(collect func() dto.StatsData, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, collect())
	}
}
