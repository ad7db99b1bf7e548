package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"camwatch/internal/logger"
	"camwatch/internal/service/history"
	"camwatch/internal/service/ignore"
)

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" from the request (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError maps service errors to HTTP statuses. Missing entries are 404.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	if errors.Is(err, history.ErrEntryNotFound) || errors.Is(err, ignore.ErrEntryNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	logger.Error("Request failed: %v", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func requireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}
