package handler

import (
	"net/http"

	"camwatch/internal/logger"
	"camwatch/internal/service/ingest"
	"camwatch/internal/service/live"
)

// StreamsHandler returns the state of every stream.
func StreamsHandler(registry *ingest.Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, registry.Statuses())
	}
}

// LiveStreamHandler serves the MJPEG live view of the stream in the "id"
// query parameter.
func LiveStreamHandler(views *live.Views) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream, ok := views.Live(r.URL.Query().Get("id"))
		if !ok {
			http.Error(w, "Unknown stream", http.StatusNotFound)
			return
		}
		stream.ServeHTTP(w, r)
	}
}

// AnnotatedStreamHandler serves the MJPEG view of the last annotated emission.
func AnnotatedStreamHandler(views *live.Views) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream, ok := views.Annotated(r.URL.Query().Get("id"))
		if !ok {
			http.Error(w, "Unknown stream", http.StatusNotFound)
			return
		}
		stream.ServeHTTP(w, r)
	}
}
