package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"camwatch/internal/config"
	"camwatch/internal/dto"
	"camwatch/internal/handler"
	"camwatch/internal/logger"
	"camwatch/internal/middleware"
	"camwatch/internal/service/filter"
	"camwatch/internal/service/history"
	"camwatch/internal/service/ignore"
	"camwatch/internal/service/ingest"
	"camwatch/internal/service/live"
	"camwatch/internal/service/manager"
	"camwatch/internal/service/websocket"
	"camwatch/internal/storage"
)

// Services are the components the HTTP surface talks to.
type Services struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *ingest.Registry
	Manager  *manager.Manager
	History  *history.Store
	Images   *storage.Store
	Ignores  *ignore.List
	Settings *filter.Holder
	Views    *live.Views
	Hub      *websocket.HubService
	Stats    func() dto.StatsData
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(s Services) http.Handler {
	mux := http.NewServeMux()
	log := s.Logger

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Camera push and viewers
	mux.HandleFunc("/camera", handler.CameraWebsocketHandler(s.Registry, log))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(s.Hub, log))

	// Streams
	mux.HandleFunc("/api/streams", handler.StreamsHandler(s.Registry, log))
	mux.HandleFunc("/api/streams/live", handler.LiveStreamHandler(s.Views))
	mux.HandleFunc("/api/streams/annotated", handler.AnnotatedStreamHandler(s.Views))

	// History
	mux.HandleFunc("/api/history", handler.GetHistoryHandler(s.History, s.Settings, s.Config, log))
	mux.HandleFunc("/api/history/view", handler.ViewHistoryImageHandler(s.Images))
	mux.HandleFunc("/api/history/delete", handler.DeleteHistoryHandler(s.Manager, log))
	mux.HandleFunc("/api/history/clear", handler.ClearHistoryHandler(s.History, log))
	mux.HandleFunc("/api/history/ignore", handler.IgnoreFromHistoryHandler(s.Manager, log))

	// Ignore list
	mux.HandleFunc("/api/ignores", handler.GetIgnoresHandler(s.Ignores, log))
	mux.HandleFunc("/api/ignores/delete", handler.DeleteIgnoreHandler(s.Manager, log))

	mux.HandleFunc("/api/settings", handler.SettingsHandler(s.Settings, log))
	mux.HandleFunc("/api/stats", handler.StatsHandler(s.Stats, log))

	// Log endpoints
	for level, file := range map[string]string{
		"info":    logger.InfoFile,
		"warning": logger.WarningFile,
		"error":   logger.ErrorFile,
	} {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(log, file))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(log, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(s.Config, log))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.AuthMiddleware(mux)
}
