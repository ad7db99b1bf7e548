package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"camwatch/internal/logger"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewerHub delivers events to connected viewers.
type ViewerHub interface {
	Register(ctx context.Context, client *websocket.Conn) bool
	Unregister(ctx context.Context, client *websocket.Conn)
}

// ViewWebsocketHandler handles viewer connections over WebSocket and
// registers them in the hub to receive detection notifications.
func ViewWebsocketHandler(hub ViewerHub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)

		ctx := r.Context()
		if !hub.Register(ctx, connection) {
			connection.Close()
			return
		}
		defer hub.Unregister(ctx, connection)

		logger.Info("Viewer connected")

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Debug("Viewer disconnected: %v", err)
				}
				return
			}
		}
	}
}
