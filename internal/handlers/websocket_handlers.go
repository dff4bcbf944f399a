package handlers

import (
	"log/slog"
	"net/http"

	"tradepost/internal/middleware"
	"tradepost/internal/websocket"

	ws "github.com/gorilla/websocket"
)

// HandleWebSocket authenticates and upgrades a realtime connection. Presence
// is not registered here: clients announce themselves with an addUser event
// once connected, and must do so again after any reconnect.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	upgrader := ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(s.Config.AllowedOrigins, r.Header.Get("Origin"))
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ValidateToken(tokenString)
		if err != nil {
			slog.Warn("websocket auth failed", "error", err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		userID := claims.UserID
		if userID.IsZero() {
			http.Error(w, "Invalid user ID in token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "user", userID.Hex(), "error", err)
			// Cannot write an HTTP error after an upgrade attempt.
			return
		}

		client := websocket.NewClient(s.Hub, userID, conn, s)
		slog.Info("websocket connected", "user", userID.Hex(), "conn", client.ID)

		go client.WritePump()
		go client.ReadPump()
	}
}
