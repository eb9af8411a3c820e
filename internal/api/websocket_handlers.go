package api

import (
	"net/http"

	"spx-studio/internal/auth"
	"spx-studio/internal/logging"
	"spx-studio/internal/websocket"
)

// ServeWsHandler upgrades an authenticated request to a websocket that
// receives the user's events. Browsers cannot set headers on the handshake,
// so the access token travels in the query string.
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "Token is required", http.StatusUnauthorized)
		return
	}

	claims, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret)
	if err != nil {
		logging.WithContext(r.Context()).Debug("websocket attempt with invalid token", logging.Err(err))
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WithContext(r.Context()).Warn("websocket upgrade failed", logging.Err(err))
		return
	}

	client := websocket.NewClient(s.wsHub, conn, claims.UserID)
	if !s.wsHub.Attach(client) {
		conn.Close()
		return
	}

	go client.ReadPump()
	go client.WritePump()
}
