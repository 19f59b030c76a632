// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/playmat/playmat/internal/game"
)

// GameServer wires the room registry to the HTTP surface.
type GameServer struct {
	Registry *game.Registry
	Logger   *logrus.Logger
}

func NewGameServer(registry *game.Registry, logger *logrus.Logger) *GameServer {
	return &GameServer{Registry: registry, Logger: logger}
}

// Routes builds the server mux: the websocket endpoint plus a liveness probe.
func (s *GameServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *GameServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"rooms":  s.Registry.Count(),
	})
}
