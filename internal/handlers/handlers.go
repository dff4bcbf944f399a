package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"tradepost/internal/config"
	"tradepost/internal/database"
	"tradepost/internal/engine"
	"tradepost/internal/utils"
	"tradepost/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/go-playground/validator/v10"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Hub            *websocket.Hub
	Store          database.Store
	Metrics        *utils.MetricsCollector
	Config         *config.Config
	Validate       *validator.Validate
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components
func NewServer(
	system *actor.ActorSystem,
	eng *engine.Engine,
	hub *websocket.Hub,
	store database.Store,
	metrics *utils.MetricsCollector,
	cfg *config.Config,
) *Server {
	return &Server{
		System:         system,
		Context:        system.Root,
		Engine:         eng,
		Hub:            hub,
		Store:          store,
		Metrics:        metrics,
		Config:         cfg,
		Validate:       validator.New(validator.WithRequiredStructEnabled()),
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
	}
}

func decodeJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*utils.AppError); ok {
		writeJSON(w, utils.AppErrorToHTTPStatus(appErr.Code), map[string]string{
			"code":  appErr.Code,
			"error": appErr.Message,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
