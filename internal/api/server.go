package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"spx-studio/internal/ai"
	"spx-studio/internal/billing"
	"spx-studio/internal/config"
	"spx-studio/internal/database"
	"spx-studio/internal/logging"
	"spx-studio/internal/metrics"
	"spx-studio/internal/storage"
	"spx-studio/internal/vfs"
	"spx-studio/internal/websocket"

	gorillaws "github.com/gorilla/websocket"
	"github.com/jaevor/go-nanoid"
)

// WebsiteGenerator produces website code. Implementations fall back to static
// templates instead of failing.
type WebsiteGenerator interface {
	GenerateWebsite(ctx context.Context, prompt string) *ai.Result
	AnalyzeDesign(ctx context.Context, imageData string) *ai.Result
}

type Server struct {
	config    *config.Config
	store     *database.Store
	files     *vfs.Service
	blobs     storage.Backend
	wsHub     *websocket.Hub
	upgrader  gorillaws.Upgrader
	generator WebsiteGenerator
	limiter   *ai.Limiter
	checkout  billing.Checkout
	newID     func() string
	newToken  func() string
}

func NewServer(cfg *config.Config, store *database.Store, blobs storage.Backend, wsHub *websocket.Hub, generator WebsiteGenerator, checkout billing.Checkout) (*Server, error) {
	files, err := vfs.NewService(store)
	if err != nil {
		return nil, err
	}
	newID, err := nanoid.Standard(21)
	if err != nil {
		return nil, err
	}
	newToken, err := nanoid.Standard(40)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:    cfg,
		store:     store,
		files:     files,
		blobs:     blobs,
		wsHub:     wsHub,
		upgrader:  websocket.NewUpgrader(cfg.HTTP.AllowedOrigins),
		generator: generator,
		limiter:   ai.NewLimiter(cfg.AI.RequestsPerMinute),
		checkout:  checkout,
		newID:     newID,
		newToken:  newToken,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", logging.Err(err))
	}
}

// internalError logs err and answers 500 without exposing it.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logging.WithContext(r.Context()).Error(msg, logging.Err(err))
	http.Error(w, msg, http.StatusInternalServerError)
}

// storageError maps filesystem errors onto status codes.
func storageError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, vfs.ErrNotFound):
		http.Error(w, "Item not found", http.StatusNotFound)
	case errors.Is(err, vfs.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, vfs.ErrQuotaExceeded):
		metrics.RecordQuotaExceeded("storage")
		http.Error(w, "Storage limit exceeded", http.StatusForbidden)
	case errors.Is(err, vfs.ErrUnauthorized):
		http.Error(w, "Unauthorized", http.StatusForbidden)
	case errors.Is(err, vfs.ErrPathExists):
		http.Error(w, "An item already exists at this path", http.StatusConflict)
	default:
		internalError(w, r, msg, err)
	}
}

// recordEvent journals an event and pushes it to the user's open sockets.
// Failures are logged; the mutation that caused the event has already happened.
func (s *Server) recordEvent(ctx context.Context, userID int64, eventType string, payload interface{}) {
	if err := s.store.LogEvent(ctx, userID, eventType, payload); err != nil {
		logging.WithContext(ctx).Error("failed to journal event",
			logging.String("event_type", eventType),
			logging.Int64("user_id", userID),
			logging.Err(err),
		)
	}
	if s.wsHub != nil {
		s.wsHub.Publish(userID, eventType, payload)
	}
}
