package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type EventResponse struct {
	ID        int64           `json:"id" example:"123"`
	EventType string          `json:"event_type" example:"item_created"`
	EventTime time.Time       `json:"event_time"`
	Payload   json.RawMessage `json:"payload" swaggertype:"object"`
}

// @Summary      Get new events
// @Description  Retrieves a list of events that have occurred since a given event ID. Used for client-side cache synchronization.
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        since  query     int  false  "The ID of the last event received. Omit or use 0 to get all events."
// @Param        limit  query     int  false  "Maximum number of events to return (default 100, max 1000)."
// @Success      200    {array}   EventResponse
// @Failure      400    {string}  string "Bad Request"
// @Failure      401    {string}  string "Unauthorized"
// @Failure      500    {string}  string "Internal Server Error"
// @Router       /events [get]
func (s *Server) GetEventsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	sinceStr := r.URL.Query().Get("since")
	if sinceStr == "" {
		sinceStr = "0"
	}

	sinceID, err := strconv.ParseInt(sinceStr, 10, 64)
	if err != nil || sinceID < 0 {
		http.Error(w, "Invalid 'since' parameter, must be a number", http.StatusBadRequest)
		return
	}

	limit := defaultEventLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			http.Error(w, "Invalid 'limit' parameter, must be a positive number", http.StatusBadRequest)
			return
		}
		if limit > maxEventLimit {
			limit = maxEventLimit
		}
	}

	events, err := s.store.GetEventsSince(r.Context(), claims.UserID, sinceID, limit)
	if err != nil {
		internalError(w, r, "Failed to retrieve events", err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}
