package handler

import (
	"net/http"

	"github.com/mcoot/battleship/internal/api/middleware"
	"github.com/mcoot/battleship/internal/sse"
)

// EventsHandler serves push notification streams
type EventsHandler struct {
	hubManager *sse.HubManager
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hubManager *sse.HubManager) *EventsHandler {
	return &EventsHandler{hubManager: hubManager}
}

// Stream handles GET /api/v1/events as server-sent events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	sse.ServeSSE(w, r, h.hubManager, player.ID)
}

// Socket handles GET /api/v1/events/ws as a websocket
func (h *EventsHandler) Socket(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	sse.ServeWS(w, r, h.hubManager, player.ID)
}
