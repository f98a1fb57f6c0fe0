package handler

import (
	"net/http"

	"github.com/mcoot/battleship/internal/api/middleware"
	"github.com/mcoot/battleship/internal/api/request"
	"github.com/mcoot/battleship/internal/api/response"
	"github.com/mcoot/battleship/internal/services/auth"
	"github.com/mcoot/battleship/internal/services/presence"
)

// PlayerHandler handles player and presence endpoints
type PlayerHandler struct {
	authService *auth.Service
	presence    presence.ServiceInterface
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(authService *auth.Service, presenceService presence.ServiceInterface) *PlayerHandler {
	return &PlayerHandler{
		authService: authService,
		presence:    presenceService,
	}
}

// Register handles POST /api/v1/players
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}
	if req.Secret == "" {
		WriteError(w, NewInvalidRequestError("secret is required"))
		return
	}

	session, err := h.authService.Login(r.Context(), req.DisplayName, req.Secret)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.AuthResponseFromSession(session))
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	rec, err := h.presence.GetPresence(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PresenceFromModel(rec))
}

// Heartbeat handles POST /api/v1/players/me/heartbeat
func (h *PlayerHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	rec, err := h.presence.Heartbeat(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PresenceFromModel(rec))
}

// Logout handles POST /api/v1/players/me/logout
func (h *PlayerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		WriteError(w, auth.ErrInvalidSession)
		return
	}

	if err := h.authService.Logout(r.Context(), session); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// ListOnline handles GET /api/v1/players/online
func (h *PlayerHandler) ListOnline(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	players, err := h.presence.ListOnline(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerListFromModel(players))
}
