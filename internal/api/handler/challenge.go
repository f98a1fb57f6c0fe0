package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/battleship/internal/api/middleware"
	"github.com/mcoot/battleship/internal/api/request"
	"github.com/mcoot/battleship/internal/api/response"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/challenge"
)

// ChallengeHandler handles challenge endpoints
type ChallengeHandler struct {
	challenges challenge.ServiceInterface
	logger     *slog.Logger
}

// NewChallengeHandler creates a new challenge handler
func NewChallengeHandler(challenges challenge.ServiceInterface, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		challenges: challenges,
		logger:     logger.With(slog.String("component", "challenge-handler")),
	}
}

// Create handles POST /api/v1/challenges
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.CreateChallengeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OpponentID == "" {
		WriteError(w, NewInvalidRequestError("opponent_id is required"))
		return
	}

	c, err := h.challenges.Create(r.Context(), player.ID, model.PlayerID(req.OpponentID))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.ChallengeFromModel(c))
}

// List handles GET /api/v1/challenges
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	challenges, err := h.challenges.ListForPlayer(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ChallengeListFromModel(challenges))
}

// Get handles GET /api/v1/challenges/{id}.
// Reading an accepted challenge repairs a session that failed to be created on accept.
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	id := model.ChallengeID(mux.Vars(r)["id"])

	c, err := h.challenges.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	if !c.Involves(player.ID) {
		WriteError(w, model.ErrNotAuthorized)
		return
	}

	if c.State == model.ChallengeAccepted {
		if _, err := h.challenges.EnsureSession(r.Context(), id); err != nil {
			h.logger.Warn("session repair failed",
				slog.String("challenge_id", string(id)),
				slog.String("error", err.Error()))
		}
	}

	response.JSON(w, http.StatusOK, response.ChallengeFromModel(c))
}

// Respond handles POST /api/v1/challenges/{id}/respond
func (h *ChallengeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	id := model.ChallengeID(mux.Vars(r)["id"])

	var req request.RespondRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.challenges.Respond(r.Context(), id, player.ID, model.Decision(req.Decision))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ChallengeFromModel(c))
}

// Cancel handles POST /api/v1/challenges/{id}/cancel
func (h *ChallengeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	id := model.ChallengeID(mux.Vars(r)["id"])

	c, err := h.challenges.Cancel(r.Context(), id, player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ChallengeFromModel(c))
}
