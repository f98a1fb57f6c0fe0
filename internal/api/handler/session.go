package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/battleship/internal/api/middleware"
	"github.com/mcoot/battleship/internal/api/request"
	"github.com/mcoot/battleship/internal/api/response"
	"github.com/mcoot/battleship/internal/engine"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/game"
	"github.com/mcoot/battleship/internal/services/gamesync"
)

// SessionHandler handles game session endpoints
type SessionHandler struct {
	gameController *game.Controller
	synchronizer   *gamesync.Synchronizer
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(gameController *game.Controller, synchronizer *gamesync.Synchronizer) *SessionHandler {
	return &SessionHandler{
		gameController: gameController,
		synchronizer:   synchronizer,
	}
}

func sessionID(r *http.Request) model.SessionID {
	return model.SessionID(mux.Vars(r)["id"])
}

func options(g request.Guard) game.Options {
	return game.Options{
		TransitionID:    model.TransitionID(g.TransitionID),
		ExpectedVersion: g.ExpectedVersion,
	}
}

// viewOf projects a session for a participant, including its latest move
func viewOf(session *model.GameSession, playerID model.PlayerID) (response.SessionView, error) {
	view, err := engine.ViewFor(session, playerID)
	if err != nil {
		return response.SessionView{}, err
	}
	var last *model.Move
	if n := len(session.MoveLog); n > 0 {
		last = &session.MoveLog[n-1]
	}
	return response.SessionViewFromModel(view, last), nil
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	sessions, err := h.gameController.ListForPlayer(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionListFromModel(sessions))
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	session, err := h.gameController.GetSession(r.Context(), sessionID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	view, err := viewOf(session, player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, view)
}

// Placement handles POST /api/v1/sessions/{id}/placement
func (h *SessionHandler) Placement(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.PlacementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	h.submit(w, r, player.ID, func(ctx context.Context) (*gamesync.Result, error) {
		if req.Random {
			return h.gameController.SubmitRandomPlacement(ctx, sessionID(r), player.ID, options(req.Guard))
		}
		return h.gameController.SubmitPlacement(ctx, sessionID(r), player.ID, req.ModelShips(), options(req.Guard))
	})
}

// Shots handles POST /api/v1/sessions/{id}/shots
func (h *SessionHandler) Shots(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.ShotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	target := model.Position{Row: *req.Row, Col: *req.Col}
	h.submit(w, r, player.ID, func(ctx context.Context) (*gamesync.Result, error) {
		return h.gameController.SubmitShot(ctx, sessionID(r), player.ID, target, options(req.Guard))
	})
}

// Forfeit handles POST /api/v1/sessions/{id}/forfeit. The body is optional.
func (h *SessionHandler) Forfeit(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.ForfeitRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	h.submit(w, r, player.ID, func(ctx context.Context) (*gamesync.Result, error) {
		return h.gameController.Forfeit(ctx, sessionID(r), player.ID, options(req.Guard))
	})
}

// Transitions handles POST /api/v1/sessions/{id}/transitions
func (h *SessionHandler) Transitions(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := req.ToModel(player.ID)
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	h.submit(w, r, player.ID, func(ctx context.Context) (*gamesync.Result, error) {
		return h.gameController.Submit(ctx, sessionID(r), t, options(req.Guard))
	})
}

func (h *SessionHandler) submit(w http.ResponseWriter, r *http.Request, playerID model.PlayerID, fn func(ctx context.Context) (*gamesync.Result, error)) {
	result, err := fn(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	view, err := viewOf(result.Session, playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TransitionResult{Applied: result.Applied, Session: view})
}

// Moves handles GET /api/v1/sessions/{id}/moves?from=N
func (h *SessionHandler) Moves(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	from := 0
	if raw := r.URL.Query().Get("from"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteError(w, NewInvalidRequestError("from must be a non-negative integer"))
			return
		}
		from = n
	}

	cu, err := h.synchronizer.CatchUp(r.Context(), sessionID(r), player.ID, from)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.CatchUpFromModel(cu))
}
