package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidIdentity    = "INVALID_IDENTITY"
	CodeInvalidPlacement   = "INVALID_PLACEMENT"
	CodeOutOfBounds        = "OUT_OF_BOUNDS"
	CodeInvalidDecision    = "INVALID_DECISION"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotAuthorized      = "NOT_AUTHORIZED"
	CodeNotParticipant     = "NOT_PARTICIPANT"
	CodeDuplicateChallenge = "DUPLICATE_CHALLENGE"
	CodeSelfChallenge      = "SELF_CHALLENGE"
	CodeOpponentOffline    = "OPPONENT_OFFLINE"
	CodeNotYourTurn        = "NOT_YOUR_TURN"
	CodeCellAlreadyShot    = "CELL_ALREADY_SHOT"
	CodeAlreadyResolved    = "ALREADY_RESOLVED"
	CodeSessionFinished    = "SESSION_FINISHED"
	CodeVersionConflict    = "VERSION_CONFLICT"
	CodeOutOfSync          = "OUT_OF_SYNC"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodeChallengeNotFound  = "CHALLENGE_NOT_FOUND"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeDisplayNameTaken   = "DISPLAY_NAME_TAKEN"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// mapping ties a sentinel to its response. An empty message means the
// error text itself is shown.
type mapping struct {
	err     error
	status  int
	code    string
	message string
}

var mappings = []mapping{
	{model.ErrInvalidIdentity, http.StatusBadRequest, CodeInvalidIdentity, ""},
	{model.ErrInvalidPlacement, http.StatusBadRequest, CodeInvalidPlacement, ""},
	{model.ErrOutOfBounds, http.StatusBadRequest, CodeOutOfBounds, ""},
	{model.ErrInvalidDecision, http.StatusBadRequest, CodeInvalidDecision, ""},
	{model.ErrInvalidTransition, http.StatusConflict, CodeInvalidTransition, ""},
	{model.ErrSelfChallenge, http.StatusBadRequest, CodeSelfChallenge, "You cannot challenge yourself"},
	{model.ErrDuplicateChallenge, http.StatusConflict, CodeDuplicateChallenge, "A challenge between you is already pending"},
	{model.ErrOpponentOffline, http.StatusConflict, CodeOpponentOffline, "Opponent is not online"},
	{model.ErrNotAuthorized, http.StatusForbidden, CodeNotAuthorized, "You cannot act on this challenge"},
	{model.ErrNotParticipant, http.StatusForbidden, CodeNotParticipant, "You are not playing in this session"},
	{model.ErrNotYourTurn, http.StatusForbidden, CodeNotYourTurn, "Not your turn"},
	{model.ErrCellAlreadyShot, http.StatusConflict, CodeCellAlreadyShot, "That cell has already been shot"},
	{model.ErrAlreadyResolved, http.StatusConflict, CodeAlreadyResolved, ""},
	{model.ErrSessionFinished, http.StatusConflict, CodeSessionFinished, "The game is over"},
	{model.ErrVersionConflict, http.StatusConflict, CodeVersionConflict, "The game moved on, refresh and try again"},
	{model.ErrOutOfSync, http.StatusConflict, CodeOutOfSync, "Out of sync, please refresh"},
	{model.ErrPlayerNotFound, http.StatusNotFound, CodePlayerNotFound, "Player not found"},
	{model.ErrChallengeNotFound, http.StatusNotFound, CodeChallengeNotFound, "Challenge not found"},
	{model.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound, "Session not found"},
	{model.ErrDisplayNameTaken, http.StatusConflict, CodeDisplayNameTaken, "Display name is taken"},
	{model.ErrStoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable, "Storage is unavailable, try again shortly"},
	{auth.ErrInvalidSession, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired session"},
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			kind := string(model.KindOf(err))
			if m.err == auth.ErrInvalidSession {
				kind = ""
			}
			return &httpError{m.status, APIError{Code: m.code, Kind: kind, Message: msg}}
		}
	}
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Kind: string(model.KindInternal), Message: "Internal server error"}}
}

// StatusOf returns the HTTP status an error is answered with
func StatusOf(err error) int {
	return toHTTPError(err).status
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Kind: string(model.KindInputValidation), Message: message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Kind: string(model.KindInternal), Message: "Internal server error"}}
}
