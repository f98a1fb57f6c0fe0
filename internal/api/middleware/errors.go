package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcoot/battleship/internal/api/apierr"
	"github.com/mcoot/battleship/internal/middleware"
)

// Recovery turns handler panics into the JSON internal error envelope
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}

// NotFound answers unknown routes in the JSON error envelope
func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound, "NOT_FOUND", "No such endpoint: "+r.URL.Path)
	})
}

// MethodNotAllowed answers known routes called with the wrong method
func MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" is not supported on "+r.URL.Path)
	})
}

func writeStatus(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apierr.ErrorResponse{Error: apierr.APIError{Code: code, Message: message}})
}
