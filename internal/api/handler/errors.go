package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mcoot/battleship/internal/api/apierr"
)

// maxBodyBytes bounds every request body; the largest legitimate one is a fleet placement
const maxBodyBytes = 64 << 10

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// decodeBody reads a JSON body into v. On failure it writes a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			WriteError(w, NewInvalidRequestError("request body too large"))
		case errors.Is(err, io.EOF):
			WriteError(w, NewInvalidRequestError("request body is required"))
		default:
			WriteError(w, NewInvalidRequestError("invalid request body"))
		}
		return false
	}
	return true
}
