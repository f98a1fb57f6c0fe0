package model

import "errors"

// Common errors used across the application
var (
	// Lookup errors
	ErrPlayerNotFound    = errors.New("player not found")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrSessionNotFound   = errors.New("session not found")

	// Input validation errors
	ErrInvalidIdentity   = errors.New("invalid identity")
	ErrInvalidPlacement  = errors.New("invalid placement")
	ErrOutOfBounds       = errors.New("target cell is out of bounds")
	ErrInvalidDecision   = errors.New("invalid decision")
	ErrInvalidTransition = errors.New("invalid transition")

	// Protocol violations
	ErrDuplicateChallenge = errors.New("a pending challenge already exists between these players")
	ErrSelfChallenge      = errors.New("cannot challenge yourself")
	ErrOpponentOffline    = errors.New("opponent is not online")
	ErrNotAuthorized      = errors.New("player is not authorized for this action")
	ErrNotParticipant     = errors.New("player is not part of this session")
	ErrNotYourTurn        = errors.New("not this player's turn")
	ErrCellAlreadyShot    = errors.New("cell has already been shot")
	ErrAlreadyResolved    = errors.New("already resolved")
	ErrSessionFinished    = errors.New("session is finished")

	// Concurrency errors
	ErrVersionConflict = errors.New("version conflict")
	ErrOutOfSync       = errors.New("out of sync, please refresh")

	// Storage errors
	ErrDisplayNameTaken = errors.New("display name is already registered")
	ErrSessionExists    = errors.New("session already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ErrorKind groups errors by how a caller should react to them
type ErrorKind string

const (
	KindInputValidation     ErrorKind = "input_validation"
	KindProtocolViolation   ErrorKind = "protocol_violation"
	KindConcurrencyConflict ErrorKind = "concurrency_conflict"
	KindConnectivity        ErrorKind = "connectivity"
	KindNotFound            ErrorKind = "not_found"
	KindInternal            ErrorKind = "internal"
)

// KindOf classifies an error. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidIdentity),
		errors.Is(err, ErrInvalidPlacement),
		errors.Is(err, ErrOutOfBounds),
		errors.Is(err, ErrInvalidDecision),
		errors.Is(err, ErrInvalidTransition):
		return KindInputValidation
	case errors.Is(err, ErrDuplicateChallenge),
		errors.Is(err, ErrSelfChallenge),
		errors.Is(err, ErrOpponentOffline),
		errors.Is(err, ErrNotAuthorized),
		errors.Is(err, ErrNotParticipant),
		errors.Is(err, ErrNotYourTurn),
		errors.Is(err, ErrCellAlreadyShot),
		errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrSessionFinished):
		return KindProtocolViolation
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrOutOfSync):
		return KindConcurrencyConflict
	case errors.Is(err, ErrStoreUnavailable):
		return KindConnectivity
	case errors.Is(err, ErrPlayerNotFound),
		errors.Is(err, ErrChallengeNotFound),
		errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
