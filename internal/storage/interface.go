package storage

import (
	"context"

	"github.com/mcoot/battleship/internal/model"
)

// Storage defines the interface for data persistence.
//
// Every document carries a version counter. Update operations take the version the
// caller read and fail with model.ErrVersionConflict if the stored document has moved
// on; on success the stored version (and the passed document's Version) becomes
// expectedVersion+1. Create operations store the document with its current Version.
// Documents are copied on the way in and out, so callers may mutate what they hold.
type Storage interface {
	// Presence operations
	CreatePresence(ctx context.Context, rec *model.PresenceRecord) error
	GetPresence(ctx context.Context, id model.PlayerID) (*model.PresenceRecord, error)
	GetPresenceByName(ctx context.Context, displayName string) (*model.PresenceRecord, error)
	UpdatePresence(ctx context.Context, rec *model.PresenceRecord, expectedVersion int64) error
	ListPresence(ctx context.Context, status model.PresenceStatus) ([]*model.PresenceRecord, error)

	// Challenge operations
	CreateChallenge(ctx context.Context, challenge *model.Challenge) error
	GetChallenge(ctx context.Context, id model.ChallengeID) (*model.Challenge, error)
	UpdateChallenge(ctx context.Context, challenge *model.Challenge, expectedVersion int64) error
	ListChallengesForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Challenge, error)
	ListPendingChallenges(ctx context.Context) ([]*model.Challenge, error)

	// Session operations
	CreateSession(ctx context.Context, session *model.GameSession) error
	GetSession(ctx context.Context, id model.SessionID) (*model.GameSession, error)
	UpdateSession(ctx context.Context, session *model.GameSession, expectedVersion int64) error
	ListSessionsForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.GameSession, error)
}
