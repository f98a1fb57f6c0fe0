// Package gamesync propagates transitions to the authoritative session and lets
// clients catch up and detect divergence.
package gamesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/battleship/internal/dependencies/clock"
	"github.com/mcoot/battleship/internal/engine"
	"github.com/mcoot/battleship/internal/events"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/storage"
)

// DefaultCommitRetries is how many version conflicts Commit absorbs before giving up
const DefaultCommitRetries = 3

// Config holds synchronizer settings
type Config struct {
	CommitRetries int
}

// DefaultConfig returns the default synchronizer settings
func DefaultConfig() Config {
	return Config{CommitRetries: DefaultCommitRetries}
}

// Result is the outcome of a transition
type Result struct {
	Session *model.GameSession
	Applied bool // false when the transition had already been applied
}

// Synchronizer applies transitions to sessions under optimistic concurrency
type Synchronizer struct {
	storage   storage.Storage
	publisher events.Publisher
	clock     clock.Clock
	cfg       Config
	logger    *slog.Logger
}

// New creates a new Synchronizer
func New(storage storage.Storage, publisher events.Publisher, clock clock.Clock, cfg Config, logger *slog.Logger) *Synchronizer {
	if cfg.CommitRetries < 0 {
		cfg.CommitRetries = 0
	}
	return &Synchronizer{
		storage:   storage,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "sync")),
	}
}

// ApplyTransition applies t if the session is still at expectedVersion.
// A transition that was already applied succeeds without change at any version.
func (s *Synchronizer) ApplyTransition(ctx context.Context, sessionID model.SessionID, expectedVersion int64, t model.Transition) (*Result, error) {
	session, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, session, expectedVersion, t)
}

func (s *Synchronizer) apply(ctx context.Context, session *model.GameSession, expectedVersion int64, t model.Transition) (*Result, error) {
	if session.IsParticipant(t.PlayerID) && session.HasTransition(t.ID, t.PlayerID) {
		return &Result{Session: session, Applied: false}, nil
	}
	if session.Version != expectedVersion {
		return nil, fmt.Errorf("%w: session is at version %d, not %d", model.ErrVersionConflict, session.Version, expectedVersion)
	}

	next := session.Clone()
	applied, err := engine.Apply(next, t, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Result{Session: session, Applied: false}, nil
	}

	if err := s.storage.UpdateSession(ctx, next, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.Info("transition applied",
		slog.String("session_id", string(next.ID)),
		slog.String("transition_id", string(t.ID)),
		slog.String("kind", string(t.Kind)),
		slog.String("player_id", string(t.PlayerID)),
		slog.Int64("version", next.Version))
	s.notify(ctx, next)
	return &Result{Session: next, Applied: true}, nil
}

// Commit applies t against the latest version, re-reading after each conflict.
// After the configured number of conflicts it reports ErrOutOfSync.
func (s *Synchronizer) Commit(ctx context.Context, sessionID model.SessionID, t model.Transition) (*Result, error) {
	for attempt := 0; attempt <= s.cfg.CommitRetries; attempt++ {
		session, err := s.storage.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		result, err := s.apply(ctx, session, session.Version, t)
		if !errors.Is(err, model.ErrVersionConflict) {
			return result, err
		}
		s.logger.Debug("commit conflict, retrying",
			slog.String("session_id", string(sessionID)),
			slog.String("transition_id", string(t.ID)),
			slog.Int("attempt", attempt+1))
	}
	s.logger.Warn("commit gave up after repeated conflicts",
		slog.String("session_id", string(sessionID)),
		slog.String("transition_id", string(t.ID)))
	return nil, fmt.Errorf("%w: session %s", model.ErrOutOfSync, sessionID)
}

// notify tells both players the session moved on. Failures are logged, not returned.
func (s *Synchronizer) notify(ctx context.Context, session *model.GameSession) {
	for _, playerID := range session.Players() {
		err := s.publisher.Publish(ctx, model.Event{
			Type:      model.EventSessionUpdated,
			Recipient: playerID,
			SessionID: session.ID,
			Version:   session.Version,
			Timestamp: session.UpdatedAt,
		})
		if err != nil {
			s.logger.Warn("session update notification failed",
				slog.String("session_id", string(session.ID)),
				slog.String("player_id", string(playerID)),
				slog.Any("error", err))
		}
	}
}

// CatchUp is what a client needs to bring its copy of a session up to date
type CatchUp struct {
	SessionID      model.SessionID
	PlayerA        model.PlayerID
	PlayerB        model.PlayerID
	Rules          model.Rules
	Version        int64
	Phase          model.Phase
	Turn           model.PlayerID
	Winner         model.PlayerID
	FinishReason   model.FinishReason
	FromIndex      int
	Moves          []model.Move // Moves with Index >= FromIndex
	Total          int          // Length of the whole move log
	Digest         uint64       // Digest of the whole move log
	OwnFleet       []model.Ship
	OpponentPlaced bool
}

// CatchUp returns the moves from fromIndex on plus enough state to verify them
func (s *Synchronizer) CatchUp(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID, fromIndex int) (*CatchUp, error) {
	session, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	seat, ok := session.SeatOf(playerID)
	if !ok {
		return nil, model.ErrNotParticipant
	}

	total := len(session.MoveLog)
	fromIndex = min(max(fromIndex, 0), total)
	moves := make([]model.Move, total-fromIndex)
	copy(moves, session.MoveLog[fromIndex:])

	cu := &CatchUp{
		SessionID:      session.ID,
		PlayerA:        session.PlayerA,
		PlayerB:        session.PlayerB,
		Rules:          session.Rules.Clone(),
		Version:        session.Version,
		Phase:          session.Phase,
		Turn:           session.Turn,
		Winner:         session.Winner,
		FinishReason:   session.FinishReason,
		FromIndex:      fromIndex,
		Moves:          moves,
		Total:          total,
		Digest:         engine.Digest(session.MoveLog),
		OpponentPlaced: session.Fleets[1-seat] != nil,
	}
	if fleet := session.Fleets[seat]; fleet != nil {
		cu.OwnFleet = fleet.Clone().Ships
	}
	return cu, nil
}
