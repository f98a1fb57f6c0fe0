// Package challenge coordinates the invite handshake that leads to a game session.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/battleship/internal/dependencies/clock"
	"github.com/mcoot/battleship/internal/dependencies/random"
	"github.com/mcoot/battleship/internal/events"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/storage"
)

// DefaultTimeout is how long a challenge may stay pending
const DefaultTimeout = 2 * time.Minute

// Config holds challenge settings
type Config struct {
	Timeout time.Duration
	Rules   model.Rules // Rules carried into sessions started from a challenge
}

// DefaultConfig returns the default challenge settings
func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout, Rules: model.DefaultRules()}
}

// Presence answers who exists and who is online
type Presence interface {
	GetPresence(ctx context.Context, id model.PlayerID) (*model.PresenceRecord, error)
	IsOnline(ctx context.Context, id model.PlayerID) (bool, error)
}

// SessionCreator creates the session for an accepted challenge. It must be
// idempotent per challenge.
type SessionCreator interface {
	CreateSession(ctx context.Context, challenge *model.Challenge) (*model.GameSession, error)
}

// Service is the challenge coordinator
type Service struct {
	storage   storage.Storage
	presence  Presence
	sessions  SessionCreator
	publisher events.Publisher
	clock     clock.Clock
	random    random.Random
	cfg       Config
	logger    *slog.Logger
}

// New creates a new challenge Service
func New(
	storage storage.Storage,
	presence Presence,
	sessions SessionCreator,
	publisher events.Publisher,
	clock clock.Clock,
	random random.Random,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Rules.GridSize == 0 {
		cfg.Rules = model.DefaultRules()
	}
	return &Service{
		storage:   storage,
		presence:  presence,
		sessions:  sessions,
		publisher: publisher,
		clock:     clock,
		random:    random,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "challenge")),
	}
}

// Create invites opponentID to a game
func (s *Service) Create(ctx context.Context, challengerID, opponentID model.PlayerID) (*model.Challenge, error) {
	if challengerID == opponentID {
		return nil, model.ErrSelfChallenge
	}
	if _, err := s.presence.GetPresence(ctx, challengerID); err != nil {
		return nil, err
	}
	online, err := s.presence.IsOnline(ctx, opponentID)
	if err != nil {
		return nil, err
	}
	if !online {
		return nil, model.ErrOpponentOffline
	}

	now := s.clock.Now()
	challenge := &model.Challenge{
		ID:           model.ChallengeID(s.random.UUID()),
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		State:        model.ChallengePending,
		Rules:        s.cfg.Rules.Clone(),
		CreatedAt:    now,
	}

	err = s.storage.CreateChallenge(ctx, challenge)
	if errors.Is(err, model.ErrDuplicateChallenge) {
		// A pending challenge that outlived the timeout but was not swept yet
		// should not block the pair.
		if s.expirePair(ctx, challengerID, challenge.PairKey(), now) {
			err = s.storage.CreateChallenge(ctx, challenge)
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("challenge created",
		slog.String("challenge_id", string(challenge.ID)),
		slog.String("challenger_id", string(challengerID)),
		slog.String("opponent_id", string(opponentID)),
	)
	s.notify(ctx, challenge, model.EventChallengeReceived, opponentID)
	return challenge, nil
}

// expirePair expires stale pending challenges for a pair and reports whether any were
func (s *Service) expirePair(ctx context.Context, playerID model.PlayerID, pairKey string, now time.Time) bool {
	challenges, err := s.storage.ListChallengesForPlayer(ctx, playerID)
	if err != nil {
		return false
	}
	expired := false
	for _, c := range challenges {
		if c.State == model.ChallengePending && c.PairKey() == pairKey && s.isStale(c, now) {
			if err := s.resolve(ctx, c, model.ChallengeExpired, now); err == nil {
				expired = true
			}
		}
	}
	return expired
}

// Respond accepts or declines a challenge on behalf of its opponent
func (s *Service) Respond(ctx context.Context, id model.ChallengeID, responderID model.PlayerID, decision model.Decision) (*model.Challenge, error) {
	var target model.ChallengeState
	switch decision {
	case model.DecisionAccept:
		target = model.ChallengeAccepted
	case model.DecisionDecline:
		target = model.ChallengeDeclined
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidDecision, decision)
	}

	challenge, err := s.storage.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	if challenge.OpponentID != responderID {
		return nil, model.ErrNotAuthorized
	}
	if challenge.State.IsTerminal() {
		return nil, fmt.Errorf("%w: challenge is %s", model.ErrAlreadyResolved, challenge.State)
	}

	now := s.clock.Now()
	if s.isStale(challenge, now) {
		if err := s.resolve(ctx, challenge, model.ChallengeExpired, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: challenge expired", model.ErrAlreadyResolved)
	}

	if target == model.ChallengeAccepted {
		challenge.SessionID = model.SessionIDForChallenge(challenge.ID)
	}
	if err := s.resolve(ctx, challenge, target, now); err != nil {
		return nil, err
	}

	if target == model.ChallengeDeclined {
		return challenge, nil
	}

	if _, err := s.sessions.CreateSession(ctx, challenge); err != nil {
		s.logger.Error("challenge accepted but session creation failed",
			slog.String("challenge_id", string(challenge.ID)),
			slog.String("error", err.Error()),
		)
		return challenge, err
	}
	s.notify(ctx, challenge, model.EventSessionCreated, challenge.ChallengerID, challenge.OpponentID)
	return challenge, nil
}

// Cancel withdraws a pending challenge on behalf of its challenger
func (s *Service) Cancel(ctx context.Context, id model.ChallengeID, challengerID model.PlayerID) (*model.Challenge, error) {
	challenge, err := s.storage.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	if challenge.ChallengerID != challengerID {
		return nil, model.ErrNotAuthorized
	}
	if challenge.State.IsTerminal() {
		return nil, fmt.Errorf("%w: challenge is %s", model.ErrAlreadyResolved, challenge.State)
	}
	if err := s.resolve(ctx, challenge, model.ChallengeCancelled, s.clock.Now()); err != nil {
		return nil, err
	}
	return challenge, nil
}

// ExpireStale expires every pending challenge older than timeout
func (s *Service) ExpireStale(ctx context.Context, now time.Time, timeout time.Duration) (int, error) {
	pending, err := s.storage.ListPendingChallenges(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range pending {
		if now.Sub(c.CreatedAt) < timeout {
			continue
		}
		err := s.resolve(ctx, c, model.ChallengeExpired, now)
		if errors.Is(err, model.ErrAlreadyResolved) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
	}
	if count > 0 {
		s.logger.Info("expired stale challenges", slog.Int("count", count))
	}
	return count, nil
}

// resolve moves a pending challenge to a terminal state with a version-guarded
// write and pushes the outcome. Losing the race reports ErrAlreadyResolved.
func (s *Service) resolve(ctx context.Context, challenge *model.Challenge, state model.ChallengeState, now time.Time) error {
	expected := challenge.Version
	challenge.State = state
	challenge.ResolvedAt = &now

	err := s.storage.UpdateChallenge(ctx, challenge, expected)
	if errors.Is(err, model.ErrVersionConflict) {
		current, getErr := s.storage.GetChallenge(ctx, challenge.ID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: challenge is %s", model.ErrAlreadyResolved, current.State)
	}
	if err != nil {
		return err
	}

	s.logger.Info("challenge resolved",
		slog.String("challenge_id", string(challenge.ID)),
		slog.String("state", string(state)),
	)

	switch state {
	case model.ChallengeDeclined:
		s.notify(ctx, challenge, model.EventChallengeResolved, challenge.ChallengerID)
	case model.ChallengeCancelled:
		s.notify(ctx, challenge, model.EventChallengeResolved, challenge.OpponentID)
	case model.ChallengeExpired:
		s.notify(ctx, challenge, model.EventChallengeResolved, challenge.ChallengerID, challenge.OpponentID)
	}
	return nil
}

func (s *Service) isStale(c *model.Challenge, now time.Time) bool {
	return now.Sub(c.CreatedAt) >= s.cfg.Timeout
}

func (s *Service) notify(ctx context.Context, c *model.Challenge, eventType model.EventType, recipients ...model.PlayerID) {
	for _, playerID := range recipients {
		err := s.publisher.Publish(ctx, model.Event{
			Type:        eventType,
			Recipient:   playerID,
			ChallengeID: c.ID,
			SessionID:   c.SessionID,
			State:       c.State,
			Version:     c.Version,
			Timestamp:   s.clock.Now(),
		})
		if err != nil {
			s.logger.Warn("challenge notification failed",
				slog.String("challenge_id", string(c.ID)),
				slog.String("player_id", string(playerID)),
				slog.Any("error", err))
		}
	}
}

// Get retrieves a challenge by ID
func (s *Service) Get(ctx context.Context, id model.ChallengeID) (*model.Challenge, error) {
	return s.storage.GetChallenge(ctx, id)
}

// ListForPlayer returns every challenge involving the player, newest first
func (s *Service) ListForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Challenge, error) {
	return s.storage.ListChallengesForPlayer(ctx, playerID)
}

// EnsureSession creates the session of an accepted challenge if its creation
// failed when the challenge was accepted.
func (s *Service) EnsureSession(ctx context.Context, id model.ChallengeID) (*model.GameSession, error) {
	challenge, err := s.storage.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	if challenge.State != model.ChallengeAccepted {
		return nil, fmt.Errorf("%w: challenge is %s", model.ErrSessionNotFound, challenge.State)
	}
	return s.sessions.CreateSession(ctx, challenge)
}

// ServiceInterface defines the interface for the challenge coordinator
type ServiceInterface interface {
	Create(ctx context.Context, challengerID, opponentID model.PlayerID) (*model.Challenge, error)
	Respond(ctx context.Context, id model.ChallengeID, responderID model.PlayerID, decision model.Decision) (*model.Challenge, error)
	Cancel(ctx context.Context, id model.ChallengeID, challengerID model.PlayerID) (*model.Challenge, error)
	ExpireStale(ctx context.Context, now time.Time, timeout time.Duration) (int, error)
	Get(ctx context.Context, id model.ChallengeID) (*model.Challenge, error)
	ListForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Challenge, error)
	EnsureSession(ctx context.Context, id model.ChallengeID) (*model.GameSession, error)
}

var _ ServiceInterface = (*Service)(nil)
