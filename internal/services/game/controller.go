package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/battleship/internal/dependencies/clock"
	"github.com/mcoot/battleship/internal/dependencies/random"
	"github.com/mcoot/battleship/internal/engine"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/gamesync"
	"github.com/mcoot/battleship/internal/storage"
)

// Options tune how a transition is submitted
type Options struct {
	// TransitionID makes the submission idempotent. One is generated when empty.
	TransitionID model.TransitionID
	// ExpectedVersion pins the submission to a version. When set a conflict is
	// returned to the caller instead of being retried.
	ExpectedVersion *int64
}

// Controller manages game sessions and turn flow
type Controller struct {
	storage storage.Storage
	sync    *gamesync.Synchronizer
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// NewController creates a new game Controller
func NewController(
	storage storage.Storage,
	synchronizer *gamesync.Synchronizer,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage: storage,
		sync:    synchronizer,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "game")),
	}
}

// CreateSession creates the session for an accepted challenge.
// Calling it again for the same challenge returns the existing session.
func (c *Controller) CreateSession(ctx context.Context, challenge *model.Challenge) (*model.GameSession, error) {
	if challenge.State != model.ChallengeAccepted {
		return nil, fmt.Errorf("%w: challenge is %s", model.ErrInvalidTransition, challenge.State)
	}

	id := model.SessionIDForChallenge(challenge.ID)
	session := engine.NewSession(id, challenge, c.clock.Now())
	err := c.storage.CreateSession(ctx, session)
	if errors.Is(err, model.ErrSessionExists) {
		return c.storage.GetSession(ctx, id)
	}
	if err != nil {
		c.logger.Error("failed to create session",
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logger.Info("session created",
		slog.String("session_id", string(id)),
		slog.String("challenge_id", string(challenge.ID)),
		slog.String("player_a", string(session.PlayerA)),
		slog.String("player_b", string(session.PlayerB)),
		slog.Int("grid_size", session.Rules.GridSize),
	)
	return session, nil
}

// GetSession retrieves a session by ID
func (c *Controller) GetSession(ctx context.Context, id model.SessionID) (*model.GameSession, error) {
	return c.storage.GetSession(ctx, id)
}

// View returns a session as one participant may see it
func (c *Controller) View(ctx context.Context, id model.SessionID, playerID model.PlayerID) (*engine.View, error) {
	session, err := c.storage.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return engine.ViewFor(session, playerID)
}

// ListForPlayer returns the sessions a player takes part in, newest first
func (c *Controller) ListForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.GameSession, error) {
	return c.storage.ListSessionsForPlayer(ctx, playerID)
}

// SubmitPlacement commits a player's fleet
func (c *Controller) SubmitPlacement(ctx context.Context, id model.SessionID, playerID model.PlayerID, ships []model.Ship, opts Options) (*gamesync.Result, error) {
	return c.Submit(ctx, id, model.PlaceTransition(opts.TransitionID, playerID, ships), opts)
}

// SubmitRandomPlacement commits a randomly generated legal fleet
func (c *Controller) SubmitRandomPlacement(ctx context.Context, id model.SessionID, playerID model.PlayerID, opts Options) (*gamesync.Result, error) {
	session, err := c.storage.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	ships, err := engine.RandomPlacement(session.Rules, c.random)
	if err != nil {
		return nil, err
	}
	return c.SubmitPlacement(ctx, id, playerID, ships, opts)
}

// SubmitShot fires at a cell of the opponent's board
func (c *Controller) SubmitShot(ctx context.Context, id model.SessionID, playerID model.PlayerID, target model.Position, opts Options) (*gamesync.Result, error) {
	return c.Submit(ctx, id, model.ShootTransition(opts.TransitionID, playerID, target), opts)
}

// Forfeit concedes the session to the opponent
func (c *Controller) Forfeit(ctx context.Context, id model.SessionID, playerID model.PlayerID, opts Options) (*gamesync.Result, error) {
	return c.Submit(ctx, id, model.ForfeitTransition(opts.TransitionID, playerID), opts)
}

// Submit sends any transition to the session
func (c *Controller) Submit(ctx context.Context, id model.SessionID, t model.Transition, opts Options) (*gamesync.Result, error) {
	if t.ID == "" {
		t.ID = opts.TransitionID
	}
	if t.ID == "" {
		t.ID = model.TransitionID(c.random.UUID())
	}

	var (
		result *gamesync.Result
		err    error
	)
	if opts.ExpectedVersion != nil {
		result, err = c.sync.ApplyTransition(ctx, id, *opts.ExpectedVersion, t)
	} else {
		result, err = c.sync.Commit(ctx, id, t)
	}
	if err != nil {
		return nil, err
	}

	if result.Applied && result.Session.IsFinished() {
		c.logger.Info("session finished",
			slog.String("session_id", string(id)),
			slog.String("winner", string(result.Session.Winner)),
			slog.String("reason", string(result.Session.FinishReason)),
			slog.Int("moves", len(result.Session.MoveLog)),
		)
	}
	return result, nil
}
