// Package sweeper runs the periodic housekeeping that keeps presence and
// challenges honest when clients disappear without saying goodbye.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/battleship/internal/dependencies/clock"
	"github.com/mcoot/battleship/internal/model"
)

// PresenceSweeper marks silent players offline and keeps listening ones online
type PresenceSweeper interface {
	SweepExpired(ctx context.Context, now time.Time, timeout time.Duration) (int, error)
	KeepAlive(ctx context.Context, id model.PlayerID) error
}

// ChallengeSweeper expires challenges nobody answered
type ChallengeSweeper interface {
	ExpireStale(ctx context.Context, now time.Time, timeout time.Duration) (int, error)
}

// PushHubs reports who holds an open push stream and drops hubs with no listeners
type PushHubs interface {
	ConnectedPlayers() []model.PlayerID
	CleanupEmptyHubs() int
}

// RevocationCleaner forgets revoked tokens past their expiry
type RevocationCleaner interface {
	CleanExpiredRevocations() int
}

// Config holds sweeper settings
type Config struct {
	Interval         time.Duration
	PresenceTimeout  time.Duration
	ChallengeTimeout time.Duration
}

// DefaultConfig returns the default sweeper settings
func DefaultConfig() Config {
	return Config{
		Interval:         15 * time.Second,
		PresenceTimeout:  90 * time.Second,
		ChallengeTimeout: 2 * time.Minute,
	}
}

// Stats counts what one sweep did
type Stats struct {
	PlayersKeptAlive  int
	PlayersOffline    int
	ChallengesExpired int
	HubsRemoved       int
	TokensForgotten   int
}

// Sweeper runs housekeeping on an interval
type Sweeper struct {
	presence   PresenceSweeper
	challenges ChallengeSweeper
	hubs       PushHubs
	tokens     RevocationCleaner
	clock      clock.Clock
	cfg        Config
	logger     *slog.Logger
}

// New creates a new Sweeper. hubs and tokens may be nil.
func New(presence PresenceSweeper, challenges ChallengeSweeper, hubs PushHubs, tokens RevocationCleaner, clock clock.Clock, cfg Config, logger *slog.Logger) *Sweeper {
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.PresenceTimeout <= 0 {
		cfg.PresenceTimeout = defaults.PresenceTimeout
	}
	if cfg.ChallengeTimeout <= 0 {
		cfg.ChallengeTimeout = defaults.ChallengeTimeout
	}
	return &Sweeper{
		presence:   presence,
		challenges: challenges,
		hubs:       hubs,
		tokens:     tokens,
		clock:      clock,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "sweeper")),
	}
}

// Run sweeps every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", slog.Duration("interval", s.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Failures are logged and the rest of the pass still runs.
// Players holding an open push stream on this instance count as seen.
func (s *Sweeper) Sweep(ctx context.Context) Stats {
	var stats Stats
	if s.hubs != nil {
		stats.PlayersKeptAlive = s.keepConnectedAlive(ctx)
	}
	now := s.clock.Now()

	n, err := s.presence.SweepExpired(ctx, now, s.cfg.PresenceTimeout)
	if err != nil {
		s.logger.Error("presence sweep failed", slog.String("error", err.Error()))
	}
	stats.PlayersOffline = n

	n, err = s.challenges.ExpireStale(ctx, now, s.cfg.ChallengeTimeout)
	if err != nil {
		s.logger.Error("challenge sweep failed", slog.String("error", err.Error()))
	}
	stats.ChallengesExpired = n

	if s.hubs != nil {
		stats.HubsRemoved = s.hubs.CleanupEmptyHubs()
	}
	if s.tokens != nil {
		stats.TokensForgotten = s.tokens.CleanExpiredRevocations()
	}

	if stats != (Stats{}) {
		s.logger.Debug("sweep complete",
			slog.Int("players_kept_alive", stats.PlayersKeptAlive),
			slog.Int("players_offline", stats.PlayersOffline),
			slog.Int("challenges_expired", stats.ChallengesExpired),
			slog.Int("hubs_removed", stats.HubsRemoved),
			slog.Int("tokens_forgotten", stats.TokensForgotten),
		)
	}
	return stats
}

func (s *Sweeper) keepConnectedAlive(ctx context.Context) int {
	kept := 0
	for _, id := range s.hubs.ConnectedPlayers() {
		if err := s.presence.KeepAlive(ctx, id); err != nil {
			s.logger.Warn("keepalive failed",
				slog.String("player_id", string(id)),
				slog.String("error", err.Error()))
			continue
		}
		kept++
	}
	return kept
}
