package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/battleship/internal/dependencies/clock"
	"github.com/mcoot/battleship/internal/dependencies/random"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/storage"
)

const (
	// MaxDisplayNameLength is the longest display name accepted, in runes
	MaxDisplayNameLength = 32

	// MaxSecretLength is the longest secret bcrypt can hash, in bytes
	MaxSecretLength = 72

	// MinHashCost is the cheapest bcrypt cost, for tests
	MinHashCost = bcrypt.MinCost

	// updateAttempts bounds re-reads after losing a version race
	updateAttempts = 3
)

// Config holds presence settings
type Config struct {
	// HashCost is the bcrypt cost for identity secrets
	HashCost int
}

// DefaultConfig returns the default presence settings
func DefaultConfig() Config {
	return Config{HashCost: bcrypt.DefaultCost}
}

// Service is the presence registry: who exists and who is currently online
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	cfg     Config
	logger  *slog.Logger
}

// New creates a new presence Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	if cfg.HashCost == 0 {
		cfg.HashCost = DefaultConfig().HashCost
	}
	return &Service{
		storage: storage,
		clock:   clock,
		random:  random,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "presence")),
	}
}

// ValidateDisplayName trims a display name and checks it is usable
func ValidateDisplayName(displayName string) (string, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return "", fmt.Errorf("%w: display name is empty", model.ErrInvalidIdentity)
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", fmt.Errorf("%w: display name is longer than %d characters", model.ErrInvalidIdentity, MaxDisplayNameLength)
	}
	return name, nil
}

// ValidateSecret checks a secret can be hashed
func ValidateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", model.ErrInvalidIdentity)
	}
	if len(secret) > MaxSecretLength {
		return fmt.Errorf("%w: secret is longer than %d bytes", model.ErrInvalidIdentity, MaxSecretLength)
	}
	return nil
}

// Register marks the player with this display name online, creating the identity
// on first use with secret as its claim. An existing identity is only handed out
// to a caller presenting the same secret; for them it is a no-op refresh.
func (s *Service) Register(ctx context.Context, displayName, secret string) (*model.PresenceRecord, error) {
	name, err := ValidateDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	if err := ValidateSecret(secret); err != nil {
		return nil, err
	}

	var hash []byte
	for attempt := 0; attempt < updateAttempts; attempt++ {
		now := s.clock.Now()
		rec, err := s.storage.GetPresenceByName(ctx, name)
		switch {
		case err == nil:
			if bcrypt.CompareHashAndPassword([]byte(rec.SecretHash), []byte(secret)) != nil {
				s.logger.Warn("identity claim rejected",
					slog.String("player_id", string(rec.Player.ID)),
					slog.String("display_name", name))
				return nil, fmt.Errorf("%w: wrong secret for %q", model.ErrNotAuthorized, name)
			}
			expected := rec.Version
			rec.Status = model.PresenceOnline
			rec.LastSeen = now
			err = s.storage.UpdatePresence(ctx, rec, expected)
			if errors.Is(err, model.ErrVersionConflict) {
				continue
			}
			if err != nil {
				return nil, err
			}
			s.logger.Info("player online",
				slog.String("player_id", string(rec.Player.ID)),
				slog.String("display_name", name))
			return rec, nil

		case errors.Is(err, model.ErrPlayerNotFound):
			if hash == nil {
				hash, err = bcrypt.GenerateFromPassword([]byte(secret), s.cfg.HashCost)
				if err != nil {
					return nil, fmt.Errorf("hashing secret: %w", err)
				}
			}
			rec = &model.PresenceRecord{
				Player: model.Player{
					ID:          model.PlayerID(s.random.UUID()),
					DisplayName: name,
					CreatedAt:   now,
				},
				SecretHash: string(hash),
				Status:     model.PresenceOnline,
				LastSeen:   now,
			}
			err = s.storage.CreatePresence(ctx, rec)
			if errors.Is(err, model.ErrDisplayNameTaken) {
				// A concurrent registration created it first
				continue
			}
			if err != nil {
				return nil, err
			}
			s.logger.Info("player registered",
				slog.String("player_id", string(rec.Player.ID)),
				slog.String("display_name", name))
			return rec, nil

		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: registering %q", model.ErrVersionConflict, name)
}

// update applies mutate to the player's record under the version guard, re-reading
// on conflict. mutate returns false when there is nothing to write.
func (s *Service) update(ctx context.Context, id model.PlayerID, mutate func(rec *model.PresenceRecord) bool) (*model.PresenceRecord, error) {
	for attempt := 0; attempt < updateAttempts; attempt++ {
		rec, err := s.storage.GetPresence(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := rec.Version
		if !mutate(rec) {
			return rec, nil
		}
		err = s.storage.UpdatePresence(ctx, rec, expected)
		if errors.Is(err, model.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("%w: presence of %s", model.ErrVersionConflict, id)
}

// Heartbeat refreshes the player's last-seen time and re-asserts them online
func (s *Service) Heartbeat(ctx context.Context, id model.PlayerID) (*model.PresenceRecord, error) {
	now := s.clock.Now()
	return s.update(ctx, id, func(rec *model.PresenceRecord) bool {
		rec.Status = model.PresenceOnline
		rec.LastSeen = now
		return true
	})
}

// KeepAlive refreshes the last-seen time of a player who is still online.
// It never brings an offline player back.
func (s *Service) KeepAlive(ctx context.Context, id model.PlayerID) error {
	now := s.clock.Now()
	_, err := s.update(ctx, id, func(rec *model.PresenceRecord) bool {
		if !rec.IsOnline() {
			return false
		}
		rec.LastSeen = now
		return true
	})
	return err
}

// MarkOffline takes the player out of the online roster. Marking an offline player is a no-op.
func (s *Service) MarkOffline(ctx context.Context, id model.PlayerID) error {
	_, err := s.update(ctx, id, func(rec *model.PresenceRecord) bool {
		if !rec.IsOnline() {
			return false
		}
		rec.Status = model.PresenceOffline
		return true
	})
	if err != nil {
		return err
	}
	s.logger.Info("player offline", slog.String("player_id", string(id)))
	return nil
}

// ListOnline returns every online player except the caller, ordered by display name
func (s *Service) ListOnline(ctx context.Context, excluding model.PlayerID) ([]model.Player, error) {
	records, err := s.storage.ListPresence(ctx, model.PresenceOnline)
	if err != nil {
		return nil, err
	}
	players := make([]model.Player, 0, len(records))
	for _, rec := range records {
		if rec.Player.ID == excluding {
			continue
		}
		players = append(players, rec.Player)
	}
	return players, nil
}

// SweepExpired marks offline every online player not seen within timeout of now.
// A record refreshed concurrently keeps its heartbeat and is skipped.
func (s *Service) SweepExpired(ctx context.Context, now time.Time, timeout time.Duration) (int, error) {
	records, err := s.storage.ListPresence(ctx, model.PresenceOnline)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, rec := range records {
		if !rec.IsStale(now, timeout) {
			continue
		}
		expected := rec.Version
		rec.Status = model.PresenceOffline
		err := s.storage.UpdatePresence(ctx, rec, expected)
		if errors.Is(err, model.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired++
		s.logger.Info("player presence expired",
			slog.String("player_id", string(rec.Player.ID)),
			slog.Time("last_seen", rec.LastSeen))
	}
	return expired, nil
}

// GetPresence returns the player's presence record
func (s *Service) GetPresence(ctx context.Context, id model.PlayerID) (*model.PresenceRecord, error) {
	return s.storage.GetPresence(ctx, id)
}

// GetPlayer returns the player's identity
func (s *Service) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	rec, err := s.storage.GetPresence(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rec.Player, nil
}

// IsOnline reports whether the player is known and online
func (s *Service) IsOnline(ctx context.Context, id model.PlayerID) (bool, error) {
	rec, err := s.storage.GetPresence(ctx, id)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.IsOnline(), nil
}

// ServiceInterface defines the presence registry operations
type ServiceInterface interface {
	Register(ctx context.Context, displayName, secret string) (*model.PresenceRecord, error)
	Heartbeat(ctx context.Context, id model.PlayerID) (*model.PresenceRecord, error)
	KeepAlive(ctx context.Context, id model.PlayerID) error
	MarkOffline(ctx context.Context, id model.PlayerID) error
	ListOnline(ctx context.Context, excluding model.PlayerID) ([]model.Player, error)
	SweepExpired(ctx context.Context, now time.Time, timeout time.Duration) (int, error)
	GetPresence(ctx context.Context, id model.PlayerID) (*model.PresenceRecord, error)
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	IsOnline(ctx context.Context, id model.PlayerID) (bool, error)
}

var _ ServiceInterface = (*Service)(nil)
