// Package auth issues and verifies the bearer tokens that carry a player identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/battleship/internal/dependencies/clock"
	"github.com/mcoot/battleship/internal/dependencies/random"
	"github.com/mcoot/battleship/internal/model"
)

// ErrInvalidSession is returned for a missing, malformed, expired or revoked token
var ErrInvalidSession = errors.New("invalid or expired session")

const issuer = "battleship"

// Session is a verified identity token
type Session struct {
	Token     string
	TokenID   string
	PlayerID  model.PlayerID
	Player    model.Player
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the JWT body
type Claims struct {
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// Registrar brings a player online by display name and secret
type Registrar interface {
	Register(ctx context.Context, displayName, secret string) (*model.PresenceRecord, error)
	MarkOffline(ctx context.Context, id model.PlayerID) error
}

// Config holds configuration for the auth service
type Config struct {
	Secret   []byte
	TokenTTL time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		Secret:   []byte("battleship-dev-secret-change-me"),
		TokenTTL: 24 * time.Hour,
	}
}

// Service signs identity tokens and tracks revoked ones until they expire
type Service struct {
	presence    Registrar
	revocations Revocations
	clock       clock.Clock
	random      random.Random
	cfg         Config
	parser      *jwt.Parser
}

// New creates a new auth Service. A nil revocations keeps them in memory.
func New(presence Registrar, revocations Revocations, clock clock.Clock, random random.Random, cfg Config) *Service {
	defaults := DefaultConfig()
	if len(cfg.Secret) == 0 {
		cfg.Secret = defaults.Secret
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if revocations == nil {
		revocations = NewMemoryRevocations()
	}
	return &Service{
		presence:    presence,
		revocations: revocations,
		clock:       clock,
		random:      random,
		cfg:         cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
	}
}

// Login claims the display name with its secret and returns a token for it
func (s *Service) Login(ctx context.Context, displayName, secret string) (*Session, error) {
	rec, err := s.presence.Register(ctx, displayName, secret)
	if err != nil {
		return nil, err
	}
	return s.Issue(rec.Player)
}

// Issue signs a token for a player
func (s *Service) Issue(player model.Player) (*Session, error) {
	now := s.clock.Now().Truncate(time.Second)
	session := &Session{
		TokenID:   s.random.UUID(),
		PlayerID:  player.ID,
		Player:    player,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}

	claims := Claims{
		DisplayName: player.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.TokenID,
			Issuer:    issuer,
			Subject:   string(player.ID),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			NotBefore: jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	session.Token = token
	return session, nil
}

// ValidateSession verifies a token and returns the identity it carries
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidSession)
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token was revoked", ErrInvalidSession)
	}

	session := &Session{
		Token:    token,
		TokenID:  claims.ID,
		PlayerID: model.PlayerID(claims.Subject),
		Player: model.Player{
			ID:          model.PlayerID(claims.Subject),
			DisplayName: claims.DisplayName,
		},
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Logout revokes the token and marks its player offline
func (s *Service) Logout(ctx context.Context, session *Session) error {
	if err := s.revocations.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		return err
	}
	return s.presence.MarkOffline(ctx, session.PlayerID)
}

// CleanExpiredRevocations forgets revoked tokens that have expired anyway
func (s *Service) CleanExpiredRevocations() int {
	return s.revocations.CleanExpired(s.clock.Now())
}
