package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/battleship/internal/dependencies/mocks"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/presence"
	"github.com/mcoot/battleship/internal/storage/memory"
	"github.com/mcoot/battleship/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	presence *presence.Service
	service  *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.presence = presence.New(s.storage, s.clock, s.random, presence.Config{HashCost: presence.MinHashCost}, testutil.NopLogger())
	s.service = New(s.presence, nil, s.clock, s.random, DefaultConfig())
	s.ctx = context.Background()
}

func (s *ServiceSuite) login(name string) *Session {
	session, err := s.service.Login(s.ctx, name, name+"-secret")
	s.Require().NoError(err)
	return session
}

// Login tests

func (s *ServiceSuite) TestLoginRegistersPlayer() {
	s.random.QueueUUID("alice-id", "token-1")
	session := s.login("Alice")

	s.NotEmpty(session.Token)
	s.Equal(model.PlayerID("alice-id"), session.PlayerID)
	s.Equal("token-1", session.TokenID)
	s.Equal(s.clock.Now().Add(24*time.Hour), session.ExpiresAt)

	online, err := s.presence.IsOnline(s.ctx, session.PlayerID)
	s.Require().NoError(err)
	s.True(online)
}

func (s *ServiceSuite) TestLoginRejectsInvalidName() {
	_, err := s.service.Login(s.ctx, "  ", "secret")
	s.ErrorIs(err, model.ErrInvalidIdentity)
}

func (s *ServiceSuite) TestLoginWithoutTheSecretIsRefused() {
	alice := s.login("Alice")

	_, err := s.service.Login(s.ctx, "Alice", "not-alices-secret")
	s.ErrorIs(err, model.ErrNotAuthorized)
	_, err = s.service.Login(s.ctx, "Alice", "")
	s.ErrorIs(err, model.ErrInvalidIdentity)

	// The holder can still come back
	again := s.login("Alice")
	s.Equal(alice.PlayerID, again.PlayerID)
}

func (s *ServiceSuite) TestLoginSameNameKeepsIdentity() {
	first := s.login("Alice")
	second := s.login("Alice")

	s.Equal(first.PlayerID, second.PlayerID)
	s.NotEqual(first.TokenID, second.TokenID)
}

// ValidateSession tests

func (s *ServiceSuite) TestValidateSessionRoundTrip() {
	session := s.login("Alice")

	validated, err := s.service.ValidateSession(s.ctx, session.Token)
	s.Require().NoError(err)
	s.Equal(session.PlayerID, validated.PlayerID)
	s.Equal("Alice", validated.Player.DisplayName)
	s.WithinDuration(session.ExpiresAt, validated.ExpiresAt, 0)
}

func (s *ServiceSuite) TestValidateSessionRejectsGarbage() {
	_, err := s.service.ValidateSession(s.ctx, "not-a-token")
	s.ErrorIs(err, ErrInvalidSession)

	_, err = s.service.ValidateSession(s.ctx, "")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestValidateSessionRejectsExpiredToken() {
	session := s.login("Alice")
	s.clock.Advance(25 * time.Hour)

	_, err := s.service.ValidateSession(s.ctx, session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestValidateSessionRejectsForeignSignature() {
	other := New(s.presence, nil, s.clock, s.random, Config{Secret: []byte("another-secret")})
	session, err := other.Login(s.ctx, "Mallory", "mallory-secret")
	s.Require().NoError(err)

	_, err = s.service.ValidateSession(s.ctx, session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestValidateSessionRejectsUnsignedToken() {
	claims := Claims{
		DisplayName: "Mallory",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "t",
			Issuer:    issuer,
			Subject:   "mallory",
			ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	s.Require().NoError(err)

	_, err = s.service.ValidateSession(s.ctx, token)
	s.ErrorIs(err, ErrInvalidSession)
}

// Logout tests

func (s *ServiceSuite) TestLogoutRevokesTokenAndGoesOffline() {
	session := s.login("Alice")

	s.Require().NoError(s.service.Logout(s.ctx, session))

	_, err := s.service.ValidateSession(s.ctx, session.Token)
	s.ErrorIs(err, ErrInvalidSession)

	online, err := s.presence.IsOnline(s.ctx, session.PlayerID)
	s.Require().NoError(err)
	s.False(online)

	fresh := s.login("Alice")
	_, err = s.service.ValidateSession(s.ctx, fresh.Token)
	s.NoError(err)
}

func (s *ServiceSuite) TestCleanExpiredRevocations() {
	session := s.login("Alice")
	s.Require().NoError(s.service.Logout(s.ctx, session))

	s.Zero(s.service.CleanExpiredRevocations())
	s.clock.Advance(25 * time.Hour)
	s.Equal(1, s.service.CleanExpiredRevocations())
}
