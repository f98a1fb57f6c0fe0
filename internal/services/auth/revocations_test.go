package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/battleship/internal/dependencies/mocks"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/presence"
	"github.com/mcoot/battleship/internal/storage/memory"
	"github.com/mcoot/battleship/internal/testutil"
)

type RedisRevocationSuite struct {
	suite.Suite
	mini   *miniredis.Miniredis
	client *goredis.Client
	clock  *mocks.MockClock
	random *mocks.MockRandom
	ctx    context.Context

	// Two server instances sharing one redis and one player store
	first  *Service
	second *Service
}

func TestRedisRevocationSuite(t *testing.T) {
	suite.Run(t, new(RedisRevocationSuite))
}

func (s *RedisRevocationSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	s.client = goredis.NewClient(&goredis.Options{Addr: s.mini.Addr()})
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.ctx = context.Background()

	store := memory.New()
	registry := presence.New(store, s.clock, s.random, presence.Config{HashCost: presence.MinHashCost}, testutil.NopLogger())
	s.first = New(registry, NewRedisRevocations(s.client, "", s.clock), s.clock, s.random, DefaultConfig())
	s.second = New(registry, NewRedisRevocations(s.client, "", s.clock), s.clock, s.random, DefaultConfig())
}

func (s *RedisRevocationSuite) TearDownTest() {
	_ = s.client.Close()
}

func (s *RedisRevocationSuite) TestLogoutOnOneInstanceRevokesEverywhere() {
	s.random.QueueUUID("alice-id", "token-1")
	session, err := s.first.Login(s.ctx, "Alice", "secret")
	s.Require().NoError(err)

	_, err = s.second.ValidateSession(s.ctx, session.Token)
	s.Require().NoError(err)

	s.Require().NoError(s.first.Logout(s.ctx, session))

	_, err = s.second.ValidateSession(s.ctx, session.Token)
	s.ErrorIs(err, ErrInvalidSession)
	_, err = s.first.ValidateSession(s.ctx, session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *RedisRevocationSuite) TestRevocationExpiresWithToken() {
	s.random.QueueUUID("alice-id", "token-1")
	session, err := s.first.Login(s.ctx, "Alice", "secret")
	s.Require().NoError(err)

	s.Require().NoError(s.first.Logout(s.ctx, session))
	s.Equal(24*time.Hour, s.mini.TTL(DefaultRevocationPrefix+":token-1"))
	s.Zero(s.first.CleanExpiredRevocations())

	s.mini.FastForward(25 * time.Hour)
	s.False(s.mini.Exists(DefaultRevocationPrefix + ":token-1"))
}

func (s *RedisRevocationSuite) TestAlreadyExpiredTokenIsNotStored() {
	revocations := NewRedisRevocations(s.client, "", s.clock)
	s.Require().NoError(revocations.Revoke(s.ctx, "old", s.clock.Now().Add(-time.Minute)))

	revoked, err := revocations.IsRevoked(s.ctx, "old")
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *RedisRevocationSuite) TestRedisDownIsStoreUnavailable() {
	revocations := NewRedisRevocations(s.client, "", s.clock)
	s.mini.Close()

	_, err := revocations.IsRevoked(s.ctx, "any")
	s.ErrorIs(err, model.ErrStoreUnavailable)
}
