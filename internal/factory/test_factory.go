package factory

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mcoot/battleship/internal/dependencies/mocks"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/auth"
	"github.com/mcoot/battleship/internal/services/presence"
	"github.com/mcoot/battleship/internal/storage/memory"
	"github.com/mcoot/battleship/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return newTestApp(nil)
}

// NewTestAppWithRedisEvents is NewTestApp with push events relayed through redis
func NewTestAppWithRedisEvents(client *goredis.Client) *TestApp {
	return newTestApp(client)
}

func newTestApp(client *goredis.Client) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	opts := DefaultOptions()
	opts.PresenceConfig.HashCost = presence.MinHashCost
	app := newWithDependencies(store, mockClock, mockRandom, opts, client, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// TestSecret is the secret NewTestPlayer registers every name with
func TestSecret(displayName string) string {
	return displayName + "-secret"
}

// NewTestPlayer registers a player with TestSecret
func (t *TestApp) NewTestPlayer(ctx context.Context, displayName string) (*auth.Session, error) {
	return t.NewPlayer(ctx, displayName, TestSecret(displayName))
}

// StartSession registers two players, has the first challenge the second and
// the second accept. It returns the new session.
func (t *TestApp) StartSession(ctx context.Context, challengerName, opponentName string) (*model.GameSession, error) {
	challenger, err := t.NewTestPlayer(ctx, challengerName)
	if err != nil {
		return nil, err
	}
	opponent, err := t.NewTestPlayer(ctx, opponentName)
	if err != nil {
		return nil, err
	}
	c, err := t.ChallengeService.Create(ctx, challenger.PlayerID, opponent.PlayerID)
	if err != nil {
		return nil, err
	}
	if _, err := t.ChallengeService.Respond(ctx, c.ID, opponent.PlayerID, model.DecisionAccept); err != nil {
		return nil, err
	}
	return t.SessionFor(ctx, c.ID)
}
