package factory

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/battleship/internal/engine"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/game"
	"github.com/mcoot/battleship/internal/services/gamesync"
	"github.com/mcoot/battleship/internal/sse"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.NoError(s.app.Close())
}

// Test: Complete match from registration to a sunk fleet, followed by a mirror
func (s *IntegrationSuite) TestCompleteMatch() {
	// Step 1: Start a session between two registered players
	session, err := s.app.StartSession(s.ctx, "Alice", "Bob")
	s.Require().NoError(err)
	alice, bob := session.PlayerA, session.PlayerB
	s.Equal(model.PhasePlacement, session.Phase)

	mirror := gamesync.NewMirror(s.app.Synchronizer, session.ID, bob)

	// Step 2: Both players place; Bob lets the server place for him
	ships, err := engine.RandomPlacement(session.Rules, s.app.Random)
	s.Require().NoError(err)
	_, err = s.app.GameController.SubmitPlacement(s.ctx, session.ID, alice, ships, game.Options{})
	s.Require().NoError(err)
	result, err := s.app.GameController.SubmitRandomPlacement(s.ctx, session.ID, bob, game.Options{})
	s.Require().NoError(err)
	s.Equal(model.PhaseInProgress, result.Session.Phase)
	s.Equal(alice, result.Session.Turn)

	// Step 3: Alice sweeps Bob's fleet while Bob fires at cells Alice never used
	var targets []model.Position
	for _, ship := range result.Session.Fleets[1].Ships {
		targets = append(targets, ship.Cells()...)
	}
	var misses []model.Position
	for row := 0; row < session.Rules.GridSize; row++ {
		for col := 0; col < session.Rules.GridSize; col++ {
			pos := model.Position{Row: row, Col: col}
			if result.Session.Boards[0].Get(pos) == model.CellEmpty {
				misses = append(misses, pos)
			}
		}
	}

	for i, target := range targets {
		result, err = s.app.GameController.SubmitShot(s.ctx, session.ID, alice, target, game.Options{})
		s.Require().NoError(err)
		if result.Session.IsFinished() {
			break
		}
		result, err = s.app.GameController.SubmitShot(s.ctx, session.ID, bob, misses[i], game.Options{})
		s.Require().NoError(err)

		if i == 5 {
			_, err = mirror.Refresh(s.ctx)
			s.Require().NoError(err)
		}
	}

	// Step 4: Verify the outcome
	s.Equal(model.PhaseFinished, result.Session.Phase)
	s.Equal(alice, result.Session.Winner)
	s.Equal(model.FinishFleetDestroyed, result.Session.FinishReason)
	s.NoError(engine.Verify(result.Session))

	// Step 5: The mirror catches up incrementally and agrees with the authority
	changed, err := mirror.Refresh(s.ctx)
	s.Require().NoError(err)
	s.True(changed)
	st := mirror.State()
	s.Equal(result.Session.Version, st.Version)
	s.Equal(model.PhaseFinished, st.Phase)
	s.Equal(0, mirror.Resyncs())

	view, err := s.app.GameController.View(s.ctx, session.ID, bob)
	s.Require().NoError(err)
	s.Equal(view.OwnBoard, st.OwnBoard)
	s.Equal(view.OpponentBoard, st.OpponentBoard)
}

// Test: A second challenge between the same pair is refused while one is pending
func (s *IntegrationSuite) TestDuplicateChallenge() {
	alice, err := s.app.NewTestPlayer(s.ctx, "Alice")
	s.Require().NoError(err)
	bob, err := s.app.NewTestPlayer(s.ctx, "Bob")
	s.Require().NoError(err)

	_, err = s.app.ChallengeService.Create(s.ctx, alice.PlayerID, bob.PlayerID)
	s.Require().NoError(err)
	_, err = s.app.ChallengeService.Create(s.ctx, bob.PlayerID, alice.PlayerID)
	s.ErrorIs(err, model.ErrDuplicateChallenge)
}

// Test: The sweeper takes silent players offline and expires their challenges
func (s *IntegrationSuite) TestSweeperExpiresAbandonedChallenge() {
	alice, err := s.app.NewTestPlayer(s.ctx, "Alice")
	s.Require().NoError(err)
	bob, err := s.app.NewTestPlayer(s.ctx, "Bob")
	s.Require().NoError(err)
	c, err := s.app.ChallengeService.Create(s.ctx, alice.PlayerID, bob.PlayerID)
	s.Require().NoError(err)

	s.app.MockClock.Advance(5 * time.Minute)
	stats := s.app.Sweeper.Sweep(s.ctx)
	s.Equal(2, stats.PlayersOffline)
	s.Equal(1, stats.ChallengesExpired)

	stored, err := s.app.ChallengeService.Get(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(model.ChallengeExpired, stored.State)
}

// Test: A player waiting on a push stream stays challengeable past the heartbeat timeout
func (s *IntegrationSuite) TestListeningPlayerSurvivesSweep() {
	alice, err := s.app.NewTestPlayer(s.ctx, "Alice")
	s.Require().NoError(err)
	bob, err := s.app.NewTestPlayer(s.ctx, "Bob")
	s.Require().NoError(err)

	hub := s.app.HubManager.GetOrCreateHub(bob.PlayerID)
	hub.Register(sse.NewClient(hub, "sse"))
	s.Require().Eventually(func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	s.app.MockClock.Advance(91 * time.Second)
	_, err = s.app.PresenceService.Heartbeat(s.ctx, alice.PlayerID)
	s.Require().NoError(err)
	stats := s.app.Sweeper.Sweep(s.ctx)
	s.Zero(stats.PlayersOffline)

	c, err := s.app.ChallengeService.Create(s.ctx, alice.PlayerID, bob.PlayerID)
	s.Require().NoError(err)
	s.Equal(model.ChallengePending, c.State)
}

// Test: Push events travel through the redis relay to a player's stream
func TestRedisRelayDeliversPush(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	app := NewTestAppWithRedisEvents(client)
	defer func() { _ = app.Close() }()
	if app.Relay == nil {
		t.Fatal("relay was not wired")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = app.Relay.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		subs, err := client.PubSubNumSub(ctx, "bship:events").Result()
		if err == nil && subs["bship:events"] == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("relay never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	alice, err := app.NewTestPlayer(ctx, "Alice")
	if err != nil {
		t.Fatal(err)
	}
	bob, err := app.NewTestPlayer(ctx, "Bob")
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sse.ServeSSE(w, r, app.HubManager, bob.PlayerID)
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	lines := streamLines(resp.Body)

	// The connected event proves the stream is registered
	waitForEvent(t, lines, "connected")

	if _, err := app.ChallengeService.Create(ctx, alice.PlayerID, bob.PlayerID); err != nil {
		t.Fatal(err)
	}
	waitForEvent(t, lines, "challenge_received")
}

func streamLines(body io.Reader) <-chan string {
	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	return lines
}

func waitForEvent(t *testing.T, lines <-chan string, name string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before %q", name)
			}
			if line == "event: "+name {
				return
			}
		case <-timeout:
			t.Fatalf("no %q event", name)
		}
	}
}
