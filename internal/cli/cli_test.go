package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/battleship/internal/api"
	"github.com/mcoot/battleship/internal/api/response"
	"github.com/mcoot/battleship/internal/factory"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/testutil"
)

type cliHarness struct {
	t      *testing.T
	app    *factory.TestApp
	server *httptest.Server
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	t.Setenv("BSCTL_TOKEN", "")
	t.Setenv(SecretEnvVar, "")

	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{Logger: testutil.NopLogger(), App: app.App}))
	t.Cleanup(srv.Close)

	return &cliHarness{t: t, app: app, server: srv}
}

// run executes bsctl in-process as the player whose token lives in tokenFile
func (h *cliHarness) run(tokenFile string, args ...string) (string, error) {
	h.t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", h.server.URL, "--token-file", tokenFile}, args...))
	err := cmd.ExecuteContext(h.t.Context())
	return out.String(), err
}

func (h *cliHarness) runJSON(tokenFile string, result any, args ...string) {
	h.t.Helper()
	out, err := h.run(tokenFile, append([]string{"-o", "json"}, args...)...)
	require.NoError(h.t, err, out)
	require.NoError(h.t, json.Unmarshal([]byte(out), result), out)
}

func (h *cliHarness) register(name string) (id, tokenFile string) {
	h.t.Helper()
	tokenFile = filepath.Join(h.t.TempDir(), "token")

	var auth response.AuthResponse
	h.runJSON(tokenFile, &auth, "player", "register", "--name", name, "--secret", factory.TestSecret(name))
	return auth.Player.ID, tokenFile
}

func (h *cliHarness) playerID(tokenFile string) string {
	h.t.Helper()
	var me response.Presence
	h.runJSON(tokenFile, &me, "player", "me")
	return me.Player.ID
}

var fleetArgs = []string{"--ship", "0,0,5,h", "--ship", "1,0,4,h", "--ship", "2,0,3,h", "--ship", "3,0,3,h", "--ship", "4,0,2,h"}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(filepath.Join(t.TempDir(), "token"), "health")
	require.NoError(t, err)
	assert.Equal(t, "Status: ok\n", out)
}

func TestRegisterSavesToken(t *testing.T) {
	h := newHarness(t)
	_, tokenFile := h.register("Alice")

	var me response.Presence
	h.runJSON(tokenFile, &me, "player", "me")
	assert.Equal(t, "Alice", me.Player.DisplayName)
	assert.Equal(t, "online", me.Status)

	out, err := h.run(tokenFile, "player", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	// The token file is gone so the next call is anonymous
	_, err = h.run(tokenFile, "player", "me")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestRegisterNeedsASecret(t *testing.T) {
	h := newHarness(t)
	tokenFile := filepath.Join(t.TempDir(), "token")

	_, err := h.run(tokenFile, "player", "register", "--name", "Alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), SecretEnvVar)
}

func TestRegisterSecretFromEnvironment(t *testing.T) {
	h := newHarness(t)
	aliceID, _ := h.register("Alice")
	tokenFile := filepath.Join(t.TempDir(), "token")

	t.Setenv(SecretEnvVar, factory.TestSecret("Alice"))
	var auth response.AuthResponse
	h.runJSON(tokenFile, &auth, "player", "register", "--name", "Alice")
	assert.Equal(t, aliceID, auth.Player.ID)
}

func TestRegisterWithWrongSecretIsRefused(t *testing.T) {
	h := newHarness(t)
	h.register("Alice")
	tokenFile := filepath.Join(t.TempDir(), "token")

	_, err := h.run(tokenFile, "player", "register", "--name", "Alice", "--secret", "guess")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "NOT_AUTHORIZED", apiErr.Code)

	_, err = h.run(tokenFile, "player", "me")
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestWatchSendsHeartbeat(t *testing.T) {
	h := newHarness(t)
	_, alice := h.register("Alice")
	_, bob := h.register("Bob")
	bobID := h.playerID(bob)

	var c response.Challenge
	h.runJSON(alice, &c, "challenge", "create", bobID)
	var accepted response.Challenge
	h.runJSON(bob, &accepted, "challenge", "accept", c.ID)
	var forfeit response.TransitionResult
	h.runJSON(alice, &forfeit, "game", "forfeit", accepted.SessionID)

	h.app.MockClock.Advance(45 * time.Second)
	_, err := h.run(bob, "game", "watch", accepted.SessionID)
	require.NoError(t, err)

	rec, err := h.app.PresenceService.GetPresence(t.Context(), model.PlayerID(bobID))
	require.NoError(t, err)
	assert.Equal(t, h.app.MockClock.Now(), rec.LastSeen)
}

func TestWatchRejectsNonPositiveHeartbeat(t *testing.T) {
	h := newHarness(t)
	_, alice := h.register("Alice")

	_, err := h.run(alice, "game", "watch", "s_x", "--heartbeat", "0s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestChallengeAndPlay(t *testing.T) {
	h := newHarness(t)
	aliceID, alice := h.register("Alice")
	bobID, bob := h.register("Bob")

	var online response.PlayerList
	h.runJSON(alice, &online, "player", "online")
	require.Len(t, online.Players, 1)
	assert.Equal(t, bobID, online.Players[0].ID)

	var c response.Challenge
	h.runJSON(alice, &c, "challenge", "create", bobID)
	assert.Equal(t, "pending", c.State)

	out, err := h.run(bob, "challenge", "list")
	require.NoError(t, err)
	assert.Contains(t, out, c.ID)
	assert.Contains(t, out, "pending")

	var accepted response.Challenge
	h.runJSON(bob, &accepted, "challenge", "accept", c.ID)
	require.NotEmpty(t, accepted.SessionID)
	sid := accepted.SessionID

	var placed response.TransitionResult
	h.runJSON(alice, &placed, append([]string{"game", "place", sid}, fleetArgs...)...)
	assert.True(t, placed.Applied)
	h.runJSON(bob, &placed, "game", "place", sid, "--random")
	assert.Equal(t, "in_progress", placed.Session.Phase)
	assert.Equal(t, aliceID, placed.Session.Turn)

	out, err = h.run(alice, "game", "get", sid)
	require.NoError(t, err)
	assert.Contains(t, out, "Your turn")
	assert.Contains(t, out, "Your fleet")

	out, err = h.run(bob, "game", "shoot", sid, "0", "0")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), out)
	assert.Equal(t, "NOT_YOUR_TURN", apiErr.Code)

	var shot response.TransitionResult
	h.runJSON(alice, &shot, "game", "shoot", sid, "9", "9", "--transition-id", "a-1")
	assert.True(t, shot.Applied)
	h.runJSON(alice, &shot, "game", "shoot", sid, "9", "9", "--transition-id", "a-1")
	assert.False(t, shot.Applied)

	_, err = h.run(bob, "game", "shoot", sid, "5", "5", "--expected-version", "0")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "VERSION_CONFLICT", apiErr.Code)

	var moves response.CatchUp
	h.runJSON(bob, &moves, "game", "moves", sid)
	assert.Equal(t, 1, moves.Total)
	require.Len(t, moves.Moves, 1)
	assert.Equal(t, aliceID, moves.Moves[0].PlayerID)

	var forfeit response.TransitionResult
	h.runJSON(bob, &forfeit, "game", "forfeit", sid)
	assert.Equal(t, "finished", forfeit.Session.Phase)
	assert.Equal(t, aliceID, forfeit.Session.Winner)

	// A finished game renders once and watch returns
	out, err = h.run(alice, "game", "watch", sid)
	require.NoError(t, err)
	assert.Contains(t, out, "You won (forfeit)")
	assert.Contains(t, out, "forfeited")

	var sessions response.SessionList
	h.runJSON(bob, &sessions, "game", "list")
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, sid, sessions.Sessions[0].ID)
}

func TestPlaceRequiresShips(t *testing.T) {
	h := newHarness(t)
	_, alice := h.register("Alice")

	_, err := h.run(alice, "game", "place", "s_x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--ship or --random")
}

func TestParseShip(t *testing.T) {
	ship, err := parseShip("2, 3, 4, v")
	require.NoError(t, err)
	assert.Equal(t, 2, ship.Row)
	assert.Equal(t, 3, ship.Col)
	assert.Equal(t, 4, ship.Length)
	assert.Equal(t, "vertical", ship.Orientation)

	for _, bad := range []string{"1,2,3", "a,0,2,h", "0,0,2,diagonal"} {
		_, err := parseShip(bad)
		assert.Error(t, err, bad)
	}
}

func TestTextOutputRendersBoards(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput("text", &buf)

	out.printBoards(
		response.Board{{"ship", "hit"}, {"miss", "empty"}},
		response.Board{{"empty", "empty"}, {"hit", "miss"}},
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], " # X")
	assert.Contains(t, lines[3], " o .")
	assert.Contains(t, lines[3], " X o")
}
