package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/battleship/internal/api"
	"github.com/mcoot/battleship/internal/api/apierr"
	"github.com/mcoot/battleship/internal/api/response"
	"github.com/mcoot/battleship/internal/factory"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/sse"
	"github.com/mcoot/battleship/internal/testutil"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	// API tests are integration tests - use production factory with real random/clock
	app, err := factory.New(t.Context(), factory.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger: testutil.NopLogger(),
		App:    app,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apierr.ErrorResponse](t, rr).Error.Code
}

type player struct {
	id    string
	token string
}

func credentials(displayName string) map[string]string {
	return map[string]string{"display_name": displayName, "secret": displayName + "-secret"}
}

func register(t *testing.T, ts *testServer, displayName string) player {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/players", credentials(displayName), "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	resp := decode[response.AuthResponse](t, rr)
	return player{id: resp.Player.ID, token: resp.SessionToken}
}

// startGame registers two players and has the first challenge the second, who accepts
func startGame(t *testing.T, ts *testServer) (a, b player, sessionID string) {
	t.Helper()

	a = register(t, ts, "Alice")
	b = register(t, ts, "Bob")

	rr := ts.request(http.MethodPost, "/api/v1/challenges", map[string]string{"opponent_id": b.id}, a.token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	c := decode[response.Challenge](t, rr)

	rr = ts.request(http.MethodPost, "/api/v1/challenges/"+c.ID+"/respond", map[string]string{"decision": "accept"}, b.token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	accepted := decode[response.Challenge](t, rr)
	require.NotEmpty(t, accepted.SessionID)

	return a, b, accepted.SessionID
}

// classicFleet lays the {5,4,3,3,2} fleet out horizontally on rows 0 to 4
func classicFleet() []map[string]any {
	lengths := []int{5, 4, 3, 3, 2}
	ships := make([]map[string]any, len(lengths))
	for i, l := range lengths {
		ships[i] = map[string]any{"row": i, "col": 0, "length": l, "orientation": "horizontal"}
	}
	return ships
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[response.Health](t, rr).Status)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/lobbies", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rr))

	rr = ts.request(http.MethodDelete, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRegisterPlayer(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players", credentials("Alice"), "")
	assert.Equal(t, http.StatusCreated, rr.Code)

	resp := decode[response.AuthResponse](t, rr)
	assert.Equal(t, "Alice", resp.Player.DisplayName)
	assert.NotEmpty(t, resp.Player.ID)
	assert.NotEmpty(t, resp.SessionToken)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	// Registering again with the secret yields the same identity
	rr = ts.request(http.MethodPost, "/api/v1/players", credentials("Alice"), "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, resp.Player.ID, decode[response.AuthResponse](t, rr).Player.ID)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/players", map[string]string{"display_name": "   ", "secret": "s"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidIdentity, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/players", map[string]string{"display_name": "Alice"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}

func TestRegisteredNameCannotBeTakenOver(t *testing.T) {
	ts := newTestServer(t)
	alice, _, sessionID := startGame(t, ts)

	for _, secret := range []string{"guess", "Bob-secret"} {
		rr := ts.request(http.MethodPost, "/api/v1/players", map[string]string{"display_name": "Alice", "secret": secret}, "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, apierr.CodeNotAuthorized, errorCode(t, rr))
		assert.Empty(t, decode[response.AuthResponse](t, rr).SessionToken)
	}

	// Alice's game is untouched and she can still act in it
	rr := ts.request(http.MethodGet, "/api/v1/sessions/"+sessionID, nil, alice.token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "placement", decode[response.SessionView](t, rr).Phase)

	again := register(t, ts, "Alice")
	assert.Equal(t, alice.id, again.id)
}

func TestPresenceEndpoints(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "Alice")
	bob := register(t, ts, "Bob")

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, alice.token)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[response.Presence](t, rr)
	assert.Equal(t, "Alice", me.Player.DisplayName)
	assert.Equal(t, "online", me.Status)

	rr = ts.request(http.MethodPost, "/api/v1/players/me/heartbeat", nil, alice.token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Greater(t, decode[response.Presence](t, rr).Version, me.Version)

	rr = ts.request(http.MethodGet, "/api/v1/players/online", nil, alice.token)
	require.Equal(t, http.StatusOK, rr.Code)
	online := decode[response.PlayerList](t, rr)
	require.Len(t, online.Players, 1)
	assert.Equal(t, bob.id, online.Players[0].ID)
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "Alice")
	bob := register(t, ts, "Bob")

	rr := ts.request(http.MethodPost, "/api/v1/players/me/logout", nil, bob.token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, bob.token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Bob is offline and can no longer be challenged
	rr = ts.request(http.MethodPost, "/api/v1/challenges", map[string]string{"opponent_id": bob.id}, alice.token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeOpponentOffline, errorCode(t, rr))
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/players/me", "/api/v1/challenges", "/api/v1/sessions", "/api/v1/events"} {
		rr := ts.request(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestChallengeHandshake(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "Alice")
	bob := register(t, ts, "Bob")
	carol := register(t, ts, "Carol")

	rr := ts.request(http.MethodPost, "/api/v1/challenges", map[string]string{"opponent_id": bob.id}, alice.token)
	require.Equal(t, http.StatusCreated, rr.Code)
	c := decode[response.Challenge](t, rr)
	assert.Equal(t, "pending", c.State)
	assert.Equal(t, alice.id, c.ChallengerID)
	assert.Equal(t, []int{5, 4, 3, 3, 2}, c.Rules.Fleet)

	// Either direction counts as a duplicate
	rr = ts.request(http.MethodPost, "/api/v1/challenges", map[string]string{"opponent_id": alice.id}, bob.token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeDuplicateChallenge, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/challenges", map[string]string{"opponent_id": alice.id}, alice.token)
	assert.Equal(t, apierr.CodeSelfChallenge, errorCode(t, rr))

	// Outsiders can neither read nor answer it
	rr = ts.request(http.MethodGet, "/api/v1/challenges/"+c.ID, nil, carol.token)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = ts.request(http.MethodPost, "/api/v1/challenges/"+c.ID+"/respond", map[string]string{"decision": "accept"}, carol.token)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/challenges/"+c.ID+"/respond", map[string]string{"decision": "maybe"}, bob.token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidDecision, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/challenges/"+c.ID+"/respond", map[string]string{"decision": "decline"}, bob.token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "declined", decode[response.Challenge](t, rr).State)

	rr = ts.request(http.MethodPost, "/api/v1/challenges/"+c.ID+"/respond", map[string]string{"decision": "accept"}, bob.token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeAlreadyResolved, errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/challenges", nil, bob.token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[response.ChallengeList](t, rr).Challenges, 1)
}

func TestCancelChallenge(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "Alice")
	bob := register(t, ts, "Bob")

	rr := ts.request(http.MethodPost, "/api/v1/challenges", map[string]string{"opponent_id": bob.id}, alice.token)
	require.Equal(t, http.StatusCreated, rr.Code)
	c := decode[response.Challenge](t, rr)

	rr = ts.request(http.MethodPost, "/api/v1/challenges/"+c.ID+"/cancel", nil, bob.token)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/challenges/"+c.ID+"/cancel", nil, alice.token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "cancelled", decode[response.Challenge](t, rr).State)

	rr = ts.request(http.MethodGet, "/api/v1/challenges/missing", nil, alice.token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlacementAndView(t *testing.T) {
	ts := newTestServer(t)
	alice, bob, sid := startGame(t, ts)
	carol := register(t, ts, "Carol")

	rr := ts.request(http.MethodGet, "/api/v1/sessions/"+sid, nil, alice.token)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[response.SessionView](t, rr)
	assert.Equal(t, "placement", view.Phase)
	assert.Equal(t, bob.id, view.OpponentID)
	assert.False(t, view.Placed)

	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+sid, nil, carol.token)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeNotParticipant, errorCode(t, rr))

	// Ships off the grid
	bad := classicFleet()
	bad[0]["col"] = 8
	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/placement", map[string]any{"ships": bad}, alice.token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidPlacement, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/placement", map[string]any{}, alice.token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))

	body := map[string]any{"ships": classicFleet(), "transition_id": "alice-place"}
	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/placement", body, alice.token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	result := decode[response.TransitionResult](t, rr)
	assert.True(t, result.Applied)
	assert.True(t, result.Session.Placed)
	assert.Len(t, result.Session.OwnFleet, 5)

	// Resubmitting the same transition is a no-op
	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/placement", body, alice.token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[response.TransitionResult](t, rr).Applied)

	// A second, different placement is rejected
	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/placement", map[string]any{"ships": classicFleet()}, alice.token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeAlreadyResolved, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/placement", map[string]any{"random": true}, bob.token)
	require.Equal(t, http.StatusOK, rr.Code)
	result = decode[response.TransitionResult](t, rr)
	assert.Equal(t, "in_progress", result.Session.Phase)
	assert.Equal(t, alice.id, result.Session.Turn)

	// Bob sees none of Alice's ships
	for _, row := range result.Session.OpponentBoard {
		for _, cell := range row {
			assert.Equal(t, "empty", cell)
		}
	}
}

func TestFullGameFlow(t *testing.T) {
	ts := newTestServer(t)
	alice, bob, sid := startGame(t, ts)

	for _, p := range []player{alice, bob} {
		rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/placement", map[string]any{"ships": classicFleet()}, p.token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	// Bob may not shoot first
	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/shots", map[string]int{"row": 9, "col": 9}, bob.token)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeNotYourTurn, errorCode(t, rr))

	// Alice sinks every ship while Bob misses along the bottom rows
	var hits []model.Position
	for i, l := range []int{5, 4, 3, 3, 2} {
		for col := 0; col < l; col++ {
			hits = append(hits, model.Position{Row: i, Col: col})
		}
	}
	var last response.TransitionResult
	for i, target := range hits {
		rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/shots", map[string]int{"row": target.Row, "col": target.Col}, alice.token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		last = decode[response.TransitionResult](t, rr)
		require.NotNil(t, last.Session.LastMove)
		assert.Equal(t, "hit", last.Session.LastMove.Result)
		if i == len(hits)-1 {
			break
		}

		miss := map[string]int{"row": 9 - i/10, "col": i % 10}
		rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/shots", miss, bob.token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	assert.Equal(t, "finished", last.Session.Phase)
	assert.Equal(t, alice.id, last.Session.Winner)
	assert.Equal(t, "fleet_destroyed", last.Session.FinishReason)
	assert.Equal(t, 2, last.Session.LastMove.SunkLength)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/shots", map[string]int{"row": 0, "col": 9}, bob.token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeSessionFinished, errorCode(t, rr))

	// The move log can be fetched in pieces
	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+sid+"/moves?from=30", nil, bob.token)
	require.Equal(t, http.StatusOK, rr.Code)
	cu := decode[response.CatchUp](t, rr)
	assert.Equal(t, 33, cu.Total)
	assert.Len(t, cu.Moves, 3)
	assert.Equal(t, 30, cu.Moves[0].Index)
	_, err := cu.ToModel()
	assert.NoError(t, err)

	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+sid+"/moves?from=-1", nil, bob.token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/sessions", nil, alice.token)
	require.Equal(t, http.StatusOK, rr.Code)
	sessions := decode[response.SessionList](t, rr)
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, "finished", sessions.Sessions[0].Phase)
}

func TestStaleExpectedVersion(t *testing.T) {
	ts := newTestServer(t)
	alice, bob, sid := startGame(t, ts)

	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/placement", map[string]any{"random": true, "expected_version": 0}, alice.token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/placement", map[string]any{"random": true, "expected_version": 0}, bob.token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeVersionConflict, errorCode(t, rr))
}

func TestGenericTransitionsAndForfeit(t *testing.T) {
	ts := newTestServer(t)
	alice, bob, sid := startGame(t, ts)

	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/transitions", map[string]any{"kind": "teleport"}, alice.token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/transitions", map[string]any{"kind": "place", "ships": classicFleet()}, alice.token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/transitions", map[string]any{"kind": "place", "ships": classicFleet()}, bob.token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/transitions", map[string]any{"kind": "shoot", "target": map[string]int{"row": 10, "col": 0}}, alice.token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeOutOfBounds, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sid+"/forfeit", nil, bob.token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	result := decode[response.TransitionResult](t, rr)
	assert.Equal(t, "finished", result.Session.Phase)
	assert.Equal(t, alice.id, result.Session.Winner)
	assert.Equal(t, "forfeit", result.Session.FinishReason)
}

func TestEventStreamReceivesChallenge(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	alice := register(t, ts, "Alice")
	bob := register(t, ts, "Bob")

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events?access_token="+bob.token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	rr := ts.request(http.MethodPost, "/api/v1/challenges", map[string]string{"opponent_id": bob.id}, alice.token)
	require.Equal(t, http.StatusCreated, rr.Code)
	c := decode[response.Challenge](t, rr)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "challenge_received") {
			break
		}
	}
	var payload sse.EventPayload
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &payload))
	assert.Equal(t, c.ID, payload.ChallengeID)
}

func TestWebsocketReceivesSessionCreated(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	alice := register(t, ts, "Alice")
	bob := register(t, ts, "Bob")

	wsURL := fmt.Sprintf("ws%s/api/v1/events/ws?access_token=%s", strings.TrimPrefix(srv.URL, "http"), alice.token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		hub := ts.app.HubManager.GetHub(model.PlayerID(alice.id))
		return hub != nil && hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	rr := ts.request(http.MethodPost, "/api/v1/challenges", map[string]string{"opponent_id": bob.id}, alice.token)
	require.Equal(t, http.StatusCreated, rr.Code)
	c := decode[response.Challenge](t, rr)
	rr = ts.request(http.MethodPost, "/api/v1/challenges/"+c.ID+"/respond", map[string]string{"decision": "accept"}, bob.token)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var payload sse.EventPayload
		require.NoError(t, json.Unmarshal(data, &payload))
		if payload.Type == string(model.EventSessionCreated) {
			assert.Equal(t, c.ID, payload.ChallengeID)
			assert.NotEmpty(t, payload.SessionID)
			return
		}
	}
}
