package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/processor"
	"arcade/internal/server/realtime"
	"arcade/internal/server/service"
	"arcade/internal/server/storage"
)

var testSecret = []byte("arcade-test-secret-0123456789abcdef")

type testAPI struct {
	t   *testing.T
	app *fiber.App
	svc *service.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	svc, err := service.New(storage.NewMemoryStore(), realtime.NewHub(), service.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Shutdown(time.Second) })

	app := NewFiberApp(processor.New(svc), svc, HS256Validator(testSecret), Options{RateLimit: 1000})
	return &testAPI{t: t, app: app, svc: svc}
}

// do sends a request as user (no token when empty) and decodes the JSON
// response into out when given
func (a *testAPI) do(method, path, user string, body any, out any) int {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		token, err := IssueToken(testSecret, user, time.Hour)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	if out != nil {
		require.NoError(a.t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

func cell(i int) *int { return &i }

func (a *testAPI) create(user, invitee string, gameType core.GameType) *game.Game {
	a.t.Helper()
	var g game.Game
	status := a.do(fiber.MethodPost, "/api/v1/games", user,
		core.CreateGameRequest{GameType: gameType, Invitee: invitee}, &g)
	require.Equal(a.t, fiber.StatusCreated, status)
	return &g
}

func TestHealthNeedsNoAuth(t *testing.T) {
	api := newTestAPI(t)
	var body map[string]any
	assert.Equal(t, fiber.StatusOK, api.do(fiber.MethodGet, "/health", "", nil, &body))
	assert.Equal(t, "ok", body["storage"])
	assert.Equal(t, "local", body["realtime"])
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	var e core.ErrorResponse
	assert.Equal(t, fiber.StatusUnauthorized, api.do(fiber.MethodGet, "/api/v1/games", "", nil, &e))
	assert.Equal(t, core.ErrUnauthorized, e.Code)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/games", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGameFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	g := api.create("alice", "", core.GameTicTacToe)
	assert.Equal(t, core.StatusPending, g.Status)
	base := "/api/v1/games/" + g.ID

	var e core.ErrorResponse
	assert.Equal(t, fiber.StatusForbidden, api.do(fiber.MethodPost, base+"/accept", "alice", nil, &e))
	assert.Equal(t, core.ErrNotEligible, e.Code)

	var active game.Game
	require.Equal(t, fiber.StatusOK, api.do(fiber.MethodPost, base+"/accept", "bob", nil, &active))
	assert.Equal(t, core.StatusActive, active.Status)
	assert.Equal(t, "X", active.CurrentTurn)

	assert.Equal(t, fiber.StatusConflict, api.do(fiber.MethodPost, base+"/accept", "bob", nil, &e))
	assert.Equal(t, core.ErrAlreadyResolved, e.Code)

	var moved game.Game
	require.Equal(t, fiber.StatusOK, api.do(fiber.MethodPost, base+"/moves", "alice",
		core.MoveRequest{Index: cell(4), ExpectedUpdatedAt: &active.UpdatedAt}, &moved))
	assert.Equal(t, game.X, moved.Board.TicTacToe.Cells[4])

	// the token alice used is now stale
	assert.Equal(t, fiber.StatusConflict, api.do(fiber.MethodPost, base+"/moves", "bob",
		core.MoveRequest{Index: cell(0), ExpectedUpdatedAt: &active.UpdatedAt}, &e))
	assert.Equal(t, core.ErrConflict, e.Code)

	assert.Equal(t, fiber.StatusBadRequest, api.do(fiber.MethodPost, base+"/moves", "bob",
		core.MoveRequest{Index: cell(4)}, &e))
	assert.Equal(t, core.ErrIllegalMove, e.Code)
	assert.Contains(t, e.Error, "occupied")

	assert.Equal(t, fiber.StatusBadRequest, api.do(fiber.MethodPost, base+"/moves", "bob",
		map[string]int{"index": 99}, &e))
	assert.Equal(t, core.ErrInvalidRequest, e.Code)

	// an omitted index is rejected, not read as cell 0
	assert.Equal(t, fiber.StatusBadRequest, api.do(fiber.MethodPost, base+"/moves", "bob",
		map[string]any{}, &e))
	assert.Equal(t, core.ErrInvalidRequest, e.Code)
	assert.Equal(t, fiber.StatusBadRequest, api.do(fiber.MethodPost, base+"/moves", "bob",
		map[string]any{"expectedUpdatedAt": moved.UpdatedAt}, &e))
	assert.Equal(t, core.ErrInvalidRequest, e.Code)

	var board core.BoardResponse
	require.Equal(t, fiber.StatusOK, api.do(fiber.MethodGet, base+"/board", "bob", nil, &board))
	assert.Contains(t, board.Board, "X")

	var fetched game.Game
	require.Equal(t, fiber.StatusOK, api.do(fiber.MethodGet, base, "carol", nil, &fetched))
	assert.Equal(t, moved.UpdatedAt, fetched.UpdatedAt)

	require.Eventually(t, func() bool {
		var moves core.MovesResponse
		return api.do(fiber.MethodGet, base+"/moves", "bob", nil, &moves) == fiber.StatusOK &&
			len(moves.Moves) == 1 && moves.Moves[0].PlayerID == "alice" && moves.Moves[0].Index == 4
	}, time.Second, 10*time.Millisecond)
}

func TestCreateGameValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"unknown type", map[string]string{"gameType": "chess"}, core.ErrInvalidRequest},
		{"missing type", map[string]string{}, core.ErrInvalidRequest},
		{"self invite", core.CreateGameRequest{GameType: core.GameTicTacToe, Invitee: "alice"}, core.ErrInvalidParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e core.ErrorResponse
			assert.Equal(t, fiber.StatusBadRequest, api.do(fiber.MethodPost, "/api/v1/games", "alice", tt.body, &e))
			assert.Equal(t, tt.code, e.Code)
		})
	}

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/games", strings.NewReader("gameType=tic_tac_toe"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	token, err := IssueToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestNotFoundAndBadIDs(t *testing.T) {
	api := newTestAPI(t)

	var e core.ErrorResponse
	assert.Equal(t, fiber.StatusNotFound, api.do(fiber.MethodGet, "/api/v1/games/"+uuid.New().String(), "alice", nil, &e))
	assert.Equal(t, core.ErrGameNotFound, e.Code)

	assert.Equal(t, fiber.StatusBadRequest, api.do(fiber.MethodGet, "/api/v1/games/not-a-uuid", "alice", nil, &e))
	assert.Equal(t, core.ErrInvalidRequest, e.Code)
}

func TestDeclineAndList(t *testing.T) {
	api := newTestAPI(t)
	direct := api.create("alice", "bob", core.GameTicTacToe)
	api.create("alice", "", core.GameMemoryMatch)

	var e core.ErrorResponse
	assert.Equal(t, fiber.StatusForbidden, api.do(fiber.MethodPost, "/api/v1/games/"+direct.ID+"/decline", "carol", nil, &e))

	var declined game.Game
	require.Equal(t, fiber.StatusOK, api.do(fiber.MethodPost, "/api/v1/games/"+direct.ID+"/decline", "bob", nil, &declined))
	assert.Equal(t, core.StatusDeclined, declined.Status)

	var all []game.Game
	require.Equal(t, fiber.StatusOK, api.do(fiber.MethodGet, "/api/v1/games", "alice", nil, &all))
	assert.Len(t, all, 2)

	var pending []game.Game
	require.Equal(t, fiber.StatusOK, api.do(fiber.MethodGet, "/api/v1/games?status=pending", "alice", nil, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, core.GameMemoryMatch, pending[0].Type)

	assert.Equal(t, fiber.StatusBadRequest, api.do(fiber.MethodGet, "/api/v1/games?status=bogus", "alice", nil, &e))

	var stats core.StatsResponse
	require.Equal(t, fiber.StatusOK, api.do(fiber.MethodGet, "/api/v1/stats", "alice", nil, &stats))
	assert.Equal(t, 1, stats.ByType[core.GameMemoryMatch].Pending)
}

func TestLongPoll(t *testing.T) {
	api := newTestAPI(t)
	g := api.create("alice", "bob", core.GameTicTacToe)
	path := fmt.Sprintf("/api/v1/games/%s?wait=true&since=%s", g.ID, g.UpdatedAt.Format(time.RFC3339Nano))

	// stale since returns at once
	var now game.Game
	stale := fmt.Sprintf("/api/v1/games/%s?wait=true&since=%s", g.ID, g.UpdatedAt.Add(-time.Second).Format(time.RFC3339Nano))
	require.Equal(t, fiber.StatusOK, api.do(fiber.MethodGet, stale, "alice", nil, &now))
	assert.Equal(t, core.StatusPending, now.Status)

	done := make(chan game.Game, 1)
	go func() {
		var woke game.Game
		api.do(fiber.MethodGet, path, "alice", nil, &woke)
		done <- woke
	}()

	time.Sleep(50 * time.Millisecond)
	_, err := api.svc.AcceptGame(t.Context(), g.ID, "bob")
	require.NoError(t, err)

	select {
	case woke := <-done:
		assert.Equal(t, core.StatusActive, woke.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("long poll did not return")
	}
}

func TestLongPollIgnoresOlderChange(t *testing.T) {
	api := newTestAPI(t)
	g := api.create("alice", "bob", core.GameTicTacToe)
	path := fmt.Sprintf("/api/v1/games/%s?wait=true&since=%s", g.ID, g.UpdatedAt.Format(time.RFC3339Nano))

	done := make(chan game.Game, 1)
	go func() {
		var woke game.Game
		api.do(fiber.MethodGet, path, "alice", nil, &woke)
		done <- woke
	}()

	time.Sleep(50 * time.Millisecond)
	older := *g
	older.UpdatedAt = g.UpdatedAt.Add(-time.Second)
	change, err := realtime.NewChange(core.GamesTable, core.ChangeUpdate, &older)
	require.NoError(t, err)
	require.NoError(t, api.svc.Channel().Publish(t.Context(), change))

	select {
	case woke := <-done:
		t.Fatalf("long poll returned on an older change: %+v", woke)
	case <-time.After(100 * time.Millisecond):
	}

	_, err = api.svc.AcceptGame(t.Context(), g.ID, "bob")
	require.NoError(t, err)

	select {
	case woke := <-done:
		assert.Equal(t, core.StatusActive, woke.Status)
		assert.True(t, woke.UpdatedAt.After(g.UpdatedAt))
	case <-time.After(5 * time.Second):
		t.Fatal("long poll did not return")
	}
}
