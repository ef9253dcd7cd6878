package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/realtime"
	"arcade/internal/server/service"
	"arcade/internal/server/storage"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	svc, err := service.New(storage.NewMemoryStore(), realtime.NewHub(), service.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Shutdown(time.Second) })
	return New(svc)
}

func cell(i int) *int { return &i }

func mustGame(t *testing.T, resp ProcessorResponse) *game.Game {
	t.Helper()
	require.True(t, resp.Success, "unexpected error: %+v", resp.Error)
	g, ok := resp.Data.(*game.Game)
	require.True(t, ok)
	return g
}

func TestExecuteGameLifecycle(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	g := mustGame(t, p.Execute(ctx, NewCreateGameCommand("alice", core.CreateGameRequest{GameType: core.GameTicTacToe})))
	g = mustGame(t, p.Execute(ctx, NewAcceptGameCommand("bob", g.ID)))
	assert.Equal(t, core.StatusActive, g.Status)

	for i, mv := range []struct {
		player string
		cell   int
	}{{"alice", 0}, {"bob", 3}, {"alice", 1}, {"bob", 4}, {"alice", 2}} {
		g = mustGame(t, p.Execute(ctx, NewMakeMoveCommand(mv.player, g.ID, core.MoveRequest{Index: cell(mv.cell)})))
		if i < 4 {
			assert.Equal(t, core.StatusActive, g.Status)
		}
	}
	assert.Equal(t, core.StatusCompleted, g.Status)
	assert.Equal(t, "alice", g.Winner)

	resp := p.Execute(ctx, NewGetBoardCommand(g.ID))
	require.True(t, resp.Success)
	board := resp.Data.(core.BoardResponse)
	assert.Equal(t, g.ID, board.GameID)
	assert.Contains(t, board.Board, "X X X")

	require.Eventually(t, func() bool {
		resp := p.Execute(ctx, NewGetMovesCommand(g.ID))
		return resp.Success && len(resp.Data.(core.MovesResponse).Moves) == 5
	}, time.Second, 10*time.Millisecond)

	resp = p.Execute(ctx, NewGetStatsCommand("bob"))
	require.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data.(*core.StatsResponse).ByType[core.GameTicTacToe].Losses)
}

func TestExecuteErrors(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	g := mustGame(t, p.Execute(ctx, NewCreateGameCommand("alice", core.CreateGameRequest{
		GameType: core.GameMemoryMatch,
		Invitee:  "bob",
	})))

	tests := []struct {
		name string
		cmd  Command
		code string
	}{
		{"missing game", NewGetGameCommand("5b8a2c1e-0000-4000-8000-000000000000"), core.ErrGameNotFound},
		{"stranger accepts", NewAcceptGameCommand("carol", g.ID), core.ErrNotEligible},
		{"move while pending", NewMakeMoveCommand("alice", g.ID, core.MoveRequest{Index: cell(0)}), core.ErrIllegalMove},
		{"bad status filter", NewListGamesCommand("alice", "finished"), core.ErrInvalidRequest},
		{"self invite", NewCreateGameCommand("alice", core.CreateGameRequest{GameType: core.GameTicTacToe, Invitee: "alice"}), core.ErrInvalidParticipant},
		{"unknown command", Command{Type: CommandType(99)}, core.ErrInvalidRequest},
		{"missing index", NewMakeMoveCommand("alice", g.ID, core.MoveRequest{}), core.ErrInvalidRequest},
		{"wrong args", Command{Type: CmdMakeMove, UserID: "alice", GameID: g.ID, Args: 4}, core.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := p.Execute(ctx, tt.cmd)
			require.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Error)
		})
	}
}

func TestExecuteStaleToken(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	g := mustGame(t, p.Execute(ctx, NewCreateGameCommand("alice", core.CreateGameRequest{GameType: core.GameTicTacToe})))
	g = mustGame(t, p.Execute(ctx, NewAcceptGameCommand("bob", g.ID)))
	token := g.UpdatedAt

	mustGame(t, p.Execute(ctx, NewMakeMoveCommand("alice", g.ID, core.MoveRequest{Index: cell(0), ExpectedUpdatedAt: &token})))

	resp := p.Execute(ctx, NewMakeMoveCommand("bob", g.ID, core.MoveRequest{Index: cell(1), ExpectedUpdatedAt: &token}))
	require.False(t, resp.Success)
	assert.Equal(t, core.ErrConflict, resp.Error.Code)
}

func TestListGamesFilter(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	open := mustGame(t, p.Execute(ctx, NewCreateGameCommand("alice", core.CreateGameRequest{GameType: core.GameTicTacToe})))
	mustGame(t, p.Execute(ctx, NewCreateGameCommand("alice", core.CreateGameRequest{GameType: core.GameMemoryMatch})))
	mustGame(t, p.Execute(ctx, NewAcceptGameCommand("bob", open.ID)))

	resp := p.Execute(ctx, NewListGamesCommand("alice", core.StatusActive))
	require.True(t, resp.Success)
	games := resp.Data.([]*game.Game)
	require.Len(t, games, 1)
	assert.Equal(t, open.ID, games[0].ID)

	resp = p.Execute(ctx, NewListGamesCommand("alice"))
	require.True(t, resp.Success)
	assert.Len(t, resp.Data.([]*game.Game), 2)
}
