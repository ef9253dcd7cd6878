package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/realtime"
	"arcade/internal/server/storage"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T, store storage.GameStore, cfg Config) (*Service, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub()
	svc, err := New(store, hub, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Shutdown(time.Second) })
	return svc, hub
}

func activeTicTacToe(t *testing.T, svc *Service) *game.Game {
	t.Helper()
	ctx := context.Background()
	g, err := svc.CreateGame(ctx, "alice", "", core.GameTicTacToe)
	require.NoError(t, err)
	g, err = svc.AcceptGame(ctx, g.ID, "bob")
	require.NoError(t, err)
	return g
}

func TestTicTacToeEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})

	g, err := svc.CreateGame(ctx, "alice", "", core.GameTicTacToe)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, g.Status)
	assert.Empty(t, g.PlayerB)
	assert.Empty(t, g.CurrentTurn)

	g, err = svc.AcceptGame(ctx, g.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, g.Status)
	assert.Equal(t, "bob", g.PlayerB)
	assert.Equal(t, string(game.X), g.CurrentTurn)

	g, err = svc.ApplyMove(ctx, g.ID, "alice", 0, g.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, string(game.O), g.CurrentTurn)

	_, err = svc.ApplyMove(ctx, g.ID, "bob", 0, g.UpdatedAt)
	assert.ErrorIs(t, err, core.ErrMoveRejected)
	assert.Contains(t, err.Error(), "occupied")

	g, err = svc.ApplyMove(ctx, g.ID, "bob", 4, g.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, string(game.X), g.CurrentTurn)

	g, err = svc.SubmitMove(ctx, g.ID, "alice", 1)
	require.NoError(t, err)
	g, err = svc.SubmitMove(ctx, g.ID, "bob", 8)
	require.NoError(t, err)
	g, err = svc.SubmitMove(ctx, g.ID, "alice", 2)
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, g.Status)
	assert.Equal(t, "alice", g.Winner)

	stored, err := svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.UpdatedAt, stored.UpdatedAt)

	// terminal games refuse everything and stay unchanged
	_, err = svc.ApplyMove(ctx, g.ID, "bob", 5, g.UpdatedAt)
	assert.ErrorIs(t, err, core.ErrResolved)
	_, err = svc.AcceptGame(ctx, g.ID, "bob")
	assert.ErrorIs(t, err, core.ErrResolved)
	_, err = svc.DeclineGame(ctx, g.ID, "bob")
	assert.ErrorIs(t, err, core.ErrResolved)

	after, err := svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, after)

	require.Eventually(t, func() bool {
		moves, err := svc.Moves(ctx, g.ID)
		return err == nil && len(moves) == 5
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryMatchEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc, _ := newService(t, store, Config{})

	now := time.Now().UTC().Truncate(time.Microsecond)
	pending := &game.Game{
		ID:      "memory-1",
		Type:    core.GameMemoryMatch,
		PlayerA: "alice",
		PlayerB: "bob",
		Status:  core.StatusPending,
		Board: game.Board{Memory: &game.MemoryBoard{
			Cards: []game.Card{
				{Value: "X"}, {Value: "Y"}, {Value: "Z"},
				{Value: "X"}, {Value: "Y"}, {Value: "Z"},
			},
			Flipped: []int{},
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.InsertGame(ctx, pending))

	g, err := svc.AcceptGame(ctx, pending.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", g.CurrentTurn)

	for _, idx := range []int{0, 3} {
		g, err = svc.SubmitMove(ctx, g.ID, "alice", idx)
		require.NoError(t, err)
	}
	assert.True(t, g.Board.Memory.Cards[0].Matched)
	assert.True(t, g.Board.Memory.Cards[3].Matched)
	assert.Equal(t, 1, g.Board.Memory.ScoreA)
	assert.Equal(t, "alice", g.CurrentTurn)

	for _, idx := range []int{1, 2} {
		g, err = svc.SubmitMove(ctx, g.ID, "alice", idx)
		require.NoError(t, err)
	}
	assert.False(t, g.Board.Memory.Cards[1].Matched)
	assert.False(t, g.Board.Memory.Cards[2].Matched)
	assert.Empty(t, g.Board.Memory.Flipped)
	assert.Equal(t, "bob", g.CurrentTurn)

	_, err = svc.SubmitMove(ctx, g.ID, "alice", 1)
	assert.ErrorIs(t, err, core.ErrMoveRejected)
}

func TestCreateGameRejects(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})

	_, err := svc.CreateGame(ctx, "alice", "alice", core.GameTicTacToe)
	assert.ErrorIs(t, err, core.ErrBadParticipant)

	_, err = svc.CreateGame(ctx, "", "bob", core.GameTicTacToe)
	assert.ErrorIs(t, err, core.ErrBadParticipant)

	_, err = svc.CreateGame(ctx, "alice", "bob", "chess")
	assert.ErrorIs(t, err, core.ErrBadRequest)
}

func TestMemoryMatchDealtAtCreation(t *testing.T) {
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})
	g, err := svc.CreateGame(context.Background(), "alice", "bob", core.GameMemoryMatch)
	require.NoError(t, err)
	require.NotNil(t, g.Board.Memory)
	assert.Len(t, g.Board.Memory.Cards, game.DefaultPairs*2)
	assert.Nil(t, g.Board.TicTacToe)
}

func TestInvitationEligibility(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})

	open, err := svc.CreateGame(ctx, "alice", "", core.GameTicTacToe)
	require.NoError(t, err)
	direct, err := svc.CreateGame(ctx, "alice", "bob", core.GameTicTacToe)
	require.NoError(t, err)

	tests := []struct {
		name   string
		op     func(context.Context, string, string) (*game.Game, error)
		gameID string
		user   string
		err    error
	}{
		{"inviter accepts own open invite", svc.AcceptGame, open.ID, "alice", core.ErrIneligible},
		{"stranger accepts direct invite", svc.AcceptGame, direct.ID, "carol", core.ErrIneligible},
		{"stranger declines direct invite", svc.DeclineGame, direct.ID, "carol", core.ErrIneligible},
		{"anyone declines open invite", svc.DeclineGame, open.ID, "carol", core.ErrIneligible},
		{"unknown game", svc.AcceptGame, "missing", "bob", core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.op(ctx, tt.gameID, tt.user)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	g, err := svc.DeclineGame(ctx, direct.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, core.StatusDeclined, g.Status)

	_, err = svc.AcceptGame(ctx, direct.ID, "bob")
	assert.ErrorIs(t, err, core.ErrResolved)
	_, err = svc.DeclineGame(ctx, direct.ID, "bob")
	assert.ErrorIs(t, err, core.ErrResolved)

	// inviter withdraws
	g, err = svc.DeclineGame(ctx, open.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, core.StatusDeclined, g.Status)
}

func TestAcceptActiveGameIsResolved(t *testing.T) {
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})
	g := activeTicTacToe(t, svc)

	_, err := svc.AcceptGame(context.Background(), g.ID, "bob")
	assert.ErrorIs(t, err, core.ErrResolved)
}

func TestApplyMoveStaleToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})
	g := activeTicTacToe(t, svc)

	_, err := svc.ApplyMove(ctx, g.ID, "alice", 0, g.UpdatedAt.Add(-time.Second))
	assert.ErrorIs(t, err, core.ErrStale)

	after, err := svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g, after)
}

func TestConcurrentMovesOneWins(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})
	g := activeTicTacToe(t, svc)

	const racers = 2
	var wg sync.WaitGroup
	var wins, stale atomic.Int32
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(cell int) {
			defer wg.Done()
			<-start
			_, err := svc.ApplyMove(ctx, g.ID, "alice", cell, g.UpdatedAt)
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, core.ErrStale):
				stale.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, 1, stale.Load())

	after, err := svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	marks := 0
	for _, c := range after.Board.TicTacToe.Cells {
		if c != game.Empty {
			marks++
		}
	}
	assert.Equal(t, 1, marks)
	assert.Equal(t, string(game.O), after.CurrentTurn)
}

func TestConcurrentAcceptsOneSeat(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})
	g, err := svc.CreateGame(ctx, "alice", "", core.GameTicTacToe)
	require.NoError(t, err)

	players := []string{"bob", "carol", "dave", "erin"}
	var wg sync.WaitGroup
	var wins atomic.Int32
	for _, p := range players {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := svc.AcceptGame(ctx, g.ID, p)
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, core.ErrResolved)
		}(p)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	after, err := svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Contains(t, players, after.PlayerB)
}

// staleStore loses the first n compare-and-swaps as if another writer won
type staleStore struct {
	*storage.MemoryStore
	lose atomic.Int32
}

func (s *staleStore) UpdateGameWhere(ctx context.Context, id string, expected time.Time, g *game.Game) (int64, error) {
	if s.lose.Add(-1) >= 0 {
		return 0, nil
	}
	return s.MemoryStore.UpdateGameWhere(ctx, id, expected, g)
}

func TestSubmitMoveRetriesConflicts(t *testing.T) {
	ctx := context.Background()
	store := &staleStore{MemoryStore: storage.NewMemoryStore()}
	svc, _ := newService(t, store, Config{MoveRetryLimit: 3})
	g := activeTicTacToe(t, svc)

	store.lose.Store(2)
	g, err := svc.SubmitMove(ctx, g.ID, "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, game.X, g.Board.TicTacToe.Cells[4])

	store.lose.Store(3)
	_, err = svc.SubmitMove(ctx, g.ID, "bob", 0)
	assert.ErrorIs(t, err, core.ErrStale)
	assert.Contains(t, err.Error(), "try again")
}

func TestChangesArePublished(t *testing.T) {
	ctx := context.Background()
	svc, hub := newService(t, storage.NewMemoryStore(), Config{})

	var mu sync.Mutex
	var types []core.ChangeType
	sub, err := hub.Subscribe(core.GamesTable, func(c realtime.Change) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, c.Type)
	})
	require.NoError(t, err)
	defer sub.Close()

	activeTicTacToe(t, svc)
	_, err = svc.CreateGame(ctx, "carol", "dave", core.GameMemoryMatch)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(types) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []core.ChangeType{core.ChangeInsert, core.ChangeUpdate, core.ChangeInsert}, types)
}

func TestWaitWakesOnMove(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})
	g := activeTicTacToe(t, svc)

	notify := svc.RegisterWait(ctx, g.ID, g.UpdatedAt)
	select {
	case <-notify:
		t.Fatal("woke before any change")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := svc.SubmitMove(ctx, g.ID, "alice", 0)
	require.NoError(t, err)

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("waiter not notified")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})

	g := activeTicTacToe(t, svc)
	for _, m := range []struct {
		actor string
		cell  int
	}{{"alice", 0}, {"bob", 3}, {"alice", 1}, {"bob", 4}, {"alice", 2}} {
		_, err := svc.SubmitMove(ctx, g.ID, m.actor, m.cell)
		require.NoError(t, err)
	}
	activeTicTacToe(t, svc)
	_, err := svc.CreateGame(ctx, "bob", "alice", core.GameMemoryMatch)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, core.TypeStats{Losses: 1, Active: 1}, stats.ByType[core.GameTicTacToe])
	assert.Equal(t, core.TypeStats{Pending: 1}, stats.ByType[core.GameMemoryMatch])

	stats, err = svc.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByType[core.GameTicTacToe].Wins)
}

func TestFilterByStatus(t *testing.T) {
	games := []*game.Game{
		{ID: "1", Status: core.StatusActive},
		{ID: "2", Status: core.StatusPending},
		{ID: "3", Status: core.StatusDraw},
	}
	assert.Len(t, FilterByStatus(games), 3)
	got := FilterByStatus(games, core.StatusActive, core.StatusDraw)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestExpireInvites(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc, _ := newService(t, storage.NewMemoryStore(), Config{
		InviteTTL:     time.Hour,
		SweepInterval: time.Hour,
		Now:           clk.Now,
	})

	old, err := svc.CreateGame(ctx, "alice", "bob", core.GameTicTacToe)
	require.NoError(t, err)
	accepted, err := svc.CreateGame(ctx, "alice", "", core.GameTicTacToe)
	require.NoError(t, err)
	_, err = svc.AcceptGame(ctx, accepted.ID, "carol")
	require.NoError(t, err)

	clk.Advance(90 * time.Minute)
	fresh, err := svc.CreateGame(ctx, "alice", "dave", core.GameTicTacToe)
	require.NoError(t, err)

	n, err := svc.ExpireInvites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	g, err := svc.GetGame(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDeclined, g.Status)

	g, err = svc.GetGame(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, g.Status)

	g, err = svc.GetGame(ctx, accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, g.Status)
}

func TestExpiryDisabledByDefault(t *testing.T) {
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})
	assert.Nil(t, svc.scheduler)
	n, err := svc.ExpireInvites(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHealth(t *testing.T) {
	svc, _ := newService(t, storage.NewMemoryStore(), Config{})
	assert.Equal(t, "ok", svc.GetStorageHealth())
	assert.Equal(t, "local", svc.GetRealtimeHealth(context.Background()))
}
