// Package storagetest holds the behaviour every storage.GameStore must share.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/storage"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 123456000, time.UTC)

func newGame(a, b string, created time.Time) *game.Game {
	return &game.Game{
		ID:        uuid.New().String(),
		Type:      core.GameTicTacToe,
		PlayerA:   a,
		PlayerB:   b,
		Status:    core.StatusPending,
		Board:     game.TicTacToe{}.NewBoard(nil),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// Run exercises a store created fresh for each subtest
func Run(t *testing.T, open func(t *testing.T) storage.GameStore) {
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		s := open(t)
		g := newGame("alice", "", epoch)
		require.NoError(t, s.InsertGame(ctx, g))

		got, err := s.GetGame(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.ID, got.ID)
		assert.Equal(t, "", got.PlayerB)
		assert.Equal(t, core.StatusPending, got.Status)
		assert.True(t, got.UpdatedAt.Equal(epoch))
		require.NotNil(t, got.Board.TicTacToe)

		_, err = s.GetGame(ctx, uuid.New().String())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("compare and swap", func(t *testing.T) {
		s := open(t)
		g := newGame("alice", "bob", epoch)
		require.NoError(t, s.InsertGame(ctx, g))

		next := g.Clone()
		next.Status = core.StatusActive
		next.CurrentTurn = "X"
		next.UpdatedAt = storage.Stamp(g.UpdatedAt, epoch)

		n, err := s.UpdateGameWhere(ctx, g.ID, g.UpdatedAt, next)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		// same token again is stale
		n, err = s.UpdateGameWhere(ctx, g.ID, g.UpdatedAt, next)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		got, err := s.GetGame(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, core.StatusActive, got.Status)
		assert.Equal(t, "X", got.CurrentTurn)
		assert.True(t, got.UpdatedAt.Equal(next.UpdatedAt))
		assert.True(t, got.UpdatedAt.After(g.UpdatedAt))
	})

	t.Run("concurrent swaps admit one writer", func(t *testing.T) {
		s := open(t)
		g := newGame("alice", "bob", epoch)
		require.NoError(t, s.InsertGame(ctx, g))

		const writers = 8
		var wg sync.WaitGroup
		results := make([]int64, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				next := g.Clone()
				next.Status = core.StatusActive
				next.UpdatedAt = storage.Stamp(g.UpdatedAt, time.Now())
				n, err := s.UpdateGameWhere(ctx, g.ID, g.UpdatedAt, next)
				assert.NoError(t, err)
				results[i] = n
			}(i)
		}
		wg.Wait()

		var total int64
		for _, n := range results {
			total += n
		}
		assert.EqualValues(t, 1, total)
	})

	t.Run("list by player and pending", func(t *testing.T) {
		s := open(t)
		older := newGame("alice", "bob", epoch)
		newer := newGame("carol", "alice", epoch.Add(time.Minute))
		other := newGame("carol", "", epoch.Add(2*time.Minute))
		for _, g := range []*game.Game{older, newer, other} {
			require.NoError(t, s.InsertGame(ctx, g))
		}

		games, err := s.ListGamesByPlayer(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, games, 2)
		assert.Equal(t, newer.ID, games[0].ID)
		assert.Equal(t, older.ID, games[1].ID)

		games, err = s.ListGamesByPlayer(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, games)

		pending, err := s.ListPendingBefore(ctx, epoch.Add(90*time.Second))
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, older.ID, pending[0].ID)
	})

	t.Run("move history", func(t *testing.T) {
		s := open(t)
		g := newGame("alice", "bob", epoch)
		require.NoError(t, s.InsertGame(ctx, g))

		require.NoError(t, s.RecordMove(storage.MoveRecord{GameID: g.ID, PlayerID: "alice", Cell: 4, StatusAfter: "active", RecordedAt: epoch}))
		require.NoError(t, s.RecordMove(storage.MoveRecord{GameID: g.ID, PlayerID: "bob", Cell: 0, StatusAfter: "active", RecordedAt: epoch}))

		// history may be written asynchronously
		var moves []storage.MoveRecord
		require.Eventually(t, func() bool {
			var err error
			moves, err = s.ListMoves(ctx, g.ID)
			return err == nil && len(moves) == 2
		}, 2*time.Second, 10*time.Millisecond)

		assert.Equal(t, 1, moves[0].MoveNumber)
		assert.Equal(t, "alice", moves[0].PlayerID)
		assert.Equal(t, 4, moves[0].Cell)
		assert.Equal(t, 2, moves[1].MoveNumber)
		assert.Equal(t, "bob", moves[1].PlayerID)
		assert.True(t, s.IsHealthy())
	})
}
