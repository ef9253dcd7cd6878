package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
)

// MemoryStore keeps games in process. Used when no database is configured
// and by tests.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]*game.Game
	moves map[string][]MoveRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]*game.Game),
		moves: make(map[string][]MoveRecord),
	}
}

func (m *MemoryStore) InsertGame(_ context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[g.ID]; ok {
		return fmt.Errorf("insert game failed: duplicate id %s", g.ID)
	}
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *MemoryStore) GetGame(_ context.Context, id string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *MemoryStore) ListGamesByPlayer(_ context.Context, playerID string) ([]*game.Game, error) {
	return m.filter(func(g *game.Game) bool { return g.HasPlayer(playerID) }, func(a, b *game.Game) bool {
		return a.UpdatedAt.After(b.UpdatedAt)
	}), nil
}

func (m *MemoryStore) ListPendingBefore(_ context.Context, cutoff time.Time) ([]*game.Game, error) {
	return m.filter(func(g *game.Game) bool {
		return g.Status == core.StatusPending && g.CreatedAt.Before(cutoff)
	}, func(a, b *game.Game) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	}), nil
}

func (m *MemoryStore) filter(keep func(*game.Game) bool, less func(a, b *game.Game) bool) []*game.Game {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*game.Game{}
	for _, g := range m.games {
		if keep(g) {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// UpdateGameWhere compares and writes under one lock
func (m *MemoryStore) UpdateGameWhere(_ context.Context, id string, expected time.Time, g *game.Game) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.games[id]
	if !ok || !cur.UpdatedAt.Equal(expected) {
		return 0, nil
	}
	next := g.Clone()
	next.ID = cur.ID
	next.Type = cur.Type
	next.PlayerA = cur.PlayerA
	next.CreatedAt = cur.CreatedAt
	m.games[id] = next
	return 1, nil
}

func (m *MemoryStore) RecordMove(rec MoveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.MoveNumber = len(m.moves[rec.GameID]) + 1
	m.moves[rec.GameID] = append(m.moves[rec.GameID], rec)
	return nil
}

func (m *MemoryStore) ListMoves(_ context.Context, gameID string) ([]MoveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]MoveRecord{}, m.moves[gameID]...), nil
}

func (m *MemoryStore) IsHealthy() bool { return true }

func (m *MemoryStore) Close() error { return nil }
