package storage

import (
	"context"
	"errors"
	"time"

	"arcade/internal/server/game"
)

// ErrNotFound is returned when a game id has no row
var ErrNotFound = errors.New("record not found")

// GameStore is the game record persistence used by the service. Every
// implementation must make UpdateGameWhere an atomic compare-and-swap on the
// row's updated_at.
type GameStore interface {
	InsertGame(ctx context.Context, g *game.Game) error
	GetGame(ctx context.Context, id string) (*game.Game, error)
	ListGamesByPlayer(ctx context.Context, playerID string) ([]*game.Game, error)
	// UpdateGameWhere replaces the row only if its updated_at still equals
	// expected and returns the number of rows written (0 or 1)
	UpdateGameWhere(ctx context.Context, id string, expected time.Time, g *game.Game) (int64, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*game.Game, error)

	// RecordMove appends to the move history. It may be asynchronous and
	// never fails the move it describes.
	RecordMove(rec MoveRecord) error
	ListMoves(ctx context.Context, gameID string) ([]MoveRecord, error)

	IsHealthy() bool
	Close() error
}

// Stamp returns the next updated_at for a row. Tokens are stored with
// microsecond precision and strictly increase even if the clock does not.
func Stamp(prev, now time.Time) time.Time {
	next := now.UTC().Truncate(time.Microsecond)
	if !next.After(prev) {
		next = prev.Add(time.Microsecond)
	}
	return next
}
