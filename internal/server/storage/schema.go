package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
)

// GameRecord represents a row in the games table
type GameRecord struct {
	GameID      string  `db:"game_id"`
	GameType    string  `db:"game_type"`
	PlayerA     string  `db:"player_a"`
	PlayerB     *string `db:"player_b"`
	Status      string  `db:"status"`
	CurrentTurn string  `db:"current_turn"`
	BoardState  string  `db:"board_state"` // JSON
	Winner      *string `db:"winner"`
	CreatedUS   int64   `db:"created_us"` // unix microseconds
	UpdatedUS   int64   `db:"updated_us"`
}

// MoveRecord represents a row in the moves table
type MoveRecord struct {
	GameID      string    `db:"game_id"`
	MoveNumber  int       `db:"move_number"`
	PlayerID    string    `db:"player_id"`
	Cell        int       `db:"cell"`
	StatusAfter string    `db:"status_after"`
	RecordedAt  time.Time `db:"recorded_us"`
}

// Schema defines the SQLite database structure
const Schema = `
CREATE TABLE IF NOT EXISTS games (
	game_id TEXT PRIMARY KEY,
	game_type TEXT NOT NULL CHECK(game_type IN ('tic_tac_toe', 'memory_match')),
	player_a TEXT NOT NULL,
	player_b TEXT,
	status TEXT NOT NULL CHECK(status IN ('pending', 'active', 'completed', 'draw', 'declined')),
	current_turn TEXT NOT NULL DEFAULT '',
	board_state TEXT NOT NULL,
	winner TEXT,
	created_us INTEGER NOT NULL,
	updated_us INTEGER NOT NULL,
	CHECK(player_b IS NULL OR player_b != player_a)
);

CREATE TABLE IF NOT EXISTS moves (
	move_id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id TEXT NOT NULL,
	move_number INTEGER NOT NULL,
	player_id TEXT NOT NULL,
	cell INTEGER NOT NULL,
	status_after TEXT NOT NULL,
	recorded_us INTEGER NOT NULL,
	FOREIGN KEY (game_id) REFERENCES games(game_id) ON DELETE CASCADE,
	UNIQUE(game_id, move_number)
);

CREATE INDEX IF NOT EXISTS idx_moves_game_id ON moves(game_id);
CREATE INDEX IF NOT EXISTS idx_games_player_a ON games(player_a);
CREATE INDEX IF NOT EXISTS idx_games_player_b ON games(player_b);
CREATE INDEX IF NOT EXISTS idx_games_status_created ON games(status, created_us);
`

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ToRecord flattens a game into its row form
func ToRecord(g *game.Game) (GameRecord, error) {
	board, err := json.Marshal(g.Board)
	if err != nil {
		return GameRecord{}, fmt.Errorf("failed to encode board: %w", err)
	}
	return GameRecord{
		GameID:      g.ID,
		GameType:    string(g.Type),
		PlayerA:     g.PlayerA,
		PlayerB:     optional(g.PlayerB),
		Status:      string(g.Status),
		CurrentTurn: g.CurrentTurn,
		BoardState:  string(board),
		Winner:      optional(g.Winner),
		CreatedUS:   g.CreatedAt.UnixMicro(),
		UpdatedUS:   g.UpdatedAt.UnixMicro(),
	}, nil
}

// Game rebuilds the game from its row form
func (r GameRecord) Game() (*game.Game, error) {
	g := &game.Game{
		ID:          r.GameID,
		Type:        core.GameType(r.GameType),
		PlayerA:     r.PlayerA,
		PlayerB:     value(r.PlayerB),
		Status:      core.Status(r.Status),
		CurrentTurn: r.CurrentTurn,
		Winner:      value(r.Winner),
		CreatedAt:   time.UnixMicro(r.CreatedUS).UTC(),
		UpdatedAt:   time.UnixMicro(r.UpdatedUS).UTC(),
	}
	if err := json.Unmarshal([]byte(r.BoardState), &g.Board); err != nil {
		return nil, fmt.Errorf("failed to decode board of %s: %w", r.GameID, err)
	}
	return g, nil
}
