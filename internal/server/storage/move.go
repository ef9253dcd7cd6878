package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordMove queues a move history row. The move number is assigned by the
// writer as the next number for the game.
func (s *Store) RecordMove(rec MoveRecord) error {
	s.enqueue("move record", func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO moves (
			game_id, move_number, player_id, cell, status_after, recorded_us
		) SELECT ?, COALESCE(MAX(move_number), 0) + 1, ?, ?, ?, ?
		FROM moves WHERE game_id = ?`,
			rec.GameID, rec.PlayerID, rec.Cell, rec.StatusAfter, rec.RecordedAt.UnixMicro(),
			rec.GameID,
		)
		return err
	})
	return nil
}

// ListMoves returns a game's history in play order
func (s *Store) ListMoves(ctx context.Context, gameID string) ([]MoveRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		game_id, move_number, player_id, cell, status_after, recorded_us
	FROM moves WHERE game_id = ? ORDER BY move_number`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	moves := []MoveRecord{}
	for rows.Next() {
		var m MoveRecord
		var recorded int64
		if err := rows.Scan(&m.GameID, &m.MoveNumber, &m.PlayerID, &m.Cell, &m.StatusAfter, &recorded); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		m.RecordedAt = time.UnixMicro(recorded).UTC()
		moves = append(moves, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return moves, nil
}
