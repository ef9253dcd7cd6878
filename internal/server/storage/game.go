package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"arcade/internal/server/game"
)

const gameColumns = `game_id, game_type, player_a, player_b, status,
	current_turn, board_state, winner, created_us, updated_us`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (GameRecord, error) {
	var r GameRecord
	err := row.Scan(
		&r.GameID, &r.GameType, &r.PlayerA, &r.PlayerB, &r.Status,
		&r.CurrentTurn, &r.BoardState, &r.Winner, &r.CreatedUS, &r.UpdatedUS,
	)
	return r, err
}

// InsertGame writes a new game row
func (s *Store) InsertGame(ctx context.Context, g *game.Game) error {
	r, err := ToRecord(g)
	if err != nil {
		return err
	}

	query := `INSERT INTO games (` + gameColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		r.GameID, r.GameType, r.PlayerA, r.PlayerB, r.Status,
		r.CurrentTurn, r.BoardState, r.Winner, r.CreatedUS, r.UpdatedUS,
	)
	if err != nil {
		return fmt.Errorf("insert game failed: %w", err)
	}
	return nil
}

// GetGame reads one game by id
func (s *Store) GetGame(ctx context.Context, id string) (*game.Game, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE game_id = ?`, id)
	r, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game failed: %w", err)
	}
	return r.Game()
}

// ListGamesByPlayer returns every game the player is seated in, most
// recently changed first
func (s *Store) ListGamesByPlayer(ctx context.Context, playerID string) ([]*game.Game, error) {
	return s.listGames(ctx,
		`SELECT `+gameColumns+` FROM games WHERE player_a = ? OR player_b = ? ORDER BY updated_us DESC`,
		playerID, playerID)
}

// ListPendingBefore returns pending invitations created before cutoff
func (s *Store) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*game.Game, error) {
	return s.listGames(ctx,
		`SELECT `+gameColumns+` FROM games WHERE status = 'pending' AND created_us < ? ORDER BY created_us`,
		cutoff.UnixMicro())
}

func (s *Store) listGames(ctx context.Context, query string, args ...any) ([]*game.Game, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	games := []*game.Game{}
	for rows.Next() {
		r, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		g, err := r.Game()
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return games, nil
}

// UpdateGameWhere replaces the mutable columns of a game only if its
// updated_at still equals expected
func (s *Store) UpdateGameWhere(ctx context.Context, id string, expected time.Time, g *game.Game) (int64, error) {
	r, err := ToRecord(g)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE games
		SET player_b = ?, status = ?, current_turn = ?, board_state = ?, winner = ?, updated_us = ?
		WHERE game_id = ? AND updated_us = ?`,
		r.PlayerB, r.Status, r.CurrentTurn, r.BoardState, r.Winner, r.UpdatedUS,
		id, expected.UnixMicro(),
	)
	if err != nil {
		return 0, fmt.Errorf("update game failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update game failed: %w", err)
	}
	return n, nil
}

// QueryGames retrieves raw game rows with optional filtering, '*' or empty
// matching everything
func (s *Store) QueryGames(gameID, playerID string) ([]GameRecord, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE 1=1`

	var args []any

	if gameID != "" && gameID != "*" {
		query += " AND game_id = ?"
		args = append(args, gameID)
	}

	if playerID != "" && playerID != "*" {
		query += " AND (player_a = ? OR player_b = ?)"
		args = append(args, playerID, playerID)
	}

	query += " ORDER BY created_us DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []GameRecord
	for rows.Next() {
		r, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return records, nil
}
