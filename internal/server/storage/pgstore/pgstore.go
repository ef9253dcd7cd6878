// Package pgstore is the PostgreSQL game store, for deployments that run
// several server instances against one database.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/storage"
)

const moveQueueSize = 1000

type gameRow struct {
	GameID      string  `gorm:"column:game_id;primaryKey;type:uuid"`
	GameType    string  `gorm:"column:game_type;type:varchar(32);not null"`
	PlayerA     string  `gorm:"column:player_a;index;not null"`
	PlayerB     *string `gorm:"column:player_b;index"`
	Status      string  `gorm:"column:status;type:varchar(16);index:idx_games_status_created,priority:1;not null"`
	CurrentTurn string  `gorm:"column:current_turn;not null;default:''"`
	BoardState  string  `gorm:"column:board_state;type:text;not null"`
	Winner      *string `gorm:"column:winner"`
	CreatedUS   int64   `gorm:"column:created_us;index:idx_games_status_created,priority:2;not null"`
	UpdatedUS   int64   `gorm:"column:updated_us;not null"`
}

func (gameRow) TableName() string { return core.GamesTable }

type moveRow struct {
	ID          uint   `gorm:"column:move_id;primaryKey;autoIncrement"`
	GameID      string `gorm:"column:game_id;type:uuid;uniqueIndex:idx_moves_game_number,priority:1;not null"`
	MoveNumber  int    `gorm:"column:move_number;uniqueIndex:idx_moves_game_number,priority:2;not null"`
	PlayerID    string `gorm:"column:player_id;not null"`
	Cell        int    `gorm:"column:cell;not null"`
	StatusAfter string `gorm:"column:status_after;type:varchar(16);not null"`
	RecordedUS  int64  `gorm:"column:recorded_us;not null"`
}

func (moveRow) TableName() string { return "moves" }

func fromRecord(r storage.GameRecord) gameRow {
	return gameRow(r)
}

func (r gameRow) game() (*game.Game, error) {
	return storage.GameRecord(r).Game()
}

// Store implements storage.GameStore on gorm
type Store struct {
	db        *gorm.DB
	healthy   atomic.Bool
	moveChan  chan storage.MoveRecord
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Open connects and migrates the schema
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&gameRow{}, &moveRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s := &Store{
		db:       db,
		moveChan: make(chan storage.MoveRecord, moveQueueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.healthy.Store(true)
	go s.writerLoop()
	return s, nil
}

func (s *Store) InsertGame(ctx context.Context, g *game.Game) error {
	r, err := storage.ToRecord(g)
	if err != nil {
		return err
	}
	row := fromRecord(r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert game failed: %w", err)
	}
	return nil
}

func (s *Store) GetGame(ctx context.Context, id string) (*game.Game, error) {
	var row gameRow
	err := s.db.WithContext(ctx).Where("game_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game failed: %w", err)
	}
	return row.game()
}

func (s *Store) ListGamesByPlayer(ctx context.Context, playerID string) ([]*game.Game, error) {
	var rows []gameRow
	err := s.db.WithContext(ctx).
		Where("player_a = ? OR player_b = ?", playerID, playerID).
		Order("updated_us DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list games failed: %w", err)
	}
	return toGames(rows)
}

func (s *Store) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*game.Game, error) {
	var rows []gameRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_us < ?", string(core.StatusPending), cutoff.UnixMicro()).
		Order("created_us").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list pending games failed: %w", err)
	}
	return toGames(rows)
}

func toGames(rows []gameRow) ([]*game.Game, error) {
	games := make([]*game.Game, 0, len(rows))
	for _, r := range rows {
		g, err := r.game()
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, nil
}

// UpdateGameWhere is a conditional UPDATE; RowsAffected tells the caller
// whether its token was still current
func (s *Store) UpdateGameWhere(ctx context.Context, id string, expected time.Time, g *game.Game) (int64, error) {
	r, err := storage.ToRecord(g)
	if err != nil {
		return 0, err
	}

	result := s.db.WithContext(ctx).Model(&gameRow{}).
		Where("game_id = ? AND updated_us = ?", id, expected.UnixMicro()).
		Updates(map[string]any{
			"player_b":     r.PlayerB,
			"status":       r.Status,
			"current_turn": r.CurrentTurn,
			"board_state":  r.BoardState,
			"winner":       r.Winner,
			"updated_us":   r.UpdatedUS,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("update game failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// RecordMove queues the history row for the writer; failures mark the
// store degraded but never reach the move's caller. Rows arriving after
// Close are dropped.
func (s *Store) RecordMove(rec storage.MoveRecord) error {
	if !s.healthy.Load() {
		return nil
	}
	select {
	case <-s.quit:
		log.Printf("Storage closed, dropping move record for game %s", rec.GameID)
		return nil
	default:
	}
	select {
	case s.moveChan <- rec:
	default:
		log.Printf("Storage write queue full, dropping move record")
	}
	return nil
}

func (s *Store) writerLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			// Drain what is already queued
			for {
				select {
				case rec := <-s.moveChan:
					s.persistMove(rec)
				default:
					return
				}
			}
		case rec := <-s.moveChan:
			s.persistMove(rec)
		}
	}
}

func (s *Store) persistMove(rec storage.MoveRecord) {
	if !s.healthy.Load() {
		return
	}
	if err := s.writeMove(rec); err != nil {
		log.Printf("Storage degraded: move record failed: %v", err)
		s.healthy.Store(false)
	}
}

func (s *Store) writeMove(rec storage.MoveRecord) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&moveRow{}).
			Where("game_id = ?", rec.GameID).
			Select("COALESCE(MAX(move_number), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		return tx.Create(&moveRow{
			GameID:      rec.GameID,
			MoveNumber:  last + 1,
			PlayerID:    rec.PlayerID,
			Cell:        rec.Cell,
			StatusAfter: rec.StatusAfter,
			RecordedUS:  rec.RecordedAt.UnixMicro(),
		}).Error
	})
}

func (s *Store) ListMoves(ctx context.Context, gameID string) ([]storage.MoveRecord, error) {
	var rows []moveRow
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("move_number").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list moves failed: %w", err)
	}
	moves := make([]storage.MoveRecord, 0, len(rows))
	for _, r := range rows {
		moves = append(moves, storage.MoveRecord{
			GameID:      r.GameID,
			MoveNumber:  r.MoveNumber,
			PlayerID:    r.PlayerID,
			Cell:        r.Cell,
			StatusAfter: r.StatusAfter,
			RecordedAt:  time.UnixMicro(r.RecordedUS).UTC(),
		})
	}
	return moves, nil
}

func (s *Store) IsHealthy() bool {
	if !s.healthy.Load() {
		return false
	}
	sqlDB, err := s.db.DB()
	return err == nil && sqlDB.Ping() == nil
}

// Close flushes queued history rows and closes the pool
func (s *Store) Close() error {
	s.stopWriter(2 * time.Second)

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) stopWriter(timeout time.Duration) {
	s.closeOnce.Do(func() { close(s.quit) })
	select {
	case <-s.done:
	case <-time.After(timeout):
		log.Printf("Warning: storage writer shutdown timeout, some writes may be lost")
	}
}
