package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/storage"
)

// ApplyMove plays index for actor against the state the caller last saw.
// If the row changed since expected the move is refused with ErrStale and
// nothing is written.
func (s *Service) ApplyMove(ctx context.Context, gameID, actor string, index int, expected time.Time) (g *game.Game, err error) {
	ctx, span := s.startSpan(ctx, "ApplyMove",
		attribute.String("game.id", gameID),
		attribute.Int("move.index", index))
	defer func() { endSpan(span, err) }()

	current, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return s.applyTo(ctx, current, actor, index, expected)
}

// SubmitMove plays index against whatever state is current, re-reading and
// retrying when another write lands first
func (s *Service) SubmitMove(ctx context.Context, gameID, actor string, index int) (g *game.Game, err error) {
	ctx, span := s.startSpan(ctx, "SubmitMove",
		attribute.String("game.id", gameID),
		attribute.Int("move.index", index))
	defer func() { endSpan(span, err) }()

	err = s.retryStale(func() error {
		current, err := s.load(ctx, gameID)
		if err != nil {
			return err
		}
		g, err = s.applyTo(ctx, current, actor, index, current.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) applyTo(ctx context.Context, current *game.Game, actor string, index int, expected time.Time) (*game.Game, error) {
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: game is %s", core.ErrResolved, current.Status)
	}
	if !current.UpdatedAt.Equal(expected) {
		return nil, fmt.Errorf("%w: game %s", core.ErrStale, current.ID)
	}

	rules, err := game.RulesFor(current.Type)
	if err != nil {
		return nil, err
	}
	next, _, err := game.Apply(rules, current, index, actor)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, current, next); err != nil {
		return nil, err
	}

	if err := s.store.RecordMove(storage.MoveRecord{
		GameID:      next.ID,
		PlayerID:    actor,
		Cell:        index,
		StatusAfter: string(next.Status),
		RecordedAt:  next.UpdatedAt,
	}); err != nil {
		log.Printf("Move history for game %s not recorded: %v", next.ID, err)
	}

	return next, nil
}
