package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
)

// CreateGame opens an invitation. An empty invitee makes an open invite
// that any other player may accept.
func (s *Service) CreateGame(ctx context.Context, inviter, invitee string, gameType core.GameType) (g *game.Game, err error) {
	ctx, span := s.startSpan(ctx, "CreateGame",
		attribute.String("game.type", string(gameType)),
		attribute.Bool("game.open_invite", invitee == ""))
	defer func() { endSpan(span, err) }()

	if inviter == "" {
		return nil, fmt.Errorf("%w: inviter is required", core.ErrBadParticipant)
	}
	if inviter == invitee {
		return nil, fmt.Errorf("%w: cannot invite yourself", core.ErrBadParticipant)
	}
	rules, err := game.RulesFor(gameType)
	if err != nil {
		return nil, err
	}

	now := s.now()
	g = &game.Game{
		ID:        uuid.New().String(),
		Type:      gameType,
		PlayerA:   inviter,
		PlayerB:   invitee,
		Status:    core.StatusPending,
		Board:     s.newBoard(rules),
		CreatedAt: now,
		UpdatedAt: now,
	}
	span.SetAttributes(attribute.String("game.id", g.ID))

	if err := s.store.InsertGame(ctx, g); err != nil {
		return nil, err
	}
	s.publish(ctx, core.ChangeInsert, g)
	return g, nil
}

// AcceptGame seats the accepting player and starts the game. Two players
// racing for one open seat resolve to a single winner; the other sees
// ErrResolved.
func (s *Service) AcceptGame(ctx context.Context, gameID, user string) (g *game.Game, err error) {
	ctx, span := s.startSpan(ctx, "AcceptGame", attribute.String("game.id", gameID))
	defer func() { endSpan(span, err) }()

	err = s.retryStale(func() error {
		current, err := s.load(ctx, gameID)
		if err != nil {
			return err
		}
		if current.Status != core.StatusPending {
			return fmt.Errorf("%w: game is %s", core.ErrResolved, current.Status)
		}
		switch {
		case user == "":
			return fmt.Errorf("%w: no user", core.ErrIneligible)
		case current.PlayerB == "" && user == current.PlayerA:
			return fmt.Errorf("%w: cannot accept your own invite", core.ErrIneligible)
		case current.PlayerB != "" && user != current.PlayerB:
			return fmt.Errorf("%w: invite is for another player", core.ErrIneligible)
		}

		rules, err := game.RulesFor(current.Type)
		if err != nil {
			return err
		}
		next := current.Clone()
		next.PlayerB = user
		next.Status = core.StatusActive
		next.CurrentTurn = rules.StartingTurn(next)

		if err := s.commit(ctx, current, next); err != nil {
			return err
		}
		g = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// DeclineGame ends a pending invitation. The invitee declines a direct
// invite; the inviter may withdraw any of their pending invites.
func (s *Service) DeclineGame(ctx context.Context, gameID, user string) (g *game.Game, err error) {
	ctx, span := s.startSpan(ctx, "DeclineGame", attribute.String("game.id", gameID))
	defer func() { endSpan(span, err) }()

	err = s.retryStale(func() error {
		current, err := s.load(ctx, gameID)
		if err != nil {
			return err
		}
		if current.Status != core.StatusPending {
			return fmt.Errorf("%w: game is %s", core.ErrResolved, current.Status)
		}
		invitee := current.PlayerB != "" && user == current.PlayerB
		if user == "" || (!invitee && user != current.PlayerA) {
			return fmt.Errorf("%w: only the invitee or inviter can decline", core.ErrIneligible)
		}

		next := current.Clone()
		next.Status = core.StatusDeclined
		next.CurrentTurn = ""

		if err := s.commit(ctx, current, next); err != nil {
			return err
		}
		g = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
