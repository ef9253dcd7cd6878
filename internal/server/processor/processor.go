package processor

import (
	"context"
	"fmt"
	"log"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/service"
)

// Processor executes commands against the service and shapes responses
type Processor struct {
	svc *service.Service
}

func New(svc *service.Service) *Processor {
	return &Processor{svc: svc}
}

func (p *Processor) Execute(ctx context.Context, cmd Command) ProcessorResponse {
	switch cmd.Type {
	case CmdCreateGame:
		return p.handleCreateGame(ctx, cmd)
	case CmdAcceptGame:
		return p.gameResponse(p.svc.AcceptGame(ctx, cmd.GameID, cmd.UserID))
	case CmdDeclineGame:
		return p.gameResponse(p.svc.DeclineGame(ctx, cmd.GameID, cmd.UserID))
	case CmdMakeMove:
		return p.handleMakeMove(ctx, cmd)
	case CmdGetGame:
		return p.gameResponse(p.svc.GetGame(ctx, cmd.GameID))
	case CmdListGames:
		return p.handleListGames(ctx, cmd)
	case CmdGetBoard:
		return p.handleGetBoard(ctx, cmd)
	case CmdGetMoves:
		return p.handleGetMoves(ctx, cmd)
	case CmdGetStats:
		stats, err := p.svc.Stats(ctx, cmd.UserID)
		if err != nil {
			return p.errorResponse(err)
		}
		return ProcessorResponse{Success: true, Data: stats}
	default:
		return p.errorResponse(fmt.Errorf("%w: unknown command", core.ErrBadRequest))
	}
}

func (p *Processor) handleCreateGame(ctx context.Context, cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.CreateGameRequest)
	if !ok {
		return p.errorResponse(fmt.Errorf("%w: invalid arguments", core.ErrBadRequest))
	}
	return p.gameResponse(p.svc.CreateGame(ctx, cmd.UserID, args.Invitee, args.GameType))
}

// handleMakeMove pins the move to the caller's token when one is given and
// otherwise lets the service retry lost races
func (p *Processor) handleMakeMove(ctx context.Context, cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.MoveRequest)
	if !ok {
		return p.errorResponse(fmt.Errorf("%w: invalid arguments", core.ErrBadRequest))
	}
	if args.Index == nil {
		return p.errorResponse(fmt.Errorf("%w: index is required", core.ErrBadRequest))
	}
	if args.ExpectedUpdatedAt != nil {
		return p.gameResponse(p.svc.ApplyMove(ctx, cmd.GameID, cmd.UserID, *args.Index, *args.ExpectedUpdatedAt))
	}
	return p.gameResponse(p.svc.SubmitMove(ctx, cmd.GameID, cmd.UserID, *args.Index))
}

func (p *Processor) handleListGames(ctx context.Context, cmd Command) ProcessorResponse {
	args, _ := cmd.Args.(ListGamesArgs)
	for _, st := range args.Statuses {
		if !st.Valid() {
			return p.errorResponse(fmt.Errorf("%w: unknown status %q", core.ErrBadRequest, st))
		}
	}

	games, err := p.svc.ListGames(ctx, cmd.UserID)
	if err != nil {
		return p.errorResponse(err)
	}
	return ProcessorResponse{
		Success: true,
		Data:    service.FilterByStatus(games, args.Statuses...),
	}
}

func (p *Processor) handleGetBoard(ctx context.Context, cmd Command) ProcessorResponse {
	g, err := p.svc.GetGame(ctx, cmd.GameID)
	if err != nil {
		return p.errorResponse(err)
	}
	return ProcessorResponse{
		Success: true,
		Data: core.BoardResponse{
			GameID: g.ID,
			Board:  g.ToASCII(),
		},
	}
}

func (p *Processor) handleGetMoves(ctx context.Context, cmd Command) ProcessorResponse {
	records, err := p.svc.Moves(ctx, cmd.GameID)
	if err != nil {
		return p.errorResponse(err)
	}

	moves := make([]core.MoveInfo, 0, len(records))
	for _, r := range records {
		moves = append(moves, core.MoveInfo{
			MoveNumber:  r.MoveNumber,
			PlayerID:    r.PlayerID,
			Index:       r.Cell,
			StatusAfter: core.Status(r.StatusAfter),
			RecordedAt:  r.RecordedAt,
		})
	}
	return ProcessorResponse{
		Success: true,
		Data:    core.MovesResponse{GameID: cmd.GameID, Moves: moves},
	}
}

func (p *Processor) gameResponse(g *game.Game, err error) ProcessorResponse {
	if err != nil {
		return p.errorResponse(err)
	}
	return ProcessorResponse{Success: true, Data: g}
}

// errorResponse maps an engine error to its wire code; the message names
// the rule that was broken
func (p *Processor) errorResponse(err error) ProcessorResponse {
	code := core.CodeOf(err)
	message := err.Error()
	if code == core.ErrInternalError {
		log.Printf("Internal error: %v", err)
		message = "internal error"
	}
	return ProcessorResponse{
		Success: false,
		Error: &core.ErrorResponse{
			Error: message,
			Code:  code,
		},
	}
}
