package processor

import (
	"arcade/internal/server/core"
)

// CommandType defines the type of command being executed
type CommandType int

const (
	CmdCreateGame CommandType = iota
	CmdAcceptGame
	CmdDeclineGame
	CmdMakeMove
	CmdGetGame
	CmdListGames
	CmdGetBoard
	CmdGetMoves
	CmdGetStats
)

// Command is a unified structure for all processor operations
type Command struct {
	Type   CommandType
	UserID string
	GameID string // For game-specific commands
	Args   any    // Command-specific arguments
}

// ProcessorResponse wraps the response with metadata
type ProcessorResponse struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Error   *core.ErrorResponse `json:"error,omitempty"`
}

// ListGamesArgs filters a player's game list
type ListGamesArgs struct {
	Statuses []core.Status
}

func NewCreateGameCommand(userID string, req core.CreateGameRequest) Command {
	return Command{
		Type:   CmdCreateGame,
		UserID: userID,
		Args:   req,
	}
}

func NewAcceptGameCommand(userID, gameID string) Command {
	return Command{
		Type:   CmdAcceptGame,
		UserID: userID,
		GameID: gameID,
	}
}

func NewDeclineGameCommand(userID, gameID string) Command {
	return Command{
		Type:   CmdDeclineGame,
		UserID: userID,
		GameID: gameID,
	}
}

func NewMakeMoveCommand(userID, gameID string, req core.MoveRequest) Command {
	return Command{
		Type:   CmdMakeMove,
		UserID: userID,
		GameID: gameID,
		Args:   req,
	}
}

func NewGetGameCommand(gameID string) Command {
	return Command{
		Type:   CmdGetGame,
		GameID: gameID,
	}
}

func NewListGamesCommand(userID string, statuses ...core.Status) Command {
	return Command{
		Type:   CmdListGames,
		UserID: userID,
		Args:   ListGamesArgs{Statuses: statuses},
	}
}

func NewGetBoardCommand(gameID string) Command {
	return Command{
		Type:   CmdGetBoard,
		GameID: gameID,
	}
}

func NewGetMovesCommand(gameID string) Command {
	return Command{
		Type:   CmdGetMoves,
		GameID: gameID,
	}
}

func NewGetStatsCommand(userID string) Command {
	return Command{
		Type:   CmdGetStats,
		UserID: userID,
	}
}
