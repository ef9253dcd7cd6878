package api

import (
	"arcade/internal/server/core"
	"arcade/internal/server/game"
)

// Wire types shared with the server
type (
	ErrorResponse     = core.ErrorResponse
	CreateGameRequest = core.CreateGameRequest
	MoveRequest       = core.MoveRequest
	BoardResponse     = core.BoardResponse
	MovesResponse     = core.MovesResponse
	StatsResponse     = core.StatsResponse
	Game              = game.Game
)

type HealthResponse struct {
	Status   string `json:"status"`
	Time     int64  `json:"time"`
	Storage  string `json:"storage,omitempty"`
	Realtime string `json:"realtime,omitempty"`
}
