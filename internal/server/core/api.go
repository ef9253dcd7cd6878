package core

import "time"

// Request types

type CreateGameRequest struct {
	GameType GameType `json:"gameType" validate:"required,oneof=tic_tac_toe memory_match"`
	Invitee  string   `json:"invitee,omitempty" validate:"omitempty,max=128"` // empty for an open invite
}

type MoveRequest struct {
	Index *int `json:"index" validate:"required,min=0,max=63"` // cell for tic_tac_toe, card for memory_match
	// ExpectedUpdatedAt pins the move to the state the client last saw.
	// When omitted the server re-reads and retries conflicts itself.
	ExpectedUpdatedAt *time.Time `json:"expectedUpdatedAt,omitempty"`
}

// Response types

type BoardResponse struct {
	GameID string `json:"gameId"`
	Board  string `json:"board"` // ASCII representation
}

type MoveInfo struct {
	MoveNumber  int       `json:"moveNumber"`
	PlayerID    string    `json:"playerId"`
	Index       int       `json:"index"`
	StatusAfter Status    `json:"statusAfter"`
	RecordedAt  time.Time `json:"recordedAt"`
}

type MovesResponse struct {
	GameID string     `json:"gameId"`
	Moves  []MoveInfo `json:"moves"`
}

type TypeStats struct {
	Wins    int `json:"wins"`
	Losses  int `json:"losses"`
	Draws   int `json:"draws"`
	Active  int `json:"active"`
	Pending int `json:"pending"`
}

type StatsResponse struct {
	PlayerID string                 `json:"playerId"`
	ByType   map[GameType]TypeStats `json:"byType"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
