package core

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDraw      Status = "draw"
	StatusDeclined  Status = "declined"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusDraw, StatusDeclined:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusDraw, StatusDeclined:
		return true
	default:
		return false
	}
}

type GameType string

const (
	GameTicTacToe   GameType = "tic_tac_toe"
	GameMemoryMatch GameType = "memory_match"
)

func (t GameType) Valid() bool {
	return t == GameTicTacToe || t == GameMemoryMatch
}

// ChangeType mirrors the row-level change kinds emitted by the realtime channel
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	// ChangeResync tells a subscriber that changes were dropped and every
	// row it tracks must be re-read. It carries no row.
	ChangeResync ChangeType = "RESYNC"
)

// GamesTable is the topic name game row changes are published under
const GamesTable = "games"
