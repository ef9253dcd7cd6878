// Package game holds the game record shared by every game type and the pure
// per-type rules that validate moves and evaluate outcomes.
package game

import (
	"encoding/json"
	"time"

	"arcade/internal/server/core"
)

type Mark string

const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"
)

type TicTacToeBoard struct {
	Cells [9]Mark `json:"cells"`
}

type Card struct {
	Value   string `json:"value"`
	Matched bool   `json:"matched"`
}

// Reveal is the last resolved pair, kept so the opponent can see what was
// flipped before a mismatched pair was turned back over
type Reveal struct {
	Cards   [2]int `json:"cards"`
	Matched bool   `json:"matched"`
	By      string `json:"by"`
}

type MemoryBoard struct {
	Cards      []Card  `json:"cards"`
	Flipped    []int   `json:"flipped"`
	ScoreA     int     `json:"scoreA"`
	ScoreB     int     `json:"scoreB"`
	LastReveal *Reveal `json:"lastReveal,omitempty"`
}

// Board is the game-specific payload. Exactly one field is set, selected by
// the owning game's Type.
type Board struct {
	TicTacToe *TicTacToeBoard `json:"ticTacToe,omitempty"`
	Memory    *MemoryBoard    `json:"memoryMatch,omitempty"`
}

// Game is one match between two players
type Game struct {
	ID          string
	Type        core.GameType
	PlayerA     string
	PlayerB     string // empty while an open invite is pending
	Status      core.Status
	CurrentTurn string // mark for tic_tac_toe, player id for memory_match
	Board       Board
	Winner      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type gameJSON struct {
	ID          string        `json:"id"`
	Type        core.GameType `json:"gameType"`
	PlayerA     string        `json:"playerA"`
	PlayerB     *string       `json:"playerB"`
	Status      core.Status   `json:"status"`
	CurrentTurn *string       `json:"currentTurn"`
	Board       Board         `json:"boardState"`
	Winner      *string       `json:"winner"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// MarshalJSON renders unset participants, turn and winner as null
func (g Game) MarshalJSON() ([]byte, error) {
	return json.Marshal(gameJSON{
		ID:          g.ID,
		Type:        g.Type,
		PlayerA:     g.PlayerA,
		PlayerB:     nullable(g.PlayerB),
		Status:      g.Status,
		CurrentTurn: nullable(g.CurrentTurn),
		Board:       g.Board,
		Winner:      nullable(g.Winner),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	})
}

func (g *Game) UnmarshalJSON(data []byte) error {
	var v gameJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*g = Game{
		ID:          v.ID,
		Type:        v.Type,
		PlayerA:     v.PlayerA,
		PlayerB:     deref(v.PlayerB),
		Status:      v.Status,
		CurrentTurn: deref(v.CurrentTurn),
		Board:       v.Board,
		Winner:      deref(v.Winner),
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
	return nil
}

// HasPlayer reports whether id occupies either seat
func (g *Game) HasPlayer(id string) bool {
	return id != "" && (g.PlayerA == id || g.PlayerB == id)
}

// Opponent returns the other seat's player, or empty if id is not seated
func (g *Game) Opponent(id string) string {
	switch id {
	case "":
		return ""
	case g.PlayerA:
		return g.PlayerB
	case g.PlayerB:
		return g.PlayerA
	default:
		return ""
	}
}

// Clone returns a deep copy so rules never mutate the caller's state
func (g *Game) Clone() *Game {
	c := *g
	if t := g.Board.TicTacToe; t != nil {
		cp := *t
		c.Board.TicTacToe = &cp
	}
	if m := g.Board.Memory; m != nil {
		cp := *m
		cp.Cards = append([]Card(nil), m.Cards...)
		cp.Flipped = append([]int{}, m.Flipped...)
		if m.LastReveal != nil {
			r := *m.LastReveal
			cp.LastReveal = &r
		}
		c.Board.Memory = &cp
	}
	return &c
}
