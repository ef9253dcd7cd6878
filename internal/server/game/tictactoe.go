package game

import (
	"fmt"
	"math/rand/v2"

	"arcade/internal/server/core"
)

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// TicTacToe is the 3x3 game. player_a plays X and always moves first.
type TicTacToe struct{}

func (TicTacToe) Type() core.GameType { return core.GameTicTacToe }

func (TicTacToe) NewBoard(*rand.Rand) Board {
	return Board{TicTacToe: &TicTacToeBoard{}}
}

func (TicTacToe) StartingTurn(*Game) string { return string(X) }

// MarkOf returns the mark the player places, or Empty for non-participants
func MarkOf(g *Game, player string) Mark {
	switch {
	case player == "":
		return Empty
	case player == g.PlayerA:
		return X
	case player == g.PlayerB:
		return O
	default:
		return Empty
	}
}

// OwnerOf returns the player that places a mark
func OwnerOf(g *Game, m Mark) string {
	switch m {
	case X:
		return g.PlayerA
	case O:
		return g.PlayerB
	default:
		return ""
	}
}

func (TicTacToe) Validate(g *Game, index int, actor string) (*Game, error) {
	if err := checkActive(g); err != nil {
		return nil, err
	}
	if g.Board.TicTacToe == nil {
		return nil, fmt.Errorf("%w: board is not tic_tac_toe", core.ErrMoveRejected)
	}
	mark := MarkOf(g, actor)
	if mark == Empty {
		return nil, fmt.Errorf("%w: %s is not a participant", core.ErrMoveRejected, actor)
	}
	if string(mark) != g.CurrentTurn {
		return nil, fmt.Errorf("%w: not your turn", core.ErrMoveRejected)
	}
	if index < 0 || index > 8 {
		return nil, fmt.Errorf("%w: cell %d out of range", core.ErrMoveRejected, index)
	}
	if g.Board.TicTacToe.Cells[index] != Empty {
		return nil, fmt.Errorf("%w: cell %d is occupied", core.ErrMoveRejected, index)
	}

	next := g.Clone()
	next.Board.TicTacToe.Cells[index] = mark
	return next, nil
}

func (TicTacToe) Evaluate(g *Game) Outcome {
	cells := g.Board.TicTacToe.Cells
	for _, l := range lines {
		if m := cells[l[0]]; m != Empty && m == cells[l[1]] && m == cells[l[2]] {
			return Outcome{Status: core.StatusCompleted, Winner: OwnerOf(g, m)}
		}
	}
	for _, c := range cells {
		if c == Empty {
			next := X
			if g.CurrentTurn == string(X) {
				next = O
			}
			return Outcome{Status: core.StatusActive, NextTurn: string(next)}
		}
	}
	return Outcome{Status: core.StatusDraw}
}
