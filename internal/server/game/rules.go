package game

import (
	"fmt"
	"math/rand/v2"

	"arcade/internal/server/core"
)

// Outcome is the evaluator's verdict on a board after a move
type Outcome struct {
	Status   core.Status
	Winner   string
	NextTurn string
}

// Rules is the pure per-type logic. Implementations never touch storage and
// never mutate the game they are given.
type Rules interface {
	Type() core.GameType
	NewBoard(rng *rand.Rand) Board
	StartingTurn(g *Game) string
	// Validate checks a move against the game and returns a copy with the
	// move written to the board
	Validate(g *Game, index int, actor string) (*Game, error)
	Evaluate(g *Game) Outcome
}

var registry = map[core.GameType]Rules{
	core.GameTicTacToe:   TicTacToe{},
	core.GameMemoryMatch: MemoryMatch{Pairs: DefaultPairs},
}

// RulesFor returns the rules registered for a game type
func RulesFor(t core.GameType) (Rules, error) {
	r, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: unknown game type %q", core.ErrBadRequest, t)
	}
	return r, nil
}

// Apply validates a move, evaluates the resulting board and returns the next
// game state. The caller persists it.
func Apply(r Rules, g *Game, index int, actor string) (*Game, Outcome, error) {
	next, err := r.Validate(g, index, actor)
	if err != nil {
		return nil, Outcome{}, err
	}
	out := r.Evaluate(next)
	next.Status = out.Status
	next.Winner = out.Winner
	if out.Status == core.StatusActive {
		next.CurrentTurn = out.NextTurn
	} else {
		next.CurrentTurn = ""
	}
	return next, out, nil
}

// checkActive rejects moves on games that are not being played
func checkActive(g *Game) error {
	if g.Status.Terminal() {
		return fmt.Errorf("%w: game is %s", core.ErrResolved, g.Status)
	}
	if g.Status != core.StatusActive {
		return fmt.Errorf("%w: game is not active", core.ErrMoveRejected)
	}
	return nil
}
