package game

import (
	"fmt"
	"math/rand/v2"

	"arcade/internal/server/core"
)

// DefaultPairs is the deck size used for new memory_match games
const DefaultPairs = 8

var faces = []string{"A", "B", "C", "D", "E", "F", "G", "H", "J", "K", "L", "M", "N", "P", "R", "S"}

// MemoryMatch is the card-pairs game. Each turn the player flips two cards;
// a matching pair scores and keeps the turn.
type MemoryMatch struct {
	Pairs int
}

func (MemoryMatch) Type() core.GameType { return core.GameMemoryMatch }

// NewBoard deals a shuffled deck. A nil rng uses the global source.
func (m MemoryMatch) NewBoard(rng *rand.Rand) Board {
	pairs := m.Pairs
	if pairs <= 0 || pairs > len(faces) {
		pairs = DefaultPairs
	}
	cards := make([]Card, 0, pairs*2)
	for i := 0; i < pairs; i++ {
		cards = append(cards, Card{Value: faces[i]}, Card{Value: faces[i]})
	}
	swap := func(i, j int) { cards[i], cards[j] = cards[j], cards[i] }
	if rng != nil {
		rng.Shuffle(len(cards), swap)
	} else {
		rand.Shuffle(len(cards), swap)
	}
	return Board{Memory: &MemoryBoard{Cards: cards, Flipped: []int{}}}
}

func (MemoryMatch) StartingTurn(g *Game) string { return g.PlayerA }

func (MemoryMatch) Validate(g *Game, index int, actor string) (*Game, error) {
	if err := checkActive(g); err != nil {
		return nil, err
	}
	b := g.Board.Memory
	if b == nil {
		return nil, fmt.Errorf("%w: board is not memory_match", core.ErrMoveRejected)
	}
	if !g.HasPlayer(actor) {
		return nil, fmt.Errorf("%w: %s is not a participant", core.ErrMoveRejected, actor)
	}
	if actor != g.CurrentTurn {
		return nil, fmt.Errorf("%w: not your turn", core.ErrMoveRejected)
	}
	if index < 0 || index >= len(b.Cards) {
		return nil, fmt.Errorf("%w: card %d out of range", core.ErrMoveRejected, index)
	}
	if b.Cards[index].Matched {
		return nil, fmt.Errorf("%w: card %d is already matched", core.ErrMoveRejected, index)
	}
	if len(b.Flipped) >= 2 {
		return nil, fmt.Errorf("%w: two cards are already flipped", core.ErrMoveRejected)
	}
	for _, f := range b.Flipped {
		if f == index {
			return nil, fmt.Errorf("%w: card %d is already flipped", core.ErrMoveRejected, index)
		}
	}

	next := g.Clone()
	nb := next.Board.Memory
	if len(nb.Flipped) == 0 {
		nb.Flipped = []int{index}
		nb.LastReveal = nil
		return next, nil
	}

	first := nb.Flipped[0]
	matched := nb.Cards[first].Value == nb.Cards[index].Value
	if matched {
		nb.Cards[first].Matched = true
		nb.Cards[index].Matched = true
		if actor == next.PlayerA {
			nb.ScoreA++
		} else {
			nb.ScoreB++
		}
	} else {
		next.CurrentTurn = next.Opponent(actor)
	}
	nb.Flipped = []int{}
	nb.LastReveal = &Reveal{Cards: [2]int{first, index}, Matched: matched, By: actor}
	return next, nil
}

func (MemoryMatch) Evaluate(g *Game) Outcome {
	b := g.Board.Memory
	for _, c := range b.Cards {
		if !c.Matched {
			return Outcome{Status: core.StatusActive, NextTurn: g.CurrentTurn}
		}
	}
	switch {
	case b.ScoreA > b.ScoreB:
		return Outcome{Status: core.StatusCompleted, Winner: g.PlayerA}
	case b.ScoreB > b.ScoreA:
		return Outcome{Status: core.StatusCompleted, Winner: g.PlayerB}
	default:
		return Outcome{Status: core.StatusDraw}
	}
}
