package game

import (
	"fmt"
	"strings"
)

const memoryColumns = 4

// ToASCII renders the board for text clients. Empty cells and face-down
// cards are '.', matched cards are upper case, flipped cards lower case.
func (g *Game) ToASCII() string {
	switch {
	case g.Board.TicTacToe != nil:
		return tttASCII(g.Board.TicTacToe)
	case g.Board.Memory != nil:
		return memoryASCII(g.Board.Memory)
	default:
		return ""
	}
}

func tttASCII(b *TicTacToeBoard) string {
	var sb strings.Builder
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m := b.Cells[r*3+c]
			if m == Empty {
				sb.WriteString(". ")
			} else {
				sb.WriteString(fmt.Sprintf("%s ", m))
			}
		}
		sb.WriteString(fmt.Sprintf("  %d %d %d", r*3, r*3+1, r*3+2))
		if r < 2 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func memoryASCII(b *MemoryBoard) string {
	flipped := make(map[int]bool, len(b.Flipped))
	for _, f := range b.Flipped {
		flipped[f] = true
	}

	var sb strings.Builder
	for i, card := range b.Cards {
		switch {
		case card.Matched:
			sb.WriteString(fmt.Sprintf("%2d:%s ", i, strings.ToUpper(card.Value)))
		case flipped[i]:
			sb.WriteString(fmt.Sprintf("%2d:%s ", i, strings.ToLower(card.Value)))
		default:
			sb.WriteString(fmt.Sprintf("%2d:. ", i))
		}
		if (i+1)%memoryColumns == 0 {
			sb.WriteString("\n")
		}
	}
	sb.WriteString(fmt.Sprintf("score %d - %d", b.ScoreA, b.ScoreB))
	return sb.String()
}
