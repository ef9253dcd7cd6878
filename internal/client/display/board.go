package display

import (
	"fmt"
	"strings"
	"unicode"
)

// RenderBoard prints the server's ASCII board. X and matched cards are
// blue, O and face-up cards red, index columns cyan.
func RenderBoard(asciiBoard string) {
	for _, line := range strings.Split(asciiBoard, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fmt.Println(colorLine(line))
	}
}

func colorLine(line string) string {
	var sb strings.Builder
	for _, r := range line {
		switch {
		case r == 'X':
			sb.WriteString(Paint(Blue, string(r)))
		case r == 'O':
			sb.WriteString(Paint(Red, string(r)))
		case unicode.IsUpper(r):
			sb.WriteString(Paint(Blue, string(r)))
		case unicode.IsLower(r):
			sb.WriteString(Paint(Red, string(r)))
		case unicode.IsDigit(r):
			sb.WriteString(Paint(Cyan, string(r)))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// ColorForTurn colors a turn holder: a mark in tic_tac_toe, a player id in
// memory_match
func ColorForTurn(turn, self string) string {
	switch {
	case turn == "":
		return "-"
	case turn == "X":
		return Paint(Blue, turn)
	case turn == "O":
		return Paint(Red, turn)
	case turn == self:
		return Paint(Green, turn+" (you)")
	default:
		return Paint(Magenta, turn)
	}
}

// ColorForStatus colors a game status
func ColorForStatus(status string) string {
	switch status {
	case "pending":
		return Paint(Yellow, status)
	case "active":
		return Paint(Green, status)
	case "declined":
		return Paint(Red, status)
	default:
		return Paint(Cyan, status)
	}
}
