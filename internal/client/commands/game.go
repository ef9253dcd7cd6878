package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"arcade/internal/client/api"
	"arcade/internal/client/display"
	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/stream"
)

const errNoGame = "no current game, use 'invite' or 'use <gameId>'"

func (r *Registry) registerGameCommands() {
	r.Register(&Command{
		Name:        "invite",
		ShortName:   "n",
		Description: "Create a game invitation",
		Usage:       "invite <ttt|memory> [invitee]",
		Handler:     inviteHandler,
	})

	r.Register(&Command{
		Name:        "accept",
		ShortName:   "a",
		Description: "Accept an invitation",
		Usage:       "accept [gameId]",
		Handler:     acceptHandler,
	})

	r.Register(&Command{
		Name:        "decline",
		ShortName:   "d",
		Description: "Decline or withdraw an invitation",
		Usage:       "decline [gameId]",
		Handler:     declineHandler,
	})

	r.Register(&Command{
		Name:        "use",
		ShortName:   "j",
		Description: "Set current game ID",
		Usage:       "use <gameId>",
		Handler:     useHandler,
	})

	r.Register(&Command{
		Name:        "move",
		ShortName:   "m",
		Description: "Mark a cell or flip a card",
		Usage:       "move <index>",
		Handler:     moveHandler,
	})

	r.Register(&Command{
		Name:        "show",
		ShortName:   "h",
		Description: "Show board and game state",
		Usage:       "show",
		Handler:     showHandler,
	})

	r.Register(&Command{
		Name:        "board",
		ShortName:   "b",
		Description: "Show the ASCII board only",
		Usage:       "board",
		Handler:     boardHandler,
	})

	r.Register(&Command{
		Name:        "state",
		ShortName:   "s",
		Description: "Show raw game JSON",
		Usage:       "state",
		Handler:     stateHandler,
	})

	r.Register(&Command{
		Name:        "moves",
		ShortName:   "ms",
		Description: "Show move history",
		Usage:       "moves",
		Handler:     movesHandler,
	})

	r.Register(&Command{
		Name:        "list",
		ShortName:   "ls",
		Description: "List your games",
		Usage:       "list [status[,status...]]",
		Handler:     listHandler,
	})

	r.Register(&Command{
		Name:        "wait",
		ShortName:   "w",
		Description: "Long-poll until the current game changes",
		Usage:       "wait",
		Handler:     waitHandler,
	})

	r.Register(&Command{
		Name:        "watch",
		ShortName:   "t",
		Description: "Follow updates over the websocket stream (Ctrl-C stops)",
		Usage:       "watch",
		Handler:     watchHandler,
	})

	r.Register(&Command{
		Name:        "stats",
		ShortName:   "st",
		Description: "Show your results per game type",
		Usage:       "stats",
		Handler:     statsHandler,
	})
}

// parseGameType accepts the wire names and short aliases
func parseGameType(s string) (core.GameType, error) {
	switch strings.ToLower(s) {
	case "ttt", "tictactoe", string(core.GameTicTacToe):
		return core.GameTicTacToe, nil
	case "memory", "mm", string(core.GameMemoryMatch):
		return core.GameMemoryMatch, nil
	default:
		return "", fmt.Errorf("unknown game type %q, use ttt or memory", s)
	}
}

// targetGame resolves an optional gameId argument against the current game
func targetGame(s Session, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if id := s.GetCurrentGame(); id != "" {
		return id, nil
	}
	return "", errors.New(errNoGame)
}

func inviteHandler(s Session, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: invite <ttt|memory> [invitee]")
	}
	gameType, err := parseGameType(args[0])
	if err != nil {
		return err
	}
	invitee := ""
	if len(args) > 1 {
		invitee = args[1]
	}

	g, err := s.GetClient().CreateGame(gameType, invitee)
	if err != nil {
		return err
	}
	s.SetCurrentGame(g)

	if invitee == "" {
		fmt.Printf("%sOpen invitation created: %s%s\n", display.Green, g.ID, display.Reset)
	} else {
		fmt.Printf("%sInvitation sent to %s: %s%s\n", display.Green, invitee, g.ID, display.Reset)
	}
	fmt.Printf("%sCurrent game set to: %s%s\n", display.Cyan, g.ID, display.Reset)
	return nil
}

func acceptHandler(s Session, args []string) error {
	gameID, err := targetGame(s, args)
	if err != nil {
		return err
	}
	g, err := s.GetClient().AcceptGame(gameID)
	if err != nil {
		return err
	}
	s.SetCurrentGame(g)
	fmt.Printf("%sJoined game %s as player B%s\n", display.Green, display.ShortID(g.ID), display.Reset)
	printSummary(s, g)
	return nil
}

func declineHandler(s Session, args []string) error {
	gameID, err := targetGame(s, args)
	if err != nil {
		return err
	}
	g, err := s.GetClient().DeclineGame(gameID)
	if err != nil {
		return err
	}
	s.Observe(g)
	fmt.Printf("%sGame %s declined%s\n", display.Yellow, display.ShortID(g.ID), display.Reset)
	return nil
}

func useHandler(s Session, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: use <gameId>")
	}
	g, err := s.GetClient().GetGame(args[0])
	if err != nil {
		return err
	}
	s.SetCurrentGame(g)
	fmt.Printf("%sCurrent game: %s%s\n", display.Green, g.ID, display.Reset)
	printSummary(s, g)
	return nil
}

func moveHandler(s Session, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: move <index>")
	}
	gameID := s.GetCurrentGame()
	if gameID == "" {
		return errors.New(errNoGame)
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index: %s", args[0])
	}

	// Pin the move to what this client last saw
	var expected *time.Time
	if st := s.GetState(); st != nil {
		t := st.UpdatedAt
		expected = &t
	}

	g, err := s.GetClient().MakeMove(gameID, index, expected)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Code == core.ErrConflict {
			fmt.Printf("%sGame changed since you last looked, refreshing...%s\n", display.Yellow, display.Reset)
			if fresh, ferr := s.GetClient().GetGame(gameID); ferr == nil {
				s.Observe(fresh)
				printGame(s, fresh)
			}
		}
		return err
	}
	s.Observe(g)

	fmt.Printf("%sMove accepted%s\n", display.Green, display.Reset)
	printGame(s, g)
	return nil
}

func showHandler(s Session, args []string) error {
	gameID := s.GetCurrentGame()
	if gameID == "" {
		return errors.New(errNoGame)
	}
	g, err := s.GetClient().GetGame(gameID)
	if err != nil {
		return err
	}
	s.Observe(g)
	printGame(s, g)
	return nil
}

func boardHandler(s Session, args []string) error {
	gameID := s.GetCurrentGame()
	if gameID == "" {
		return errors.New(errNoGame)
	}
	board, err := s.GetClient().GetBoard(gameID)
	if err != nil {
		return err
	}
	fmt.Println()
	display.RenderBoard(board.Board)
	return nil
}

func stateHandler(s Session, args []string) error {
	gameID := s.GetCurrentGame()
	if gameID == "" {
		return errors.New(errNoGame)
	}
	g, err := s.GetClient().GetGame(gameID)
	if err != nil {
		return err
	}
	s.Observe(g)
	display.PrettyPrintJSON(g)
	return nil
}

func movesHandler(s Session, args []string) error {
	gameID := s.GetCurrentGame()
	if gameID == "" {
		return errors.New(errNoGame)
	}
	resp, err := s.GetClient().GetMoves(gameID)
	if err != nil {
		return err
	}
	if len(resp.Moves) == 0 {
		fmt.Println("No moves yet")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPlayer\tIndex\tStatus")
	for _, m := range resp.Moves {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", m.MoveNumber, m.PlayerID, m.Index, m.StatusAfter)
	}
	return w.Flush()
}

func listHandler(s Session, args []string) error {
	var statuses []core.Status
	if len(args) > 0 {
		for _, st := range strings.Split(args[0], ",") {
			statuses = append(statuses, core.Status(strings.TrimSpace(st)))
		}
	}
	games, err := s.GetClient().ListGames(statuses...)
	if err != nil {
		return err
	}
	if len(games) == 0 {
		fmt.Println("No games")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Game\tType\tPlayer A\tPlayer B\tStatus\tTurn\tWinner")
	for _, g := range games {
		marker := " "
		if g.ID == s.GetCurrentGame() {
			marker = "*"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, display.ShortID(g.ID), g.Type, g.PlayerA, orDash(g.PlayerB),
			g.Status, orDash(g.CurrentTurn), orDash(g.Winner))
	}
	return w.Flush()
}

func waitHandler(s Session, args []string) error {
	st := s.GetState()
	if st == nil {
		return errors.New(errNoGame)
	}
	fmt.Printf("%sWaiting for %s to change...%s\n", display.Cyan, display.ShortID(st.ID), display.Reset)
	g, err := s.GetClient().WaitGame(st.ID, st.UpdatedAt)
	if err != nil {
		return err
	}
	if g.UpdatedAt.Equal(st.UpdatedAt) {
		fmt.Println("No change")
		return nil
	}
	s.Observe(g)
	printGame(s, g)
	return nil
}

func watchHandler(s Session, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("%sWatching, Ctrl-C to stop%s\n", display.Cyan, display.Reset)
	err := s.GetClient().Stream(ctx, func(m stream.Message) bool {
		switch m.Type {
		case stream.TypeGames:
			fmt.Printf("%s[stream] %d game(s)%s\n", display.Magenta, len(m.Games), display.Reset)
		case stream.TypeGame:
			s.Observe(m.Game)
			fmt.Printf("%s[stream] %s %s%s\n", display.Magenta, display.ShortID(m.Game.ID), m.Game.Status, display.Reset)
			if m.Game.ID == s.GetCurrentGame() {
				printGame(s, m.Game)
			}
		}
		return true
	})
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil
	}
	return err
}

func statsHandler(s Session, args []string) error {
	resp, err := s.GetClient().GetStats()
	if err != nil {
		return err
	}
	if len(resp.ByType) == 0 {
		fmt.Println("No games played")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Type\tWins\tLosses\tDraws\tActive\tPending")
	for _, t := range []core.GameType{core.GameTicTacToe, core.GameMemoryMatch} {
		st, ok := resp.ByType[t]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", t, st.Wins, st.Losses, st.Draws, st.Active, st.Pending)
	}
	return w.Flush()
}

func printSummary(s Session, g *game.Game) {
	fmt.Printf("Type: %s | Status: %s | Turn: %s\n",
		g.Type, display.ColorForStatus(string(g.Status)), display.ColorForTurn(g.CurrentTurn, s.GetPlayerID()))
}

func printGame(s Session, g *game.Game) {
	fmt.Println()
	display.RenderBoard(g.ToASCII())
	fmt.Println()
	printSummary(s, g)
	fmt.Printf("Players: %s vs %s\n", g.PlayerA, orDash(g.PlayerB))
	if r := lastReveal(g); r != "" {
		fmt.Println(r)
	}
	if g.Status == core.StatusCompleted {
		fmt.Printf("%sWinner: %s%s\n", display.Green, g.Winner, display.Reset)
	} else if g.Status == core.StatusDraw {
		fmt.Printf("%sDraw%s\n", display.Cyan, display.Reset)
	}
}

// lastReveal describes the most recent memory_match pair so the player
// can see a mismatch before the cards turn back over
func lastReveal(g *game.Game) string {
	m := g.Board.Memory
	if m == nil || m.LastReveal == nil {
		return ""
	}
	r := m.LastReveal
	a, b := m.Cards[r.Cards[0]].Value, m.Cards[r.Cards[1]].Value
	if r.Matched {
		return fmt.Sprintf("%s matched %d and %d (%s)", r.By, r.Cards[0], r.Cards[1], a)
	}
	return fmt.Sprintf("%s flipped %d (%s) and %d (%s), no match", r.By, r.Cards[0], a, r.Cards[1], b)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
