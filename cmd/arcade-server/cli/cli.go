package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"arcade/internal/server/http"
	"arcade/internal/server/storage"
)

const timeLayout = "2006-01-02 15:04:05"

// Run is the entry point for the CLI mini-app
func Run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: init, delete, query, moves, token")
	}

	switch args[0] {
	case "init":
		return runInit(args[1:])
	case "delete":
		return runDelete(args[1:])
	case "query":
		return runQuery(args[1:])
	case "moves":
		return runMoves(args[1:])
	case "token":
		return runToken(args[1:])
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func openStore(name string, args []string, extra func(fs *flag.FlagSet)) (*storage.Store, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	if extra != nil {
		extra(fs)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *path == "" {
		return nil, fmt.Errorf("database path required")
	}

	store, err := storage.NewStore(*path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func runInit(args []string) error {
	store, err := openStore("init", args, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Println("Database initialized")
	return nil
}

func runDelete(args []string) error {
	store, err := openStore("delete", args, nil)
	if err != nil {
		return err
	}

	if err := store.DeleteDB(); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}

	fmt.Println("Database deleted")
	return nil
}

func runQuery(args []string) error {
	var gameID, playerID *string
	store, err := openStore("query", args, func(fs *flag.FlagSet) {
		gameID = fs.String("gameId", "", "Game ID to filter (optional, * for all)")
		playerID = fs.String("playerId", "", "Player ID to filter (optional, * for all)")
	})
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.QueryGames(*gameID, *playerID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No games found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Game ID\tType\tPlayer A\tPlayer B\tStatus\tWinner\tUpdated")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.GameID[:8]+"...",
			r.GameType,
			r.PlayerA,
			orDash(r.PlayerB),
			r.Status,
			orDash(r.Winner),
			time.UnixMicro(r.UpdatedUS).UTC().Format(timeLayout),
		)
	}
	w.Flush()

	fmt.Printf("\nFound %d game(s)\n", len(records))
	return nil
}

func runMoves(args []string) error {
	var gameID *string
	store, err := openStore("moves", args, func(fs *flag.FlagSet) {
		gameID = fs.String("gameId", "", "Game ID (required)")
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if *gameID == "" {
		return fmt.Errorf("game ID required")
	}

	moves, err := store.ListMoves(context.Background(), *gameID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if len(moves) == 0 {
		fmt.Println("No moves recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPlayer\tIndex\tStatus After\tRecorded")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, m := range moves {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			m.MoveNumber, m.PlayerID, m.Cell, m.StatusAfter, m.RecordedAt.UTC().Format(timeLayout))
	}
	w.Flush()
	return nil
}

// runToken mints a bearer token for a player; the secret is prompted for
// unless ARCADE_JWT_SECRET is set
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	player := fs.String("player", "", "Player ID (required)")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *player == "" {
		return fmt.Errorf("player ID required")
	}

	secret := os.Getenv("ARCADE_JWT_SECRET")
	if secret == "" {
		fmt.Fprint(os.Stderr, "JWT secret: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		secret = string(b)
	}

	token, err := http.IssueToken([]byte(secret), *player, *ttl)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
