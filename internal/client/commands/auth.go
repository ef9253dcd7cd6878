package commands

import (
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"

	"arcade/internal/client/display"
)

func (r *Registry) registerAuthCommands() {
	r.Register(&Command{
		Name:        "login",
		ShortName:   "l",
		Description: "Use a bearer token issued for a player",
		Usage:       "login <playerId> [token]",
		Handler:     loginHandler,
	})

	r.Register(&Command{
		Name:        "logout",
		ShortName:   "o",
		Description: "Clear authentication",
		Usage:       "logout",
		Handler:     logoutHandler,
	})

	r.Register(&Command{
		Name:        "whoami",
		ShortName:   "i",
		Description: "Show current player",
		Usage:       "whoami",
		Handler:     whoamiHandler,
	})
}

// readToken prompts without echo; tokens are credentials
var readToken = func(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func loginHandler(s Session, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: login <playerId> [token]")
	}
	playerID := args[0]

	token := ""
	if len(args) > 1 {
		token = args[1]
	} else {
		var err error
		token, err = readToken(display.Yellow + "Token: " + display.Reset)
		if err != nil {
			return err
		}
	}
	if token == "" {
		return fmt.Errorf("token required")
	}

	s.Login(playerID, token)

	// Probe the token so a bad paste fails here rather than on the next command
	if _, err := s.GetClient().ListGames(); err != nil {
		s.Logout()
		return fmt.Errorf("token rejected: %w", err)
	}

	fmt.Printf("%sLogged in as %s%s\n", display.Green, playerID, display.Reset)
	return nil
}

func logoutHandler(s Session, args []string) error {
	s.Logout()
	fmt.Printf("%sLogged out%s\n", display.Cyan, display.Reset)
	return nil
}

func whoamiHandler(s Session, args []string) error {
	if s.GetPlayerID() == "" {
		fmt.Println("Not logged in")
		return nil
	}
	fmt.Printf("Player: %s%s%s\n", display.Magenta, s.GetPlayerID(), display.Reset)
	if g := s.GetCurrentGame(); g != "" {
		fmt.Printf("Current game: %s\n", g)
	}
	return nil
}
