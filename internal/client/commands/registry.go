package commands

import (
	"fmt"
	"os"
	"strings"

	"arcade/internal/client/api"
	"arcade/internal/client/display"
	"arcade/internal/server/game"
)

// Session is the client state commands read and update
type Session interface {
	GetAPIBaseURL() string
	SetAPIBaseURL(string)
	GetClient() *api.Client
	GetPlayerID() string
	Login(playerID, token string)
	Logout()
	GetCurrentGame() string
	SetCurrentGame(*game.Game)
	Observe(*game.Game)
	GetState() *game.Game
	IsVerbose() bool
}

// Command defines a client command with its handler
type Command struct {
	Name        string
	ShortName   string
	Description string
	Usage       string
	Handler     func(Session, []string) error
}

// Registry manages command registration and execution
type Registry struct {
	session  Session
	commands map[string]*Command
	// exit is swapped in tests
	exit func(int)
}

func NewRegistry(session Session) *Registry {
	r := &Registry{
		session:  session,
		commands: make(map[string]*Command),
		exit:     os.Exit,
	}

	r.registerGameCommands()
	r.registerAuthCommands()
	r.registerDebugCommands()

	r.Register(&Command{
		Name:        "help",
		ShortName:   "?",
		Description: "Show available commands",
		Usage:       "help [command]",
		Handler:     r.helpHandler,
	})

	r.Register(&Command{
		Name:        "exit",
		ShortName:   "x",
		Description: "Exit the client",
		Usage:       "exit",
		Handler: func(Session, []string) error {
			fmt.Printf("%sGoodbye!%s\n", display.Cyan, display.Reset)
			r.exit(0)
			return nil
		},
	})

	return r
}

func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	if cmd.ShortName != "" {
		r.commands[cmd.ShortName] = cmd
	}
}

// Execute runs one input line and reports whether it named a known command
func (r *Registry) Execute(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}

	cmd, exists := r.commands[parts[0]]
	if !exists {
		fmt.Printf("%sUnknown command: %s%s\n", display.Red, parts[0], display.Reset)
		fmt.Printf("Type 'help' for available commands\n")
		return false
	}

	r.session.GetClient().SetVerbose(r.session.IsVerbose())

	if err := cmd.Handler(r.session, parts[1:]); err != nil {
		fmt.Printf("%sError: %s%s\n", display.Red, err.Error(), display.Reset)
	}
	return true
}

func (r *Registry) helpHandler(s Session, args []string) error {
	if len(args) > 0 {
		cmd, exists := r.commands[args[0]]
		if !exists {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		fmt.Printf("\n%s%s%s - %s\n", display.Cyan, cmd.Name, display.Reset, cmd.Description)
		if cmd.ShortName != "" {
			fmt.Printf("Short form: %s%s%s\n", display.Cyan, cmd.ShortName, display.Reset)
		}
		fmt.Printf("Usage: %s\n", cmd.Usage)
		return nil
	}

	fmt.Printf("\n%sAvailable Commands:%s\n\n", display.Cyan, display.Reset)

	groups := []struct {
		title string
		names []string
	}{
		{"Game Commands", []string{"invite", "accept", "decline", "use", "move", "show", "board", "state", "moves", "list", "wait", "watch", "stats"}},
		{"Auth Commands", []string{"login", "logout", "whoami"}},
		{"Utility Commands", []string{"health", "url", "raw", "clear", "help", "exit"}},
	}

	for i, g := range groups {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s%s:%s\n", display.Yellow, g.title, display.Reset)
		for _, name := range g.names {
			cmd, exists := r.commands[name]
			if !exists {
				continue
			}
			shortPart := "    "
			if cmd.ShortName != "" {
				shortPart = fmt.Sprintf("[%s%s%s] ", display.Cyan, cmd.ShortName, display.Reset)
			}
			fmt.Printf("  %s%-10s %s\n", shortPart, cmd.Name, cmd.Description)
		}
	}

	fmt.Printf("\nType 'help <command>' for detailed usage\n")
	fmt.Printf("Add '-v' to any command for verbose output\n")
	return nil
}
