// Package main implements an interactive client for the arcade server API
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"arcade/internal/client/commands"
	"arcade/internal/client/display"
	"arcade/internal/client/session"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "API base URL")
	streamURL := flag.String("stream", "ws://localhost:8081/ws", "Websocket stream URL")
	player := flag.String("player", "", "Player ID to log in as (token read from ARCADE_TOKEN)")
	flag.Parse()

	s := session.New(*apiURL, *streamURL)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          display.Prompt("arcade"),
		HistoryFile:     ".arcade_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("%s%s%s\n", display.Red, err.Error(), display.Reset)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("%sArcade Client%s\n", display.Cyan, display.Reset)
	fmt.Printf("%sAPI: %s%s\n", display.Cyan, s.APIBaseURL, display.Reset)
	fmt.Printf("Type 'help' for commands\n\n")

	registry := commands.NewRegistry(s)

	if token := os.Getenv("ARCADE_TOKEN"); *player != "" && token != "" {
		registry.Execute("login " + *player + " " + token)
	}

	for {
		rl.SetPrompt(buildPrompt(s))

		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" || line == "x" {
			break
		}

		if strings.HasSuffix(line, " -v") {
			s.Verbose = true
			line = strings.TrimSuffix(line, " -v")
		} else {
			s.Verbose = false
		}

		registry.Execute(line)
	}
}

func buildPrompt(s *session.Session) string {
	var parts []string
	if s.PlayerID != "" {
		parts = append(parts, display.Magenta+s.PlayerID+display.Reset)
	}
	if s.CurrentGame != "" {
		parts = append(parts, display.White+display.ShortID(s.CurrentGame)+display.Reset)
	}

	promptStr := "arcade"
	if len(parts) > 0 {
		promptStr += display.Yellow + " [" + display.Reset +
			strings.Join(parts, display.Yellow+" - "+display.Reset) +
			display.Yellow + "]"
	}

	if st := s.State; st != nil {
		promptStr += fmt.Sprintf(" %s", display.ColorForStatus(string(st.Status)))
		if st.CurrentTurn != "" {
			promptStr += " turn:" + display.ColorForTurn(st.CurrentTurn, s.PlayerID)
		}
	}

	return display.Prompt(promptStr)
}
