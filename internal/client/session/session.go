// Package session holds the interactive client's state between commands
package session

import (
	"arcade/internal/client/api"
	"arcade/internal/server/game"
)

type Session struct {
	APIBaseURL  string
	Client      *api.Client
	PlayerID    string
	CurrentGame string
	// State is the last version of CurrentGame the client saw
	State   *game.Game
	Verbose bool
}

func New(apiURL, streamURL string) *Session {
	return &Session{
		APIBaseURL: apiURL,
		Client:     api.New(apiURL, streamURL),
	}
}

func (s *Session) GetAPIBaseURL() string { return s.APIBaseURL }

func (s *Session) SetAPIBaseURL(u string) {
	s.APIBaseURL = u
	s.Client.SetBaseURL(u)
}

func (s *Session) GetClient() *api.Client { return s.Client }

func (s *Session) GetPlayerID() string { return s.PlayerID }

// Login stores the player's identity and bearer token
func (s *Session) Login(playerID, token string) {
	s.PlayerID = playerID
	s.Client.SetToken(token)
}

func (s *Session) Logout() {
	s.PlayerID = ""
	s.Client.SetToken("")
	s.SetCurrentGame(nil)
}

func (s *Session) GetCurrentGame() string { return s.CurrentGame }

// SetCurrentGame makes g current; nil clears it
func (s *Session) SetCurrentGame(g *game.Game) {
	if g == nil {
		s.CurrentGame = ""
		s.State = nil
		return
	}
	s.CurrentGame = g.ID
	s.State = g
}

// Observe records g when it is the current game
func (s *Session) Observe(g *game.Game) {
	if g != nil && g.ID == s.CurrentGame {
		s.State = g
	}
}

func (s *Session) GetState() *game.Game { return s.State }

func (s *Session) IsVerbose() bool { return s.Verbose }
