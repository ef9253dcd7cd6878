// Package stream pushes a player's game updates over a websocket. Each
// connection owns a bridge subscription; the client never sends moves here.
package stream

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"arcade/internal/server/bridge"
	"arcade/internal/server/game"
	"arcade/internal/server/realtime"
)

const (
	defaultWriteTimeout = 5 * time.Second
	outboxSize          = 16
)

// Message types
const (
	TypeGames = "games"
	TypeGame  = "game"
)

// Message is the only frame the server writes
type Message struct {
	Type  string       `json:"type"`
	Game  *game.Game   `json:"game,omitempty"`
	Games []*game.Game `json:"games,omitempty"`
}

type Config struct {
	// Validate resolves a bearer token to a player id
	Validate       func(token string) (string, map[string]any, error)
	OriginPatterns []string
	WriteTimeout   time.Duration
}

// Server upgrades authenticated requests and streams refreshed state
type Server struct {
	channel realtime.Channel
	fetcher bridge.Fetcher
	cfg     Config

	mu      sync.Mutex // guards closing and wg.Add against Close
	closing bool
	quit    chan struct{}
	active  atomic.Int64
	wg      sync.WaitGroup
}

func NewServer(channel realtime.Channel, fetcher bridge.Fetcher, cfg Config) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Server{
		channel: channel,
		fetcher: fetcher,
		cfg:     cfg,
		quit:    make(chan struct{}),
	}
}

// connView queues bridge callbacks for the connection's writer. A full
// outbox marks the client as too slow instead of blocking the channel.
type connView struct {
	out      chan Message
	overflow chan struct{}
	once     sync.Once
}

func newConnView() *connView {
	return &connView{
		out:      make(chan Message, outboxSize),
		overflow: make(chan struct{}),
	}
}

func (v *connView) send(m Message) {
	select {
	case v.out <- m:
	default:
		v.once.Do(func() { close(v.overflow) })
	}
}

func (v *connView) GameChanged(g *game.Game) {
	v.send(Message{Type: TypeGame, Game: g})
}

func (v *connView) GamesChanged(games []*game.Game) {
	v.send(Message{Type: TypeGames, Games: games})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}
	userID, _, err := s.cfg.Validate(token)
	if err != nil || userID == "" {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	if !s.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		log.Printf("Stream: upgrade for %s failed: %v", userID, err)
		return
	}

	s.active.Add(1)
	defer s.active.Add(-1)

	s.serve(r.Context(), conn, userID)
}

// track counts a new connection unless Close has started
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) serve(parent context.Context, conn *websocket.Conn, userID string) {
	// Incoming frames are discarded; ctx ends when the client goes away
	ctx := conn.CloseRead(parent)

	view := newConnView()
	b, err := bridge.Open(s.channel, s.fetcher, userID, view, bridge.Options{RefreshList: true})
	if err != nil {
		log.Printf("Stream: subscribe for %s failed: %v", userID, err)
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer b.Close()

	b.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-s.quit:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-view.overflow:
			conn.Close(websocket.StatusPolicyViolation, "client too slow")
			return
		case m := <-view.out:
			wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err := wsjson.Write(wctx, conn, m)
			cancel()
			if err != nil {
				log.Printf("Stream: write to %s failed: %v", userID, err)
				conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// Active returns the number of open connections
func (s *Server) Active() int {
	return int(s.active.Load())
}

// Close ends every open connection and waits for them to finish
func (s *Server) Close(timeout time.Duration) error {
	s.mu.Lock()
	if !s.closing {
		s.closing = true
		close(s.quit)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
