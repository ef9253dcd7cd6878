// Package service is the game state machine: invitations, moves and the
// reads the API needs. Every write is a compare-and-swap on updated_at.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/realtime"
	"arcade/internal/server/storage"
)

const (
	DefaultMoveRetryLimit = 3
	DefaultSweepInterval  = time.Minute
)

type Config struct {
	// MoveRetryLimit bounds how many times SubmitMove re-reads and retries
	// after losing a race
	MoveRetryLimit int
	// InviteTTL expires pending invitations; zero keeps them forever
	InviteTTL     time.Duration
	SweepInterval time.Duration
	// Rand deals memory_match decks; nil uses the global source
	Rand *rand.Rand
	Now  func() time.Time
}

// Service coordinates game rules, storage and change propagation
type Service struct {
	store     storage.GameStore
	channel   realtime.Channel
	waiter    *WaitRegistry
	sub       *realtime.Subscription
	scheduler gocron.Scheduler
	cfg       Config
	tracer    trace.Tracer
	randMu    sync.Mutex
}

// New wires the service to a store and a change channel. The service
// subscribes to its own channel so long-poll waiters wake on writes made by
// any instance.
func New(store storage.GameStore, channel realtime.Channel, cfg Config) (*Service, error) {
	if cfg.MoveRetryLimit <= 0 {
		cfg.MoveRetryLimit = DefaultMoveRetryLimit
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Service{
		store:   store,
		channel: channel,
		waiter:  NewWaitRegistry(),
		cfg:     cfg,
		tracer:  otel.Tracer("arcade/service"),
	}

	sub, err := channel.Subscribe(core.GamesTable, s.onChange)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to game changes: %w", err)
	}
	s.sub = sub

	if cfg.InviteTTL > 0 {
		if err := s.startExpiry(); err != nil {
			sub.Close()
			return nil, err
		}
	}

	return s, nil
}

// onChange feeds the wait registry from the change channel
func (s *Service) onChange(c realtime.Change) {
	switch c.Type {
	case core.ChangeDelete:
		return
	case core.ChangeResync:
		s.waiter.NotifyAll()
		return
	}
	var ref struct {
		ID        string    `json:"id"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(c.Row, &ref); err != nil || ref.ID == "" {
		return
	}
	s.waiter.NotifyGame(ref.ID, ref.UpdatedAt)
}

// startSpan opens a span for a state machine operation
func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "service."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, core.CodeOf(err))
	}
	span.End()
}

func (s *Service) now() time.Time {
	return s.cfg.Now().UTC().Truncate(time.Microsecond)
}

func (s *Service) newBoard(r game.Rules) game.Board {
	if s.cfg.Rand == nil {
		return r.NewBoard(nil)
	}
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return r.NewBoard(s.cfg.Rand)
}

// load reads a game, translating the store's not-found
func (s *Service) load(ctx context.Context, gameID string) (*game.Game, error) {
	g, err := s.store.GetGame(ctx, gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, gameID)
	}
	return g, err
}

// commit writes next over current with the compare-and-swap and announces
// the change. Zero rows written means another writer got there first.
func (s *Service) commit(ctx context.Context, current, next *game.Game) error {
	next.UpdatedAt = storage.Stamp(current.UpdatedAt, s.cfg.Now())

	n, err := s.store.UpdateGameWhere(ctx, current.ID, current.UpdatedAt, next)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: game %s", core.ErrStale, current.ID)
	}

	s.publish(ctx, core.ChangeUpdate, next)
	return nil
}

func (s *Service) publish(ctx context.Context, typ core.ChangeType, g *game.Game) {
	c, err := realtime.NewChange(core.GamesTable, typ, g)
	if err == nil {
		err = s.channel.Publish(ctx, c)
	}
	if err != nil {
		log.Printf("Realtime publish of game %s failed: %v", g.ID, err)
	}
}

// retryStale runs op until it stops failing with a stale token, at most
// MoveRetryLimit times
func (s *Service) retryStale(op func() error) error {
	var err error
	for attempt := 0; attempt < s.cfg.MoveRetryLimit; attempt++ {
		if err = op(); !errors.Is(err, core.ErrStale) {
			return err
		}
	}
	return fmt.Errorf("%w, try again", err)
}

// GetGame returns the current row
func (s *Service) GetGame(ctx context.Context, gameID string) (*game.Game, error) {
	return s.load(ctx, gameID)
}

// ListGames returns the player's games, most recently changed first
func (s *Service) ListGames(ctx context.Context, playerID string) ([]*game.Game, error) {
	return s.store.ListGamesByPlayer(ctx, playerID)
}

// FilterByStatus keeps games whose status is one of statuses; no statuses
// keeps everything
func FilterByStatus(games []*game.Game, statuses ...core.Status) []*game.Game {
	if len(statuses) == 0 {
		return games
	}
	out := make([]*game.Game, 0, len(games))
	for _, g := range games {
		for _, st := range statuses {
			if g.Status == st {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// Moves returns the recorded history of a game
func (s *Service) Moves(ctx context.Context, gameID string) ([]storage.MoveRecord, error) {
	if _, err := s.load(ctx, gameID); err != nil {
		return nil, err
	}
	return s.store.ListMoves(ctx, gameID)
}

// RegisterWait parks a caller until gameID's updated_at moves past since
func (s *Service) RegisterWait(ctx context.Context, gameID string, since time.Time) <-chan struct{} {
	return s.waiter.RegisterWait(ctx, gameID, since)
}

// Draining reports whether long-poll waiters are being released for shutdown
func (s *Service) Draining() bool {
	return s.waiter.Draining()
}

// Channel exposes the change feed for bridges
func (s *Service) Channel() realtime.Channel {
	return s.channel
}

// GetStorageHealth returns the storage component status
func (s *Service) GetStorageHealth() string {
	if s.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// GetRealtimeHealth returns the change channel status
func (s *Service) GetRealtimeHealth(ctx context.Context) string {
	p, ok := s.channel.(interface{ Ping(context.Context) error })
	if !ok {
		return "local"
	}
	if err := p.Ping(ctx); err != nil {
		return "degraded"
	}
	return "ok"
}

// Shutdown stops background work and closes the store and channel
func (s *Service) Shutdown(timeout time.Duration) error {
	var errs []error

	if err := s.waiter.Shutdown(timeout); err != nil {
		errs = append(errs, fmt.Errorf("wait registry: %w", err))
	}

	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
	}

	s.sub.Close()

	if err := s.channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("realtime: %w", err))
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}

	return errors.Join(errs...)
}
