// Package bridge turns game table change events into refreshed views for
// one player. It only reads; moves are never applied here.
package bridge

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/game"
	"arcade/internal/server/realtime"
)

const fetchTimeout = 5 * time.Second

// Fetcher reads current state; the event payload is never trusted
type Fetcher interface {
	GetGame(ctx context.Context, gameID string) (*game.Game, error)
	ListGames(ctx context.Context, playerID string) ([]*game.Game, error)
}

// View receives refreshed state
type View interface {
	GameChanged(g *game.Game)
	GamesChanged(games []*game.Game)
}

type Options struct {
	// RefreshList also re-reads the player's full list on every relevant change
	RefreshList bool
}

// rowRef is the part of an event row used to decide relevance
type rowRef struct {
	ID      string  `json:"id"`
	PlayerA string  `json:"playerA"`
	PlayerB *string `json:"playerB"`
}

func (r rowRef) involves(playerID string) bool {
	return r.PlayerA == playerID || (r.PlayerB != nil && *r.PlayerB == playerID)
}

// Bridge is one player's subscription. Close releases it.
type Bridge struct {
	playerID string
	fetcher  Fetcher
	view     View
	opts     Options
	sub      *realtime.Subscription
}

// Open subscribes to the games table on behalf of playerID
func Open(ch realtime.Channel, fetcher Fetcher, playerID string, view View, opts Options) (*Bridge, error) {
	b := &Bridge{
		playerID: playerID,
		fetcher:  fetcher,
		view:     view,
		opts:     opts,
	}
	sub, err := ch.Subscribe(core.GamesTable, b.onChange)
	if err != nil {
		return nil, err
	}
	b.sub = sub
	return b, nil
}

func (b *Bridge) onChange(c realtime.Change) {
	if c.Type == core.ChangeResync {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		b.Refresh(ctx)
		return
	}
	if c.Type != core.ChangeInsert && c.Type != core.ChangeUpdate {
		return
	}
	var ref rowRef
	if err := json.Unmarshal(c.Row, &ref); err != nil {
		log.Printf("Bridge: ignoring unreadable %s row: %v", c.Type, err)
		return
	}
	if ref.ID == "" || !ref.involves(b.playerID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	g, err := b.fetcher.GetGame(ctx, ref.ID)
	if err != nil {
		log.Printf("Bridge: re-fetch of game %s failed: %v", ref.ID, err)
		return
	}
	b.view.GameChanged(g)

	if b.opts.RefreshList {
		b.Refresh(ctx)
	}
}

// Refresh re-reads the player's list and hands it to the view
func (b *Bridge) Refresh(ctx context.Context) {
	games, err := b.fetcher.ListGames(ctx, b.playerID)
	if err != nil {
		log.Printf("Bridge: list refresh for %s failed: %v", b.playerID, err)
		return
	}
	b.view.GamesChanged(games)
}

func (b *Bridge) Close() {
	b.sub.Close()
}
