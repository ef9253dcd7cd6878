// Package realtime is the change feed between the store writers and
// everything that reacts to game changes. A Change names the table, the
// kind of write and the row as JSON.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"arcade/internal/server/core"
)

type Change struct {
	Table string          `json:"table"`
	Type  core.ChangeType `json:"type"`
	Row   json.RawMessage `json:"row"`
}

// Handler receives changes for one subscription, one at a time
type Handler func(Change)

type Channel interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(table string, fn Handler) (*Subscription, error)
	Close() error
}

// Subscription is an open feed. Close releases it; it must not be called
// from inside the subscription's own handler.
type Subscription struct {
	once  sync.Once
	close func()
}

func newSubscription(close func()) *Subscription {
	return &Subscription{close: close}
}

// Close stops delivery and waits for an in-flight handler call to return
func (s *Subscription) Close() {
	s.once.Do(s.close)
}

// NewChange marshals row into a change for table
func NewChange(table string, typ core.ChangeType, row any) (Change, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return Change{}, err
	}
	return Change{Table: table, Type: typ, Row: data}, nil
}
