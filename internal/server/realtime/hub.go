package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"arcade/internal/server/core"
)

const subscriberBuffer = 64

type subscriber struct {
	ch       chan Change
	lagged   atomic.Bool
	kick     chan struct{} // cap 1; set after lagged
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// drop records a change the subscriber had no room for
func (s *subscriber) drop() {
	s.lagged.Store(true)
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.done
}

// Hub is the in-process channel. Every subscriber has its own delivery
// goroutine so a slow handler only delays itself. A subscriber whose buffer
// is full loses the change and later receives one ChangeResync instead.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]*subscriber
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]*subscriber)}
}

// Publish hands c to every current subscriber of its table without
// waiting on any of them
func (h *Hub) Publish(ctx context.Context, c Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs[c.Table]))
	for _, s := range h.subs[c.Table] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.ch <- c:
		case <-s.quit:
		default:
			s.drop()
		}
	}
	return nil
}

func (h *Hub) Subscribe(table string, fn Handler) (*Subscription, error) {
	s := &subscriber{
		ch:   make(chan Change, subscriberBuffer),
		kick: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.done)
		return newSubscription(s.stop), nil
	}
	h.nextID++
	id := h.nextID
	if h.subs[table] == nil {
		h.subs[table] = make(map[uint64]*subscriber)
	}
	h.subs[table][id] = s
	h.mu.Unlock()

	go func() {
		defer close(s.done)
		for {
			select {
			case c := <-s.ch:
				fn(c)
			case <-s.kick:
				// buffered changes go out before the resync
			drain:
				for {
					select {
					case c := <-s.ch:
						fn(c)
					default:
						break drain
					}
				}
				if s.lagged.Swap(false) {
					fn(Change{Table: table, Type: core.ChangeResync})
				}
			case <-s.quit:
				return
			}
		}
	}()

	return newSubscription(func() {
		h.mu.Lock()
		delete(h.subs[table], id)
		if len(h.subs[table]) == 0 {
			delete(h.subs, table)
		}
		h.mu.Unlock()
		s.stop()
	}), nil
}

// Subscribers reports how many feeds are open on table
func (h *Hub) Subscribers(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

// Close drops every subscriber
func (h *Hub) Close() error {
	h.mu.Lock()
	var all []*subscriber
	for _, m := range h.subs {
		for _, s := range m {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[uint64]*subscriber)
	h.closed = true
	h.mu.Unlock()

	for _, s := range all {
		s.stop()
	}
	return nil
}
