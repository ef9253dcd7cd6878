package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// WaitTimeout is the maximum time a client can wait for a change
const WaitTimeout = 25 * time.Second

// WaitRegistry manages long-polling clients waiting for game changes
type WaitRegistry struct {
	mu       sync.Mutex
	waiters  map[string][]*WaitRequest // gameID → waiting clients
	shutdown chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	timeout  time.Duration
}

// WaitRequest is a single client waiting for a game to move past Since
type WaitRequest struct {
	GameID string
	Since  time.Time
	Notify chan struct{} // closed on change, timeout, disconnect or shutdown
	timer  *time.Timer
	fired  sync.Once
}

func (r *WaitRequest) fire() {
	r.fired.Do(func() { close(r.Notify) })
}

func NewWaitRegistry() *WaitRegistry {
	return &WaitRegistry{
		waiters:  make(map[string][]*WaitRequest),
		shutdown: make(chan struct{}),
		timeout:  WaitTimeout,
	}
}

// RegisterWait returns a channel that is closed once gameID moves to an
// updated_at later than since, the wait times out, ctx ends or the
// registry shuts down
func (w *WaitRegistry) RegisterWait(ctx context.Context, gameID string, since time.Time) <-chan struct{} {
	req := &WaitRequest{
		GameID: gameID,
		Since:  since,
		Notify: make(chan struct{}),
	}

	select {
	case <-w.shutdown:
		req.fire()
		return req.Notify
	default:
	}

	w.mu.Lock()
	w.waiters[gameID] = append(w.waiters[gameID], req)
	req.timer = time.AfterFunc(w.timeout, req.fire)
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case <-ctx.Done():
		case <-req.Notify:
		case <-w.shutdown:
		}
		req.fire()
		w.removeWaiter(req)
	}()

	return req.Notify
}

// NotifyGame wakes waiters on gameID whose known version is older than
// updatedAt. Late events for older versions leave newer waiters parked.
func (w *WaitRegistry) NotifyGame(gameID string, updatedAt time.Time) {
	w.mu.Lock()
	waitList := append([]*WaitRequest(nil), w.waiters[gameID]...)
	w.mu.Unlock()

	for _, req := range waitList {
		if updatedAt.After(req.Since) {
			req.fire()
		}
	}
}

// NotifyAll wakes every waiter after the change feed dropped events.
// Callers re-check the game and park again if it has not moved.
func (w *WaitRegistry) NotifyAll() {
	w.mu.Lock()
	var all []*WaitRequest
	for _, waitList := range w.waiters {
		all = append(all, waitList...)
	}
	w.mu.Unlock()

	for _, req := range all {
		req.fire()
	}
}

// Draining reports whether Shutdown has started
func (w *WaitRegistry) Draining() bool {
	select {
	case <-w.shutdown:
		return true
	default:
		return false
	}
}

// Waiting reports how many clients are parked on gameID
func (w *WaitRegistry) Waiting(gameID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waiters[gameID])
}

// Shutdown releases every waiter and waits for their goroutines
func (w *WaitRegistry) Shutdown(timeout time.Duration) error {
	w.once.Do(func() { close(w.shutdown) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("wait registry shutdown timed out")
	}
}

func (w *WaitRegistry) removeWaiter(req *WaitRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()

	req.timer.Stop()

	waitList := w.waiters[req.GameID]
	for i, waiter := range waitList {
		if waiter == req {
			w.waiters[req.GameID] = append(waitList[:i], waitList[i+1:]...)
			break
		}
	}

	if len(w.waiters[req.GameID]) == 0 {
		delete(w.waiters, req.GameID)
	}
}
