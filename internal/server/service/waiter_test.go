package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedWithin(ch <-chan struct{}, d time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

func TestWaitRegistryVersionFilter(t *testing.T) {
	w := NewWaitRegistry()
	defer w.Shutdown(time.Second)

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ch := w.RegisterWait(context.Background(), "g1", since)
	assert.Equal(t, 1, w.Waiting("g1"))

	w.NotifyGame("g1", since)
	w.NotifyGame("g2", since.Add(time.Second))
	assert.False(t, closedWithin(ch, 20*time.Millisecond))

	w.NotifyGame("g1", since.Add(time.Microsecond))
	assert.True(t, closedWithin(ch, time.Second))
	require.Eventually(t, func() bool { return w.Waiting("g1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestWaitRegistryIgnoresLateOlderEvents(t *testing.T) {
	w := NewWaitRegistry()
	defer w.Shutdown(time.Second)

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)
	ch := w.RegisterWait(context.Background(), "g1", t2)

	// an INSERT or UPDATE for t1 delivered after the waiter saw t2
	w.NotifyGame("g1", t1)
	assert.False(t, closedWithin(ch, 20*time.Millisecond))
	assert.Equal(t, 1, w.Waiting("g1"))

	w.NotifyGame("g1", t2.Add(time.Microsecond))
	assert.True(t, closedWithin(ch, time.Second))
}

func TestWaitRegistryDraining(t *testing.T) {
	w := NewWaitRegistry()
	assert.False(t, w.Draining())
	require.NoError(t, w.Shutdown(time.Second))
	assert.True(t, w.Draining())
}

func TestWaitRegistryTimeoutAndCancel(t *testing.T) {
	w := NewWaitRegistry()
	w.timeout = 20 * time.Millisecond
	defer w.Shutdown(time.Second)

	assert.True(t, closedWithin(w.RegisterWait(context.Background(), "g1", time.Time{}), time.Second))

	w.timeout = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	ch := w.RegisterWait(ctx, "g1", time.Time{})
	cancel()
	assert.True(t, closedWithin(ch, time.Second))
}

func TestWaitRegistryShutdown(t *testing.T) {
	w := NewWaitRegistry()
	ch := w.RegisterWait(context.Background(), "g1", time.Time{})

	require.NoError(t, w.Shutdown(time.Second))
	assert.True(t, closedWithin(ch, time.Second))

	// registering after shutdown returns immediately
	assert.True(t, closedWithin(w.RegisterWait(context.Background(), "g2", time.Time{}), time.Second))
	assert.NoError(t, w.Shutdown(time.Second))
}

func TestWaitRegistryNotifyAll(t *testing.T) {
	w := NewWaitRegistry()
	defer w.Shutdown(time.Second)

	a := w.RegisterWait(context.Background(), "g1", time.Time{})
	b := w.RegisterWait(context.Background(), "g2", time.Time{})
	w.NotifyAll()
	assert.True(t, closedWithin(a, time.Second))
	assert.True(t, closedWithin(b, time.Second))
}
