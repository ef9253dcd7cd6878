package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"arcade/internal/server/core"
)

const sweepTimeout = 30 * time.Second

func (s *Service) startExpiry() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.cfg.SweepInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			defer cancel()
			if n, err := s.ExpireInvites(ctx); err != nil {
				log.Printf("Invite expiry failed: %v", err)
			} else if n > 0 {
				log.Printf("Invite expiry: declined %d stale invitations", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		scheduler.Shutdown()
		return fmt.Errorf("failed to schedule invite expiry: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	log.Printf("Invite expiry enabled: ttl %s, sweep every %s", s.cfg.InviteTTL, s.cfg.SweepInterval)
	return nil
}

// ExpireInvites declines pending invitations older than the configured TTL
// and returns how many it declined. Invitations accepted or declined while
// the sweep runs are left alone.
func (s *Service) ExpireInvites(ctx context.Context) (int, error) {
	if s.cfg.InviteTTL <= 0 {
		return 0, nil
	}

	stale, err := s.store.ListPendingBefore(ctx, s.cfg.Now().Add(-s.cfg.InviteTTL))
	if err != nil {
		return 0, err
	}

	declined := 0
	for _, g := range stale {
		next := g.Clone()
		next.Status = core.StatusDeclined
		next.CurrentTurn = ""
		err := s.commit(ctx, g, next)
		switch {
		case err == nil:
			declined++
		case errors.Is(err, core.ErrStale):
		default:
			return declined, err
		}
	}
	return declined, nil
}
