package service

import (
	"context"

	"arcade/internal/server/core"
)

// Stats tallies a player's results per game type
func (s *Service) Stats(ctx context.Context, playerID string) (*core.StatsResponse, error) {
	games, err := s.store.ListGamesByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}

	resp := &core.StatsResponse{
		PlayerID: playerID,
		ByType:   make(map[core.GameType]core.TypeStats),
	}
	for _, g := range games {
		st := resp.ByType[g.Type]
		switch g.Status {
		case core.StatusCompleted:
			if g.Winner == playerID {
				st.Wins++
			} else {
				st.Losses++
			}
		case core.StatusDraw:
			st.Draws++
		case core.StatusActive:
			st.Active++
		case core.StatusPending:
			st.Pending++
		}
		resp.ByType[g.Type] = st
	}
	return resp, nil
}
