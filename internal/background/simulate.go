package background

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/five82/tabtime/internal/tracker"
)

// DefaultSites is the browsing mix the simulator draws from.
var DefaultSites = []string{
	"github.com",
	"docs.google.com",
	"news.ycombinator.com",
	"stackoverflow.com",
	"youtube.com",
	"reddit.com",
	"mail.google.com",
	"wikipedia.org",
}

// Simulate advances simulated browsing every tick until ctx is cancelled:
// each tick credits the active site, occasionally switches tabs and pushes
// STATS_UPDATED. Landing on a blocked site pushes OVERRIDE_DATA_UPDATED.
func (s *Server) Simulate(ctx context.Context, every time.Duration, sites []string) {
	if every <= 0 || len(sites) == 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	current := sites[0]
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if rand.IntN(4) == 0 {
			current = sites[rand.IntN(len(sites))]
		}
		if s.state.Visit(current, every) {
			s.Publish(tracker.PushOverrideDataUpdated, nil)
		}
		stats := s.state.Stats()
		s.Publish(tracker.PushStatsUpdated, stats)
	}
}
