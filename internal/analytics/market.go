package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"talentmarket-engine/internal/domain"
)

type TopPlayersParams struct {
	Range    string
	Category string
	Location string
}

type TopPlayersResult struct {
	Window        string   `json:"window"`
	Players       []Player `json:"players"`
	TotalAnalyzed int      `json:"totalAnalyzed"`
}

// Market serves the company leaderboard.
type Market struct {
	Jobs JobSource
	Now  func() time.Time
}

func (m Market) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// TopPlayers deep-fetches the requested window and then the equal-length
// window before it, one page at a time, and ranks companies in the former with growth against the
// latter.
func (m Market) TopPlayers(ctx context.Context, p TopPlayersParams) (TopPlayersResult, error) {
	now := m.now()
	w := ResolveWindow(p.Range, now)
	prior := w.Prior(now)

	q := domain.JobQuery{
		Since:    w.Start,
		Until:    w.End,
		Category: filterParam(p.Category),
		Location: filterParam(p.Location),
	}
	pq := q
	pq.Since, pq.Until = prior.Start, prior.End

	current, stats, err := DeepFetch(ctx, m.Jobs, q)
	if err != nil {
		return TopPlayersResult{}, err
	}
	if stats.Capped {
		log.Warn().Str("window", w.Label).Int("rows", len(current)).Msg("top players: deep fetch capped")
	}
	previous, _, err := DeepFetch(ctx, m.Jobs, pq)
	if err != nil {
		return TopPlayersResult{}, fmt.Errorf("prior window: %w", err)
	}

	return TopPlayersResult{
		Window:        w.Label,
		Players:       BuildLeaderboard(current, VolumeByKey(previous)),
		TotalAnalyzed: len(current),
	}, nil
}

// filterParam treats "" and "all" as no filter.
func filterParam(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}
