package analytics

import (
	"context"
	"fmt"

	"talentmarket-engine/internal/domain"
)

const (
	PageSize = 1000
	MaxPages = 20 // 20,000-row ceiling per deep fetch
)

// JobSource is the paginated read the data store offers over job_posts.
type JobSource interface {
	JobPage(ctx context.Context, q domain.JobQuery, offset, limit int) ([]domain.JobPosting, error)
}

type FetchStats struct {
	Pages  int  // page requests issued
	Capped bool // stopped by MaxPages rather than a short page
}

// DeepFetch pulls every row matching q, one page at a time, until a page
// comes back short or MaxPages is reached. Any page error fails the whole
// fetch.
func DeepFetch(ctx context.Context, src JobSource, q domain.JobQuery) ([]domain.JobPosting, FetchStats, error) {
	var (
		out   []domain.JobPosting
		stats FetchStats
	)
	hasMore := true
	for page := 0; hasMore; page++ {
		if page == MaxPages {
			stats.Capped = true
			break
		}
		rows, err := src.JobPage(ctx, q, page*PageSize, PageSize)
		stats.Pages++
		if err != nil {
			return nil, stats, fmt.Errorf("deep fetch page %d: %w", page, err)
		}
		out = append(out, rows...)
		hasMore = len(rows) == PageSize
	}
	return out, stats, nil
}
