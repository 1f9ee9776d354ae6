package intel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"talentmarket-engine/internal/analytics"
	"talentmarket-engine/internal/domain"
	"talentmarket-engine/internal/store"
)

type Store interface {
	GetCompanyIntel(ctx context.Context, key string) (domain.CompanyIntel, error)
	UpsertCompanyIntel(ctx context.Context, ci domain.CompanyIntel) error
}

type Service struct {
	Store   Store
	Fetcher *Fetcher
	TTL     time.Duration
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns intelligence for company, keyed by its normalized name. A
// cached row younger than TTL is returned as is; otherwise the news page is
// fetched and the cache row replaced. With no news source configured a stale
// row is still returned.
func (s *Service) Get(ctx context.Context, company string) (domain.CompanyIntel, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return domain.CompanyIntel{}, errors.New("company name is required")
	}
	key := analytics.NormalizeCompany(company)
	now := s.now()

	cached, err := s.Store.GetCompanyIntel(ctx, key)
	found := err == nil
	switch {
	case found:
		if now.Sub(cached.FetchedAt) < s.TTL {
			return cached, nil
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return domain.CompanyIntel{}, fmt.Errorf("read intel cache: %w", err)
	}

	headlines, src, err := s.Fetcher.Headlines(ctx, company)
	if errors.Is(err, ErrNoSource) && found {
		return cached, nil
	}
	if err != nil {
		return domain.CompanyIntel{}, err
	}
	ci := domain.CompanyIntel{
		CompanyKey:  key,
		DisplayName: company,
		SourceURL:   src,
		Headlines:   headlines,
		FetchedAt:   now,
	}
	if err := s.Store.UpsertCompanyIntel(ctx, ci); err != nil {
		return domain.CompanyIntel{}, fmt.Errorf("store intel: %w", err)
	}
	log.Debug().Str("company", key).Int("headlines", len(headlines)).Msg("intel refreshed")
	return ci, nil
}

// Cached returns whatever is stored for company without fetching. Missing
// rows yield an empty value.
func (s *Service) Cached(ctx context.Context, company string) (domain.CompanyIntel, error) {
	ci, err := s.Store.GetCompanyIntel(ctx, analytics.NormalizeCompany(company))
	if errors.Is(err, store.ErrNotFound) {
		return domain.CompanyIntel{}, nil
	}
	return ci, err
}
