package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"talentmarket-engine/internal/domain"
)

// GetCompanyIntel returns the cached row for a normalized company key.
func (d *DB) GetCompanyIntel(ctx context.Context, key string) (domain.CompanyIntel, error) {
	var (
		ci            domain.CompanyIntel
		headlinesJSON string
		fetchedStr    string
	)
	err := d.Pool.QueryRowContext(ctx, `
SELECT company_key, display_name, source_url, headlines, fetched_at
FROM company_intelligence WHERE company_key = ? LIMIT 1;`, key,
	).Scan(&ci.CompanyKey, &ci.DisplayName, &ci.SourceURL, &headlinesJSON, &fetchedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CompanyIntel{}, ErrNotFound
	}
	if err != nil {
		return domain.CompanyIntel{}, err
	}
	_ = json.Unmarshal([]byte(headlinesJSON), &ci.Headlines)
	ci.FetchedAt = parseTime(fetchedStr)
	return ci, nil
}

func (d *DB) UpsertCompanyIntel(ctx context.Context, ci domain.CompanyIntel) error {
	hb, _ := json.Marshal(nonNil(ci.Headlines))
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO company_intelligence (company_key, display_name, source_url, headlines, fetched_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(company_key) DO UPDATE SET
  display_name = excluded.display_name,
  source_url = excluded.source_url,
  headlines = excluded.headlines,
  fetched_at = excluded.fetched_at;`,
		ci.CompanyKey, ci.DisplayName, ci.SourceURL, string(hb), formatTime(ci.FetchedAt),
	)
	return err
}
