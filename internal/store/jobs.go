package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"talentmarket-engine/internal/domain"
)

// JobPage returns one ordered page of job_posts matching q.
func (d *DB) JobPage(ctx context.Context, q domain.JobQuery, offset, limit int) ([]domain.JobPosting, error) {
	where, args := jobWhere(q)
	query := fmt.Sprintf(`
SELECT id, company, broad_category, title, location, county, created_at, published_at
FROM job_posts
WHERE %s
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`, where)
	args = append(args, limit, offset)

	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.JobPosting, 0, limit)
	for rows.Next() {
		var (
			j                        domain.JobPosting
			cat, loc, county, pubStr sql.NullString
			createdStr               string
		)
		if err := rows.Scan(&j.ID, &j.Company, &cat, &j.Title, &loc, &county, &createdStr, &pubStr); err != nil {
			return nil, err
		}
		j.BroadCategory = cat.String
		j.Location = loc.String
		j.County = county.String
		j.CreatedAt = parseTime(createdStr)
		j.PublishedAt = nullTime(pubStr)
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func jobWhere(q domain.JobQuery) (string, []any) {
	clauses := []string{"created_at >= ?"}
	args := []any{formatTime(q.Since)}

	if !q.Until.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTime(q.Until))
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		clauses = append(clauses, "broad_category = ?")
		args = append(args, c)
	}
	if l := strings.ToLower(strings.TrimSpace(q.Location)); l != "" {
		clauses = append(clauses, "(LOWER(COALESCE(location, '')) LIKE ? OR LOWER(COALESCE(county, '')) LIKE ?)")
		pat := "%" + l + "%"
		args = append(args, pat, pat)
	}
	return strings.Join(clauses, " AND "), args
}

// InsertJobPosts loads rows into job_posts. Ingestion is owned elsewhere;
// this backs `engine seed` and test fixtures.
func (d *DB) InsertJobPosts(ctx context.Context, jobs []domain.JobPosting) (int, error) {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO job_posts (company, broad_category, title, location, county, created_at, published_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, j := range jobs {
		if _, err := stmt.ExecContext(ctx,
			j.Company, nullString(j.BroadCategory), j.Title, nullString(j.Location), nullString(j.County),
			formatTime(j.CreatedAt), timePtrArg(j.PublishedAt),
		); err != nil {
			return i, fmt.Errorf("insert job post %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(jobs), nil
}
