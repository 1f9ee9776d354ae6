package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"talentmarket-engine/internal/domain"
)

func (d *DB) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	row := d.Pool.QueryRowContext(ctx, `
SELECT id, email, full_name, territories, digest_opt_in, last_digest_at
FROM profiles WHERE id = ? LIMIT 1;`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, ErrNotFound
	}
	return p, err
}

func (d *DB) UpsertProfile(ctx context.Context, p domain.Profile) error {
	terr, _ := json.Marshal(nonNil(p.Territories))
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO profiles (id, email, full_name, territories, digest_opt_in, last_digest_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  email = excluded.email,
  full_name = excluded.full_name,
  territories = excluded.territories,
  digest_opt_in = excluded.digest_opt_in;`,
		p.ID, p.Email, p.FullName, string(terr), p.DigestOptIn, timePtrArg(p.LastDigestAt),
	)
	return err
}

func (d *DB) ListProfileIDs(ctx context.Context) ([]string, error) {
	rows, err := d.Pool.QueryContext(ctx, `SELECT id FROM profiles ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (d *DB) ListDigestProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, email, full_name, territories, digest_opt_in, last_digest_at
FROM profiles
WHERE digest_opt_in = 1 AND email != ''
ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) SetLastDigestAt(ctx context.Context, userID string, at time.Time) error {
	_, err := d.Pool.ExecContext(ctx, `UPDATE profiles SET last_digest_at = ? WHERE id = ?;`, formatTime(at), userID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(r rowScanner) (domain.Profile, error) {
	var (
		p          domain.Profile
		territory  string
		lastDigest sql.NullString
	)
	if err := r.Scan(&p.ID, &p.Email, &p.FullName, &territory, &p.DigestOptIn, &lastDigest); err != nil {
		return domain.Profile{}, err
	}
	if err := json.Unmarshal([]byte(territory), &p.Territories); err != nil {
		return domain.Profile{}, fmt.Errorf("profile %s: territories: %w", p.ID, err)
	}
	p.LastDigestAt = nullTime(lastDigest)
	return p, nil
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
