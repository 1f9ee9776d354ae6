// Package pgstore is the Postgres-backed data store used against the managed
// database. It exposes the same method set as store.DB.
package pgstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talentmarket-engine/internal/domain"
	"talentmarket-engine/internal/store"
)

type Store struct {
	Pool *pgxpool.Pool
}

// Open connects with at most maxConns connections. viaBouncer switches to
// the simple protocol, which PgBouncer transaction pooling requires.
func Open(ctx context.Context, dsn string, maxConns int, viaBouncer bool) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pg dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	if viaBouncer {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg pool: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() error {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("pg migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS job_posts (
  id BIGSERIAL PRIMARY KEY,
  company TEXT NOT NULL DEFAULT '',
  broad_category TEXT,
  title TEXT NOT NULL DEFAULT '',
  location TEXT,
  county TEXT,
  created_at TIMESTAMPTZ NOT NULL,
  published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_job_posts_created_at ON job_posts(created_at);
CREATE INDEX IF NOT EXISTS idx_job_posts_category ON job_posts(broad_category, created_at);

CREATE TABLE IF NOT EXISTS profiles (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL DEFAULT '',
  full_name TEXT NOT NULL DEFAULT '',
  territories TEXT[] NOT NULL DEFAULT '{}',
  digest_opt_in BOOLEAN NOT NULL DEFAULT FALSE,
  last_digest_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sessions (
  token_hash TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  type TEXT NOT NULL,
  is_read BOOLEAN NOT NULL DEFAULT FALSE,
  company_name TEXT,
  dedupe_key TEXT NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);

CREATE TABLE IF NOT EXISTS company_intelligence (
  company_key TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  source_url TEXT NOT NULL DEFAULT '',
  headlines TEXT[] NOT NULL DEFAULT '{}',
  fetched_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS email_deliveries (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  email TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL,
  error TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
`

// jobWhere builds the predicate with $n placeholders starting at $1.
func jobWhere(q domain.JobQuery) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	clauses = append(clauses, "created_at >= "+arg(q.Since.UTC()))
	if !q.Until.IsZero() {
		clauses = append(clauses, "created_at <= "+arg(q.Until.UTC()))
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		clauses = append(clauses, "broad_category = "+arg(c))
	}
	if l := strings.TrimSpace(q.Location); l != "" {
		p := arg("%" + l + "%")
		clauses = append(clauses, fmt.Sprintf("(location ILIKE %s OR county ILIKE %s)", p, p))
	}
	return strings.Join(clauses, " AND "), args
}

func (s *Store) JobPage(ctx context.Context, q domain.JobQuery, offset, limit int) ([]domain.JobPosting, error) {
	where, args := jobWhere(q)
	n := len(args)
	query := fmt.Sprintf(`
SELECT id, company, COALESCE(broad_category, ''), title, COALESCE(location, ''), COALESCE(county, ''), created_at, published_at
FROM job_posts
WHERE %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.JobPosting, error) {
		var j domain.JobPosting
		err := r.Scan(&j.ID, &j.Company, &j.BroadCategory, &j.Title, &j.Location, &j.County, &j.CreatedAt, &j.PublishedAt)
		j.CreatedAt = j.CreatedAt.UTC()
		return j, err
	})
}

func (s *Store) InsertJobPosts(ctx context.Context, jobs []domain.JobPosting) (int, error) {
	b := &pgx.Batch{}
	for _, j := range jobs {
		b.Queue(`
INSERT INTO job_posts (company, broad_category, title, location, county, created_at, published_at)
VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)`,
			j.Company, j.BroadCategory, j.Title, j.Location, j.County, j.CreatedAt.UTC(), j.PublishedAt)
	}
	br := s.Pool.SendBatch(ctx, b)
	defer br.Close()
	for i := range jobs {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("insert job post %d: %w", i, err)
		}
	}
	return len(jobs), nil
}

const notificationCols = `id, user_id, title, content, type, is_read, COALESCE(company_name, ''), dedupe_key, created_at`

func scanNotification(r pgx.CollectableRow) (domain.Notification, error) {
	var n domain.Notification
	err := r.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Type, &n.IsRead, &n.CompanyName, &n.DedupeKey, &n.CreatedAt)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, err
}

func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
INSERT INTO notifications (id, user_id, title, content, type, is_read, company_name, dedupe_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
ON CONFLICT (dedupe_key) DO NOTHING`,
		n.ID, n.UserID, n.Title, n.Content, n.Type, n.IsRead, n.CompanyName, n.DedupeKey, n.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+notificationCols+`
FROM notifications WHERE user_id = $1
ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanNotification)
}

func (s *Store) UnreadSignals(ctx context.Context, userID string, since *time.Time) ([]domain.Notification, error) {
	floor := time.Time{}
	if since != nil {
		floor = since.UTC()
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+notificationCols+`
FROM notifications
WHERE user_id = $1 AND type = $2 AND NOT is_read AND created_at > $3
ORDER BY created_at ASC, id ASC`, userID, domain.NotificationSignal, floor)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanNotification)
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const profileCols = `id, email, full_name, territories, digest_opt_in, last_digest_at`

func scanProfile(r pgx.CollectableRow) (domain.Profile, error) {
	var p domain.Profile
	err := r.Scan(&p.ID, &p.Email, &p.FullName, &p.Territories, &p.DigestOptIn, &p.LastDigestAt)
	return p, err
}

func (s *Store) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = $1`, id)
	if err != nil {
		return domain.Profile{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProfile)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, store.ErrNotFound
	}
	return p, err
}

func (s *Store) UpsertProfile(ctx context.Context, p domain.Profile) error {
	terr := p.Territories
	if terr == nil {
		terr = []string{}
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO profiles (id, email, full_name, territories, digest_opt_in, last_digest_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  email = excluded.email,
  full_name = excluded.full_name,
  territories = excluded.territories,
  digest_opt_in = excluded.digest_opt_in`,
		p.ID, p.Email, p.FullName, terr, p.DigestOptIn, p.LastDigestAt)
	return err
}

func (s *Store) ListProfileIDs(ctx context.Context) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id FROM profiles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) ListDigestProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+profileCols+` FROM profiles
WHERE digest_opt_in AND email <> '' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProfile)
}

func (s *Store) SetLastDigestAt(ctx context.Context, userID string, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `UPDATE profiles SET last_digest_at = $1 WHERE id = $2`, at.UTC(), userID)
	return err
}

func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b[:])
	_, err := s.Pool.Exec(ctx, `INSERT INTO sessions (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
		store.HashToken(token), userID, time.Now().Add(ttl).UTC())
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) UserForToken(ctx context.Context, token string, now time.Time) (string, error) {
	var userID string
	err := s.Pool.QueryRow(ctx, `SELECT user_id FROM sessions WHERE token_hash = $1 AND expires_at > $2`,
		store.HashToken(token), now.UTC()).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return userID, err
}

func (s *Store) GetCompanyIntel(ctx context.Context, key string) (domain.CompanyIntel, error) {
	var ci domain.CompanyIntel
	err := s.Pool.QueryRow(ctx, `
SELECT company_key, display_name, source_url, headlines, fetched_at
FROM company_intelligence WHERE company_key = $1`, key,
	).Scan(&ci.CompanyKey, &ci.DisplayName, &ci.SourceURL, &ci.Headlines, &ci.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CompanyIntel{}, store.ErrNotFound
	}
	ci.FetchedAt = ci.FetchedAt.UTC()
	return ci, err
}

func (s *Store) UpsertCompanyIntel(ctx context.Context, ci domain.CompanyIntel) error {
	hl := ci.Headlines
	if hl == nil {
		hl = []string{}
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO company_intelligence (company_key, display_name, source_url, headlines, fetched_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (company_key) DO UPDATE SET
  display_name = excluded.display_name,
  source_url = excluded.source_url,
  headlines = excluded.headlines,
  fetched_at = excluded.fetched_at`,
		ci.CompanyKey, ci.DisplayName, ci.SourceURL, hl, ci.FetchedAt.UTC())
	return err
}

func (s *Store) RecordDelivery(ctx context.Context, d domain.Delivery) error {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO email_deliveries (id, user_id, email, kind, status, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		d.ID, d.UserID, d.Email, d.Kind, d.Status, d.Error, d.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

func (s *Store) MarkDeliveryBounced(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
UPDATE email_deliveries SET status = 'bounced', updated_at = $1
WHERE id = $2 AND status = 'sent'`, at.UTC(), id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
