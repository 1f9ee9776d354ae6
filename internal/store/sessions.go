package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"
)

// HashToken is the form bearer tokens are stored and looked up in.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// CreateSession issues a new bearer token for userID valid for ttl.
func (d *DB) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b[:])
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at) VALUES (?, ?, ?);`,
		HashToken(token), userID, formatTime(time.Now().Add(ttl)),
	)
	if err != nil {
		return "", err
	}
	return token, nil
}

// UserForToken resolves a bearer token to its user id if it has not expired.
func (d *DB) UserForToken(ctx context.Context, token string, now time.Time) (string, error) {
	var userID string
	err := d.Pool.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE token_hash = ? AND expires_at > ? LIMIT 1;`,
		HashToken(token), formatTime(now),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}
