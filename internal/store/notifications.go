package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"talentmarket-engine/internal/domain"
)

// InsertNotification stores n unless a row with the same dedupe key exists.
// created reports whether a new row was written.
func (d *DB) InsertNotification(ctx context.Context, n domain.Notification) (created bool, err error) {
	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO notifications (id, user_id, title, content, type, is_read, company_name, dedupe_key, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(dedupe_key) DO NOTHING;`,
		n.ID, n.UserID, n.Title, n.Content, n.Type, n.IsRead, nullString(n.CompanyName), n.DedupeKey, formatTime(n.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (d *DB) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, user_id, title, content, type, is_read, company_name, dedupe_key, created_at
FROM notifications
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanNotifications(rows)
}

// UnreadSignals returns unread signal notifications for userID created after
// since (all of them when since is nil), oldest first.
func (d *DB) UnreadSignals(ctx context.Context, userID string, since *time.Time) ([]domain.Notification, error) {
	floor := ""
	if since != nil {
		floor = formatTime(*since)
	}
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, user_id, title, content, type, is_read, company_name, dedupe_key, created_at
FROM notifications
WHERE user_id = ? AND type = ? AND is_read = 0 AND created_at > ?
ORDER BY created_at ASC, id ASC;`, userID, domain.NotificationSignal, floor)
	if err != nil {
		return nil, err
	}
	return scanNotifications(rows)
}

// MarkNotificationRead flags the notification as read. It only touches rows
// owned by userID and returns ErrNotFound otherwise.
func (d *DB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?;`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNotifications(rows *sql.Rows) ([]domain.Notification, error) {
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n          domain.Notification
			company    sql.NullString
			createdStr string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Type, &n.IsRead, &company, &n.DedupeKey, &createdStr); err != nil {
			return nil, err
		}
		n.CompanyName = company.String
		n.CreatedAt = parseTime(createdStr)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
