package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"talentmarket-engine/internal/domain"
)

func (d *DB) RecordDelivery(ctx context.Context, del domain.Delivery) error {
	now := formatTime(del.CreatedAt)
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO email_deliveries (id, user_id, email, kind, status, error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		del.ID, del.UserID, del.Email, del.Kind, del.Status, del.Error, now, now,
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// MarkDeliveryBounced flips a sent delivery to bounced. It reports false when
// the id is unknown or already bounced.
func (d *DB) MarkDeliveryBounced(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE email_deliveries SET status = 'bounced', updated_at = ?
WHERE id = ? AND status = 'sent';`, formatTime(at), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (d *DB) GetDelivery(ctx context.Context, id string) (domain.Delivery, error) {
	var (
		del        domain.Delivery
		createdStr string
	)
	err := d.Pool.QueryRowContext(ctx, `
SELECT id, user_id, email, kind, status, error, created_at
FROM email_deliveries WHERE id = ?;`, id,
	).Scan(&del.ID, &del.UserID, &del.Email, &del.Kind, &del.Status, &del.Error, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Delivery{}, ErrNotFound
	}
	if err != nil {
		return domain.Delivery{}, err
	}
	del.CreatedAt = parseTime(createdStr)
	return del, nil
}
