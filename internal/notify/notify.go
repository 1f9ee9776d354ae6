package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"talentmarket-engine/internal/analytics"
	"talentmarket-engine/internal/domain"
)

const ListLimit = 50

type Store interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	InsertNotification(ctx context.Context, n domain.Notification) (bool, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
}

// Scanner runs a signal scan for one user.
type Scanner interface {
	Scan(ctx context.Context, userID string) (analytics.ScanResult, error)
}

type Service struct {
	Store   Store
	Signals Scanner
	Now     func() time.Time
}

// List returns the user's newest notifications. An empty inbox triggers a
// signal scan, and if that finds nothing a welcome notification is added so
// the user never sees an empty list.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	list, err := s.Store.ListNotifications(ctx, userID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if len(list) > 0 {
		return list, nil
	}

	if s.Signals != nil {
		res, err := s.Signals.Scan(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("first-visit scan: %w", err)
		}
		log.Debug().Str("user_id", userID).Int("created", res.SignalsCreated).Msg("notifications: first-visit scan")
	}

	list, err = s.Store.ListNotifications(ctx, userID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if len(list) > 0 {
		return list, nil
	}

	if _, err := s.Store.InsertNotification(ctx, welcome(userID, s.now())); err != nil {
		return nil, fmt.Errorf("insert welcome: %w", err)
	}
	return s.Store.ListNotifications(ctx, userID, ListLimit)
}

// MarkRead acknowledges one notification owned by userID.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.Store.MarkNotificationRead(ctx, userID, id)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func welcome(userID string, at time.Time) domain.Notification {
	return domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     "Welcome to market signals",
		Content:   "We will notify you here when companies in your territories start hiring faster than usual.",
		Type:      domain.NotificationInfo,
		DedupeKey: "welcome|" + userID,
		CreatedAt: at,
	}
}
