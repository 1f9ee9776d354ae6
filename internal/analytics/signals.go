package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"talentmarket-engine/internal/domain"
	"talentmarket-engine/internal/store"
)

const SignalLookback = 30 * 24 * time.Hour

type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
}

type NotificationWriter interface {
	InsertNotification(ctx context.Context, n domain.Notification) (bool, error)
}

type ScanResult struct {
	SignalsDetected    int `json:"signalsDetected"`
	SignalsCreated     int `json:"signalsCreated"`
	TerritoriesScanned int `json:"territoriesScanned"`
}

// SignalService turns hiring surges into per-user notifications.
type SignalService struct {
	Jobs          JobSource
	Profiles      ProfileReader
	Notifications NotificationWriter

	Now       func() time.Time
	OnCreated func(domain.Notification) // optional
}

func (s *SignalService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Scan runs surge detection for one user. A user without a profile scans
// with no territory filter.
func (s *SignalService) Scan(ctx context.Context, userID string) (ScanResult, error) {
	now := s.now()
	rows, _, err := DeepFetch(ctx, s.Jobs, domain.JobQuery{Since: now.Add(-SignalLookback)})
	if err != nil {
		return ScanResult{}, fmt.Errorf("signal scan: %w", err)
	}
	return s.scanRows(ctx, userID, rows, now)
}

// Sweep scans every user in userIDs against a single 30-day fetch. Failures
// for one user are logged and do not stop the rest.
func (s *SignalService) Sweep(ctx context.Context, userIDs []string) (ScanResult, error) {
	now := s.now()
	rows, _, err := DeepFetch(ctx, s.Jobs, domain.JobQuery{Since: now.Add(-SignalLookback)})
	if err != nil {
		return ScanResult{}, fmt.Errorf("signal sweep: %w", err)
	}

	var total ScanResult
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := s.scanRows(ctx, id, rows, now)
		if err != nil {
			log.Error().Err(err).Str("user_id", id).Msg("signal sweep: user failed")
			continue
		}
		total.SignalsDetected += res.SignalsDetected
		total.SignalsCreated += res.SignalsCreated
		total.TerritoriesScanned += res.TerritoriesScanned
	}
	return total, nil
}

func (s *SignalService) scanRows(ctx context.Context, userID string, rows []domain.JobPosting, now time.Time) (ScanResult, error) {
	var territories []string
	p, err := s.Profiles.GetProfile(ctx, userID)
	switch {
	case err == nil:
		territories = p.Territories
	case errors.Is(err, store.ErrNotFound):
	default:
		return ScanResult{}, fmt.Errorf("load profile %s: %w", userID, err)
	}

	surges := DetectSurges(rows, now.Add(-7*24*time.Hour), territories)
	res := ScanResult{SignalsDetected: len(surges), TerritoriesScanned: len(territories)}

	for _, sg := range surges {
		n := domain.Notification{
			ID:          uuid.NewString(),
			UserID:      userID,
			Title:       fmt.Sprintf("Hiring surge: %s", sg.DisplayName),
			Content:     surgeContent(sg),
			Type:        domain.NotificationSignal,
			CompanyName: sg.DisplayName,
			DedupeKey:   SignalDedupeKey(userID, sg.Key, now),
			CreatedAt:   now,
		}
		created, err := s.Notifications.InsertNotification(ctx, n)
		if err != nil {
			return res, fmt.Errorf("persist signal for %s: %w", sg.Key, err)
		}
		if !created {
			continue
		}
		res.SignalsCreated++
		if s.OnCreated != nil {
			s.OnCreated(n)
		}
	}
	return res, nil
}

func surgeContent(sg CompanyStats) string {
	return fmt.Sprintf("%s posted %d jobs in the last 7 days against a weekly average of %.1f.",
		sg.DisplayName, sg.Total7d, sg.WeeklyAverage())
}

// SignalDedupeKey identifies one signal per user, company and ISO week.
func SignalDedupeKey(userID, companyKey string, at time.Time) string {
	y, w := at.UTC().ISOWeek()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%04d-W%02d", userID, companyKey, y, w)))
	return hex.EncodeToString(sum[:])
}
