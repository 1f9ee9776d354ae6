package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"talentmarket-engine/internal/domain"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"

	kindDigest = "digest"
)

type DigestStore interface {
	ListDigestProfiles(ctx context.Context) ([]domain.Profile, error)
	UnreadSignals(ctx context.Context, userID string, since *time.Time) ([]domain.Notification, error)
	RecordDelivery(ctx context.Context, del domain.Delivery) error
	SetLastDigestAt(ctx context.Context, userID string, at time.Time) error
}

type ItemResult struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Status     string `json:"status"`
	DeliveryID string `json:"deliveryId,omitempty"`
	Error      string `json:"error,omitempty"`
}

type DigestReport struct {
	Success bool         `json:"success"`
	Sent    int          `json:"sent"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
	Items   []ItemResult `json:"items"`
}

// Digest emails each opted-in user the signals they have not read since
// their last digest.
type Digest struct {
	Store       DigestStore
	Sender      Sender
	Concurrency int
	Now         func() time.Time
}

func (d *Digest) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// Run sends one digest per eligible profile. Individual failures are
// reported per item and never undo sends that already went out; only a
// failure to list profiles fails the run.
func (d *Digest) Run(ctx context.Context) (DigestReport, error) {
	profiles, err := d.Store.ListDigestProfiles(ctx)
	if err != nil {
		return DigestReport{}, fmt.Errorf("list digest profiles: %w", err)
	}

	limit := d.Concurrency
	if limit < 1 {
		limit = 1
	}

	items := make([]ItemResult, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range profiles {
		g.Go(func() error {
			items[i] = d.sendOne(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	rep := DigestReport{Success: true, Items: items}
	for _, it := range items {
		switch it.Status {
		case StatusSent:
			rep.Sent++
		case StatusFailed:
			rep.Failed++
		default:
			rep.Skipped++
		}
	}
	log.Info().Int("sent", rep.Sent).Int("failed", rep.Failed).Int("skipped", rep.Skipped).Msg("digest run finished")
	return rep, nil
}

func (d *Digest) sendOne(ctx context.Context, p domain.Profile) ItemResult {
	res := ItemResult{UserID: p.ID, Email: p.Email}
	now := d.now()

	signals, err := d.Store.UnreadSignals(ctx, p.ID, p.LastDigestAt)
	if err != nil {
		res.Status, res.Error = StatusFailed, err.Error()
		return res
	}
	if len(signals) == 0 {
		res.Status = StatusSkipped
		return res
	}

	id, sendErr := d.Sender.Send(ctx, digestMessage(p, signals))
	del := domain.Delivery{
		ID:        id,
		UserID:    p.ID,
		Email:     p.Email,
		Kind:      kindDigest,
		Status:    StatusSent,
		CreatedAt: now,
	}
	if sendErr != nil {
		del.ID = uuid.NewString()
		del.Status = StatusFailed
		del.Error = sendErr.Error()
		res.Status, res.Error = StatusFailed, sendErr.Error()
	} else {
		res.Status, res.DeliveryID = StatusSent, id
	}

	if err := d.Store.RecordDelivery(ctx, del); err != nil {
		log.Error().Err(err).Str("user_id", p.ID).Msg("digest: record delivery")
	}
	if sendErr == nil {
		if err := d.Store.SetLastDigestAt(ctx, p.ID, now); err != nil {
			log.Error().Err(err).Str("user_id", p.ID).Msg("digest: set last digest")
		}
	}
	return res
}

func digestMessage(p domain.Profile, signals []domain.Notification) Message {
	var b strings.Builder
	name := strings.TrimSpace(p.FullName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "%d new hiring signal(s) in your territories:\n\n", len(signals))
	for _, n := range signals {
		fmt.Fprintf(&b, "* %s\n  %s\n", n.Title, n.Content)
	}
	b.WriteString("\nOpen the dashboard to see the full picture.\n")

	subject := fmt.Sprintf("%d new hiring signals", len(signals))
	if len(signals) == 1 {
		subject = "1 new hiring signal"
	}
	return Message{To: p.Email, ToName: p.FullName, Subject: subject, Body: b.String()}
}
