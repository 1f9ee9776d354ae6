package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message"
	"github.com/rs/zerolog/log"
)

const bounceBatch = 100

type Mailbox interface {
	Unseen(ctx context.Context, max int) ([]RawMail, error)
	MarkSeen(ctx context.Context, uids []imap.UID) error
}

type BounceStore interface {
	MarkDeliveryBounced(ctx context.Context, id string, at time.Time) (bool, error)
}

type BounceReport struct {
	Scanned int `json:"scanned"`
	Bounced int `json:"bounced"`
}

// Bounces matches delivery-status reports back to deliveries.
type Bounces struct {
	Mailbox Mailbox
	Store   BounceStore
	Now     func() time.Time
}

// Reconcile marks deliveries referenced by unseen bounce reports as bounced
// and flags every scanned message seen.
func (b *Bounces) Reconcile(ctx context.Context) (BounceReport, error) {
	msgs, err := b.Mailbox.Unseen(ctx, bounceBatch)
	if err != nil {
		return BounceReport{}, err
	}
	now := time.Now().UTC()
	if b.Now != nil {
		now = b.Now().UTC()
	}

	var rep BounceReport
	seen := make([]imap.UID, 0, len(msgs))
	for _, m := range msgs {
		rep.Scanned++
		for _, id := range BouncedMessageIDs(m.Raw) {
			ok, err := b.Store.MarkDeliveryBounced(ctx, id, now)
			if err != nil {
				return rep, fmt.Errorf("mark bounced %s: %w", id, err)
			}
			if ok {
				rep.Bounced++
				log.Info().Str("delivery_id", id).Msg("delivery bounced")
			}
		}
		seen = append(seen, m.UID)
	}
	if err := b.Mailbox.MarkSeen(ctx, seen); err != nil {
		return rep, err
	}
	return rep, nil
}

var messageIDHeader = regexp.MustCompile(`(?im)^(?:original-)?message-id:\s*<([^>\s]+)>`)

// BouncedMessageIDs returns the Message-IDs of the original messages quoted
// inside a bounce report. The bounce's own Message-ID is ignored.
func BouncedMessageIDs(raw []byte) []string {
	e, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil
	}

	seen := map[string]bool{}
	var ids []string
	_ = e.Walk(func(path []int, part *message.Entity, err error) error {
		if err != nil || len(path) == 0 {
			return nil
		}
		ct, _, _ := part.Header.ContentType()
		switch strings.ToLower(ct) {
		case "message/rfc822", "text/rfc822-headers", "message/delivery-status", "message/global-headers":
		default:
			return nil
		}
		body, _ := io.ReadAll(io.LimitReader(part.Body, 1<<20))
		for _, m := range messageIDHeader.FindAllSubmatch(body, -1) {
			id := string(m[1])
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		return nil
	})
	return ids
}
