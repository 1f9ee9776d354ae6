package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"

	"talentmarket-engine/internal/domain"
	"talentmarket-engine/internal/store"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestComposeRoundTrip(t *testing.T) {
	raw, id, err := Compose("alerts@talent.example", "Talent Market", Message{
		To: "anna@example.com", ToName: "Anna Öberg", Subject: "Två nya signaler", Body: "Hej Anna\n",
	}, base)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(id, "@talent.example") {
		t.Fatalf("id = %q", id)
	}

	r, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := r.Header.MessageID(); got != id {
		t.Fatalf("Message-ID = %q, want %q", got, id)
	}
	if got, _ := r.Header.Subject(); got != "Två nya signaler" {
		t.Fatalf("subject = %q", got)
	}
	p, err := r.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(p.Body)
	if string(body) != "Hej Anna\n" {
		t.Fatalf("body = %q", body)
	}
}

func TestComposeRequiresRecipient(t *testing.T) {
	if _, _, err := Compose("a@b.c", "", Message{}, base); err == nil {
		t.Fatal("expected error")
	}
}

type fakeSender struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]bool
}

func (f *fakeSender) Send(_ context.Context, m Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[m.To] {
		return "", errors.New("550 mailbox unavailable")
	}
	f.sent = append(f.sent, m)
	return "id-" + m.To, nil
}

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedSignal(t *testing.T, db *store.DB, userID, key string) {
	t.Helper()
	_, err := db.InsertNotification(context.Background(), domain.Notification{
		ID: key, UserID: userID, Title: "Hiring surge: " + key, Content: "up",
		Type: domain.NotificationSignal, DedupeKey: key, CreatedAt: base.Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDigestRun(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	for _, p := range []domain.Profile{
		{ID: "a", Email: "a@example.com", FullName: "Ada", DigestOptIn: true},
		{ID: "b", Email: "b@example.com", DigestOptIn: true},
		{ID: "c", Email: "c@example.com", DigestOptIn: true},
		{ID: "d", Email: "d@example.com", DigestOptIn: false},
	} {
		if err := db.UpsertProfile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	seedSignal(t, db, "a", "k1")
	seedSignal(t, db, "a", "k2")
	seedSignal(t, db, "c", "k3")
	seedSignal(t, db, "d", "k4")

	sender := &fakeSender{fail: map[string]bool{"c@example.com": true}}
	dg := &Digest{Store: db, Sender: sender, Concurrency: 2, Now: func() time.Time { return base }}

	rep, err := dg.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Success || rep.Sent != 1 || rep.Failed != 1 || rep.Skipped != 1 || len(rep.Items) != 3 {
		t.Fatalf("report = %+v", rep)
	}
	byUser := map[string]ItemResult{}
	for _, it := range rep.Items {
		byUser[it.UserID] = it
	}
	if byUser["a"].Status != StatusSent || byUser["a"].DeliveryID != "id-a@example.com" {
		t.Fatalf("a = %+v", byUser["a"])
	}
	if byUser["c"].Status != StatusFailed || byUser["c"].Error == "" {
		t.Fatalf("c = %+v", byUser["c"])
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0].Body, "k2") || sender.sent[0].Subject != "2 new hiring signals" {
		t.Fatalf("sent = %+v", sender.sent)
	}

	del, err := db.GetDelivery(ctx, "id-a@example.com")
	if err != nil || del.Status != StatusSent {
		t.Fatalf("delivery = %+v err=%v", del, err)
	}

	// Signals already covered by a digest are not sent again.
	rep, err = dg.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Sent != 0 || rep.Failed != 1 {
		t.Fatalf("second run = %+v", rep)
	}
}

const bounceReport = "From: MAILER-DAEMON@mx.example\r\n" +
	"To: alerts@talent.example\r\n" +
	"Subject: Undelivered Mail Returned to Sender\r\n" +
	"Message-ID: <bounce-1@mx.example>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/report; report-type=delivery-status; boundary=\"XX\"\r\n" +
	"\r\n" +
	"--XX\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Your message could not be delivered.\r\n" +
	"--XX\r\n" +
	"Content-Type: message/delivery-status\r\n" +
	"\r\n" +
	"Reporting-MTA: dns; mx.example\r\n" +
	"\r\n" +
	"Final-Recipient: rfc822; gone@example.com\r\n" +
	"Action: failed\r\n" +
	"Status: 5.1.1\r\n" +
	"--XX\r\n" +
	"Content-Type: text/rfc822-headers\r\n" +
	"\r\n" +
	"From: alerts@talent.example\r\n" +
	"To: gone@example.com\r\n" +
	"Message-ID: <d1@talent.example>\r\n" +
	"Subject: 1 new hiring signal\r\n" +
	"--XX--\r\n"

func TestBouncedMessageIDs(t *testing.T) {
	ids := BouncedMessageIDs([]byte(bounceReport))
	if len(ids) != 1 || ids[0] != "d1@talent.example" {
		t.Fatalf("ids = %q", ids)
	}
	if ids := BouncedMessageIDs([]byte("not a message")); len(ids) != 0 {
		t.Fatalf("garbage ids = %q", ids)
	}
}

type fakeMailbox struct {
	msgs []RawMail
	seen []imap.UID
}

func (f *fakeMailbox) Unseen(context.Context, int) ([]RawMail, error) { return f.msgs, nil }

func (f *fakeMailbox) MarkSeen(_ context.Context, uids []imap.UID) error {
	f.seen = append(f.seen, uids...)
	return nil
}

func TestReconcile(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	if err := db.RecordDelivery(ctx, domain.Delivery{
		ID: "d1@talent.example", UserID: "a", Email: "gone@example.com", Kind: "digest", Status: StatusSent, CreatedAt: base,
	}); err != nil {
		t.Fatal(err)
	}

	mb := &fakeMailbox{msgs: []RawMail{
		{UID: 7, Raw: []byte(bounceReport)},
		{UID: 8, Raw: []byte("Subject: hello\r\n\r\nnot a bounce\r\n")},
	}}
	b := &Bounces{Mailbox: mb, Store: db, Now: func() time.Time { return base.Add(time.Hour) }}

	rep, err := b.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Scanned != 2 || rep.Bounced != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(mb.seen) != 2 {
		t.Fatalf("seen = %v", mb.seen)
	}
	del, _ := db.GetDelivery(ctx, "d1@talent.example")
	if del.Status != "bounced" {
		t.Fatalf("status = %q", del.Status)
	}

	rep, _ = b.Reconcile(ctx)
	if rep.Bounced != 0 {
		t.Fatal("bounce should not be counted twice")
	}
}
