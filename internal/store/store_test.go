package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"talentmarket-engine/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var v int
	if err := db.Pool.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		t.Fatal(err)
	}
	if v != schemaVersion {
		t.Fatalf("user_version = %d, want %d", v, schemaVersion)
	}
}

func TestJobPageFiltersAndOrders(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	jobs := []domain.JobPosting{
		{Company: "Volvo AB", BroadCategory: "Data/IT", Location: "Göteborg", County: "Västra Götaland", CreatedAt: base.Add(-1 * time.Hour)},
		{Company: "Spotify", BroadCategory: "Data/IT", Location: "Stockholm", County: "Stockholm", CreatedAt: base.Add(-2 * time.Hour)},
		{Company: "Volvo", BroadCategory: "Sales", Location: "Göteborg", County: "Västra Götaland", CreatedAt: base.Add(-3 * time.Hour)},
		{Company: "Old Co", BroadCategory: "Data/IT", CreatedAt: base.Add(-48 * time.Hour)},
	}
	if n, err := db.InsertJobPosts(ctx, jobs); err != nil || n != 4 {
		t.Fatalf("insert: n=%d err=%v", n, err)
	}

	got, err := db.JobPage(ctx, domain.JobQuery{Since: base.Add(-24 * time.Hour)}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("window rows = %d, want 3", len(got))
	}
	if got[0].Company != "Volvo AB" || got[2].Company != "Volvo" {
		t.Fatalf("rows not newest-first: %+v", got)
	}

	got, err = db.JobPage(ctx, domain.JobQuery{Since: base.Add(-24 * time.Hour), Category: "Data/IT"}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("category rows = %d, want 2", len(got))
	}

	got, err = db.JobPage(ctx, domain.JobQuery{Since: base.Add(-24 * time.Hour), Location: "stockholm"}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Company != "Spotify" {
		t.Fatalf("location rows = %+v", got)
	}

	got, err = db.JobPage(ctx, domain.JobQuery{Since: base.Add(-72 * time.Hour), Until: base.Add(-24 * time.Hour)}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Company != "Old Co" {
		t.Fatalf("bounded window rows = %+v", got)
	}
	if got[0].BroadCategory != "Data/IT" || got[0].Location != "" || got[0].PublishedAt != nil {
		t.Fatalf("null columns not mapped: %+v", got[0])
	}
}

func TestJobPageOffsets(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var jobs []domain.JobPosting
	for i := 0; i < 5; i++ {
		jobs = append(jobs, domain.JobPosting{Company: "C", CreatedAt: base.Add(-time.Duration(i) * time.Minute)})
	}
	if _, err := db.InsertJobPosts(ctx, jobs); err != nil {
		t.Fatal(err)
	}

	q := domain.JobQuery{Since: base.Add(-time.Hour)}
	p1, _ := db.JobPage(ctx, q, 0, 2)
	p2, _ := db.JobPage(ctx, q, 2, 2)
	p3, _ := db.JobPage(ctx, q, 4, 2)
	if len(p1) != 2 || len(p2) != 2 || len(p3) != 1 {
		t.Fatalf("page sizes = %d,%d,%d", len(p1), len(p2), len(p3))
	}
	if p1[1].ID == p2[0].ID {
		t.Fatal("pages overlap")
	}
}

func TestInsertNotificationDedupes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	n := domain.Notification{
		ID: "n1", UserID: "u1", Title: "Hiring surge: Volvo", Content: "x",
		Type: domain.NotificationSignal, CompanyName: "Volvo", DedupeKey: "k1", CreatedAt: base,
	}
	created, err := db.InsertNotification(ctx, n)
	if err != nil || !created {
		t.Fatalf("first insert created=%v err=%v", created, err)
	}
	n.ID = "n2"
	created, err = db.InsertNotification(ctx, n)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("duplicate dedupe key inserted")
	}

	list, err := db.ListNotifications(ctx, "u1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].CompanyName != "Volvo" || list[0].IsRead {
		t.Fatalf("list = %+v", list)
	}
}

func TestMarkNotificationReadIsScopedToUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, _ = db.InsertNotification(ctx, domain.Notification{
		ID: "n1", UserID: "u1", Title: "t", Content: "c", Type: domain.NotificationInfo, DedupeKey: "k", CreatedAt: base,
	})

	if err := db.MarkNotificationRead(ctx, "u2", "n1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user err = %v, want ErrNotFound", err)
	}
	if err := db.MarkNotificationRead(ctx, "u1", "n1"); err != nil {
		t.Fatal(err)
	}
	list, _ := db.ListNotifications(ctx, "u1", 10)
	if !list[0].IsRead {
		t.Fatal("notification not marked read")
	}
}

func TestUnreadSignalsSince(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	add := func(id, typ string, at time.Time) {
		_, err := db.InsertNotification(ctx, domain.Notification{
			ID: id, UserID: "u1", Title: id, Content: id, Type: typ, DedupeKey: id, CreatedAt: at,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	add("old", domain.NotificationSignal, base.Add(-48*time.Hour))
	add("new", domain.NotificationSignal, base)
	add("info", domain.NotificationInfo, base)

	all, err := db.UnreadSignals(ctx, "u1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "old" {
		t.Fatalf("all = %+v", all)
	}

	since := base.Add(-time.Hour)
	recent, _ := db.UnreadSignals(ctx, "u1", &since)
	if len(recent) != 1 || recent[0].ID != "new" {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestProfilesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.GetProfile(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}

	p := domain.Profile{ID: "u1", Email: "a@example.com", Territories: []string{"Stockholm"}, DigestOptIn: true}
	if err := db.UpsertProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertProfile(ctx, domain.Profile{ID: "u2"}); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Territories) != 1 || got.Territories[0] != "Stockholm" || !got.DigestOptIn {
		t.Fatalf("profile = %+v", got)
	}

	ids, _ := db.ListProfileIDs(ctx)
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}
	digest, _ := db.ListDigestProfiles(ctx)
	if len(digest) != 1 || digest[0].ID != "u1" {
		t.Fatalf("digest profiles = %+v", digest)
	}

	if err := db.SetLastDigestAt(ctx, "u1", base); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetProfile(ctx, "u1")
	if got.LastDigestAt == nil || !got.LastDigestAt.Equal(base) {
		t.Fatalf("last digest = %v", got.LastDigestAt)
	}
}

func TestGetProfileRejectsCorruptTerritories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.Pool.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, territories, digest_opt_in) VALUES ('u1', '', '', '{not json', 0);`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetProfile(ctx, "u1"); err == nil {
		t.Fatal("corrupt territories read as a profile")
	}
}

func TestSessions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tok, err := db.CreateSession(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	uid, err := db.UserForToken(ctx, tok, time.Now())
	if err != nil || uid != "u1" {
		t.Fatalf("uid=%q err=%v", uid, err)
	}
	if _, err := db.UserForToken(ctx, tok, time.Now().Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired token err = %v", err)
	}
	if _, err := db.UserForToken(ctx, "nope", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token err = %v", err)
	}
}

func TestCompanyIntelUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ci := domain.CompanyIntel{CompanyKey: "VOLVO", DisplayName: "Volvo AB", Headlines: []string{"a"}, FetchedAt: base}
	if err := db.UpsertCompanyIntel(ctx, ci); err != nil {
		t.Fatal(err)
	}
	ci.Headlines = []string{"b", "c"}
	ci.FetchedAt = base.Add(time.Hour)
	if err := db.UpsertCompanyIntel(ctx, ci); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetCompanyIntel(ctx, "VOLVO")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Headlines) != 2 || !got.FetchedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("intel = %+v", got)
	}
}

func TestDeliveryBounce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	del := domain.Delivery{ID: "<m1@x>", UserID: "u1", Email: "a@x", Kind: "digest", Status: "sent", CreatedAt: base}
	if err := db.RecordDelivery(ctx, del); err != nil {
		t.Fatal(err)
	}
	ok, err := db.MarkDeliveryBounced(ctx, "<m1@x>", base)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	ok, _ = db.MarkDeliveryBounced(ctx, "<m1@x>", base)
	if ok {
		t.Fatal("second bounce should be a no-op")
	}
	got, err := db.GetDelivery(ctx, "<m1@x>")
	if err != nil || got.Status != "bounced" {
		t.Fatalf("delivery = %+v err=%v", got, err)
	}
}
