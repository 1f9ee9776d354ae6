package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"talentmarket-engine/internal/analytics"
	"talentmarket-engine/internal/config"
	"talentmarket-engine/internal/domain"
	"talentmarket-engine/internal/events"
	"talentmarket-engine/internal/intel"
	"talentmarket-engine/internal/llm"
	"talentmarket-engine/internal/mailer"
	"talentmarket-engine/internal/notify"
	"talentmarket-engine/internal/store"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeIntel struct {
	cached map[string][]string
	err    error
}

func (f fakeIntel) Get(_ context.Context, company string) (domain.CompanyIntel, error) {
	if f.err != nil {
		return domain.CompanyIntel{}, f.err
	}
	return domain.CompanyIntel{CompanyKey: analytics.NormalizeCompany(company), DisplayName: company, Headlines: f.cached[company]}, nil
}

func (f fakeIntel) Cached(_ context.Context, company string) (domain.CompanyIntel, error) {
	return domain.CompanyIntel{Headlines: f.cached[company]}, nil
}

type fakeBriefs struct {
	got   llm.BriefInput
	reply string
}

func (f *fakeBriefs) Generate(_ context.Context, in llm.BriefInput) (llm.Brief, error) {
	f.got = in
	return llm.ParseBrief(f.reply)
}

type fakeDigest struct{ rep mailer.DigestReport }

func (f fakeDigest) Run(context.Context) (mailer.DigestReport, error) { return f.rep, nil }

type fixture struct {
	db     *store.DB
	srv    http.Handler
	token  string
	briefs *fakeBriefs
	hub    *events.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	d := func(m time.Month, day int) time.Time { return time.Date(2026, m, day, 10, 0, 0, 0, time.UTC) }
	jobs := []domain.JobPosting{
		{Company: "Volvo AB", BroadCategory: "Data/IT", CreatedAt: d(3, 20)},
		{Company: "Volvo AB", BroadCategory: "Data/IT", CreatedAt: d(3, 1)},
		{Company: "Spotify", BroadCategory: "Data/IT", CreatedAt: d(2, 14)},
		{Company: "Volvo AB", BroadCategory: "Data/IT", CreatedAt: d(2, 2)},
		{Company: "Spotify", BroadCategory: "Data/IT", CreatedAt: d(1, 20)},
		{Company: "Volvo", BroadCategory: "Data/IT", CreatedAt: d(1, 5)},
		{Company: "Volvo AB", BroadCategory: "Data/IT", CreatedAt: d(4, 10)},
		{Company: "Spotify", BroadCategory: "Data/IT", CreatedAt: d(4, 2)},
		{Company: "Volvo AB", BroadCategory: "Sales", CreatedAt: d(2, 10)},
		{Company: "Klarna", BroadCategory: "Finance", CreatedAt: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)},
	}
	if _, err := db.InsertJobPosts(ctx, jobs); err != nil {
		t.Fatal(err)
	}
	token, err := db.CreateSession(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	clock := func() time.Time { return now }
	hub := events.NewHub()
	signals := &analytics.SignalService{Jobs: db, Profiles: db, Notifications: db, Now: clock}
	briefs := &fakeBriefs{reply: `{"summary":"Volvo leads","highlights":[],"watchlist":["Spotify"]}`}

	var cfgVal atomic.Value
	cfgVal.Store(config.Default())

	h := Handler(Deps{
		Market:        analytics.Market{Jobs: db, Now: clock},
		Signals:       signals,
		Notifications: &notify.Service{Store: db, Signals: signals, Now: clock},
		Intel:         fakeIntel{cached: map[string][]string{"Volvo AB": {"Volvo expands"}}},
		Briefs:        briefs,
		Digest:        fakeDigest{rep: mailer.DigestReport{Success: true, Sent: 2}},
		Sessions:      db,
		Checkpoint:    db.Checkpoint,
		Hub:           hub,
		CfgVal:        &cfgVal,
		Now:           func() time.Time { return time.Now() },
	})
	return &fixture{db: db, srv: h, token: token, briefs: briefs, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "127.0.0.1:50000"
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/health", "", false)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok":true`) {
		t.Fatalf("health = %d %s", rr.Code, rr.Body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestTopPlayersQ1DataIT(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/analytics/market/top-players?range=Q1&category=Data/IT", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body)
	}
	res := decode[analytics.TopPlayersResult](t, rr)
	if res.Window != "Q1" || res.TotalAnalyzed != 6 || len(res.Players) != 2 {
		t.Fatalf("res = %+v", res)
	}
	if res.Players[0].Volume < res.Players[1].Volume {
		t.Fatal("players not sorted by volume")
	}
	if res.Players[0].Volume+res.Players[1].Volume != 6 {
		t.Fatalf("volumes = %d + %d", res.Players[0].Volume, res.Players[1].Volume)
	}
	if !strings.Contains(rr.Body.String(), `"growth":null`) {
		t.Fatalf("growth should serialize as null: %s", rr.Body)
	}
}

func TestTopPlayersEmptyListIsArray(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/analytics/market/top-players?range=Q4", "", false)
	if !strings.Contains(rr.Body.String(), `"players":[]`) {
		t.Fatalf("body = %s", rr.Body)
	}
}

func TestUserRoutesRequireSession(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/analytics/signals"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodPost, "/api/notifications"},
		{http.MethodPost, "/api/analytics/market/brief"},
		{http.MethodGet, "/api/analytics/companies/Volvo/intel"},
		{http.MethodGet, "/api/events"},
	} {
		rr := f.do(t, tc.method, tc.path, "", false)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d", tc.method, tc.path, rr.Code)
			continue
		}
		e := decode[APIError](t, rr)
		if e.Code != "unauthorized" || e.Error == "" || e.RequestID == "" {
			t.Errorf("%s %s error = %+v", tc.method, tc.path, e)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", rr.Code)
	}
	if list, _ := f.db.ListNotifications(context.Background(), "u1", 10); len(list) != 0 {
		t.Fatal("rejected request touched data")
	}
}

func TestNotificationsFallbackAndMarkRead(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/notifications", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("list = %d %s", rr.Code, rr.Body)
	}
	body := decode[struct {
		Notifications []domain.Notification `json:"notifications"`
	}](t, rr)
	if len(body.Notifications) != 1 || body.Notifications[0].Type != domain.NotificationInfo {
		t.Fatalf("notifications = %+v", body.Notifications)
	}

	id := body.Notifications[0].ID
	rr = f.do(t, http.MethodPost, "/api/notifications", `{"notificationId":"`+id+`"}`, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"success":true`) {
		t.Fatalf("mark read = %d %s", rr.Code, rr.Body)
	}

	rr = f.do(t, http.MethodPost, "/api/notifications", `{"notificationId":"nope"}`, true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown id = %d", rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/api/notifications", `{}`, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing id = %d", rr.Code)
	}
}

func TestSignalsResponse(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/analytics/signals", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body)
	}
	for _, k := range []string{`"success":true`, `"signalsDetected":`, `"signalsCreated":`, `"territoriesScanned":`} {
		if !strings.Contains(rr.Body.String(), k) {
			t.Fatalf("body %s lacks %s", rr.Body, k)
		}
	}
}

func TestBrief(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/api/analytics/market/brief", `{"range":"Q1","category":"Data/IT"}`, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body)
	}
	res := decode[briefResponse](t, rr)
	if !res.Success || res.Brief == nil || res.Brief.Summary != "Volvo leads" || res.Window != "Q1" {
		t.Fatalf("res = %+v", res)
	}
	if got := f.briefs.got.Headlines["Volvo AB"]; len(got) != 1 {
		t.Fatalf("headlines passed = %v", f.briefs.got.Headlines)
	}

	f.briefs.reply = "I cannot answer that"
	rr = f.do(t, http.MethodPost, "/api/analytics/market/brief", `{}`, true)
	res = decode[briefResponse](t, rr)
	if rr.Code != http.StatusOK || res.Success || res.Error == "" {
		t.Fatalf("parse failure = %d %+v", rr.Code, res)
	}
}

func TestCompanyIntelPath(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/analytics/companies/Volvo%20AB/intel", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body)
	}
	ci := decode[domain.CompanyIntel](t, rr)
	if ci.CompanyKey != "VOLVO" || ci.DisplayName != "Volvo AB" {
		t.Fatalf("intel = %+v", ci)
	}

	rr = f.do(t, http.MethodGet, "/api/analytics/companies/Volvo", "", true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("bad path = %d", rr.Code)
	}
}

func TestUpstreamErrorIs500(t *testing.T) {
	h := NewMux(Deps{
		Intel:    fakeIntel{err: errors.New("news source down")},
		Sessions: staticSessions{"tok": "u1"},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/companies/Volvo/intel", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decode[APIError](t, rr); e.Code != "upstream_error" {
		t.Fatalf("error = %+v", e)
	}
}

func TestIntelWithoutSourceIs503(t *testing.T) {
	h := NewMux(Deps{
		Intel:    fakeIntel{err: fmt.Errorf("lookup: %w", intel.ErrNoSource)},
		Sessions: staticSessions{"tok": "u1"},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/companies/Volvo/intel", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decode[APIError](t, rr); e.Code != "intel_unavailable" {
		t.Fatalf("error = %+v", e)
	}
}

type staticSessions map[string]string

func (s staticSessions) UserForToken(_ context.Context, token string, _ time.Time) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", store.ErrNotFound
}

func TestAdminLoopbackOnly(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/digest", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("remote digest = %d", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/api/admin/digest", "", false)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"sent":2`) {
		t.Fatalf("digest = %d %s", rr.Code, rr.Body)
	}

	rr = f.do(t, http.MethodPost, "/api/admin/checkpoint", "", false)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("checkpoint = %d %s", rr.Code, rr.Body)
	}

	rr = f.do(t, http.MethodGet, "/api/admin/config", "", false)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"validation"`) {
		t.Fatalf("config = %d %s", rr.Code, rr.Body)
	}
	if strings.Contains(rr.Body.String(), "dsn") {
		t.Fatal("config leaked the dsn")
	}
}

func TestAdminSecrets(t *testing.T) {
	keyring.MockInit()
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/admin/secrets/llm", `{"secret":"k-123"}`, false)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("set llm = %d %s", rr.Code, rr.Body)
	}
	rr = f.do(t, http.MethodPost, "/api/admin/secrets/ftp", `{"secret":"x"}`, false)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown kind = %d", rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/api/admin/secrets/smtp", `{"secret":""}`, false)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty secret = %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodDelete, "/api/notifications", "", true)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRecoverWritesJSON(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), RequestID, Recover)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decode[APIError](t, rr); e.Code != "internal_error" || e.RequestID == "" {
		t.Fatalf("error = %+v", e)
	}
}

func TestEventsStreamIsUserScoped(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.srv)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	buf := make([]byte, 4096)
	n, _ := res.Body.Read(buf) // ping
	if !strings.Contains(string(buf[:n]), `"type":"ping"`) {
		t.Fatalf("first frame = %q", buf[:n])
	}

	f.hub.PublishTo("someone-else", events.MakeEvent("", events.TypeSignalDetected, 1, map[string]string{"company": "X"}))
	f.hub.PublishTo("u1", events.MakeEvent("", events.TypeSignalDetected, 1, map[string]string{"company": "Volvo"}))

	n, _ = res.Body.Read(buf)
	got := string(buf[:n])
	if !strings.Contains(got, "Volvo") || strings.Contains(got, `"X"`) {
		t.Fatalf("frame = %q", got)
	}
}
