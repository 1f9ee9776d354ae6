package httpapi

import (
	"context"
	"sync/atomic"
	"time"

	"talentmarket-engine/internal/analytics"
	"talentmarket-engine/internal/domain"
	"talentmarket-engine/internal/events"
	"talentmarket-engine/internal/llm"
	"talentmarket-engine/internal/mailer"
)

type TopPlayersService interface {
	TopPlayers(ctx context.Context, p analytics.TopPlayersParams) (analytics.TopPlayersResult, error)
}

type SignalScanner interface {
	Scan(ctx context.Context, userID string) (analytics.ScanResult, error)
}

type NotificationService interface {
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type IntelService interface {
	Get(ctx context.Context, company string) (domain.CompanyIntel, error)
	Cached(ctx context.Context, company string) (domain.CompanyIntel, error)
}

type BriefGenerator interface {
	Generate(ctx context.Context, in llm.BriefInput) (llm.Brief, error)
}

type DigestRunner interface {
	Run(ctx context.Context) (mailer.DigestReport, error)
}

type Deps struct {
	Market        TopPlayersService
	Signals       SignalScanner
	Notifications NotificationService
	Intel         IntelService
	Briefs        BriefGenerator // nil when no LLM key is configured
	Digest        DigestRunner   // nil when SMTP is not configured
	Sessions      SessionResolver

	// Checkpoint flushes the SQLite WAL; nil on Postgres.
	Checkpoint func(ctx context.Context) error

	Hub *events.Hub

	CfgVal *atomic.Value // stores config.Config

	Now func() time.Time
}
