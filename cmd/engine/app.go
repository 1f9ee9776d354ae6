package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"talentmarket-engine/internal/analytics"
	"talentmarket-engine/internal/config"
	"talentmarket-engine/internal/domain"
	"talentmarket-engine/internal/events"
	"talentmarket-engine/internal/intel"
	"talentmarket-engine/internal/llm"
	"talentmarket-engine/internal/logging"
	"talentmarket-engine/internal/mailer"
	"talentmarket-engine/internal/notify"
	"talentmarket-engine/internal/secrets"
	"talentmarket-engine/internal/store"
	"talentmarket-engine/internal/store/pgstore"
)

// dataStore is the surface both the sqlite and postgres stores offer.
type dataStore interface {
	analytics.JobSource
	InsertJobPosts(ctx context.Context, jobs []domain.JobPosting) (int, error)

	InsertNotification(ctx context.Context, n domain.Notification) (bool, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	UnreadSignals(ctx context.Context, userID string, since *time.Time) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error

	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	UpsertProfile(ctx context.Context, p domain.Profile) error
	ListProfileIDs(ctx context.Context) ([]string, error)
	ListDigestProfiles(ctx context.Context) ([]domain.Profile, error)
	SetLastDigestAt(ctx context.Context, userID string, at time.Time) error

	CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error)
	UserForToken(ctx context.Context, token string, now time.Time) (string, error)

	GetCompanyIntel(ctx context.Context, key string) (domain.CompanyIntel, error)
	UpsertCompanyIntel(ctx context.Context, ci domain.CompanyIntel) error

	RecordDelivery(ctx context.Context, d domain.Delivery) error
	MarkDeliveryBounced(ctx context.Context, id string, at time.Time) (bool, error)

	Close() error
}

type app struct {
	cfg     config.Config
	cfgPath string
	dataDir string

	store      dataStore
	checkpoint func(ctx context.Context) error // sqlite only
}

// bootstrap loads config, sets up logging and opens the migrated store.
func bootstrap(ctx context.Context, f *rootFlags) (*app, error) {
	cfgPath, created, err := config.EnsureUserConfig(f.dataDir, f.defaultCfg)
	if err != nil {
		return nil, fmt.Errorf("config bootstrap failed: %w", err)
	}
	raw, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", cfgPath, err)
	}
	secrets.Fill(&raw)

	cfg, vr := config.NormalizeAndValidate(raw)
	logging.Setup(cfg.Log.Level, cfg.Log.JSON)
	for _, w := range vr.Warnings {
		log.Warn().Str("config", cfgPath).Msg(w)
	}
	if created {
		log.Info().Str("config", cfgPath).Msg("wrote initial user config")
	}
	if err := vr.Err(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, cfgPath: cfgPath, dataDir: f.dataDir}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Database.Driver {
	case "postgres":
		pg, err := pgstore.Open(ctx, a.cfg.Database.DSN, a.cfg.Database.MaxConns, a.cfg.Database.PgBouncer)
		if err != nil {
			return err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		a.store = pg
		log.Info().Str("driver", "postgres").Msg("store ready")
	default:
		path := a.cfg.Database.DSN
		if path == "" {
			path = filepath.Join(a.dataDir, "talentmarket.db")
		}
		db, err := store.Open(path)
		if err != nil {
			return err
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return err
		}
		a.store = db
		a.checkpoint = db.Checkpoint
		log.Info().Str("driver", "sqlite").Str("path", path).Msg("store ready")
	}
	return nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

type services struct {
	market  analytics.Market
	signals *analytics.SignalService
	notify  *notify.Service
	intel   *intel.Service
	briefs  *llm.Briefer   // nil without an LLM key
	digest  *mailer.Digest // nil without SMTP
}

func (a *app) services(ctx context.Context, hub *events.Hub) services {
	cfg := a.cfg
	s := services{market: analytics.Market{Jobs: a.store}}

	s.signals = &analytics.SignalService{
		Jobs:          a.store,
		Profiles:      a.store,
		Notifications: a.store,
	}
	if hub != nil {
		s.signals.OnCreated = func(n domain.Notification) {
			hub.PublishTo(n.UserID, events.SignalDetected(n))
		}
	}
	s.notify = &notify.Service{Store: a.store, Signals: s.signals}

	limiter := intel.NewHostLimiter(cfg.Intel.RequestsPerSec, cfg.Intel.Burst)
	s.intel = &intel.Service{
		Store:   a.store,
		Fetcher: intel.NewFetcher(cfg.Intel.NewsURLTemplate, cfg.Intel.HeadlineSelector, limiter),
		TTL:     cfg.IntelTTL(),
	}

	if cfg.LLM.APIKey != "" {
		g, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.RequestsPerSec)
		if err != nil {
			log.Warn().Err(err).Msg("llm disabled")
		} else {
			s.briefs = &llm.Briefer{Model: g, MaxPromptChars: cfg.LLM.MaxPromptChars}
		}
	} else {
		log.Info().Msg("llm disabled: no api key")
	}

	if cfg.SMTP.Host != "" {
		s.digest = &mailer.Digest{
			Store: a.store,
			Sender: mailer.NewSMTPSender(mailer.SMTPConfig{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				From:     cfg.SMTP.From,
				FromName: cfg.SMTP.FromName,
			}),
			Concurrency: cfg.Digest.Concurrency,
		}
	}
	return s
}

// reconcileBounces opens the bounce mailbox for one pass.
func (a *app) reconcileBounces(ctx context.Context) (mailer.BounceReport, error) {
	cfg := a.cfg.IMAP
	if !cfg.Enabled {
		return mailer.BounceReport{}, errors.New("imap is disabled")
	}
	dctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	mb, err := mailer.DialIMAP(dctx, mailer.IMAPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		Mailbox:  cfg.Mailbox,
	})
	if err != nil {
		return mailer.BounceReport{}, err
	}
	defer mb.Close()
	b := &mailer.Bounces{Mailbox: mb, Store: a.store}
	return b.Reconcile(dctx)
}

func (a *app) addr() string {
	host := strings.TrimSpace(a.cfg.App.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, a.cfg.App.Port)
}
