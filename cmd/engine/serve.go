package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"talentmarket-engine/internal/events"
	"talentmarket-engine/internal/httpapi"
	"talentmarket-engine/internal/scheduler"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, if this process wins the lock, the background tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, f)
		},
	}
}

func serve(ctx context.Context, f *rootFlags) error {
	a, err := bootstrap(ctx, f)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := events.NewHub()
	svc := a.services(ctx, hub)

	var cfgVal atomic.Value // stores config.Config
	cfgVal.Store(a.cfg)

	deps := httpapi.Deps{
		Market:        svc.market,
		Signals:       svc.signals,
		Notifications: svc.notify,
		Intel:         svc.intel,
		Sessions:      a.store,
		Checkpoint:    a.checkpoint,
		Hub:           hub,
		CfgVal:        &cfgVal,
	}
	// Typed nils would pass the handlers' nil checks.
	if svc.briefs != nil {
		deps.Briefs = svc.briefs
	}
	if svc.digest != nil {
		deps.Digest = svc.digest
	}

	lock, ok, err := scheduler.TryLock(a.dataDir)
	if err != nil {
		return err
	}
	if ok {
		defer lock.Release()
		startBackground(ctx, a, svc, hub)
	} else {
		log.Info().Msg("scheduler lock held by another process; background tasks disabled")
	}

	mux := httpapi.NewMux(deps)
	srv := httpapi.NewServer(a.addr(), nil)
	shutdownToken, err := randomToken(32)
	if err != nil {
		return err
	}
	tokenPath := filepath.Join(a.dataDir, "shutdown.token")
	if err := os.WriteFile(tokenPath, []byte(shutdownToken), 0o600); err != nil {
		return err
	}
	defer os.Remove(tokenPath)
	mux.HandleFunc("/api/admin/shutdown", shutdownHandler(&shutdownToken, srv))
	srv.Handler = httpapi.Chain(mux, httpapi.RequestID, httpapi.Recover, httpapi.AccessLog, httpapi.Cors)

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", "http://"+srv.Addr).Str("config", a.cfgPath).Msg("engine listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startBackground runs the periodic sweep, digest and bounce tasks.
func startBackground(ctx context.Context, a *app, svc services, hub *events.Hub) {
	cfg := a.cfg

	go scheduler.Every(ctx, time.Duration(cfg.Analytics.SweepMinutes)*time.Minute, "signal_sweep", func(ctx context.Context) error {
		ids, err := a.store.ListProfileIDs(ctx)
		if err != nil {
			return err
		}
		res, err := svc.signals.Sweep(ctx, ids)
		if err != nil {
			return err
		}
		log.Info().Int("users", len(ids)).Int("created", res.SignalsCreated).Msg("signal sweep")
		return nil
	})

	if svc.digest != nil {
		go scheduler.Every(ctx, time.Duration(cfg.Digest.IntervalMinutes)*time.Minute, "digest", func(ctx context.Context) error {
			rep, err := svc.digest.Run(ctx)
			if err != nil {
				return err
			}
			hub.Broadcast(events.DigestFinished("", events.DigestPayload{
				Sent: rep.Sent, Failed: rep.Failed, Skipped: rep.Skipped,
			}))
			return nil
		})
	}

	if cfg.IMAP.Enabled {
		go scheduler.Every(ctx, time.Hour, "bounce_reconcile", func(ctx context.Context) error {
			rep, err := a.reconcileBounces(ctx)
			if err != nil {
				return err
			}
			if rep.Bounced > 0 {
				log.Info().Int("scanned", rep.Scanned).Int("bounced", rep.Bounced).Msg("bounces reconciled")
			}
			return nil
		})
	}
}
