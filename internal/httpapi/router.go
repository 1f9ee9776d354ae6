package httpapi

import (
	"net/http"
	"time"
)

// NewMux wires every route. User-scoped routes sit behind Auth.Require and
// admin routes behind LoopbackOnly.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	auth := Auth{Sessions: d.Sessions, Now: d.Now}

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: HealthHandler{}.Health,
	}))

	// Analytics
	ah := AnalyticsHandler{
		Market:  d.Market,
		Scanner: d.Signals,
		Intel:   d.Intel,
		Briefs:  d.Briefs,
	}
	mux.HandleFunc("/api/analytics/market/top-players", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ah.TopPlayers,
	}))
	mux.HandleFunc("/api/analytics/market/brief", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: auth.Require(ah.Brief),
	}))
	mux.HandleFunc("/api/analytics/companies/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: auth.Require(ah.CompanyIntel), // expects /api/analytics/companies/{name}/intel
	}))
	mux.HandleFunc("/api/analytics/signals", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: auth.Require(ah.Signals),
	}))

	// Notifications
	nh := NotificationsHandler{Service: d.Notifications}
	mux.HandleFunc("/api/notifications", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  auth.Require(nh.List),
		http.MethodPost: auth.Require(nh.MarkRead),
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/api/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: auth.Require(eh.ServeSSE),
	}))

	// Admin (loopback only)
	adm := AdminHandler{Digest: d.Digest, Checkpoint: d.Checkpoint, Hub: d.Hub}
	mux.HandleFunc("/api/admin/digest", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: LoopbackOnly(adm.RunDigest),
	}))
	mux.HandleFunc("/api/admin/checkpoint", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: LoopbackOnly(adm.CheckpointDB),
	}))
	ch := ConfigHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/admin/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: LoopbackOnly(ch.Get),
	}))
	sh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/admin/secrets/", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: LoopbackOnly(sh.Set),
	}))

	return mux
}

// Handler wraps the mux in the standard middleware chain.
func Handler(d Deps) http.Handler {
	return Chain(NewMux(d), RequestID, Recover, AccessLog, Cors)
}

// NewServer returns an http.Server with the engine's timeouts. WriteTimeout
// stays unset so SSE streams are not cut.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
