package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"talentmarket-engine/internal/analytics"
	"talentmarket-engine/internal/llm"
)

type AnalyticsHandler struct {
	Market  TopPlayersService
	Scanner SignalScanner
	Intel   IntelService
	Briefs  BriefGenerator
}

func (h AnalyticsHandler) TopPlayers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Market.TopPlayers(r.Context(), analytics.TopPlayersParams{
		Range:    q.Get("range"),
		Category: q.Get("category"),
		Location: q.Get("location"),
	})
	if err != nil {
		writeServiceError(w, r, "top players", err)
		return
	}
	if res.Players == nil {
		res.Players = []analytics.Player{}
	}
	WriteJSON(w, http.StatusOK, res)
}

type signalsResponse struct {
	Success bool `json:"success"`
	analytics.ScanResult
}

func (h AnalyticsHandler) Signals(w http.ResponseWriter, r *http.Request) {
	res, err := h.Scanner.Scan(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, "signal scan", err)
		return
	}
	WriteJSON(w, http.StatusOK, signalsResponse{Success: true, ScanResult: res})
}

type briefRequest struct {
	Range    string `json:"range"`
	Category string `json:"category"`
	Location string `json:"location"`
}

type briefResponse struct {
	Success bool       `json:"success"`
	Window  string     `json:"window,omitempty"`
	Brief   *llm.Brief `json:"brief,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Brief asks the LLM to summarize the current leaderboard, using any cached
// company headlines as extra context.
func (h AnalyticsHandler) Brief(w http.ResponseWriter, r *http.Request) {
	if h.Briefs == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "llm_unavailable", "no LLM is configured")
		return
	}
	var req briefRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json: "+err.Error())
		return
	}

	ctx := r.Context()
	board, err := h.Market.TopPlayers(ctx, analytics.TopPlayersParams{
		Range: req.Range, Category: req.Category, Location: req.Location,
	})
	if err != nil {
		writeServiceError(w, r, "top players", err)
		return
	}

	headlines := map[string][]string{}
	for i, p := range board.Players {
		if i == 10 {
			break
		}
		ci, err := h.Intel.Cached(ctx, p.Name)
		if err != nil {
			log.Warn().Err(err).Str("company", p.Name).Msg("brief: cached intel")
			continue
		}
		if len(ci.Headlines) > 0 {
			headlines[p.Name] = ci.Headlines
		}
	}

	brief, err := h.Briefs.Generate(ctx, llm.BriefInput{
		Window:    board.Window,
		Category:  req.Category,
		Location:  req.Location,
		Players:   board.Players,
		Headlines: headlines,
	})
	var pe *llm.ParseError
	switch {
	case errors.As(err, &pe):
		log.Warn().Err(err).Str("request_id", RequestIDFrom(ctx)).Msg("brief: unparseable llm reply")
		WriteJSON(w, http.StatusOK, briefResponse{Success: false, Error: pe.Error()})
		return
	case err != nil:
		writeServiceError(w, r, "market brief", err)
		return
	}
	WriteJSON(w, http.StatusOK, briefResponse{Success: true, Window: board.Window, Brief: &brief})
}

// CompanyIntel serves /api/analytics/companies/{name}/intel.
func (h AnalyticsHandler) CompanyIntel(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/api/analytics/companies/")
	raw, ok := strings.CutSuffix(rest, "/intel")
	if !ok || raw == "" || strings.Contains(raw, "/") {
		WriteError(w, r, http.StatusNotFound, "not_found", "not found")
		return
	}
	name, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(name) == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_company", "invalid company name")
		return
	}

	ci, err := h.Intel.Get(r.Context(), name)
	if err != nil {
		writeServiceError(w, r, "company intel", err)
		return
	}
	if ci.Headlines == nil {
		ci.Headlines = []string{}
	}
	WriteJSON(w, http.StatusOK, ci)
}
