package httpapi

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"talentmarket-engine/internal/events"
)

type AdminHandler struct {
	Digest     DigestRunner
	Checkpoint func(ctx context.Context) error
	Hub        *events.Hub
}

func (h AdminHandler) CheckpointDB(w http.ResponseWriter, r *http.Request) {
	if h.Checkpoint == nil {
		WriteError(w, r, http.StatusNotImplemented, "not_supported", "checkpoint is only available on sqlite")
		return
	}
	if err := h.Checkpoint(r.Context()); err != nil {
		writeServiceError(w, r, "checkpoint", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunDigest sends the signal digest now and returns the itemized report.
func (h AdminHandler) RunDigest(w http.ResponseWriter, r *http.Request) {
	if h.Digest == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "smtp_unavailable", "smtp is not configured")
		return
	}
	rep, err := h.Digest.Run(r.Context())
	if err != nil {
		writeServiceError(w, r, "digest", err)
		return
	}
	if h.Hub != nil {
		h.Hub.Broadcast(events.DigestFinished(RequestIDFrom(r.Context()), events.DigestPayload{
			Sent: rep.Sent, Failed: rep.Failed, Skipped: rep.Skipped,
		}))
	}
	log.Info().Str("request_id", RequestIDFrom(r.Context())).Int("sent", rep.Sent).Msg("manual digest run")
	WriteJSON(w, http.StatusOK, rep)
}
