package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"talentmarket-engine/internal/intel"
	"talentmarket-engine/internal/store"
)

type APIError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, status, APIError{
		Error:     message,
		Code:      code,
		RequestID: RequestIDFrom(r.Context()),
	})
}

// writeServiceError maps a service error to a response. Anything that is
// not a known sentinel is an upstream failure and becomes a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "not found")
		return
	}
	if errors.Is(err, intel.ErrNoSource) {
		WriteError(w, r, http.StatusServiceUnavailable, "intel_unavailable", err.Error())
		return
	}
	log.Error().Err(err).Str("request_id", RequestIDFrom(r.Context())).Str("op", op).Msg("request failed")
	WriteError(w, r, http.StatusInternalServerError, "upstream_error", op+" failed")
}
