package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"talentmarket-engine/internal/config"
	"talentmarket-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setSecretReq struct {
	Secret string `json:"secret"`
}

// Set stores /api/admin/secrets/{llm,smtp,imap} in the OS keychain.
func (h SecretsHandler) Set(w http.ResponseWriter, r *http.Request) {
	kind := strings.TrimPrefix(r.URL.Path, "/api/admin/secrets/")

	var req setSecretReq
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	acct, err := secrets.Account(cfg, kind)
	if errors.Is(err, secrets.ErrUnknownKind) {
		WriteError(w, r, http.StatusNotFound, "unknown_secret", err.Error())
		return
	}
	if err := secrets.Set(acct, req.Secret); err != nil {
		WriteError(w, r, http.StatusBadRequest, "secret_rejected", "failed to store secret: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
