package httpapi

import (
	"net/http"
	"sync/atomic"

	"talentmarket-engine/internal/config"
)

type ConfigHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

// Get returns the running config with its validation result. Secrets are
// never serialized.
func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cur := h.CfgVal.Load().(config.Config)
	_, vr := config.NormalizeAndValidate(cur)
	if vr.Errors == nil {
		vr.Errors = []string{}
	}
	if vr.Warnings == nil {
		vr.Warnings = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"config":     cur,
		"validation": vr,
	})
}
