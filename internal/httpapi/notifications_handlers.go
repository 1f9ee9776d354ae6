package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"talentmarket-engine/internal/domain"
	"talentmarket-engine/internal/store"
)

type NotificationsHandler struct {
	Service NotificationService
}

func (h NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, "list notifications", err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

type markReadRequest struct {
	NotificationID string `json:"notificationId"`
}

func (h NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json: "+err.Error())
		return
	}
	id := strings.TrimSpace(req.NotificationID)
	if id == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_id", "notificationId is required")
		return
	}

	err := h.Service.MarkRead(r.Context(), UserIDFrom(r.Context()), id)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "notification not found")
		return
	}
	if err != nil {
		writeServiceError(w, r, "mark notification read", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
