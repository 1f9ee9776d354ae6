package events

import (
	"encoding/json"
	"time"

	"talentmarket-engine/internal/domain"
)

const (
	TypePing           = "ping"
	TypeSignalDetected = "signal_detected"
	TypeDigestFinished = "digest_finished"
)

// Event is the envelope written to SSE streams as one data line.
type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SignalPayload is the data of a signal_detected event.
type SignalPayload struct {
	NotificationID string `json:"notification_id"`
	CompanyName    string `json:"company_name"`
	Title          string `json:"title"`
}

// DigestPayload is the data of a digest_finished event.
type DigestPayload struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	b, _ := json.Marshal(Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	})
	return string(b)
}

func SignalDetected(n domain.Notification) string {
	return MakeEvent("", TypeSignalDetected, 1, SignalPayload{
		NotificationID: n.ID,
		CompanyName:    n.CompanyName,
		Title:          n.Title,
	})
}

func DigestFinished(reqID string, p DigestPayload) string {
	return MakeEvent(reqID, TypeDigestFinished, 1, p)
}
