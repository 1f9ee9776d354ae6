package domain

import "time"

const (
	NotificationSignal = "signal"
	NotificationInfo   = "info"
)

type Notification struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
	IsRead      bool      `json:"is_read"`
	CompanyName string    `json:"company_name,omitempty"`
	DedupeKey   string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
