package domain

import "time"

type Profile struct {
	ID           string
	Email        string
	FullName     string
	Territories  []string // counties of interest; empty matches everything
	DigestOptIn  bool
	LastDigestAt *time.Time
}

// Delivery records one outbound email attempt.
type Delivery struct {
	ID        string // Message-ID for sent mail, generated id otherwise
	UserID    string
	Email     string
	Kind      string // "digest"
	Status    string // sent | failed | bounced
	Error     string
	CreatedAt time.Time
}
