package domain

import "time"

// JobPosting is a row of job_posts as seen by the analytics code. Rows are
// written by the external ingestion job and never mutated here.
type JobPosting struct {
	ID            int64
	Company       string
	BroadCategory string // "" when the ingester left it null
	Title         string
	Location      string
	County        string
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// Category returns the broad category, or "Other" when unset.
func (j JobPosting) Category() string {
	if j.BroadCategory == "" {
		return "Other"
	}
	return j.BroadCategory
}
