package domain

import "time"

// JobQuery is the predicate the data store applies to job_posts before
// pagination. A zero Until means no upper bound.
type JobQuery struct {
	Since    time.Time
	Until    time.Time
	Category string
	Location string
}
