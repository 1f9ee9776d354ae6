package domain

import "time"

// CompanyIntel is the cached row of company_intelligence, keyed by the
// normalized company name.
type CompanyIntel struct {
	CompanyKey  string    `json:"companyKey"`
	DisplayName string    `json:"displayName"`
	SourceURL   string    `json:"sourceUrl"`
	Headlines   []string  `json:"headlines"`
	FetchedAt   time.Time `json:"fetchedAt"`
}
