package analytics

import (
	"strings"
	"time"

	"talentmarket-engine/internal/domain"
)

const (
	SurgeMultiplier  = 2.5
	SurgeMinCount    = 3
	MaxSignalsPerRun = 5
)

// CompanyStats is the 30/7-day tally for one company.
type CompanyStats struct {
	Key         string
	DisplayName string
	Total30d    int
	Total7d     int
	Counties    []string // distinct, first-seen order
}

func (c CompanyStats) WeeklyAverage() float64 {
	return float64(c.Total30d) / 4
}

// IsSurge reports whether the last 7 days run well above the trailing
// weekly average. Both conditions are strict.
func IsSurge(total7d, total30d int) bool {
	avg := float64(total30d) / 4
	return float64(total7d) > avg*SurgeMultiplier && total7d > SurgeMinCount
}

// CollectStats groups rows by normalized company key in encounter order.
func CollectStats(rows []domain.JobPosting, sevenDaysAgo time.Time) []*CompanyStats {
	byKey := make(map[string]*CompanyStats)
	seenCounty := make(map[string]map[string]bool)
	var order []*CompanyStats

	for _, r := range rows {
		key := NormalizeCompany(r.Company)
		st, ok := byKey[key]
		if !ok {
			st = &CompanyStats{Key: key, DisplayName: r.Company}
			byKey[key] = st
			seenCounty[key] = make(map[string]bool)
			order = append(order, st)
		}
		st.Total30d++
		if !r.CreatedAt.Before(sevenDaysAgo) {
			st.Total7d++
		}
		if c := strings.TrimSpace(r.County); c != "" {
			lc := strings.ToLower(c)
			if !seenCounty[key][lc] {
				seenCounty[key][lc] = true
				st.Counties = append(st.Counties, c)
			}
		}
	}
	return order
}

// Relevant reports whether the company touches any of the territories. An
// empty territory list matches everything.
func (c CompanyStats) Relevant(territories []string) bool {
	if len(territories) == 0 {
		return true
	}
	for _, t := range territories {
		for _, county := range c.Counties {
			if strings.EqualFold(strings.TrimSpace(t), county) {
				return true
			}
		}
	}
	return false
}

// DetectSurges returns the relevant surging companies, at most
// MaxSignalsPerRun, in the order companies were first seen.
func DetectSurges(rows []domain.JobPosting, sevenDaysAgo time.Time, territories []string) []CompanyStats {
	var out []CompanyStats
	for _, st := range CollectStats(rows, sevenDaysAgo) {
		if !IsSurge(st.Total7d, st.Total30d) || !st.Relevant(territories) {
			continue
		}
		out = append(out, *st)
		if len(out) == MaxSignalsPerRun {
			break
		}
	}
	return out
}
