package analytics

import (
	"math"
	"sort"

	"talentmarket-engine/internal/domain"
)

const LeaderboardSize = 100

// CompanyAggregate is the per-company tally for one request. TotalCount is
// always the sum of CategoryCounts.
type CompanyAggregate struct {
	Key            string
	DisplayName    string
	TotalCount     int
	CategoryCounts map[string]int

	categoryOrder []string // first-seen order of CategoryCounts keys
}

func (a *CompanyAggregate) add(category string) {
	if _, ok := a.CategoryCounts[category]; !ok {
		a.categoryOrder = append(a.categoryOrder, category)
	}
	a.CategoryCounts[category]++
	a.TotalCount++
}

// TopCategory returns the category with the highest count; ties go to the
// category seen first.
func (a *CompanyAggregate) TopCategory() (string, int) {
	best, bestN := "", 0
	for _, c := range a.categoryOrder {
		if n := a.CategoryCounts[c]; n > bestN {
			best, bestN = c, n
		}
	}
	return best, bestN
}

// Aggregate groups rows by normalized company key, in encounter order. The
// first raw company string seen for a key becomes its display name.
func Aggregate(rows []domain.JobPosting) []*CompanyAggregate {
	byKey := make(map[string]*CompanyAggregate)
	var order []*CompanyAggregate
	for _, r := range rows {
		key := NormalizeCompany(r.Company)
		agg, ok := byKey[key]
		if !ok {
			agg = &CompanyAggregate{
				Key:            key,
				DisplayName:    r.Company,
				CategoryCounts: make(map[string]int),
			}
			byKey[key] = agg
			order = append(order, agg)
		}
		agg.add(r.Category())
	}
	return order
}

// VolumeByKey counts rows per normalized company key.
func VolumeByKey(rows []domain.JobPosting) map[string]int {
	out := make(map[string]int)
	for _, r := range rows {
		out[NormalizeCompany(r.Company)]++
	}
	return out
}

type Player struct {
	Name              string   `json:"name"`
	Volume            int      `json:"volume"`
	TopCategory       string   `json:"topCategory"`
	TopCategoryVolume int      `json:"topCategoryVolume"`
	Growth            *float64 `json:"growth"`
}

// BuildLeaderboard ranks companies by volume, descending, keeping encounter
// order among equal volumes, and returns at most LeaderboardSize players.
// Growth is the percent change against prior; it stays nil when the company
// had no volume there.
func BuildLeaderboard(rows []domain.JobPosting, prior map[string]int) []Player {
	aggs := Aggregate(rows)
	sort.SliceStable(aggs, func(i, j int) bool {
		return aggs[i].TotalCount > aggs[j].TotalCount
	})
	if len(aggs) > LeaderboardSize {
		aggs = aggs[:LeaderboardSize]
	}

	players := make([]Player, 0, len(aggs))
	for _, a := range aggs {
		top, topN := a.TopCategory()
		players = append(players, Player{
			Name:              a.DisplayName,
			Volume:            a.TotalCount,
			TopCategory:       top,
			TopCategoryVolume: topN,
			Growth:            growth(a.TotalCount, prior[a.Key]),
		})
	}
	return players
}

func growth(current, previous int) *float64 {
	if previous <= 0 {
		return nil
	}
	pct := float64(current-previous) / float64(previous) * 100
	pct = math.Round(pct*10) / 10
	return &pct
}
