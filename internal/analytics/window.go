package analytics

import (
	"strings"
	"time"
)

// Window is the created_at range a leaderboard is computed over. A zero End
// means the window is open up to now.
type Window struct {
	Label string
	Start time.Time
	End   time.Time
}

// ResolveWindow maps the range query parameter to a time window. Q1–Q4 are
// quarters of now's year, "2024" is that calendar year, anything else is the
// trailing 30 days.
func ResolveWindow(rng string, now time.Time) Window {
	now = now.UTC()
	year := now.Year()

	quarter := func(q int) Window {
		start := time.Date(year, time.Month(3*(q-1)+1), 1, 0, 0, 0, 0, time.UTC)
		return Window{
			Label: "Q" + string(rune('0'+q)),
			Start: start,
			End:   start.AddDate(0, 3, 0).Add(-time.Millisecond),
		}
	}

	switch strings.ToUpper(strings.TrimSpace(rng)) {
	case "Q1":
		return quarter(1)
	case "Q2":
		return quarter(2)
	case "Q3":
		return quarter(3)
	case "Q4":
		return quarter(4)
	case "2024":
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		return Window{Label: "2024", Start: start, End: start.AddDate(1, 0, 0).Add(-time.Millisecond)}
	default:
		return Window{Label: "30d", Start: now.AddDate(0, 0, -30)}
	}
}

// Prior returns the window of equal length ending just before w starts.
func (w Window) Prior(now time.Time) Window {
	end := w.End
	if end.IsZero() {
		end = now.UTC()
	}
	length := end.Sub(w.Start)
	return Window{
		Label: w.Label + "-prior",
		Start: w.Start.Add(-length),
		End:   w.Start.Add(-time.Millisecond),
	}
}
