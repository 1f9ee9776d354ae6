package analytics

import "strings"

const UnknownCompany = "UNKNOWN"

// Organizational suffixes dropped from the end of a company name, matched
// against the uppercased name. At most one is removed.
var companySuffixes = []string{
	" STADSFÖRVALTNING",
	" AKTIEBOLAG",
	" KOMMUNE",
	" KOMMUN",
	" SVERIGE",
	" SWEDEN",
	" GROUP",
	" STADS",
	" STAD",
	" AB",
}

// NormalizeCompany maps a raw company string to the key used for grouping:
// uppercased, with one trailing organizational suffix removed. Empty input
// maps to UnknownCompany.
func NormalizeCompany(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return UnknownCompany
	}
	for _, suf := range companySuffixes {
		if strings.HasSuffix(s, suf) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suf))
			break
		}
	}
	if s == "" {
		return UnknownCompany
	}
	return s
}
