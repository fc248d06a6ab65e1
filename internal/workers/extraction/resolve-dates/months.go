package resolvedates

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

var monthNames = map[string]time.Month{
	"januar": time.January, "jan": time.January, "jänner": time.January, "january": time.January,
	"februar": time.February, "feb": time.February, "february": time.February,
	"märz": time.March, "maerz": time.March, "mär": time.March, "mar": time.March, "march": time.March,
	"april": time.April, "apr": time.April,
	"mai": time.May, "may": time.May,
	"juni": time.June, "jun": time.June, "june": time.June,
	"juli": time.July, "jul": time.July, "july": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"oktober": time.October, "okt": time.October, "oct": time.October, "october": time.October,
	"november": time.November, "nov": time.November,
	"dezember": time.December, "dez": time.December, "dec": time.December, "december": time.December,
}

// monthAlternation lists names longest first so "september" wins over "sep".
var monthAlternation = func() string {
	names := make([]string, 0, len(monthNames))
	for n := range monthNames {
		names = append(names, regexp.QuoteMeta(n))
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return strings.Join(names, "|")
}()

// LookupMonth resolves a month token (any case, optional trailing dot).
func LookupMonth(token string) (time.Month, bool) {
	m, ok := monthNames[strings.TrimSuffix(strings.ToLower(token), ".")]
	return m, ok
}
