package resolvedates

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// Sunday
var fixedNow = time.Date(2025, 6, 15, 9, 45, 0, 0, time.UTC)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// ==========================
// Rule Tests
// ==========================

func TestResolve_Rules(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		start     time.Time
		end       time.Time
		rule      Rule
		openEnded bool
	}{
		{"month with year", "Care Stays im Mai 2025", d(2025, 5, 1), d(2025, 5, 31), RuleMonth, false},
		{"month without im", "Mai 2025", d(2025, 5, 1), d(2025, 5, 31), RuleMonth, false},
		{"leap february", "Februar 2024", d(2024, 2, 1), d(2024, 2, 29), RuleMonth, false},
		{"plain february", "Kündigungen Februar 2023", d(2023, 2, 1), d(2023, 2, 28), RuleMonth, false},
		{"month defaults to current year", "Ankünfte im Juli", d(2025, 7, 1), d(2025, 7, 31), RuleMonth, false},
		{"since month", "Alle Einsätze seit Januar", d(2025, 1, 1), d(2025, 6, 15), RuleMonth, true},
		{"since future month rolls back a year", "seit Dezember", d(2024, 12, 1), d(2025, 6, 15), RuleMonth, true},
		{"month span", "von März bis Mai", d(2025, 3, 1), d(2025, 5, 31), RuleMonth, false},
		{"abbreviation with year", "Jan 2025", d(2025, 1, 1), d(2025, 1, 31), RuleMonth, false},
		{"english month", "arrivals in March 2025", d(2025, 3, 1), d(2025, 3, 31), RuleMonth, false},

		{"paired numeric dates", "vom 01.03.2025 bis 15.04.2025", d(2025, 3, 1), d(2025, 4, 15), RuleExplicitDates, false},
		{"paired iso dates reversed", "2025-04-30 und 2025-04-01", d(2025, 4, 1), d(2025, 4, 30), RuleExplicitDates, false},
		{"since explicit date", "seit 01.03.2025", d(2025, 3, 1), d(2025, 6, 15), RuleExplicitDates, true},
		{"single textual date", "am 15. März 2025", d(2025, 3, 15), d(2025, 3, 15), RuleExplicitDates, false},

		{"whole year", "Umsatz 2024", d(2024, 1, 1), d(2024, 12, 31), RuleYear, false},
		{"since year", "seit 2024", d(2024, 1, 1), d(2025, 6, 15), RuleYear, true},
		{"quarter token", "Q1 2025", d(2025, 1, 1), d(2025, 3, 31), RuleYear, false},

		{"last n days", "die letzten 30 Tage", d(2025, 5, 16), d(2025, 6, 15), RuleRelative, false},
		{"last n months in words", "in den letzten drei Monaten", d(2025, 3, 15), d(2025, 6, 15), RuleRelative, false},
		{"last week", "letzte Woche", d(2025, 6, 2), d(2025, 6, 8), RuleRelative, false},
		{"this month", "diesen Monat", d(2025, 6, 1), d(2025, 6, 30), RuleRelative, false},
		{"last month", "Kündigungen letzten Monat", d(2025, 5, 1), d(2025, 5, 31), RuleRelative, false},
		{"last year", "letztes Jahr", d(2024, 1, 1), d(2024, 12, 31), RuleRelative, false},
		{"last quarter", "im letzten Quartal", d(2025, 1, 1), d(2025, 3, 31), RuleRelative, false},
		{"since last week", "seit letzter Woche", d(2025, 6, 2), d(2025, 6, 15), RuleRelative, true},
		{"yesterday", "Ankünfte gestern", d(2025, 6, 14), d(2025, 6, 14), RuleRelative, false},

		{"month word fallback", "wie viele Einsätze pro Monat", d(2025, 6, 1), d(2025, 6, 30), RuleMonthFallback, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ResolveDetailed(tt.text, fixedNow)
			require.NotNil(t, out.Range)
			assert.Equal(t, tt.start, out.Range.Start)
			assert.Equal(t, tt.end, out.Range.End)
			assert.Equal(t, tt.rule, out.Rule)
			assert.Equal(t, tt.openEnded, out.OpenEnded)
			assert.False(t, out.Range.End.Before(out.Range.Start))
		})
	}
}

func TestResolve_NoCue(t *testing.T) {
	for _, text := range []string{
		"",
		"Hallo, wie geht's?",
		"Zeig mir den Kunden Jan Becker",
		"Was ist Dein Lieblingsessen?",
	} {
		assert.Nil(t, Resolve(text, fixedNow), text)
	}
}

func TestResolve_InvalidDateFallsThrough(t *testing.T) {
	out := ResolveDetailed("am 31.02.2025", fixedNow)

	require.NotNil(t, out.Range)
	assert.Equal(t, RuleYear, out.Rule)
	assert.Equal(t, d(2025, 1, 1), out.Range.Start)
}

func TestResolve_SameInputSameOutput(t *testing.T) {
	a := Resolve("seit März", fixedNow)
	b := Resolve("seit März", fixedNow)
	require.NotNil(t, a)
	assert.Equal(t, *a, *b)
}

func TestLookupMonth(t *testing.T) {
	m, ok := LookupMonth("Sept.")
	assert.True(t, ok)
	assert.Equal(t, time.September, m)

	_, ok = LookupMonth("montag")
	assert.False(t, ok)
}

func TestResolve_EveryMonthAndYear(t *testing.T) {
	names := []string{"Januar", "Februar", "März", "April", "Mai", "Juni", "Juli", "August", "September", "Oktober", "November", "Dezember"}
	// 2020, 2024 and 2028 are leap years
	years := []int{2020, 2023, 2024, 2025, 2026, 2028}

	for _, y := range years {
		for i, name := range names {
			m := time.Month(i + 1)
			first := d(y, m, 1)
			last := first.AddDate(0, 1, -1)

			for _, text := range []string{
				fmt.Sprintf("%s %d", name, y),
				fmt.Sprintf("im %s %d", name, y),
				fmt.Sprintf("Wie viele Kündigungen gab es im %s %d?", strings.ToLower(name), y),
			} {
				r := Resolve(text, fixedNow)
				require.NotNil(t, r, text)
				assert.True(t, first.Equal(r.Start), "%s: start %s", text, r.StartString())
				assert.True(t, last.Equal(r.End), "%s: end %s", text, r.EndString())
			}
		}
	}

	feb := Resolve("im Februar 2024", fixedNow)
	require.NotNil(t, feb)
	assert.Equal(t, "2024-02-29", feb.EndString())
	feb = Resolve("im Februar 2023", fixedNow)
	require.NotNil(t, feb)
	assert.Equal(t, "2023-02-28", feb.EndString())
}
