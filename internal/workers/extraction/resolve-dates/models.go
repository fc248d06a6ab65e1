// internal/workers/extraction/resolve-dates/models.go
package resolvedates

import "care-assistant/internal/models"

// Rule names which resolution rule produced a range.
type Rule string

const (
	RuleExplicitDates Rule = "explicit_dates"
	RuleMonth         Rule = "month"
	RuleYear          Rule = "year"
	RuleRelative      Rule = "relative"
	RuleMonthFallback Rule = "month_fallback"
)

type Output struct {
	Range *models.DateRange `json:"range,omitempty"`
	Rule  Rule              `json:"rule,omitempty"`
	// OpenEnded is set when only a start was stated ("seit März") and End was set to today.
	OpenEnded bool `json:"openEnded,omitempty"`
}
