package selectquery

import (
	"fmt"
	"regexp"
	"time"

	"care-assistant/internal/models"
	extractentities "care-assistant/internal/workers/extraction/extract-entities"
)

var sinceRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(seit|since|from|ab)(?:[^\p{L}]|$)`)

// mergeParams keeps the model's values for declared parameters and lets the
// deterministic extraction win where both have a value.
func mergeParams(d *models.QueryDescriptor, proposed map[string]interface{}, dates *models.DateRange, entities extractentities.Entities) map[string]interface{} {
	params := map[string]interface{}{}
	for k, v := range proposed {
		if k == "seller_id" || !d.Declares(k) || isEmpty(v) {
			continue
		}
		params[k] = v
	}

	if dates != nil {
		if d.Declares("start_date") {
			params["start_date"] = dates.StartString()
		}
		if d.Declares("end_date") {
			params["end_date"] = dates.EndString()
		}
	}

	for k, v := range entities.Params() {
		if d.Declares(k) {
			params[k] = v
		}
	}
	return params
}

// applyDateRules runs the "since" and current-month rules on the merged params.
func applyDateRules(d *models.QueryDescriptor, params map[string]interface{}, utterance string, now time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	_, hasStart := params["start_date"]
	_, hasEnd := params["end_date"]

	if hasStart && !hasEnd && d.Declares("end_date") && sinceRe.MatchString(utterance) {
		params["end_date"] = today.Format(models.DateLayout)
		hasEnd = true
	}

	if !d.NeedsDateRange() {
		return
	}
	switch {
	case !hasStart && !hasEnd:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		params["start_date"] = first.Format(models.DateLayout)
		params["end_date"] = first.AddDate(0, 1, -1).Format(models.DateLayout)
	case hasStart && !hasEnd:
		params["end_date"] = today.Format(models.DateLayout)
	case !hasStart && hasEnd:
		if end, err := time.Parse(models.DateLayout, fmt.Sprint(params["end_date"])); err == nil {
			params["start_date"] = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC).Format(models.DateLayout)
		}
	}
}

func missingRequired(d *models.QueryDescriptor, params map[string]interface{}) []string {
	return d.MissingParams(params)
}

func isEmpty(v interface{}) bool {
	return models.IsEmptyValue(v)
}

func clampConfidence(c float64) int {
	n := int(c + 0.5)
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}
