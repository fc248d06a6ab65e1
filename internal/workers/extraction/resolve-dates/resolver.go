// internal/workers/extraction/resolve-dates/resolver.go
package resolvedates

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"care-assistant/internal/models"
)

var (
	numericDateRe = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	isoDateRe     = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	textDateRe    = regexp.MustCompile(`(\d{1,2})\.?\s+(` + monthAlternation + `)\.?\s+(\d{4})`)

	yearTokenRe    = regexp.MustCompile(`^20\d\d$`)
	quarterTokenRe = regexp.MustCompile(`^q([1-4])$`)

	lastNRe = regexp.MustCompile(` (?:letzte|letzten|letzter|vergangene|vergangenen|seit|last|past|previous) ` +
		`(\d+|ein|einen|eine|einem|zwei|drei|vier|fünf|fuenf|sechs|sieben|acht|neun|zehn|elf|zwölf|zwoelf|two|three|four|five|six|seven|eight|nine|ten|twelve) ` +
		`(tag|tage|tagen|day|days|woche|wochen|week|weeks|monat|monate|monaten|month|months|jahr|jahre|jahren|year|years) `)

	periodRe = regexp.MustCompile(` (letzte|letzten|letzter|letztes|vergangene|vergangenen|vergangener|vergangenes|vorige|vorigen|voriger|voriges|last|previous|` +
		`diese|diesen|dieser|dieses|this|current|aktuelle|aktuellen|aktueller|aktuelles|laufende|laufenden|laufender|laufendes|` +
		`nächste|nächsten|nächster|nächstes|naechste|naechsten|naechster|naechstes|kommende|kommenden|kommender|kommendes|next) ` +
		`(woche|week|monat|monats|month|jahr|jahres|year|quartal|quartals|quarter) `)

	dayWordRe = regexp.MustCompile(` (heute|today|gestern|yesterday|morgen|tomorrow) `)
)

var sinceWords = map[string]bool{"seit": true, "since": true, "ab": true, "from": true}

// ambiguousMonths are abbreviations that double as names or words ("Jan", "may").
// They only count as months when a year follows or a preposition leads.
var ambiguousMonths = map[string]bool{
	"jan": true, "feb": true, "mar": true, "mär": true, "apr": true, "may": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "sept": true, "okt": true, "oct": true,
	"nov": true, "dez": true, "dec": true,
}

var monthLeads = map[string]bool{
	"im": true, "in": true, "seit": true, "since": true, "ab": true, "from": true,
	"bis": true, "to": true, "und": true, "and": true, "vom": true,
}

var numberWords = map[string]int{
	"ein": 1, "einen": 1, "eine": 1, "einem": 1,
	"zwei": 2, "two": 2, "drei": 3, "three": 3, "vier": 4, "four": 4,
	"fünf": 5, "fuenf": 5, "five": 5, "sechs": 6, "six": 6, "sieben": 7, "seven": 7,
	"acht": 8, "eight": 8, "neun": 9, "nine": 9, "zehn": 10, "ten": 10,
	"elf": 11, "zwölf": 12, "zwoelf": 12, "twelve": 12,
}

// Resolve returns the date range expressed in text, or nil. It never fails.
func Resolve(text string, now time.Time) *models.DateRange {
	return ResolveDetailed(text, now).Range
}

// ResolveDetailed applies the rules in order; the first rule that yields a range wins.
func ResolveDetailed(text string, now time.Time) Output {
	lower := strings.ToLower(text)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	norm := " " + strings.Join(tokens, " ") + " "
	today := day(now)

	since := false
	for _, t := range tokens {
		if sinceWords[t] {
			since = true
			break
		}
	}

	if out, ok := explicitDates(lower, today, since); ok {
		return out
	}
	if out, ok := monthRule(tokens, today, since); ok {
		return out
	}
	if out, ok := yearRule(tokens, today, since); ok {
		return out
	}
	if out, ok := relativeRule(norm, today, since); ok {
		return out
	}
	for _, t := range tokens {
		if t == "monat" || t == "monats" || t == "month" {
			r := monthRange(today.Year(), today.Month())
			return Output{Range: &r, Rule: RuleMonthFallback}
		}
	}
	return Output{}
}

type datedMatch struct {
	pos  int
	date time.Time
}

func explicitDates(lower string, today time.Time, since bool) (Output, bool) {
	var found []datedMatch

	for _, m := range numericDateRe.FindAllStringSubmatchIndex(lower, -1) {
		if d, ok := makeDate(lower[m[6]:m[7]], lower[m[4]:m[5]], lower[m[2]:m[3]]); ok {
			found = append(found, datedMatch{pos: m[0], date: d})
		}
	}
	for _, m := range isoDateRe.FindAllStringSubmatchIndex(lower, -1) {
		if d, ok := makeDate(lower[m[2]:m[3]], lower[m[4]:m[5]], lower[m[6]:m[7]]); ok {
			found = append(found, datedMatch{pos: m[0], date: d})
		}
	}
	for _, m := range textDateRe.FindAllStringSubmatchIndex(lower, -1) {
		month, ok := LookupMonth(lower[m[4]:m[5]])
		if !ok {
			continue
		}
		if d, ok := makeDate(lower[m[6]:m[7]], strconv.Itoa(int(month)), lower[m[2]:m[3]]); ok {
			found = append(found, datedMatch{pos: m[0], date: d})
		}
	}

	if len(found) == 0 {
		return Output{}, false
	}
	sort.Slice(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	if len(found) >= 2 {
		start, end := found[0].date, found[len(found)-1].date
		if end.Before(start) {
			start, end = end, start
		}
		return Output{Range: &models.DateRange{Start: start, End: end}, Rule: RuleExplicitDates}, true
	}

	d := found[0].date
	if since && !d.After(today) {
		return Output{Range: &models.DateRange{Start: d, End: today}, Rule: RuleExplicitDates, OpenEnded: true}, true
	}
	return Output{Range: &models.DateRange{Start: d, End: d}, Rule: RuleExplicitDates}, true
}

type monthMention struct {
	month        time.Month
	year         int
	explicitYear bool
}

func monthRule(tokens []string, today time.Time, since bool) (Output, bool) {
	defaultYear, hasYear := firstYear(tokens)
	if !hasYear {
		defaultYear = today.Year()
	}

	var mentions []monthMention
	for i, t := range tokens {
		month, ok := monthNames[t]
		if !ok {
			continue
		}
		followedByYear := i+1 < len(tokens) && yearTokenRe.MatchString(tokens[i+1])
		if ambiguousMonths[t] && !followedByYear && !(i > 0 && monthLeads[tokens[i-1]]) {
			continue
		}
		m := monthMention{month: month, year: defaultYear, explicitYear: hasYear}
		if followedByYear {
			m.year, _ = strconv.Atoi(tokens[i+1])
			m.explicitYear = true
		}
		mentions = append(mentions, m)
	}
	if len(mentions) == 0 {
		return Output{}, false
	}

	first := monthRange(mentions[0].year, mentions[0].month)
	if len(mentions) >= 2 {
		last := monthRange(mentions[len(mentions)-1].year, mentions[len(mentions)-1].month)
		r := models.DateRange{Start: first.Start, End: last.End}
		if last.Start.Before(first.Start) {
			r = models.DateRange{Start: last.Start, End: first.End}
		}
		return Output{Range: &r, Rule: RuleMonth}, true
	}

	if since {
		start := first.Start
		if start.After(today) && !mentions[0].explicitYear {
			start = start.AddDate(-1, 0, 0)
		}
		if start.After(today) {
			return Output{}, false
		}
		return Output{Range: &models.DateRange{Start: start, End: today}, Rule: RuleMonth, OpenEnded: true}, true
	}
	return Output{Range: &first, Rule: RuleMonth}, true
}

func yearRule(tokens []string, today time.Time, since bool) (Output, bool) {
	year, ok := firstYear(tokens)
	if !ok {
		return Output{}, false
	}

	for _, t := range tokens {
		if m := quarterTokenRe.FindStringSubmatch(t); m != nil {
			q, _ := strconv.Atoi(m[1])
			r := quarterRange(year, q)
			return Output{Range: &r, Rule: RuleYear}, true
		}
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if since {
		if start.After(today) {
			return Output{}, false
		}
		return Output{Range: &models.DateRange{Start: start, End: today}, Rule: RuleYear, OpenEnded: true}, true
	}
	r := models.DateRange{Start: start, End: time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)}
	return Output{Range: &r, Rule: RuleYear}, true
}

func relativeRule(norm string, today time.Time, since bool) (Output, bool) {
	if m := lastNRe.FindStringSubmatch(norm); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = numberWords[m[1]]
		}
		if n > 0 {
			var start time.Time
			switch unitOf(m[2]) {
			case "day":
				start = today.AddDate(0, 0, -n)
			case "week":
				start = today.AddDate(0, 0, -7*n)
			case "month":
				start = today.AddDate(0, -n, 0)
			case "year":
				start = today.AddDate(-n, 0, 0)
			}
			return Output{Range: &models.DateRange{Start: start, End: today}, Rule: RuleRelative}, true
		}
	}

	if m := periodRe.FindStringSubmatch(norm); m != nil {
		offset := offsetOf(m[1])
		var r models.DateRange
		switch unitOf(m[2]) {
		case "week":
			// weeks start on Monday
			monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
			start := monday.AddDate(0, 0, 7*offset)
			r = models.DateRange{Start: start, End: start.AddDate(0, 0, 6)}
		case "month":
			first := time.Date(today.Year(), today.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
			r = monthRange(first.Year(), first.Month())
		case "year":
			y := today.Year() + offset
			r = models.DateRange{
				Start: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC),
			}
		case "quarter":
			q := (int(today.Month())-1)/3 + 1 + offset
			y := today.Year()
			for q < 1 {
				q += 4
				y--
			}
			for q > 4 {
				q -= 4
				y++
			}
			r = quarterRange(y, q)
		}
		if since && offset <= 0 {
			return Output{Range: &models.DateRange{Start: r.Start, End: today}, Rule: RuleRelative, OpenEnded: true}, true
		}
		return Output{Range: &r, Rule: RuleRelative}, true
	}

	if m := dayWordRe.FindStringSubmatch(norm); m != nil {
		d := today
		switch m[1] {
		case "gestern", "yesterday":
			d = today.AddDate(0, 0, -1)
		case "morgen", "tomorrow":
			d = today.AddDate(0, 0, 1)
		}
		if since && !d.After(today) {
			return Output{Range: &models.DateRange{Start: d, End: today}, Rule: RuleRelative, OpenEnded: true}, true
		}
		return Output{Range: &models.DateRange{Start: d, End: d}, Rule: RuleRelative}, true
	}

	return Output{}, false
}

func unitOf(word string) string {
	switch {
	case strings.HasPrefix(word, "tag"), strings.HasPrefix(word, "day"):
		return "day"
	case strings.HasPrefix(word, "woche"), strings.HasPrefix(word, "week"):
		return "week"
	case strings.HasPrefix(word, "monat"), strings.HasPrefix(word, "month"):
		return "month"
	case strings.HasPrefix(word, "quartal"), strings.HasPrefix(word, "quarter"):
		return "quarter"
	default:
		return "year"
	}
}

func offsetOf(word string) int {
	switch {
	case strings.HasPrefix(word, "letzt"), strings.HasPrefix(word, "vergangen"),
		strings.HasPrefix(word, "vorig"), word == "last", word == "previous":
		return -1
	case strings.HasPrefix(word, "nächst"), strings.HasPrefix(word, "naechst"),
		strings.HasPrefix(word, "kommend"), word == "next":
		return 1
	default:
		return 0
	}
}

func firstYear(tokens []string) (int, bool) {
	for _, t := range tokens {
		if yearTokenRe.MatchString(t) {
			y, _ := strconv.Atoi(t)
			return y, true
		}
	}
	return 0, false
}

// makeDate rejects impossible dates instead of letting time.Date normalize them.
func makeDate(year, month, dayOfMonth string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(dayOfMonth)
	if err1 != nil || err2 != nil || err3 != nil || m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

func monthRange(year int, month time.Month) models.DateRange {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return models.DateRange{Start: start, End: start.AddDate(0, 1, -1)}
}

func quarterRange(year, q int) models.DateRange {
	start := time.Date(year, time.Month(3*(q-1)+1), 1, 0, 0, 0, 0, time.UTC)
	return models.DateRange{Start: start, End: start.AddDate(0, 3, -1)}
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
