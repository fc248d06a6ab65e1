package extractentities

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"care-assistant/internal/models"
)

// ID roles.
const (
	RoleSeller = "seller"
	RoleLead   = "lead"
	RoleAgency = "agency"
)

const nameWord = `[\p{L}0-9][\p{L}0-9\-]*`

var (
	kuellRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(küll|kuell|kühl|kuehl|kull)(?:[^\p{L}]|$)`)

	// "Kunde Ramm (I)", "Herrn Gerhard Ramm [B]"
	disambiguatedRe = regexp.MustCompile(`(?i)(?:zum\s+kunden|kunden?|herrn?|frau|familie|über|von|für|bei|namens)[:\s]+` +
		`((?:` + nameWord + `\s+){0,2}` + nameWord + `)\s*[\(\[]\s*([a-z]|[ivx]{1,4})\s*[\)\]]`)
	bareDisambiguatedRe = regexp.MustCompile(`(?i)(` + nameWord + `)\s*[\(\[]\s*([a-z]|[ivx]{1,4})\s*[\)\]]`)

	quotedNameRe = regexp.MustCompile(`["„“'‚]([\p{L}0-9\-\s\(\)\[\]]{3,})["“”'‘]`)

	customerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:zum\s+kunden|kunden?)[:\s]+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
		regexp.MustCompile(`(?i)(?:^|[^\p{L}])herrn?\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
		regexp.MustCompile(`(?i)(?:^|[^\p{L}])frau\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
		regexp.MustCompile(`(?i)(?:^|[^\p{L}])familie\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
		regexp.MustCompile(`(?i)(?:^|[^\p{L}])namens\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
		regexp.MustCompile(`(?i)(?:^|[^\p{L}])über\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
		regexp.MustCompile(`(?i)(?:^|[^\p{L}])für\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
		regexp.MustCompile(`(?i)(?:^|[^\p{L}])von\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
		regexp.MustCompile(`(?i)(?:^|[^\p{L}])bei\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
	}

	agencyCueRe = regexp.MustCompile(`(?i)agentur|agency|vermittlung|anbieter`)

	agencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)agentur[:\s]+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
		regexp.MustCompile(`(?i)mit\s+der\s+(` + nameWord + `)[\s\-]+(?:agentur|vermittlung)`),
		regexp.MustCompile(`(?i)(?:mit|von|bei)\s+(` + nameWord + `)[\s\-]+(?:agentur|vermittlung)`),
		regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:mit|von|bei|durch)\s+(` + nameWord + `)`),
	}

	hexIDRe = regexp.MustCompile(`\b([0-9a-fA-F]{24})\b`)

	roleKeywordRe = regexp.MustCompile(`(?i)(verkäufer|verkaeufer|seller|lead|kunde|agentur|agency)`)
)

// leadingWords are dropped from the front of a captured name.
var leadingWords = map[string]bool{
	"der": true, "die": true, "das": true, "den": true, "dem": true, "des": true,
	"ein": true, "eine": true, "einen": true, "einem": true, "einer": true,
	"kunde": true, "kunden": true, "herr": true, "herrn": true, "frau": true,
	"familie": true, "namens": true, "dr": true,
}

// cutWords end a captured name.
var cutWords = map[string]bool{
	"der": true, "die": true, "das": true, "und": true, "oder": true, "als": true, "wie": true,
	"sagen": true, "ist": true, "sind": true, "hat": true, "haben": true, "gibt": true,
	"mit": true, "im": true, "in": true, "seit": true, "an": true, "zu": true, "zum": true,
	"zur": true, "bis": true, "ab": true, "vom": true, "am": true, "auf": true, "nach": true, "bitte": true, "vertrag": true, "verträge": true, "vertraege": true,
	"tickets": true, "historie": true, "geschichte": true,
	"informationen": true, "info": true, "infos": true, "sehen": true, "zeigen": true,
	"wissen": true, "erzählen": true, "betreuung": true, "pflegekräfte": true,
}

// notNames are single words that follow name-introducing prepositions without being names.
var notNames = map[string]bool{
	"mich": true, "mir": true, "uns": true, "dich": true, "dir": true, "ihm": true, "ihn": true,
	"ihr": true, "ihnen": true, "sie": true, "es": true, "euch": true, "alle": true, "allen": true,
	"mein": true, "meine": true, "meinen": true, "meinem": true, "meiner": true,
	"dein": true, "deine": true, "unsere": true, "unseren": true, "wen": true, "wem": true,
	"was": true, "welche": true, "welchen": true, "diesen": true, "diesem": true, "dieser": true,
	"heute": true, "gestern": true, "morgen": true, "jetzt": true, "letzten": true, "letzte": true,
	"agentur": true, "agenturen": true, "kunden": true, "kunde": true, "leads": true,
	"lead": true, "verkäufer": true, "pflege": true, "daten": true, "zahlen": true,
}

// ExtractCustomer finds the customer name in text, or nil.
func ExtractCustomer(text string) *models.EntityCandidate {
	if m := kuellRe.FindStringSubmatch(text); m != nil {
		return &models.EntityCandidate{Kind: models.EntityCustomer, RawSurface: m[1], Normalized: "Küll"}
	}

	for _, re := range []*regexp.Regexp{disambiguatedRe, bareDisambiguatedRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			base := cleanName(m[1])
			if !plausibleName(base) {
				continue
			}
			letter := strings.ToUpper(m[2])
			return &models.EntityCandidate{
				Kind:             models.EntityCustomer,
				RawSurface:       strings.TrimSpace(m[0]),
				Normalized:       base + " (" + letter + ")",
				SecondarySurface: base,
			}
		}
	}

	if m := quotedNameRe.FindStringSubmatch(text); m != nil {
		name := collapseSpaces(m[1])
		if utf8.RuneCountInString(name) >= 3 {
			return &models.EntityCandidate{Kind: models.EntityCustomer, RawSurface: m[0], Normalized: name}
		}
	}

	for _, re := range customerPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := cleanName(m[1])
			if !plausibleName(name) {
				continue
			}
			return &models.EntityCandidate{Kind: models.EntityCustomer, RawSurface: strings.TrimSpace(m[1]), Normalized: name}
		}
	}
	return nil
}

// ExtractAgency consults the known agency list first, then the agency phrase patterns.
func ExtractAgency(text string, known []string) *models.EntityCandidate {
	lower := strings.ToLower(text)
	for _, name := range known {
		n := strings.ToLower(strings.TrimSpace(name))
		if n != "" && containsWord(lower, n) {
			return &models.EntityCandidate{Kind: models.EntityAgency, RawSurface: n, Normalized: n}
		}
	}

	if !agencyCueRe.MatchString(text) {
		return nil
	}
	for _, re := range agencyPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := cleanName(m[1])
			if !plausibleName(name) {
				continue
			}
			return &models.EntityCandidate{Kind: models.EntityAgency, RawSurface: strings.TrimSpace(m[1]), Normalized: name}
		}
	}
	return nil
}

// ExtractIDs returns every 24-hex token with the role named by the closest keyword before it.
func ExtractIDs(text string) []models.EntityCandidate {
	var ids []models.EntityCandidate
	for _, loc := range hexIDRe.FindAllStringSubmatchIndex(text, -1) {
		id := strings.ToLower(text[loc[2]:loc[3]])
		ids = append(ids, models.EntityCandidate{
			Kind:       models.EntityID,
			RawSurface: text[loc[2]:loc[3]],
			Normalized: id,
			Role:       idRole(text, loc[2]),
		})
	}
	return ids
}

func idRole(text string, at int) string {
	role := ""
	for _, m := range roleKeywordRe.FindAllStringIndex(text[:at], -1) {
		role = roleOf(text[m[0]:m[1]])
	}
	if role != "" {
		return role
	}
	// no keyword before the id: fall back to the whole utterance
	for _, m := range roleKeywordRe.FindAllString(text, -1) {
		if r := roleOf(m); r != "" {
			return r
		}
	}
	return ""
}

func roleOf(keyword string) string {
	switch strings.ToLower(keyword) {
	case "verkäufer", "verkaeufer", "seller":
		return RoleSeller
	case "lead", "kunde":
		return RoleLead
	case "agentur", "agency":
		return RoleAgency
	}
	return ""
}

func cleanName(raw string) string {
	words := strings.Fields(raw)
	for len(words) > 0 && leadingWords[strings.ToLower(strings.Trim(words[0], ".:"))] {
		words = words[1:]
	}
	for i, w := range words {
		if cutWords[strings.ToLower(w)] {
			words = words[:i]
			break
		}
	}
	return strings.Trim(strings.Join(words, " "), "-")
}

func plausibleName(name string) bool {
	if utf8.RuneCountInString(name) <= 2 {
		return false
	}
	// record IDs follow the same prepositions as names
	if hexIDRe.MatchString(name) {
		return false
	}
	lower := strings.ToLower(name)
	first := strings.Fields(lower)[0]
	if notNames[first] {
		return false
	}
	if _, isMonth := monthWords[first]; isMonth {
		return false
	}
	for _, prefix := range []string{"der ", "die ", "das "} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	return hasLetter
}

var monthWords = map[string]struct{}{
	"januar": {}, "februar": {}, "märz": {}, "maerz": {}, "april": {}, "mai": {}, "juni": {},
	"juli": {}, "august": {}, "september": {}, "oktober": {}, "november": {}, "dezember": {},
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// containsWord reports whether word occurs in s delimited by non-letters.
func containsWord(s, word string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(word)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !unicode.IsLetter(before)) && (end == len(s) || !unicode.IsLetter(after)) {
			return true
		}
		from = start + 1
	}
	return false
}
