package conversationhistory

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"care-assistant/internal/models"
)

var affirmativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ja(\s|$|[.!])`),
	regexp.MustCompile(`^ja,?\s*bitte`),
	regexp.MustCompile(`^ja\s*gerne`),
	regexp.MustCompile(`^jawohl`),
	regexp.MustCompile(`^stimmt`),
	regexp.MustCompile(`^korrekt`),
	regexp.MustCompile(`^genau`),
	regexp.MustCompile(`^richtig`),
	regexp.MustCompile(`^passt`),
	regexp.MustCompile(`^ok(ay)?(\s|$|[.!,])`),
	regexp.MustCompile(`^gerne`),
	regexp.MustCompile(`^yes`),
	regexp.MustCompile(`^👍`),
}

// IsAffirmative reports whether a reply acknowledges the previous question.
func IsAffirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	for _, re := range affirmativePatterns {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

// ackWords may fill a bare acknowledgement besides the affirmative itself.
var ackWords = map[string]bool{
	"ja": true, "jawohl": true, "stimmt": true, "korrekt": true, "genau": true,
	"richtig": true, "passt": true, "ok": true, "okay": true, "gerne": true,
	"gern": true, "yes": true, "bitte": true, "danke": true, "👍": true,
}

// IsAcknowledgement reports whether a reply is an affirmative and nothing else,
// e.g. "Ja, bitte!" but not "ja, die Historie bitte".
func IsAcknowledgement(text string) bool {
	if !IsAffirmative(text) {
		return false
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	for _, w := range words {
		if !ackWords[w] {
			return false
		}
	}
	return len(words) > 0
}

// Augment appends one resolved exchange: the user turn, an optional tool result
// and the assistant turn. Past 2*limit turns the history is cut to the newest limit.
// The input slice is not modified.
func Augment(history []models.Turn, utterance, response string, tool *ToolCall, limit int, now time.Time) []models.Turn {
	out := make([]models.Turn, 0, len(history)+3)
	out = append(out, history...)

	out = append(out, models.Turn{Role: models.RoleUser, Content: utterance, Timestamp: now})
	queryName := ""
	if tool != nil {
		queryName = tool.QueryName
		out = append(out, models.Turn{
			Role:      models.RoleToolResult,
			Content:   tool.Summary,
			QueryName: tool.QueryName,
			Timestamp: now,
		})
	}
	out = append(out, models.Turn{Role: models.RoleAssistant, Content: response, QueryName: queryName, Timestamp: now})

	if limit > 0 && len(out) > 2*limit {
		out = append([]models.Turn(nil), out[len(out)-limit:]...)
	}
	return out
}

// ExtractTopic returns the last user utterance that is more than an acknowledgement.
func ExtractTopic(history []models.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if t.Role != models.RoleUser || IsAffirmative(t.Content) {
			continue
		}
		if c := strings.TrimSpace(t.Content); c != "" {
			return c
		}
	}
	return ""
}

// LastQuery returns the most recent query executed in the session.
func LastQuery(history []models.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].QueryName != "" {
			return history[i].QueryName
		}
	}
	return ""
}
