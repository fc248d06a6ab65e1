package selectquery

import (
	"fmt"
	"strings"

	"care-assistant/internal/common/logger"
	"care-assistant/internal/models"
	conversationhistory "care-assistant/internal/workers/ai-conversation/conversation-history"
	extractentities "care-assistant/internal/workers/extraction/extract-entities"
	resolvedates "care-assistant/internal/workers/extraction/resolve-dates"
)

func (h *Handler) systemPrompt(history []models.Turn, dates resolvedates.Output, entities extractentities.Entities) string {
	var b strings.Builder
	b.WriteString("Du wählst für die Frage eines Verkäufers genau eine Datenbankabfrage aus dem folgenden Katalog ")
	b.WriteString("und extrahierst ihre Parameter.\n")
	fmt.Fprintf(&b, "Heutiges Datum: %s\n\n", h.config.Now().Format(models.DateLayout))
	b.WriteString("Katalog:\n")
	b.WriteString(h.catalog.Describe())

	var hints []string
	if dates.Range != nil {
		hints = append(hints, fmt.Sprintf("Zeitraum: %s bis %s", dates.Range.StartString(), dates.Range.EndString()))
	}
	if entities.Customer != nil {
		hints = append(hints, "Kunde: "+entities.Customer.Normalized)
	}
	if entities.Agency != nil {
		hints = append(hints, "Agentur: "+entities.Agency.Normalized)
	}
	if len(hints) > 0 {
		b.WriteString("\nBereits erkannt (übernimm diese Werte):\n- ")
		b.WriteString(strings.Join(hints, "\n- "))
		b.WriteString("\n")
	}

	if recent := lastTurns(history, h.config.HistoryTurns); len(recent) > 0 {
		b.WriteString("\nBisheriger Gesprächskontext (für Anschlussfragen wie \"Und im Mai?\"):\n")
		for _, t := range recent {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, logger.Truncate(t.Content, 400))
		}
	}
	if last := conversationhistory.LastQuery(history); last != "" {
		fmt.Fprintf(&b, "Zuletzt ausgeführte Abfrage: %s (bei Anschlussfragen meist dieselbe, mit neuen Parametern)\n", last)
	}

	b.WriteString(`
Bewerte deine Sicherheit mit confidence von 1 (geraten) bis 5 (eindeutig).
Wenn mehrere Abfragen passen könnten, liste sie in possible_queries und formuliere eine kurze Rückfrage.
Datumswerte im Format YYYY-MM-DD. seller_id nie angeben.
Antworte nur mit JSON:
{"selected_query": "name", "possible_queries": ["name"], "params": {"name": "wert"}, "confidence": 1-5, "needs_clarification": false, "clarification_prompt": null, "rationale": "kurz"}`)
	return b.String()
}

var paramQuestions = map[string]string{
	"start_date":    "Welchen Zeitraum meinen Sie (z. B. „Mai 2025“ oder „seit Januar“)?",
	"end_date":      "Welchen Zeitraum meinen Sie (z. B. „Mai 2025“ oder „seit Januar“)?",
	"customer_name": "Um welchen Kunden geht es?",
	"agency_name":   "Welche Agentur meinen Sie?",
	"lead_id":       "Um welchen Lead geht es?",
}

// clarificationPrompt prefers the model's own question and otherwise names the gap.
func (h *Handler) clarificationPrompt(out *Output, proposed *string) string {
	if proposed != nil && strings.TrimSpace(*proposed) != "" {
		return strings.TrimSpace(*proposed)
	}

	if len(out.MissingRequired) > 0 {
		var questions []string
		seen := map[string]bool{}
		for _, p := range out.MissingRequired {
			q, ok := paramQuestions[p]
			if !ok {
				q = fmt.Sprintf("Welchen Wert hat %s?", p)
			}
			if !seen[q] {
				seen[q] = true
				questions = append(questions, q)
			}
		}
		return strings.Join(questions, " ")
	}

	if len(out.PossibleQueries) > 1 {
		return h.candidatePrompt(out.PossibleQueries, nil)
	}
	if d, ok := h.catalog.Get(out.SelectedQuery); ok {
		return fmt.Sprintf("Meinen Sie: %s? Antworten Sie mit „ja“ oder beschreiben Sie genauer, was Sie sehen möchten.", d.Description)
	}
	return "Können Sie Ihre Frage etwas genauer formulieren?"
}

func (h *Handler) candidatePrompt(names []string, proposed *string) string {
	if proposed != nil && strings.TrimSpace(*proposed) != "" {
		return strings.TrimSpace(*proposed)
	}
	var options []string
	for _, n := range names {
		if d, ok := h.catalog.Get(n); ok {
			options = append(options, d.Description)
		}
	}
	switch len(options) {
	case 0:
		return "Können Sie Ihre Frage etwas genauer formulieren?"
	case 1:
		return fmt.Sprintf("Meinen Sie: %s?", options[0])
	default:
		return fmt.Sprintf("Meinen Sie %s oder %s?",
			strings.Join(options[:len(options)-1], ", "), options[len(options)-1])
	}
}

func lastTurns(history []models.Turn, n int) []models.Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
