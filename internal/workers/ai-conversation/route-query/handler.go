package routequery

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	apperrors "care-assistant/internal/common/errors"
	"care-assistant/internal/common/llm"
	"care-assistant/internal/common/logger"
	"care-assistant/internal/common/metrics"
	"care-assistant/internal/common/validation"
	"care-assistant/internal/models"
)

const (
	TaskType = "route-query"
	stage    = "route"
)

var ErrRoutingParse = errors.New("ROUTING_PARSE_ERROR")

var knowledgePatterns = []*regexp.Regexp{
	regexp.MustCompile(`was (ist|sind|bedeutet|heißt|heisst)`),
	regexp.MustCompile(`wie (funktioniert|geht das|geht man|macht man)`),
	regexp.MustCompile(`wofür (steht|ist|wird verwendet)`),
	regexp.MustCompile(`erkläre`),
	regexp.MustCompile(`erklär mir`),
	regexp.MustCompile(`definition von`),
	regexp.MustCompile(`bedeutung von`),
	regexp.MustCompile(`wozu dient`),
	regexp.MustCompile(`what (is|are|does)`),
	regexp.MustCompile(`how (does|do i|to)`),
}

// dataCueRe vetoes the knowledge precheck for questions about the caller's own numbers
// ("Was ist mein Umsatz?").
var dataCueRe = regexp.MustCompile(`(?:^|[^\p{L}])(mein|meine|meinen|meinem|meiner|ich|wie viele|wieviele|anzahl|umsatz|quote|kunden?|my|how many)(?:[^\p{L}]|$)`)

type Handler struct {
	config *Config
	llm    llm.Client
	logger logger.Logger
}

func NewHandler(cfg *Config, client llm.Client, log logger.Logger) *Handler {
	return &Handler{
		config: cfg,
		llm:    client,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute classifies the utterance. It never fails: unusable model output routes to
// conversational.
func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	out := h.execute(ctx, input)

	metrics.RouteDecisions.WithLabelValues(string(out.Approach)).Inc()
	h.logger.Info("utterance routed", map[string]interface{}{
		"utterance":  logger.Truncate(input.Utterance, 100),
		"approach":   out.Approach,
		"confidence": out.Confidence,
		"source":     out.Source,
	})
	return out
}

func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	if IsKnowledgeQuestion(input.Utterance) {
		return &Output{
			RoutingDecision: models.RoutingDecision{
				Approach:   models.ApproachKnowledgeBase,
				Confidence: 0.9,
				Rationale:  "knowledge_pattern",
			},
			Source: SourcePrecheck,
		}
	}

	decision, err := h.classify(ctx, input)
	if err != nil {
		rationale := RationaleLLMError
		std := llm.Standard(stage, err)
		if errors.Is(err, ErrRoutingParse) || std == nil {
			rationale = RationaleParseError
			std = apperrors.NewRoutingParseError(err.Error())
		}
		h.logger.Warn("routing fell back to conversational", apperrors.LogFields(std))
		return &Output{
			RoutingDecision: models.RoutingDecision{
				Approach:   models.ApproachConversational,
				Confidence: 0.3,
				Rationale:  rationale,
			},
			Source: SourceFallback,
		}
	}

	if decision.Confidence < h.config.ConfidenceFloor {
		decision.Approach = models.ApproachConversational
		if decision.Rationale == "" {
			decision.Rationale = RationaleLowConfidence
		}
	}
	return &Output{RoutingDecision: *decision, Source: SourceLLM}
}

// IsKnowledgeQuestion is the deterministic knowledge-base precheck.
func IsKnowledgeQuestion(utterance string) bool {
	lower := strings.ToLower(utterance)
	if dataCueRe.MatchString(lower) {
		return false
	}
	for _, re := range knowledgePatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func (h *Handler) classify(ctx context.Context, input *Input) (*models.RoutingDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	resp, err := h.llm.Complete(ctx, llm.Request{
		Stage:     stage,
		System:    h.systemPrompt(input.History),
		Messages:  llm.UserPrompt(input.Utterance),
		MaxTokens: h.config.MaxTokens,
		Fast:      true,
		JSON:      true,
	})
	if err != nil {
		return nil, err
	}

	var decision models.RoutingDecision
	if err := llm.DecodeJSON(resp.Text, validation.RoutingDecisionSchema, &decision); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRoutingParse, err)
	}
	return &decision, nil
}

func (h *Handler) systemPrompt(history []models.Turn) string {
	var b strings.Builder
	b.WriteString("Du bist der Routing-Assistent eines Vermittlers für Seniorenbetreuung. ")
	b.WriteString("Entscheide, wie die Frage des Verkäufers beantwortet werden soll.\n")
	fmt.Fprintf(&b, "Heutiges Datum: %s\n\n", h.config.Now().Format("2006-01-02"))
	b.WriteString(`Möglichkeiten:
1. "conversational": Begrüßungen, Smalltalk, Zusammenfassungen des Gesprächs, allgemeine Fragen ohne Firmenwissen oder Daten.
2. "knowledge_base": Fragen zu Abläufen und Prozessen der Firma, Anleitungen, CRM-Nutzung, Begriffe und Abkürzungen, qualitatives Wissen ohne konkrete Zahlen.
3. "analytical": Fragen zu konkreten Kunden, Verträgen, Care Stays, Leads, Tickets, Agenturen, Umsätzen oder Kennzahlen, die Live-Daten aus der Datenbank brauchen.
`)
	if recent := lastTurns(history, h.config.HistoryTurns); len(recent) > 0 {
		b.WriteString("\nBisheriger Gesprächskontext:\n")
		for _, t := range recent {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, logger.Truncate(t.Content, 500))
		}
	}
	b.WriteString(`
Antworte nur mit JSON: {"approach": "conversational|knowledge_base|analytical", "confidence": 0.0-1.0, "rationale": "kurze Begründung"}`)
	return b.String()
}

func lastTurns(history []models.Turn, n int) []models.Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
