package selectquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "care-assistant/internal/common/errors"
	"care-assistant/internal/common/llm"
	"care-assistant/internal/common/logger"
	"care-assistant/internal/common/validation"
	"care-assistant/internal/models"
	querycatalog "care-assistant/internal/workers/data-access/query-catalog"
	extractentities "care-assistant/internal/workers/extraction/extract-entities"
	resolvedates "care-assistant/internal/workers/extraction/resolve-dates"
)

const (
	TaskType = "select-query"
	stage    = "select"
)

var (
	ErrSelectionParse = errors.New("SELECTION_PARSE_ERROR")
	ErrUnknownQuery   = errors.New("UNKNOWN_QUERY")
)

type Handler struct {
	config    *Config
	catalog   *querycatalog.Catalog
	extractor *extractentities.Handler
	feedback  *FeedbackLog
	llm       llm.Client
	logger    logger.Logger
}

// NewHandler builds the selector. feedback may be nil.
func NewHandler(cfg *Config, catalog *querycatalog.Catalog, extractor *extractentities.Handler, feedback *FeedbackLog, client llm.Client, log logger.Logger) *Handler {
	return &Handler{
		config:    cfg,
		catalog:   catalog,
		extractor: extractor,
		feedback:  feedback,
		llm:       client,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute picks one catalog query and its parameters, or asks back.
func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	out := h.execute(ctx, input)

	h.logger.Info("query selected", map[string]interface{}{
		"utterance":          logger.Truncate(input.Utterance, 100),
		"selectedQuery":      out.SelectedQuery,
		"confidence":         out.Confidence,
		"needsClarification": out.NeedsClarification,
		"missingRequired":    out.MissingRequired,
		"parseError":         out.ParseError,
	})

	if h.feedback != nil && out.Confidence < h.config.ClarificationThreshold {
		if err := h.feedback.Record(ctx, FeedbackEntry{
			Utterance: input.Utterance,
			Binding:   out.Binding(),
			Rationale: out.Rationale,
		}); err != nil {
			h.logger.Warn("selection feedback not recorded", map[string]interface{}{"error": err.Error()})
		}
	}
	return out
}

// MarkResult forwards an execution outcome to the feedback log.
func (h *Handler) MarkResult(ctx context.Context, utterance, query string, success bool) {
	if h.feedback == nil {
		return
	}
	if err := h.feedback.MarkResult(ctx, utterance, query, success); err != nil {
		h.logger.Warn("selection feedback not updated", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	now := h.config.Now()
	dates := resolvedates.ResolveDetailed(input.Utterance, now)
	entities := h.extractor.Extract(input.Utterance)

	sel, err := h.ask(ctx, input, dates, entities)
	if err != nil {
		std := llm.Standard(stage, err)
		if std == nil {
			std = apperrors.NewSelectionParseError(err.Error())
		}
		h.logger.Warn("selection output unusable", apperrors.LogFields(std))
		return h.fallback(input, dates, entities, err)
	}

	possible := h.knownQueries(sel.PossibleQueries)
	name := ""
	if sel.SelectedQuery != nil {
		name = strings.TrimSpace(*sel.SelectedQuery)
	}
	d, ok := h.catalog.Get(name)
	if !ok {
		if len(possible) == 0 {
			return h.fallback(input, dates, entities, fmt.Errorf("%w: %q", ErrUnknownQuery, name))
		}
		// no usable pick but candidates: ask the user to choose, keeping what
		// is already known for any of them
		return &Output{
			NeedsClarification:  true,
			PossibleQueries:     possible,
			Params:              h.candidateParams(possible, sel.Params, dates, entities, input.Utterance, now),
			ClarificationPrompt: h.candidatePrompt(possible, sel.ClarificationPrompt),
			Confidence:          1,
			Rationale:           sel.Rationale,
		}
	}

	params := mergeParams(d, sel.Params, dates.Range, entities)
	applyDateRules(d, params, input.Utterance, now)
	missing := missingRequired(d, params)

	if len(missing) > 0 {
		if filled := h.fillMissing(ctx, input.Utterance, d, missing); len(filled) > 0 {
			for k, v := range filled {
				params[k] = v
			}
			missing = missingRequired(d, params)
		}
	}

	out := &Output{
		SelectedQuery:   d.Name,
		PossibleQueries: possible,
		Params:          params,
		MissingRequired: missing,
		Confidence:      clampConfidence(sel.Confidence),
		Rationale:       sel.Rationale,
	}
	if len(out.PossibleQueries) == 0 {
		out.PossibleQueries = []string{d.Name}
	}

	if len(missing) > 0 || out.Confidence < h.config.ClarificationThreshold {
		out.NeedsClarification = true
		out.ClarificationPrompt = h.clarificationPrompt(out, sel.ClarificationPrompt)
	}
	return out
}

func (h *Handler) ask(ctx context.Context, input *Input, dates resolvedates.Output, entities extractentities.Entities) (*llmSelection, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	resp, err := h.llm.Complete(ctx, llm.Request{
		Stage:     stage,
		System:    h.systemPrompt(input.History, dates, entities),
		Messages:  llm.UserPrompt(input.Utterance),
		MaxTokens: h.config.MaxTokens,
		Fast:      true,
		JSON:      true,
	})
	if err != nil {
		return nil, err
	}

	var sel llmSelection
	if err := llm.DecodeJSON(resp.Text, validation.QuerySelectionSchema, &sel); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSelectionParse, err)
	}
	return &sel, nil
}

// fallback uses the configured default query. Without one the user is asked.
func (h *Handler) fallback(input *Input, dates resolvedates.Output, entities extractentities.Entities, cause error) *Output {
	d, ok := h.catalog.Get(h.config.DefaultQuery)
	if !ok {
		return &Output{
			NeedsClarification:  true,
			Params:              map[string]interface{}{},
			ClarificationPrompt: "Ich habe Ihre Frage leider nicht eindeutig zuordnen können. Welche Daten möchten Sie sehen, z. B. aktive Care Stays, Verträge, Leads oder Kündigungen?",
			Confidence:          1,
			Rationale:           cause.Error(),
			ParseError:          true,
		}
	}

	params := mergeParams(d, nil, dates.Range, entities)
	applyDateRules(d, params, input.Utterance, h.config.Now())
	out := &Output{
		SelectedQuery:   d.Name,
		PossibleQueries: []string{d.Name},
		Params:          params,
		MissingRequired: missingRequired(d, params),
		Confidence:      h.config.ClarificationThreshold,
		Rationale:       cause.Error(),
		ParseError:      true,
	}
	if len(out.MissingRequired) > 0 {
		out.NeedsClarification = true
		out.ClarificationPrompt = h.clarificationPrompt(out, nil)
	}
	return out
}

func (h *Handler) fillMissing(ctx context.Context, utterance string, d *models.QueryDescriptor, missing []string) map[string]interface{} {
	want := make([]extractentities.MissingParam, 0, len(missing))
	for _, p := range missing {
		// dates come from the resolver and its defaults only
		if p == "start_date" || p == "end_date" {
			continue
		}
		want = append(want, extractentities.MissingParam{Name: p, Type: d.TypeOf(p)})
	}
	if len(want) == 0 {
		return nil
	}
	res, err := h.extractor.Execute(ctx, &extractentities.Input{Text: utterance, QueryName: d.Name, Missing: want})
	if err != nil || len(res.LLMParams) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(res.LLMParams))
	for k, v := range res.LLMParams {
		if d.Declares(k) {
			out[k] = v
		}
	}
	return out
}

// candidateParams unions the parameters each candidate query would bind.
func (h *Handler) candidateParams(names []string, proposed map[string]interface{}, dates resolvedates.Output, entities extractentities.Entities, utterance string, now time.Time) map[string]interface{} {
	params := map[string]interface{}{}
	for _, n := range names {
		d, ok := h.catalog.Get(n)
		if !ok {
			continue
		}
		p := mergeParams(d, proposed, dates.Range, entities)
		applyDateRules(d, p, utterance, now)
		for k, v := range p {
			params[k] = v
		}
	}
	return params
}

func (h *Handler) knownQueries(names []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, ok := h.catalog.Get(n); ok && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
