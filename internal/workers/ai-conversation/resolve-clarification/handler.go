package resolveclarification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "care-assistant/internal/common/errors"
	"care-assistant/internal/common/llm"
	"care-assistant/internal/common/logger"
	"care-assistant/internal/common/metrics"
	"care-assistant/internal/common/validation"
	"care-assistant/internal/models"
	conversationhistory "care-assistant/internal/workers/ai-conversation/conversation-history"
	querycatalog "care-assistant/internal/workers/data-access/query-catalog"
	extractentities "care-assistant/internal/workers/extraction/extract-entities"
	resolvedates "care-assistant/internal/workers/extraction/resolve-dates"
)

const (
	TaskType = "resolve-clarification"
	stage    = "clarify"
)

var (
	ErrNoPendingClarification = errors.New("NO_PENDING_CLARIFICATION")
	ErrResolutionParse        = errors.New("CLARIFICATION_PARSE_ERROR")
)

type Handler struct {
	config    *Config
	store     *Store
	catalog   *querycatalog.Catalog
	extractor *extractentities.Handler
	llm       llm.Client
	logger    logger.Logger
}

// NewHandler builds the clarification manager. extractor may be nil.
func NewHandler(cfg *Config, store *Store, catalog *querycatalog.Catalog, extractor *extractentities.Handler, client llm.Client, log logger.Logger) *Handler {
	return &Handler{
		config:    cfg,
		store:     store,
		catalog:   catalog,
		extractor: extractor,
		llm:       client,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Open persists a new clarification for the session, replacing any earlier one.
func (h *Handler) Open(ctx context.Context, sessionID string, state models.ClarificationState) error {
	state.AttemptCount = 0
	if state.CreatedAt.IsZero() {
		state.CreatedAt = h.config.Now().UTC()
	}
	if state.PartialParams == nil {
		state.PartialParams = map[string]interface{}{}
	}
	if err := h.store.Save(ctx, sessionID, &state); err != nil {
		return err
	}
	metrics.Clarifications.WithLabelValues(string(OutcomeOpened)).Inc()
	h.logger.Info("clarification opened", map[string]interface{}{
		"sessionId":     sessionID,
		"pendingQuery":  state.PendingQueryName,
		"possibleCount": len(state.PossibleQueryNames),
	})
	return nil
}

// Pending returns the open clarification of the session, or nil.
func (h *Handler) Pending(ctx context.Context, sessionID string) (*models.ClarificationState, error) {
	return h.store.Load(ctx, sessionID)
}

// Cancel drops an open clarification.
func (h *Handler) Cancel(ctx context.Context, sessionID string) error {
	return h.store.Delete(ctx, sessionID)
}

// Execute interprets the user's reply against the open clarification.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	state, err := h.store.Load(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNoPendingClarification
	}

	out := h.resolve(ctx, input, state)
	out.OriginalUtterance = state.OriginalUtterance

	if out.Resolved {
		if err := h.store.Delete(ctx, input.SessionID); err != nil {
			h.logger.Warn("clarification state not deleted", map[string]interface{}{"error": err.Error()})
		}
	} else {
		state.AttemptCount = out.AttemptCount
		state.ClarificationPrompt = out.FollowUpPrompt
		if err := h.store.Save(ctx, input.SessionID, state); err != nil {
			return nil, err
		}
	}

	metrics.Clarifications.WithLabelValues(string(out.Outcome)).Inc()
	h.logger.Info("clarification step", map[string]interface{}{
		"sessionId": input.SessionID,
		"reply":     logger.Truncate(input.Reply, 100),
		"outcome":   out.Outcome,
		"queryName": out.QueryName,
		"attempts":  out.AttemptCount,
	})
	return out, nil
}

func (h *Handler) resolve(ctx context.Context, input *Input, state *models.ClarificationState) *Output {
	// a bare acknowledgement runs the pending query as proposed; anything the
	// user adds after the "ja" may change the choice and goes to the model
	if conversationhistory.IsAcknowledgement(input.Reply) {
		if out := h.affirm(state); out != nil {
			return out
		}
	}

	res, err := h.ask(ctx, input, state)
	if err != nil {
		std := llm.Standard(stage, err)
		if std == nil {
			std = apperrors.NewSelectionParseError(err.Error())
		}
		h.logger.Warn("clarification resolution unusable", apperrors.LogFields(std))
		return h.followUp(state, "")
	}

	if res.Resolved && res.Query != nil {
		name := strings.TrimSpace(*res.Query)
		if d, ok := h.catalog.Get(name); ok && isCandidate(state, name) {
			params := h.mergeParams(d, state.PartialParams, res.Params, input.Reply)
			if missing := d.MissingParams(params); len(missing) == 0 {
				return &Output{
					Resolved:     true,
					Outcome:      OutcomeResolved,
					QueryName:    d.Name,
					Params:       params,
					AttemptCount: state.AttemptCount,
				}
			}
			// a pick without its required values stays open on that query
			state.PendingQueryName = d.Name
			state.PartialParams = params
		}
	}

	prompt := ""
	if res.FollowUpPrompt != nil {
		prompt = strings.TrimSpace(*res.FollowUpPrompt)
	}
	return h.followUp(state, prompt)
}

// isCandidate keeps a resolution on the topic of the original question.
func isCandidate(state *models.ClarificationState, name string) bool {
	if state.PendingQueryName == "" && len(state.PossibleQueryNames) == 0 {
		return true
	}
	if name == state.PendingQueryName {
		return true
	}
	for _, n := range state.PossibleQueryNames {
		if n == name {
			return true
		}
	}
	return false
}

func (h *Handler) affirm(state *models.ClarificationState) *Output {
	name := state.PendingQueryName
	if name == "" && len(state.PossibleQueryNames) > 0 {
		name = state.PossibleQueryNames[0]
	}
	d, ok := h.catalog.Get(name)
	if !ok {
		return nil
	}
	params := declaredParams(d, state.PartialParams)
	if len(d.MissingParams(params)) > 0 {
		return nil
	}
	return &Output{
		Resolved:     true,
		Outcome:      OutcomeAffirmed,
		QueryName:    d.Name,
		Params:       params,
		AttemptCount: state.AttemptCount,
	}
}

// followUp counts one more unresolved reply and either asks again or gives up
// with the best available guess.
func (h *Handler) followUp(state *models.ClarificationState, prompt string) *Output {
	attempts := state.AttemptCount + 1
	if attempts >= h.config.MaxAttempts {
		return h.bestGuess(state, attempts)
	}
	if prompt == "" {
		prompt = state.ClarificationPrompt
	}
	return &Output{
		Outcome:        OutcomeFollowUp,
		FollowUpPrompt: prompt,
		AttemptCount:   attempts,
	}
}

// bestGuess prefers the pending query, then the first candidate whose required
// values are known, then the configured default.
func (h *Handler) bestGuess(state *models.ClarificationState, attempts int) *Output {
	h.logger.Warn("clarification gave up", apperrors.LogFields(apperrors.NewClarificationExhaustedError(attempts)))

	candidates := append([]string{state.PendingQueryName}, state.PossibleQueryNames...)
	candidates = append(candidates, h.config.DefaultQuery)

	for _, name := range candidates {
		d, ok := h.catalog.Get(name)
		if !ok {
			continue
		}
		params := declaredParams(d, state.PartialParams)
		if len(d.MissingParams(params)) > 0 {
			continue
		}
		return &Output{
			Resolved:      true,
			Outcome:       OutcomeExhausted,
			QueryName:     d.Name,
			Params:        params,
			LowConfidence: true,
			AttemptCount:  attempts,
		}
	}

	return &Output{
		Resolved:      true,
		Outcome:       OutcomeExhausted,
		LowConfidence: true,
		AttemptCount:  attempts,
	}
}

func (h *Handler) ask(ctx context.Context, input *Input, state *models.ClarificationState) (*llmResolution, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	resp, err := h.llm.Complete(ctx, llm.Request{
		Stage:     stage,
		System:    h.systemPrompt(state),
		Messages:  llm.UserPrompt(input.Reply),
		MaxTokens: h.config.MaxTokens,
		Fast:      true,
		JSON:      true,
	})
	if err != nil {
		return nil, err
	}

	var res llmResolution
	if err := llm.DecodeJSON(resp.Text, validation.ClarificationResolutionSchema, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionParse, err)
	}
	return &res, nil
}

// mergeParams layers the reply's values over the earlier ones. Dates and
// entities found deterministically in the reply win over the model.
func (h *Handler) mergeParams(d *models.QueryDescriptor, partial, proposed map[string]interface{}, reply string) map[string]interface{} {
	params := map[string]interface{}{}
	for _, src := range []map[string]interface{}{partial, proposed} {
		for k, v := range src {
			if k == "seller_id" || !d.Declares(k) || models.IsEmptyValue(v) {
				continue
			}
			params[k] = v
		}
	}

	if r := resolvedates.Resolve(reply, h.config.Now()); r != nil {
		if d.Declares("start_date") {
			params["start_date"] = r.StartString()
		}
		if d.Declares("end_date") {
			params["end_date"] = r.EndString()
		}
	}
	if h.extractor != nil {
		for k, v := range h.extractor.Extract(reply).Params() {
			if d.Declares(k) {
				params[k] = v
			}
		}
	}
	return params
}

func (h *Handler) systemPrompt(state *models.ClarificationState) string {
	var b strings.Builder
	b.WriteString("Ein Verkäufer hat eine Frage gestellt, die nicht eindeutig war. Du hast nachgefragt und er hat geantwortet.\n")
	fmt.Fprintf(&b, "Heutiges Datum: %s\n\n", h.config.Now().Format(models.DateLayout))
	fmt.Fprintf(&b, "Ursprüngliche Frage: %s\n", state.OriginalUtterance)
	fmt.Fprintf(&b, "Deine Rückfrage: %s\n", state.ClarificationPrompt)

	names := state.PossibleQueryNames
	if len(names) == 0 && state.PendingQueryName != "" {
		names = []string{state.PendingQueryName}
	}
	if len(names) > 0 {
		b.WriteString("\nMögliche Abfragen:\n")
		for _, n := range names {
			if d, ok := h.catalog.Get(n); ok {
				fmt.Fprintf(&b, "- %s: %s (Pflicht: %s)\n", d.Name, d.Description, strings.Join(d.MissingParams(nil), ", "))
			}
		}
	}
	if len(state.PartialParams) > 0 {
		b.WriteString("\nBereits bekannte Parameter:\n")
		for k, v := range state.PartialParams {
			fmt.Fprintf(&b, "- %s: %v\n", k, v)
		}
	}

	b.WriteString(`
Bleib beim Thema der ursprünglichen Frage und wähle nur aus den möglichen Abfragen.
Wenn die Antwort die Frage klärt, gib resolved=true, die Abfrage und die Parameter an (Datumswerte YYYY-MM-DD, seller_id nie angeben).
Sonst resolved=false und eine kurze neue Rückfrage.
Antworte nur mit JSON:
{"resolved": true, "query": "name", "params": {}, "follow_up_prompt": null}`)
	return b.String()
}

// declaredParams copies the known values the query declares.
func declaredParams(d *models.QueryDescriptor, known map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(known))
	for k, v := range known {
		if d.Declares(k) {
			out[k] = v
		}
	}
	return out
}
