package answerquestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	apperrors "care-assistant/internal/common/errors"
	"care-assistant/internal/common/logger"
	"care-assistant/internal/common/metrics"
	"care-assistant/internal/common/observability"
	"care-assistant/internal/models"
	conversationhistory "care-assistant/internal/workers/ai-conversation/conversation-history"
	llmsynthesis "care-assistant/internal/workers/ai-conversation/llm-synthesis"
	resolveclarification "care-assistant/internal/workers/ai-conversation/resolve-clarification"
	routequery "care-assistant/internal/workers/ai-conversation/route-query"
	selectquery "care-assistant/internal/workers/ai-conversation/select-query"
	querywarehouse "care-assistant/internal/workers/data-access/query-warehouse"
	searchknowledgebase "care-assistant/internal/workers/data-access/search-knowledge-base"
)

const (
	TaskType = "answer-question"
)

const (
	failureMessage   = "Entschuldigung, bei der Verarbeitung Ihrer Anfrage ist ein Fehler aufgetreten. Bitte versuchen Sie es erneut."
	exhaustedMessage = "Ich konnte Ihre Anfrage leider nicht eindeutig einer Auswertung zuordnen. Bitte stellen Sie die Frage noch einmal mit Zeitraum oder Kundennamen."
)

// Stage dependencies. The component handlers satisfy them.
type (
	Router interface {
		Execute(ctx context.Context, input *routequery.Input) *routequery.Output
	}
	Selector interface {
		Execute(ctx context.Context, input *selectquery.Input) *selectquery.Output
		MarkResult(ctx context.Context, utterance, query string, success bool)
	}
	Clarifier interface {
		Pending(ctx context.Context, sessionID string) (*models.ClarificationState, error)
		Open(ctx context.Context, sessionID string, state models.ClarificationState) error
		Execute(ctx context.Context, input *resolveclarification.Input) (*resolveclarification.Output, error)
		Cancel(ctx context.Context, sessionID string) error
	}
	Warehouse interface {
		Execute(ctx context.Context, input *querywarehouse.Input) *querywarehouse.Output
	}
	KnowledgeBase interface {
		Execute(ctx context.Context, input *searchknowledgebase.Input) (*searchknowledgebase.Output, error)
	}
	Synthesizer interface {
		Stream(ctx context.Context, input *llmsynthesis.Input, onChunk func(string) error) *llmsynthesis.Output
		Knowledge(ctx context.Context, input *llmsynthesis.KnowledgeInput, onChunk func(string) error) *llmsynthesis.Output
		Converse(ctx context.Context, input *llmsynthesis.ConversationalInput, onChunk func(string) error) *llmsynthesis.Output
	}
	History interface {
		Load(ctx context.Context, sessionID string) []models.Turn
		Execute(ctx context.Context, input *conversationhistory.Input) (*conversationhistory.Output, error)
	}
)

// Deps wires the pipeline stages. KnowledgeBase may be nil.
type Deps struct {
	Router        Router
	Selector      Selector
	Clarifier     Clarifier
	Warehouse     Warehouse
	KnowledgeBase KnowledgeBase
	Synthesizer   Synthesizer
	History       History
	Observability *observability.Observability
}

type Handler struct {
	config *Config
	deps   Deps
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(cfg *Config, deps Deps, log logger.Logger) *Handler {
	if deps.Observability == nil {
		deps.Observability = observability.NewNoop()
	}
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config: cfg,
		deps:   deps,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
	}
}

// turn is the per-request state threaded through the stages.
type turn struct {
	req     *TurnRequest
	history []models.Turn
	stream  *turnStream
	live    bool
}

type outcome struct {
	approach      models.Approach
	queryName     string
	clarification bool
	source        string
	tool          *conversationhistory.ToolCall
}

// Stream answers one turn and emits its events to out. It always ends the
// stream, also on invalid input or a failing stage.
func (h *Handler) Stream(ctx context.Context, req *TurnRequest, out Emitter) *TurnResponse {
	return h.run(ctx, req, newTurnStream(out, h.config.ChunkWords), out != nil)
}

// Execute answers one turn without streaming.
func (h *Handler) Execute(ctx context.Context, req *TurnRequest) (*TurnResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	return h.run(ctx, req, newTurnStream(nil, h.config.ChunkWords), false), nil
}

func validate(req *TurnRequest) error {
	if strings.TrimSpace(req.Utterance) == "" {
		return apperrors.NewInvalidInputError("utterance is empty")
	}
	if strings.TrimSpace(req.SellerID) == "" {
		return apperrors.NewAuthenticationError("seller id is missing")
	}
	return nil
}

func (h *Handler) run(ctx context.Context, req *TurnRequest, s *turnStream, live bool) (resp *TurnResponse) {
	start := time.Now()
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	resp = &TurnResponse{TurnID: uuid.NewString()}
	log := h.logger.With(map[string]interface{}{
		"turnId":    resp.TurnID,
		"sessionId": req.SessionID,
	})

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	ctx, span := h.deps.Observability.StartSpan(ctx, "turn",
		attribute.String("turn.id", resp.TurnID),
		attribute.String("session.id", req.SessionID),
	)
	defer span.End()
	if sc := span.SpanContext(); sc.HasTraceID() {
		log = log.With(map[string]interface{}{"traceId": sc.TraceID().String()})
	}

	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			status = "error"
			log.Error("turn panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			h.abort(s, "INTERNAL_ERROR")
			resp.Answer = s.answer()
		}
		h.deps.Observability.RecordTurn(ctx, string(resp.Approach), status, time.Since(start))
	}()

	s.start(map[string]interface{}{"turnId": resp.TurnID, "sessionId": req.SessionID})

	if err := validate(req); err != nil {
		status = "error"
		std := apperrors.Normalize(err)
		log.Warn("invalid turn request", apperrors.LogFields(std))
		h.abort(s, string(std.Code))
		resp.Answer = s.answer()
		return resp
	}

	t := &turn{
		req:     req,
		history: h.deps.History.Load(ctx, req.SessionID),
		stream:  s,
		live:    live,
	}
	o := h.answer(ctx, t)

	resp.Answer = s.answer()
	resp.Approach = o.approach
	resp.QueryName = o.queryName
	resp.Clarification = o.clarification
	resp.Source = o.source

	s.finish(map[string]interface{}{
		"turnId":        resp.TurnID,
		"approach":      o.approach,
		"queryName":     o.queryName,
		"clarification": o.clarification,
	})

	if s.gone {
		// the client left mid-turn; the result is discarded
		status = "disconnected"
		log.Warn("client disconnected, turn discarded", nil)
		return resp
	}
	if _, err := h.deps.History.Execute(ctx, &conversationhistory.Input{
		SessionID: req.SessionID,
		Utterance: req.Utterance,
		Response:  resp.Answer,
		ToolCall:  o.tool,
	}); err != nil {
		log.Warn("turn not recorded", apperrors.LogFields(apperrors.NewSessionStoreError("save history", err)))
	}

	log.Info("turn answered", map[string]interface{}{
		"utterance":     logger.Truncate(req.Utterance, 100),
		"approach":      o.approach,
		"queryName":     o.queryName,
		"clarification": o.clarification,
		"source":        o.source,
		"duration":      time.Since(start).String(),
	})
	return resp
}

// abort reports a failed turn and still terminates the stream normally.
func (h *Handler) abort(s *turnStream, code string) {
	s.fail(code, failureMessage)
	s.write(failureMessage)
	s.finish(map[string]interface{}{"error": code})
}

func (h *Handler) answer(ctx context.Context, t *turn) *outcome {
	// a pending clarification takes the reply before any routing
	if o := h.continueClarification(ctx, t); o != nil {
		return o
	}

	rctx, span := h.deps.Observability.StartSpan(ctx, "route")
	route := h.deps.Router.Execute(rctx, &routequery.Input{Utterance: t.req.Utterance, History: t.history})
	span.End()

	switch route.Approach {
	case models.ApproachAnalytical:
		return h.analytical(ctx, t)
	case models.ApproachKnowledgeBase:
		return h.knowledge(ctx, t)
	default:
		return h.converse(ctx, t)
	}
}

func (h *Handler) continueClarification(ctx context.Context, t *turn) *outcome {
	state, err := h.deps.Clarifier.Pending(ctx, t.req.SessionID)
	if err != nil {
		h.logger.Warn("clarification state not loaded", apperrors.LogFields(apperrors.NewSessionStoreError("load clarification", err)))
		h.dropClarification(ctx, t.req.SessionID)
		return nil
	}
	if state == nil {
		return nil
	}

	cctx, span := h.deps.Observability.StartSpan(ctx, "clarify")
	res, err := h.deps.Clarifier.Execute(cctx, &resolveclarification.Input{
		SessionID: t.req.SessionID,
		Reply:     t.req.Utterance,
		History:   t.history,
	})
	span.End()
	if err != nil {
		h.logger.Warn("clarification not resolved, routing afresh", map[string]interface{}{"error": err.Error()})
		h.dropClarification(ctx, t.req.SessionID)
		return nil
	}

	if !res.Resolved {
		return h.askBack(t, res.FollowUpPrompt, res.AttemptCount, state.PossibleQueryNames, state.PendingQueryName)
	}
	if res.QueryName == "" {
		t.stream.write(exhaustedMessage)
		return &outcome{approach: models.ApproachAnalytical, source: string(llmsynthesis.SourceError)}
	}
	return h.runQuery(ctx, t, res.OriginalUtterance, res.QueryName, res.Params, res.LowConfidence)
}

// dropClarification removes a state that could not be used, so it does not
// catch every later reply of the session as well.
func (h *Handler) dropClarification(ctx context.Context, sessionID string) {
	if err := h.deps.Clarifier.Cancel(ctx, sessionID); err != nil {
		h.logger.Warn("clarification not cancelled", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) analytical(ctx context.Context, t *turn) *outcome {
	sctx, span := h.deps.Observability.StartSpan(ctx, "select")
	sel := h.deps.Selector.Execute(sctx, &selectquery.Input{Utterance: t.req.Utterance, History: t.history})
	span.End()

	if sel.NeedsClarification {
		err := h.deps.Clarifier.Open(ctx, t.req.SessionID, models.ClarificationState{
			OriginalUtterance:   t.req.Utterance,
			PendingQueryName:    sel.SelectedQuery,
			PossibleQueryNames:  sel.PossibleQueries,
			PartialParams:       sel.Params,
			ClarificationPrompt: sel.ClarificationPrompt,
		})
		if err != nil {
			// the question is still asked; the reply is then routed like a new question
			h.logger.Warn("clarification not persisted", apperrors.LogFields(apperrors.NewSessionStoreError("open clarification", err)))
		}
		return h.askBack(t, sel.ClarificationPrompt, 0, sel.PossibleQueries, sel.SelectedQuery)
	}
	return h.runQuery(ctx, t, t.req.Utterance, sel.SelectedQuery, sel.Params, false)
}

func (h *Handler) askBack(t *turn, prompt string, attempt int, options []string, pending string) *outcome {
	t.stream.clarification(prompt, attempt, options)
	t.stream.write(prompt)
	return &outcome{
		approach:      models.ApproachAnalytical,
		queryName:     pending,
		clarification: true,
		source:        "clarification",
	}
}

// runQuery executes one catalog query for the caller's seller scope and
// synthesizes the answer over its result.
func (h *Handler) runQuery(ctx context.Context, t *turn, utterance, name string, params map[string]interface{}, lowConfidence bool) *outcome {
	t.stream.toolStart(map[string]interface{}{
		"tool":      "warehouse",
		"queryName": name,
		"params":    visibleParams(params),
	})

	wctx, span := h.deps.Observability.StartSpan(ctx, "warehouse", attribute.String("query.name", name))
	res := h.deps.Warehouse.Execute(wctx, &querywarehouse.Input{
		QueryName: name,
		Params:    params,
		Seller:    models.SellerScope{SellerID: t.req.SellerID},
	})
	span.End()

	t.stream.toolResult(map[string]interface{}{
		"tool":       "warehouse",
		"queryName":  name,
		"status":     res.Status,
		"count":      res.Count,
		"durationMs": res.QueryExecutionTime,
		"error":      res.ErrorMessage,
	})
	h.deps.Selector.MarkResult(ctx, utterance, name, res.OK())

	bound := res.BoundParams
	if bound == nil {
		bound = params
	}
	result := res.QueryResult
	out := h.synthesize(ctx, t, func(sctx context.Context, onChunk func(string) error) *llmsynthesis.Output {
		return h.deps.Synthesizer.Stream(sctx, &llmsynthesis.Input{
			Utterance:     utterance,
			QueryName:     name,
			Params:        bound,
			Result:        &result,
			History:       t.history,
			LowConfidence: lowConfidence,
		}, onChunk)
	})

	return &outcome{
		approach:  models.ApproachAnalytical,
		queryName: name,
		source:    string(out.Source),
		tool: &conversationhistory.ToolCall{
			QueryName: name,
			Summary:   fmt.Sprintf("%s: %s, %d Datensätze", name, res.Status, res.Count),
		},
	}
}

func (h *Handler) knowledge(ctx context.Context, t *turn) *outcome {
	t.stream.toolStart(map[string]interface{}{"tool": "knowledge_base"})

	var passages string
	var found int
	if h.deps.KnowledgeBase != nil {
		kctx, span := h.deps.Observability.StartSpan(ctx, "knowledge")
		res, err := h.deps.KnowledgeBase.Execute(kctx, &searchknowledgebase.Input{Query: t.req.Utterance})
		span.End()
		if err != nil {
			h.logger.Warn("knowledge base unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			passages, found = res.Text(), len(res.Passages)
		}
	}
	t.stream.toolResult(map[string]interface{}{"tool": "knowledge_base", "passages": found})

	out := h.synthesize(ctx, t, func(sctx context.Context, onChunk func(string) error) *llmsynthesis.Output {
		return h.deps.Synthesizer.Knowledge(sctx, &llmsynthesis.KnowledgeInput{
			Utterance: t.req.Utterance,
			Passages:  passages,
			History:   t.history,
		}, onChunk)
	})
	return &outcome{
		approach: models.ApproachKnowledgeBase,
		source:   string(out.Source),
		tool: &conversationhistory.ToolCall{
			QueryName: "knowledge_base",
			Summary:   fmt.Sprintf("knowledge_base: %d Passagen", found),
		},
	}
}

func (h *Handler) converse(ctx context.Context, t *turn) *outcome {
	out := h.synthesize(ctx, t, func(sctx context.Context, onChunk func(string) error) *llmsynthesis.Output {
		return h.deps.Synthesizer.Converse(sctx, &llmsynthesis.ConversationalInput{
			Utterance: t.req.Utterance,
			History:   t.history,
		}, onChunk)
	})
	return &outcome{approach: models.ApproachConversational, source: string(out.Source)}
}

// synthesize streams model tokens when the turn is live and delivers the rest
// of the answer as word chunks.
func (h *Handler) synthesize(ctx context.Context, t *turn, produce func(context.Context, func(string) error) *llmsynthesis.Output) *llmsynthesis.Output {
	ctx, span := h.deps.Observability.StartSpan(ctx, "synthesize")
	defer span.End()

	var onChunk func(string) error
	if t.live {
		onChunk = t.stream.chunk
	}
	out := produce(ctx, onChunk)
	t.stream.write(out.Remainder())
	return out
}

func visibleParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k == "seller_id" {
			continue
		}
		out[k] = v
	}
	return out
}

// Handle runs one non-streamed turn for a job with variables {sessionId, sellerId, utterance}.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var req TurnRequest
	if err := json.Unmarshal([]byte(job.Variables), &req); err != nil {
		h.errors.HandleJobError(ctx, client, job, apperrors.NewInvalidInputError("parse variables: "+err.Error()))
		return
	}

	resp, err := h.Execute(ctx, &req)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}
	h.completeJob(ctx, client, job, resp)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, resp *TurnResponse) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(resp)
	if err != nil {
		h.logger.Error("complete job command not built", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("complete job command not sent", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}
