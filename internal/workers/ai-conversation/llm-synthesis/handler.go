// internal/workers/ai-conversation/llm-synthesis/handler.go
package llmsynthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "care-assistant/internal/common/errors"
	"care-assistant/internal/common/llm"
	"care-assistant/internal/common/logger"
	"care-assistant/internal/models"
	conversationhistory "care-assistant/internal/workers/ai-conversation/conversation-history"
)

const (
	TaskType = "llm-synthesis"
)

var (
	ErrLLMSynthesisFailed = errors.New("SYNTHESIS_ERROR")
	ErrEmptyAnswer        = errors.New("EMPTY_ANSWER")
)

const (
	lowConfidenceCaveat = "Hinweis: Ihre Frage war für mich nicht ganz eindeutig. Die folgende Auswertung ist meine beste Einschätzung. Formulieren Sie gern genauer, falls etwas anderes gemeint war.\n\n"
	warehouseApology    = "Entschuldigung, die Daten konnten gerade nicht abgerufen werden. Bitte versuchen Sie es in einem Moment erneut."
	parameterApology    = "Entschuldigung, ich konnte Ihre Angaben nicht in eine gültige Abfrage übersetzen. Bitte prüfen Sie Zeitraum und Namen und formulieren Sie die Frage noch einmal."
	genericApology      = "Entschuldigung, bei der Verarbeitung Ihrer Anfrage ist ein interner Fehler aufgetreten."
	conversationalError = "Entschuldigung, ich kann gerade nicht antworten. Fragen Sie mich gern nach Ihren Care Stays, Verträgen, Leads oder Kündigungen."
	noKnowledge         = "Dazu habe ich in der Wissensdatenbank leider nichts gefunden."
)

type Handler struct {
	config  *Config
	prompts *Prompts
	llm     llm.Client
	logger  logger.Logger
}

func NewHandler(config *Config, prompts *Prompts, client llm.Client, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		prompts: prompts,
		llm:     client,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute answers from a warehouse result. It always produces an answer.
func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	return h.execute(ctx, input, nil)
}

// Stream is Execute with model tokens forwarded to onChunk as they arrive.
// Output.Streamed holds what was forwarded; the caller delivers Output.Remainder.
func (h *Handler) Stream(ctx context.Context, input *Input, onChunk func(string) error) *Output {
	return h.execute(ctx, input, onChunk)
}

func (h *Handler) execute(ctx context.Context, input *Input, onChunk func(string) error) *Output {
	caveat := input.LowConfidence && input.Result != nil && input.Result.OK()
	// a best guess is announced before the first model token reaches the client
	caveatSent := caveat && onChunk != nil && onChunk(lowConfidenceCaveat) == nil

	out := h.answer(ctx, input, onChunk)
	if caveat && (caveatSent || out.Streamed == "") {
		out.Answer = lowConfidenceCaveat + out.Answer
		if caveatSent {
			out.Streamed = lowConfidenceCaveat + out.Streamed
		}
	}

	h.logger.Info("answer synthesized", map[string]interface{}{
		"queryName": input.QueryName,
		"source":    out.Source,
		"length":    len(out.Answer),
	})
	return out
}

func (h *Handler) answer(ctx context.Context, input *Input, onChunk func(string) error) *Output {
	result := input.Result
	if result == nil || !result.OK() {
		return &Output{Answer: apology(result), Source: SourceError}
	}
	if result.Count == 0 {
		return &Output{Answer: noDataMessage(input), Source: SourceNoData}
	}
	if input.QueryName == models.QueryCustomerHistory {
		return &Output{Answer: FormatCustomerHistory(result), Source: SourceFormatter}
	}

	req := llm.Request{
		Stage:       "synthesize",
		System:      h.warehousePrompt(input),
		Messages:    llm.UserPrompt(h.appendix(input)),
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
	}
	text, streamed, err := h.complete(ctx, req, onChunk)
	if err == nil {
		return &Output{Answer: text, Source: SourceLLM, Streamed: streamed}
	}

	h.logger.WithFields(map[string]interface{}{"queryName": input.QueryName}).
		Warn("synthesis failed, using summary", failureFields("synthesize", err))
	summary := Summarize(input)
	if streamed != "" {
		// keep what the client already has and append the summary
		return &Output{Answer: streamed + "\n\n" + summary, Source: SourceSummary, Streamed: streamed}
	}
	return &Output{Answer: summary, Source: SourceSummary}
}

// Knowledge answers from knowledge base passages.
func (h *Handler) Knowledge(ctx context.Context, input *KnowledgeInput, onChunk func(string) error) *Output {
	if strings.TrimSpace(input.Passages) == "" {
		return &Output{Answer: noKnowledge, Source: SourceNoData}
	}

	system := render(h.prompts.KnowledgeBase, h.config.Now(), "") + h.context(input.History)
	user := fmt.Sprintf("Frage: %s\n\nAuszüge aus der Wissensdatenbank:\n%s", input.Utterance, input.Passages)
	text, streamed, err := h.complete(ctx, llm.Request{
		Stage:       "knowledge",
		System:      system,
		Messages:    llm.UserPrompt(user),
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
	}, onChunk)
	if err == nil {
		return &Output{Answer: text, Source: SourceLLM, Streamed: streamed}
	}

	h.logger.Warn("knowledge answer failed, returning passages", failureFields("knowledge", err))
	fallback := "Aus der Wissensdatenbank:\n\n" + input.Passages
	if streamed != "" {
		return &Output{Answer: streamed + "\n\n" + fallback, Source: SourceSummary, Streamed: streamed}
	}
	return &Output{Answer: fallback, Source: SourceSummary}
}

// Converse produces a free-form reply without any data access.
func (h *Handler) Converse(ctx context.Context, input *ConversationalInput, onChunk func(string) error) *Output {
	system := render(h.prompts.Conversational, h.config.Now(), "") + h.context(input.History)
	text, streamed, err := h.complete(ctx, llm.Request{
		Stage:       "converse",
		System:      system,
		Messages:    conversationMessages(input.History, input.Utterance, h.config.HistoryTurns),
		MaxTokens:   h.config.MaxTokens,
		Temperature: 0.7,
	}, onChunk)
	if err == nil {
		return &Output{Answer: text, Source: SourceLLM, Streamed: streamed}
	}

	h.logger.Warn("conversational reply failed", failureFields("converse", err))
	if streamed != "" {
		return &Output{Answer: streamed, Source: SourceLLM, Streamed: streamed}
	}
	return &Output{Answer: conversationalError, Source: SourceError}
}

// complete calls the model, streaming when onChunk is set. It returns the
// text forwarded so far even on error.
func (h *Handler) complete(ctx context.Context, req llm.Request, onChunk func(string) error) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	if onChunk == nil {
		resp, err := h.llm.Complete(ctx, req)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrLLMSynthesisFailed, err)
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return "", "", ErrEmptyAnswer
		}
		return text, "", nil
	}

	var sent strings.Builder
	resp, err := h.llm.Stream(ctx, req, func(chunk string) error {
		if err := onChunk(chunk); err != nil {
			return err
		}
		sent.WriteString(chunk)
		return nil
	})
	if err != nil {
		return "", sent.String(), fmt.Errorf("%w: %v", ErrLLMSynthesisFailed, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", sent.String(), ErrEmptyAnswer
	}
	// the streamed chunks are the answer
	return sent.String(), sent.String(), nil
}

func (h *Handler) warehousePrompt(input *Input) string {
	var b strings.Builder
	now := h.config.Now()
	b.WriteString(render(h.prompts.Base, now, ""))
	b.WriteString("\n")
	b.WriteString(h.prompts.Glossary)
	b.WriteString("\n")
	b.WriteString(h.prompts.Family(input.QueryName))
	b.WriteString(h.context(input.History))
	return b.String()
}

// context renders the topic continuity note and the recent turns.
func (h *Handler) context(history []models.Turn) string {
	topic := conversationhistory.ExtractTopic(history)
	if topic == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(render(h.prompts.Continuity, h.config.Now(), logger.Truncate(topic, 200)))

	recent := history
	if n := h.config.HistoryTurns; n > 0 && len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	b.WriteString("\nLetzte Nachrichten:\n")
	for _, t := range recent {
		if t.Role == models.RoleToolResult {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", t.Role, logger.Truncate(t.Content, 300))
	}
	return b.String()
}

// appendix is the user message: the question and the result as JSON.
func (h *Handler) appendix(input *Input) string {
	rows := input.Result.Data
	if n := h.config.AppendixRows; n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	payload := map[string]interface{}{
		"query":  input.QueryName,
		"params": publicParams(input.Params),
		"count":  input.Result.Count,
		"rows":   rows,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		data = []byte(templateSummary(input.Result))
	}
	return fmt.Sprintf("Frage: %s\n\nDatenanhang (JSON, count ist die exakte Gesamtzahl):\n%s", input.Utterance, data)
}

func publicParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k == "seller_id" || k == "limit" {
			continue
		}
		out[k] = v
	}
	return out
}

func conversationMessages(history []models.Turn, utterance string, n int) []llm.Message {
	var msgs []llm.Message
	recent := history
	if n > 0 && len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	for _, t := range recent {
		switch t.Role {
		case models.RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Content})
		case models.RoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: t.Content})
		}
	}
	// providers expect the first message from the user
	for len(msgs) > 0 && msgs[0].Role != llm.RoleUser {
		msgs = msgs[1:]
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: utterance})
}

func apology(result *models.QueryResult) string {
	if result == nil {
		return genericApology
	}
	switch result.ErrorMessage {
	case "parameter_type", "unbound_parameter":
		return parameterApology
	case "warehouse_error":
		return warehouseApology
	default:
		return genericApology
	}
}

func noDataMessage(input *Input) string {
	msg := "Dazu wurden keine Daten gefunden"
	if !models.IsEmptyValue(input.Params["start_date"]) && !models.IsEmptyValue(input.Params["end_date"]) {
		msg += " " + period(input.Params) + ". Versuchen Sie gegebenenfalls einen größeren Zeitraum."
		return msg
	}
	if name := str(input.Params, "customer_name"); name != "" {
		return fmt.Sprintf("%s zu %q. Prüfen Sie die Schreibweise oder nennen Sie nur den Nachnamen.", msg, name)
	}
	return msg + "."
}

func failureFields(stage string, err error) map[string]interface{} {
	std := llm.Standard(stage, err)
	if std == nil {
		std = apperrors.NewSynthesisError(err)
	}
	return apperrors.LogFields(std)
}
