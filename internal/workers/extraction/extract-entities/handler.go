package extractentities

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"care-assistant/internal/common/llm"
	"care-assistant/internal/common/logger"
	"care-assistant/internal/common/validation"
)

const (
	TaskType = "extract-entities"
	stage    = "extract_entities"
)

var (
	ErrExtractionInvalid = errors.New("ENTITY_EXTRACTION_INVALID")
	ErrExtractionFailed  = errors.New("ENTITY_EXTRACTION_FAILED")
)

var valuePrefixRe = regexp.MustCompile(`(?i)^(agentur|firma|vermittlung|herr|herrn|frau|familie)\s+`)

type Handler struct {
	config *Config
	llm    llm.Client
	logger logger.Logger
}

// NewHandler builds the extractor. client may be nil, which disables the model pass.
func NewHandler(cfg *Config, client llm.Client, log logger.Logger) *Handler {
	return &Handler{
		config: cfg,
		llm:    client,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Extract runs the deterministic pass only.
func (h *Handler) Extract(text string) Entities {
	e := Entities{
		Agency: ExtractAgency(text, h.config.KnownAgencies),
		IDs:    ExtractIDs(text),
	}
	customer := ExtractCustomer(text)
	if customer != nil && e.Agency != nil && strings.EqualFold(customer.Normalized, e.Agency.Normalized) {
		customer = nil
	}
	e.Customer = customer
	return e
}

// Execute runs the deterministic pass and, for parameters in input.Missing that are
// still unfilled, one bounded model pass. A failed model pass is logged and the
// deterministic result returned.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	entities := h.Extract(input.Text)
	out := &Output{Entities: entities, Params: entities.Params()}

	var still []MissingParam
	for _, p := range input.Missing {
		if _, ok := out.Params[p.Name]; !ok {
			still = append(still, p)
		}
	}
	if len(still) == 0 || h.llm == nil {
		return out, nil
	}

	values, err := h.extractWithLLM(ctx, input.Text, input.QueryName, still)
	if err != nil {
		h.logger.Warn("llm parameter extraction failed", map[string]interface{}{
			"queryName": input.QueryName,
			"error":     err.Error(),
		})
		return out, nil
	}
	out.LLMParams = values
	for k, v := range values {
		out.Params[k] = v
	}
	return out, nil
}

func (h *Handler) extractWithLLM(ctx context.Context, text, queryName string, missing []MissingParam) (map[string]string, error) {
	if len(missing) > h.config.MaxParams {
		missing = missing[:h.config.MaxParams]
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.LLMTimeout)
	defer cancel()

	resp, err := h.llm.Complete(ctx, llm.Request{
		Stage:     stage,
		System:    extractionPrompt(queryName, missing),
		Messages:  llm.UserPrompt(text),
		MaxTokens: h.config.MaxTokens,
		Fast:      true,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	values, err := ParseEntityMap(resp.Text)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(missing))
	for _, p := range missing {
		wanted[p.Name] = true
	}
	out := map[string]string{}
	for k, v := range values {
		if !wanted[k] || k == "seller_id" {
			continue
		}
		if v = CleanValue(v); v != "" {
			out[k] = v
		}
	}

	h.logger.Info("llm extracted parameters", map[string]interface{}{
		"queryName": queryName,
		"requested": len(missing),
		"filled":    len(out),
	})
	return out, nil
}

// ParseEntityMap accepts only a flat JSON object of string values.
func ParseEntityMap(text string) (map[string]string, error) {
	var values map[string]string
	if err := llm.DecodeJSON(text, validation.EntityMapSchema, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionInvalid, err)
	}
	return values, nil
}

// CleanValue strips quotes, punctuation and role prefixes ("Agentur X" -> "X").
func CleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "\"'„“”‚‘.,;:!? ")
	v = valuePrefixRe.ReplaceAllString(v, "")
	return strings.TrimSpace(v)
}

func extractionPrompt(queryName string, missing []MissingParam) string {
	var b strings.Builder
	b.WriteString("Du bist ein Spezialist für die Extraktion von Parametern aus Benutzeranfragen.\n")
	fmt.Fprintf(&b, "Extrahiere für die Abfrage '%s' die folgenden Parameter:\n", queryName)
	for _, p := range missing {
		typ := string(p.Type)
		if typ == "" {
			typ = "string"
		}
		fmt.Fprintf(&b, "- %s (Typ: %s)\n", p.Name, typ)
	}
	b.WriteString("Datumswerte im Format YYYY-MM-DD. Lass Parameter weg, die nicht in der Anfrage stehen.\n")
	b.WriteString(`Antworte NUR mit einem flachen JSON-Objekt: {"param1": "wert1", "param2": "wert2"}`)
	return b.String()
}
