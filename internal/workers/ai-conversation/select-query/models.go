package selectquery

import "care-assistant/internal/models"

type Input struct {
	Utterance string        `json:"utterance"`
	History   []models.Turn `json:"history,omitempty"`
}

type Output struct {
	NeedsClarification  bool                   `json:"needsClarification"`
	SelectedQuery       string                 `json:"selectedQuery,omitempty"`
	PossibleQueries     []string               `json:"possibleQueries,omitempty"`
	Params              map[string]interface{} `json:"params"`
	MissingRequired     []string               `json:"missingRequired,omitempty"`
	ClarificationPrompt string                 `json:"clarificationPrompt,omitempty"`
	// Confidence is on the 1..5 scale.
	Confidence int    `json:"confidence"`
	Rationale  string `json:"rationale,omitempty"`
	// ParseError is set when the model output was unusable and a fallback applied.
	ParseError bool `json:"parseError,omitempty"`
}

// Binding returns the resolved parameter binding of the selection.
func (o *Output) Binding() models.ParameterBinding {
	return models.ParameterBinding{
		QueryName:       o.SelectedQuery,
		Params:          o.Params,
		MissingRequired: o.MissingRequired,
		Confidence:      o.Confidence,
	}
}

// llmSelection is the model's structured answer.
type llmSelection struct {
	SelectedQuery       *string                `json:"selected_query"`
	PossibleQueries     []string               `json:"possible_queries"`
	Params              map[string]interface{} `json:"params"`
	Confidence          float64                `json:"confidence"`
	NeedsClarification  bool                   `json:"needs_clarification"`
	ClarificationPrompt *string                `json:"clarification_prompt"`
	Rationale           string                 `json:"rationale"`
}
