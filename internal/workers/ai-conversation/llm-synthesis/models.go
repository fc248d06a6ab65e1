// internal/workers/ai-conversation/llm-synthesis/models.go
package llmsynthesis

import "care-assistant/internal/models"

// Source says how an answer was produced.
type Source string

const (
	SourceLLM       Source = "llm"
	SourceFormatter Source = "formatter"
	SourceSummary   Source = "summary"
	SourceNoData    Source = "no_data"
	SourceError     Source = "error"
)

// Input is one warehouse answer to synthesize.
type Input struct {
	Utterance string                 `json:"utterance"`
	QueryName string                 `json:"queryName"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Result    *models.QueryResult    `json:"result"`
	History   []models.Turn          `json:"history,omitempty"`
	// LowConfidence adds a caveat that the question may have been misread.
	LowConfidence bool `json:"lowConfidence,omitempty"`
}

type KnowledgeInput struct {
	Utterance string        `json:"utterance"`
	Passages  string        `json:"passages"`
	History   []models.Turn `json:"history,omitempty"`
}

type ConversationalInput struct {
	Utterance string        `json:"utterance"`
	History   []models.Turn `json:"history,omitempty"`
}

type Output struct {
	Answer string `json:"answer"`
	Source Source `json:"source"`
	// Streamed is the prefix of Answer already delivered through the chunk callback.
	Streamed string `json:"-"`
}

// Remainder is the part of Answer not yet delivered.
func (o *Output) Remainder() string {
	return o.Answer[len(o.Streamed):]
}
