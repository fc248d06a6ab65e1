package routequery

import "care-assistant/internal/models"

type Input struct {
	Utterance string        `json:"utterance"`
	History   []models.Turn `json:"history,omitempty"`
}

// Decision sources.
const (
	SourcePrecheck = "precheck"
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

type Output struct {
	models.RoutingDecision
	Source string `json:"source"`
}

// Fallback rationales.
const (
	RationaleParseError    = "parse_error"
	RationaleLLMError      = "llm_error"
	RationaleLowConfidence = "low_confidence"
)
