package resolveclarification

import "care-assistant/internal/models"

// Outcome labels one resolution step. The values are also metric labels.
type Outcome string

const (
	OutcomeOpened    Outcome = "opened"
	OutcomeAffirmed  Outcome = "affirmed"
	OutcomeResolved  Outcome = "resolved"
	OutcomeFollowUp  Outcome = "follow_up"
	OutcomeExhausted Outcome = "exhausted"
)

type Input struct {
	SessionID string        `json:"sessionId"`
	Reply     string        `json:"reply"`
	History   []models.Turn `json:"history,omitempty"`
}

type Output struct {
	Resolved       bool                   `json:"resolved"`
	Outcome        Outcome                `json:"outcome"`
	QueryName      string                 `json:"queryName,omitempty"`
	Params         map[string]interface{} `json:"params,omitempty"`
	FollowUpPrompt string                 `json:"followUpPrompt,omitempty"`
	// LowConfidence marks a best guess after the attempts ran out.
	LowConfidence     bool   `json:"lowConfidence,omitempty"`
	OriginalUtterance string `json:"originalUtterance"`
	AttemptCount      int    `json:"attemptCount"`
}

type llmResolution struct {
	Resolved       bool                   `json:"resolved"`
	Query          *string                `json:"query"`
	Params         map[string]interface{} `json:"params"`
	FollowUpPrompt *string                `json:"follow_up_prompt"`
}
