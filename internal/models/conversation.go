package models

import "time"

// Role of a turn in the conversation history.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Turn is one entry of a session's history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	QueryName string    `json:"queryName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Approach is the router's classification of an utterance.
type Approach string

const (
	ApproachConversational Approach = "conversational"
	ApproachKnowledgeBase  Approach = "knowledge_base"
	ApproachAnalytical     Approach = "analytical"
)

func (a Approach) Valid() bool {
	switch a {
	case ApproachConversational, ApproachKnowledgeBase, ApproachAnalytical:
		return true
	}
	return false
}

// RoutingDecision carries a confidence in [0,1]. It is not comparable to the selector's 1..5 scale.
type RoutingDecision struct {
	Approach   Approach `json:"approach"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// ClarificationState is persisted per session while a clarification is open.
type ClarificationState struct {
	OriginalUtterance   string                 `json:"originalUtterance"`
	PendingQueryName    string                 `json:"pendingQueryName,omitempty"`
	PossibleQueryNames  []string               `json:"possibleQueryNames,omitempty"`
	PartialParams       map[string]interface{} `json:"partialParams,omitempty"`
	ClarificationPrompt string                 `json:"clarificationPrompt"`
	AttemptCount        int                    `json:"attemptCount"`
	CreatedAt           time.Time              `json:"createdAt"`
}

// SellerScope is the authenticated caller. It is immutable for the duration of a request.
type SellerScope struct {
	SellerID string `json:"sellerId"`
}
