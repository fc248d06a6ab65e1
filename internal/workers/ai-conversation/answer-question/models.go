package answerquestion

import "care-assistant/internal/models"

// TurnRequest is one user message. SellerID comes from the authenticated caller, never the body.
type TurnRequest struct {
	SessionID string `json:"sessionId"`
	SellerID  string `json:"sellerId"`
	Utterance string `json:"utterance"`
}

// TurnResponse is the outcome of a turn, also the job's output variables.
type TurnResponse struct {
	TurnID        string          `json:"turnId"`
	Answer        string          `json:"answer"`
	Approach      models.Approach `json:"approach"`
	QueryName     string          `json:"queryName,omitempty"`
	Clarification bool            `json:"clarification"`
	Source        string          `json:"source,omitempty"`
}

// Emitter receives the events of one turn in order.
type Emitter interface {
	Emit(event models.StreamEvent) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event models.StreamEvent) error

func (f EmitterFunc) Emit(event models.StreamEvent) error { return f(event) }

// chatRequest is the body of POST /api/chat/stream.
type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}
