package conversationhistory

import "care-assistant/internal/models"

// ToolCall is the compact record of a warehouse execution inside an exchange.
type ToolCall struct {
	QueryName string `json:"queryName"`
	Summary   string `json:"summary"`
}

type Input struct {
	SessionID string    `json:"sessionId"`
	Utterance string    `json:"utterance"`
	Response  string    `json:"response"`
	ToolCall  *ToolCall `json:"toolCall,omitempty"`
}

type Output struct {
	History []models.Turn `json:"history"`
	Topic   string        `json:"topic,omitempty"`
}
