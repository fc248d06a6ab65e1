package models

// EventType is the kind of one event on a turn's stream.
type EventType string

const (
	EventStart         EventType = "start"
	EventText          EventType = "text"
	EventToolStart     EventType = "tool_start"
	EventToolResult    EventType = "tool_result"
	EventClarification EventType = "clarification"
	EventComplete      EventType = "complete"
	EventError         EventType = "error"
	EventEnd           EventType = "end"
)

// StreamEvent is a named event carrying a JSON object.
type StreamEvent struct {
	Type EventType              `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}
