package validation

// Schemas for the structured outputs the language model returns at each stage.
var (
	RoutingDecisionSchema = MustCompile("routing_decision", `{
		"type": "object",
		"required": ["approach", "confidence"],
		"properties": {
			"approach":   {"type": "string", "enum": ["conversational", "knowledge_base", "analytical"]},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1},
			"rationale":  {"type": "string"}
		}
	}`)

	QuerySelectionSchema = MustCompile("query_selection", `{
		"type": "object",
		"required": ["confidence"],
		"properties": {
			"selected_query":       {"type": ["string", "null"]},
			"possible_queries":     {"type": "array", "items": {"type": "string"}},
			"params":               {"type": ["object", "null"]},
			"confidence":           {"type": "number", "minimum": 1, "maximum": 5},
			"needs_clarification":  {"type": "boolean"},
			"clarification_prompt": {"type": ["string", "null"]},
			"rationale":            {"type": "string"}
		}
	}`)

	ClarificationResolutionSchema = MustCompile("clarification_resolution", `{
		"type": "object",
		"required": ["resolved"],
		"properties": {
			"resolved":         {"type": "boolean"},
			"query":            {"type": ["string", "null"]},
			"params":           {"type": ["object", "null"]},
			"follow_up_prompt": {"type": ["string", "null"]}
		},
		"if":   {"properties": {"resolved": {"const": true}}},
		"then": {"required": ["query"], "properties": {"query": {"type": "string", "minLength": 1}}},
		"else": {"required": ["follow_up_prompt"]}
	}`)

	// EntityMapSchema accepts only a flat name to string mapping.
	EntityMapSchema = MustCompile("entity_map", `{
		"type": "object",
		"additionalProperties": {"type": "string"}
	}`)

	ChatRequestSchema = MustCompile("chat_request", `{
		"type": "object",
		"required": ["message"],
		"properties": {
			"sessionId": {"type": "string"},
			"message":   {"type": "string", "minLength": 1, "maxLength": 4000}
		}
	}`)
)
