package extractentities

import "care-assistant/internal/models"

// Entities is the deterministic extraction result.
type Entities struct {
	Customer *models.EntityCandidate  `json:"customer,omitempty"`
	Agency   *models.EntityCandidate  `json:"agency,omitempty"`
	IDs      []models.EntityCandidate `json:"ids,omitempty"`
}

// Params maps the entities onto catalog parameter names. seller_id is never
// produced here; it always comes from the caller's scope.
func (e Entities) Params() map[string]interface{} {
	params := map[string]interface{}{}
	if e.Customer != nil {
		params["customer_name"] = e.Customer.Normalized
		if e.Customer.SecondarySurface != "" {
			params["secondary_name"] = e.Customer.SecondarySurface
		}
	}
	if e.Agency != nil {
		params["agency_name"] = e.Agency.Normalized
	}
	for _, id := range e.IDs {
		switch id.Role {
		case RoleLead:
			params["lead_id"] = id.Normalized
		case RoleAgency:
			params["agency_id"] = id.Normalized
		}
	}
	return params
}

// MissingParam names a parameter the deterministic pass could not fill.
type MissingParam struct {
	Name string           `json:"name"`
	Type models.ParamType `json:"type"`
}

type Input struct {
	Text      string         `json:"text"`
	QueryName string         `json:"queryName,omitempty"`
	Missing   []MissingParam `json:"missing,omitempty"`
}

type Output struct {
	Entities Entities               `json:"entities"`
	Params   map[string]interface{} `json:"params"`
	// LLMParams holds only the values contributed by the model pass.
	LLMParams map[string]string `json:"llmParams,omitempty"`
}
