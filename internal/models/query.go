package models

import (
	"sort"
	"strings"
	"time"
)

// ParamType is one of the primitive types a catalog parameter may declare.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
	ParamDate   ParamType = "date"
)

func (t ParamType) Valid() bool {
	switch t {
	case ParamString, ParamInt, ParamFloat, ParamBool, ParamDate:
		return true
	}
	return false
}

// QueryDescriptor is one named analytical query of the catalog.
type QueryDescriptor struct {
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	SQLTemplate    string                 `json:"-"`
	RequiredParams []string               `json:"required_params"`
	OptionalParams []string               `json:"optional_params,omitempty"`
	ParamTypes     map[string]ParamType   `json:"param_types,omitempty"`
	Defaults       map[string]interface{} `json:"defaults,omitempty"`
	Nullable       []string               `json:"-"`
	ResultShape    map[string]string      `json:"-"`
	UseCases       []string               `json:"use_cases,omitempty"`
	AvoidWhen      []string               `json:"avoid_when,omitempty"`
}

func (d *QueryDescriptor) IsRequired(param string) bool {
	return contains(d.RequiredParams, param)
}

func (d *QueryDescriptor) IsOptional(param string) bool {
	return contains(d.OptionalParams, param)
}

func (d *QueryDescriptor) IsNullable(param string) bool {
	return contains(d.Nullable, param)
}

// Declares reports whether param is required or optional.
func (d *QueryDescriptor) Declares(param string) bool {
	return d.IsRequired(param) || d.IsOptional(param)
}

// TypeOf returns the declared type, string when undeclared.
func (d *QueryDescriptor) TypeOf(param string) ParamType {
	if t, ok := d.ParamTypes[param]; ok {
		return t
	}
	return ParamString
}

// NeedsDateRange reports whether start_date or end_date are required.
func (d *QueryDescriptor) NeedsDateRange() bool {
	return d.IsRequired("start_date") || d.IsRequired("end_date")
}

// MissingParams lists, sorted, the required parameters without a value.
// seller_id is excluded because it is bound from the caller's scope.
func (d *QueryDescriptor) MissingParams(params map[string]interface{}) []string {
	var missing []string
	for _, p := range d.RequiredParams {
		if p == "seller_id" {
			continue
		}
		if v, ok := params[p]; !ok || IsEmptyValue(v) {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	return missing
}

// IsEmptyValue treats nil and blank strings as absent.
func IsEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ParameterBinding is the selector's proposal for one query. Confidence is on a 1..5 scale.
type ParameterBinding struct {
	QueryName       string                 `json:"queryName"`
	Params          map[string]interface{} `json:"params"`
	MissingRequired []string               `json:"missingRequired,omitempty"`
	Confidence      int                    `json:"confidence"`
}

type QueryStatus string

const (
	QueryStatusSuccess QueryStatus = "success"
	QueryStatusError   QueryStatus = "error"
)

// QueryResult is what the warehouse executor returns. Data is never nil.
type QueryResult struct {
	Status       QueryStatus              `json:"status"`
	Data         []map[string]interface{} `json:"data"`
	Count        int                      `json:"count"`
	ErrorMessage string                   `json:"error_message,omitempty"`
}

func (r *QueryResult) OK() bool {
	return r != nil && r.Status == QueryStatusSuccess
}

// DateRange holds calendar dates (midnight, caller's location) with Start <= End.
type DateRange struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

const DateLayout = "2006-01-02"

func (r DateRange) StartString() string { return r.Start.Format(DateLayout) }
func (r DateRange) EndString() string   { return r.End.Format(DateLayout) }

type EntityKind string

const (
	EntityCustomer EntityKind = "customer"
	EntityAgency   EntityKind = "agency"
	EntityID       EntityKind = "id"
)

// EntityCandidate is one extracted entity. Role is set for ids only (seller, lead, agency).
type EntityCandidate struct {
	Kind             EntityKind `json:"kind"`
	RawSurface       string     `json:"rawSurface"`
	Normalized       string     `json:"normalized"`
	SecondarySurface string     `json:"secondarySurface,omitempty"`
	Role             string     `json:"role,omitempty"`
}
