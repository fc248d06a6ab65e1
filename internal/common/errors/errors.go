// Package errors provides the pipeline's error codes and their workflow-engine mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline error kinds.
const (
	ErrCodeRoutingParseError        ErrorCode = "ROUTING_PARSE_ERROR"
	ErrCodeSelectionParseError      ErrorCode = "SELECTION_PARSE_ERROR"
	ErrCodeMissingRequiredParameter ErrorCode = "MISSING_REQUIRED_PARAMETER"
	ErrCodeParameterType            ErrorCode = "PARAMETER_TYPE"
	ErrCodeUnknownQuery             ErrorCode = "UNKNOWN_QUERY"
	ErrCodeUnboundParameter         ErrorCode = "UNBOUND_PARAMETER"
	ErrCodeWarehouseError           ErrorCode = "WAREHOUSE_ERROR"
	ErrCodeSynthesisError           ErrorCode = "SYNTHESIS_ERROR"
	ErrCodeClarificationExhausted   ErrorCode = "CLARIFICATION_EXHAUSTED"

	ErrCodeLLMUnavailable ErrorCode = "LLM_UNAVAILABLE"
	ErrCodeLLMTimeout     ErrorCode = "LLM_TIMEOUT"

	ErrCodeSessionStoreFailed  ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeKnowledgeBaseFailed ErrorCode = "KNOWLEDGE_BASE_FAILED"
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewRoutingParseError is recovered locally by the router.
func NewRoutingParseError(raw string) *StandardError {
	return newError(ErrCodeRoutingParseError, "Router output could not be parsed", raw, false)
}

// NewSelectionParseError is recovered by the selector's default query or a clarification.
func NewSelectionParseError(raw string) *StandardError {
	return newError(ErrCodeSelectionParseError, "Selector output could not be parsed", raw, false)
}

func NewMissingRequiredParameterError(queryName string, missing []string) *StandardError {
	return newError(ErrCodeMissingRequiredParameter, "Required parameters missing",
		fmt.Sprintf("query: %s, missing: %s", queryName, strings.Join(missing, ",")), false)
}

func NewParameterTypeError(param, declared string, value interface{}) *StandardError {
	return newError(ErrCodeParameterType, "Parameter could not be coerced",
		fmt.Sprintf("param: %s, type: %s, value: %v", param, declared, value), false)
}

func NewUnknownQueryError(queryName string) *StandardError {
	return newError(ErrCodeUnknownQuery, "Query not found in catalog",
		fmt.Sprintf("query: %s", queryName), false)
}

func NewUnboundParameterError(queryName, param string) *StandardError {
	return newError(ErrCodeUnboundParameter, "SQL placeholder has no binding",
		fmt.Sprintf("query: %s, placeholder: @%s", queryName, param), false)
}

func NewWarehouseError(queryName string, err error) *StandardError {
	return newError(ErrCodeWarehouseError, "Warehouse query failed",
		fmt.Sprintf("query: %s, error: %s", queryName, err.Error()), true)
}

func NewSynthesisError(err error) *StandardError {
	return newError(ErrCodeSynthesisError, "Answer synthesis failed", err.Error(), true)
}

func NewClarificationExhaustedError(attempts int) *StandardError {
	return newError(ErrCodeClarificationExhausted, "Clarification attempts exhausted",
		fmt.Sprintf("attempts: %d", attempts), false)
}

func NewLLMUnavailableError(err error) *StandardError {
	return newError(ErrCodeLLMUnavailable, "Language model service error", err.Error(), true)
}

func NewLLMTimeoutError(stage string) *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model call timed out",
		fmt.Sprintf("stage: %s", stage), true)
}

func NewSessionStoreError(op string, err error) *StandardError {
	return newError(ErrCodeSessionStoreFailed, "Session store operation failed",
		fmt.Sprintf("op: %s, error: %s", op, err.Error()), true)
}

func NewKnowledgeBaseError(err error) *StandardError {
	return newError(ErrCodeKnowledgeBaseFailed, "Knowledge base retrieval failed", err.Error(), true)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewAuthenticationError(details string) *StandardError {
	return newError("AUTHENTICATION_ERROR", "Authentication failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeWarehouseError,
		ErrCodeLLMUnavailable,
		ErrCodeSessionStoreFailed,
		ErrCodeKnowledgeBaseFailed,
		"EXTERNAL_SERVICE_ERROR":
		return 3
	case ErrCodeLLMTimeout, "TIMEOUT_ERROR":
		return 2
	case ErrCodeSynthesisError:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// LogFields renders a StandardError as structured log fields.
func LogFields(e *StandardError) map[string]interface{} {
	return map[string]interface{}{
		"code":      string(e.Code),
		"category":  GetErrorCategory(e.Code),
		"details":   e.Details,
		"retryable": e.Retryable,
	}
}

// GetErrorCategory returns the pipeline stage family of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "ROUTING"):
		return "ROUTING"
	case strings.HasPrefix(codeStr, "SELECTION"), strings.Contains(codeStr, "PARAMETER"):
		return "SELECTION"
	case strings.Contains(codeStr, "CLARIFICATION"):
		return "CLARIFICATION"
	case strings.Contains(codeStr, "QUERY"), strings.Contains(codeStr, "WAREHOUSE"):
		return "WAREHOUSE"
	case strings.Contains(codeStr, "LLM"), strings.Contains(codeStr, "SYNTHESIS"):
		return "AI"
	case strings.Contains(codeStr, "SESSION"), strings.Contains(codeStr, "KNOWLEDGE"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
