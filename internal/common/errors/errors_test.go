package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAs_FindsWrappedStandardError(t *testing.T) {
	inner := NewWarehouseError("get_active_care_stays_now", stderrors.New("connection reset"))
	wrapped := fmt.Errorf("turn failed: %w", inner)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.Equal(t, "StandardError[WAREHOUSE_ERROR]: Warehouse query failed", got.Error())

	_, ok = As(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestNormalize_PlainErrorIsInternal(t *testing.T) {
	std := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), std.Code)
	assert.Equal(t, "boom", std.Details)
	assert.False(t, std.Retryable)
}

func TestConvertToBPMNError_Retries(t *testing.T) {
	tests := []struct {
		name    string
		err     *StandardError
		retries int
	}{
		{"warehouse", NewWarehouseError("q", stderrors.New("x")), 3},
		{"llm timeout", NewLLMTimeoutError("synthesize"), 2},
		{"synthesis", NewSynthesisError(stderrors.New("x")), 1},
		{"invalid input", NewInvalidInputError("utterance is empty"), 0},
		{"unknown query", NewUnknownQueryError("get_everything"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.retries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ToErrorVariables()["errorCode"])
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeRoutingParseError:        "ROUTING",
		ErrCodeParameterType:            "SELECTION",
		ErrCodeMissingRequiredParameter: "SELECTION",
		ErrCodeClarificationExhausted:   "CLARIFICATION",
		ErrCodeUnknownQuery:             "WAREHOUSE",
		ErrCodeLLMTimeout:               "AI",
		ErrCodeSessionStoreFailed:       "STORAGE",
		ErrCodeInvalidInput:             "VALIDATION",
		"AUTHENTICATION_ERROR":          "OTHER",
	}
	for code, want := range tests {
		assert.Equal(t, want, GetErrorCategory(code), code)
	}
}

func TestLogFields(t *testing.T) {
	fields := LogFields(NewSessionStoreError("save history", stderrors.New("redis down")))

	assert.Equal(t, "SESSION_STORE_FAILED", fields["code"])
	assert.Equal(t, "STORAGE", fields["category"])
	assert.Equal(t, "op: save history, error: redis down", fields["details"])
	assert.Equal(t, true, fields["retryable"])
}
