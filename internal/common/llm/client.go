// Package llm is the Language Model Service boundary: chat-style completion with
// text or JSON output, optional token streaming.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"care-assistant/internal/common/config"
	apperrors "care-assistant/internal/common/errors"
)

var (
	ErrLLMTimeout     = errors.New("LLM_TIMEOUT")
	ErrLLMUnavailable = errors.New("LLM_UNAVAILABLE")
	ErrEmptyResponse  = errors.New("LLM_EMPTY_RESPONSE")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool carries a tool result back to the model; providers without a tool role
	// fold it into a user message.
	RoleTool Role = "tool"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call. Stage names the pipeline step for metrics and logs.
type Request struct {
	Stage       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// Fast selects the configured fast model (router, selector, extraction).
	Fast bool
	// JSON asks for a single JSON object as output.
	JSON bool
}

type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Client is implemented by every provider.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	// Stream calls onChunk for each text delta in order; the returned Response holds the full text.
	Stream(ctx context.Context, req Request, onChunk func(chunk string) error) (*Response, error)
}

// New builds the configured provider wrapped with metrics.
func New(cfg config.LLMConfig) (Client, error) {
	var (
		c   Client
		err error
	)
	switch cfg.Provider {
	case "anthropic":
		c, err = NewAnthropicClient(cfg)
	case "genai":
		c, err = NewGenAIClient(cfg)
	default:
		err = fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(c), nil
}

// UserPrompt is a one-message conversation.
func UserPrompt(text string) []Message {
	return []Message{{Role: RoleUser, Content: text}}
}

// Standard maps a failed call onto the pipeline error codes. It returns nil for
// errors that did not come from the provider.
func Standard(stage string, err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrLLMTimeout):
		return apperrors.NewLLMTimeoutError(stage)
	case errors.Is(err, ErrLLMUnavailable), errors.Is(err, ErrEmptyResponse):
		return apperrors.NewLLMUnavailableError(err)
	}
	return nil
}

func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrLLMTimeout, err)
	}
	if errors.Is(err, ErrLLMTimeout) || errors.Is(err, ErrLLMUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
}

func timeoutOrDefault(ms int) time.Duration {
	if ms <= 0 {
		return 60 * time.Second
	}
	return config.GetDuration(ms)
}
