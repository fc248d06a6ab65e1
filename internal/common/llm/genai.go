package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"care-assistant/internal/common/config"
	httpclient "care-assistant/internal/common/http"
)

// GenAIClient calls an internal generation gateway over plain HTTP:
// POST {base}/api/ai/generate with system, messages and sampling options.
type GenAIClient struct {
	baseURL     string
	model       string
	fastModel   string
	maxRetries  int
	maxTokens   int
	temperature float64
	client      *httpclient.Client
}

type genAIRequest struct {
	Model          string    `json:"model,omitempty"`
	System         string    `json:"system,omitempty"`
	Messages       []Message `json:"messages"`
	MaxTokens      int       `json:"max_tokens"`
	Temperature    float64   `json:"temperature"`
	ResponseFormat string    `json:"response_format,omitempty"`
}

type genAIResponse struct {
	Text  string `json:"text"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

func NewGenAIClient(cfg config.LLMConfig) (*GenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("genai base url is required")
	}
	// no client timeout; deadlines come from the request context
	client := httpclient.NewClient(0)
	if cfg.APIKey != "" {
		client.WithHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &GenAIClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		fastModel:   cfg.FastModel,
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      client,
	}, nil
}

func (c *GenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	body := genAIRequest{
		Model:       c.model,
		System:      req.System,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.Fast && c.fastModel != "" {
		body.Model = c.fastModel
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = c.maxTokens
	}
	if body.Temperature == 0 {
		body.Temperature = c.temperature
	}
	if req.JSON {
		body.ResponseFormat = "json"
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrLLMTimeout, ctx.Err())
			}
		}

		resp, lastErr = c.client.PostJSON(ctx, c.baseURL+"/api/ai/generate", body)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
			if !retryableStatus(lastErr) {
				break
			}
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrLLMTimeout, ctx.Err())
		}
	}

	if resp == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("no successful response after retries")
		}
		return nil, classify(ctx, lastErr)
	}
	defer resp.Body.Close()

	var out genAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrLLMUnavailable, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Text:         out.Text,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
	}, nil
}

// Stream has no incremental transport on this gateway; the whole text is one chunk.
func (c *GenAIClient) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := onChunk(resp.Text); err != nil {
		return nil, err
	}
	return resp, nil
}

// 4xx other than 408 and 429 will not succeed on retry.
func retryableStatus(err error) bool {
	var code int
	if _, scanErr := fmt.Sscanf(err.Error(), "status %d", &code); scanErr != nil {
		return true
	}
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}
