package llm

import (
	"context"
	"fmt"
	"strings"

	"care-assistant/internal/common/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const jsonInstruction = "\n\nAntworte ausschließlich mit einem einzigen JSON-Objekt ohne weiteren Text."

// AnthropicClient talks to the Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	fastModel string
	maxTokens int
}

func NewAnthropicClient(cfg config.LLMConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(timeoutOrDefault(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	fast := cfg.FastModel
	if fast == "" {
		fast = cfg.Model
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		fastModel: fast,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (c *AnthropicClient) params(req Request) anthropic.MessageNewParams {
	model := c.model
	if req.Fast {
		model = c.fastModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	system := req.System
	if req.JSON {
		system += jsonInstruction
	}

	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  toAnthropicMessages(req.Messages),
	}
	if system != "" {
		p.System = []anthropic.TextBlockParam{
			{Text: system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		}
	}
	if req.Temperature > 0 {
		p.Temperature = anthropic.Float(req.Temperature)
	}
	return p
}

// toAnthropicMessages merges consecutive same-role messages; the API requires alternation
// and a leading user message.
func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	type block struct {
		assistant bool
		text      []string
	}
	var blocks []block
	for _, m := range msgs {
		content := m.Content
		assistant := m.Role == RoleAssistant
		if m.Role == RoleTool {
			content = "[Tool-Ergebnis]\n" + content
		}
		if n := len(blocks); n > 0 && blocks[n-1].assistant == assistant {
			blocks[n-1].text = append(blocks[n-1].text, content)
			continue
		}
		blocks = append(blocks, block{assistant: assistant, text: []string{content}})
	}
	if len(blocks) > 0 && blocks[0].assistant {
		blocks = blocks[1:]
	}

	out := make([]anthropic.MessageParam, 0, len(blocks))
	for _, b := range blocks {
		tb := anthropic.NewTextBlock(strings.Join(b.text, "\n\n"))
		if b.assistant {
			out = append(out, anthropic.NewAssistantMessage(tb))
		} else {
			out = append(out, anthropic.NewUserMessage(tb))
		}
	}
	return out
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	message, err := c.client.Messages.New(ctx, c.params(req))
	if err != nil {
		return nil, classify(ctx, err)
	}

	resp := &Response{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			resp.Text += block.Text
		}
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

func (c *AnthropicClient) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(req))
	defer stream.Close()

	message := anthropic.Message{}
	var text strings.Builder
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, classify(ctx, err)
		}
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				text.WriteString(delta.Text)
				if err := onChunk(delta.Text); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Text:         text.String(),
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}, nil
}
