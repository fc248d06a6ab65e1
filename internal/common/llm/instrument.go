package llm

import (
	"context"
	"errors"
	"time"

	"care-assistant/internal/common/metrics"
)

type instrumented struct {
	next Client
}

// Instrument records call counts and latency per stage.
func Instrument(c Client) Client {
	return &instrumented{next: c}
}

func (i *instrumented) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := i.next.Complete(ctx, req)
	observe(req.Stage, start, err)
	return resp, err
}

func (i *instrumented) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	start := time.Now()
	resp, err := i.next.Stream(ctx, req, onChunk)
	observe(req.Stage, start, err)
	return resp, err
}

func observe(stage string, start time.Time, err error) {
	if stage == "" {
		stage = "unknown"
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrLLMTimeout):
		status = "timeout"
	default:
		status = "error"
	}
	metrics.LLMCalls.WithLabelValues(stage, status).Inc()
	metrics.LLMDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
