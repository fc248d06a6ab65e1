package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"care-assistant/internal/models"
)

var ErrStreamingUnsupported = errors.New("STREAMING_UNSUPPORTED")

// SSEWriter writes stream events as server-sent events. Each event is sent as
// "event: <type>" plus a JSON data line, then flushed.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSEWriter sets the event-stream headers. It fails when w cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Emit writes one event. After a write error every later call fails fast.
func (s *SSEWriter) Emit(event models.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sse: stream closed")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sse: encode %s event: %w", event.Type, err)
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
		s.closed = true
		return fmt.Errorf("sse: write: %w", err)
	}
	s.flusher.Flush()
	return nil
}
