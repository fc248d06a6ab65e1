package conversationhistory

import (
	"context"
	"errors"
	"time"

	"care-assistant/internal/common/logger"
	"care-assistant/internal/models"
)

const TaskType = "conversation-history"

var ErrMissingSession = errors.New("MISSING_SESSION_ID")

type Handler struct {
	config *Config
	store  *Store
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(cfg *Config, store *Store, log logger.Logger) *Handler {
	return &Handler{
		config: cfg,
		store:  store,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
		now: time.Now,
	}
}

// Load returns the session's history. A store failure is logged and yields an
// empty history so the turn can still be answered.
func (h *Handler) Load(ctx context.Context, sessionID string) []models.Turn {
	if sessionID == "" {
		return nil
	}
	turns, err := h.store.Load(ctx, sessionID)
	if err != nil {
		h.logger.Warn("history not loaded", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return nil
	}
	return turns
}

// Execute appends one exchange to the stored history.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SessionID == "" {
		return nil, ErrMissingSession
	}

	history := h.Load(ctx, input.SessionID)
	updated := Augment(history, input.Utterance, input.Response, input.ToolCall, h.config.MaxHistory, h.now().UTC())

	if err := h.store.Save(ctx, input.SessionID, updated); err != nil {
		h.logger.Error("history not saved", map[string]interface{}{
			"sessionId": input.SessionID,
			"error":     err.Error(),
		})
		return nil, err
	}

	h.logger.Debug("history updated", map[string]interface{}{
		"sessionId": input.SessionID,
		"turns":     len(updated),
	})
	return &Output{History: updated, Topic: ExtractTopic(updated)}, nil
}

// Reset drops the session's history.
func (h *Handler) Reset(ctx context.Context, sessionID string) error {
	return h.store.Delete(ctx, sessionID)
}
