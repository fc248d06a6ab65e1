package searchknowledgebase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"care-assistant/internal/common/config"
	"care-assistant/internal/common/database"
	apperrors "care-assistant/internal/common/errors"
	"care-assistant/internal/common/logger"
)

const (
	TaskType = "search-knowledge-base"
)

var (
	ErrKnowledgeSearchFailed = errors.New("KNOWLEDGE_SEARCH_FAILED")
	ErrKnowledgeTimeout      = errors.New("KNOWLEDGE_SEARCH_TIMEOUT")
	ErrEmptyQuery            = errors.New("KNOWLEDGE_EMPTY_QUERY")
)

// Backend is a retrieval substrate.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}

// NewBackend builds the configured backend. es is only used for the elasticsearch backend.
func NewBackend(cfg config.KnowledgeBaseConfig, es *database.ElasticsearchClient) (Backend, error) {
	switch cfg.Backend {
	case "elasticsearch":
		if es == nil {
			return nil, fmt.Errorf("elasticsearch knowledge backend needs a client")
		}
		return NewKeywordBackend(es, cfg.Index), nil
	case "chromem", "":
		return OpenVectorBackend(cfg.Path, cfg.Collection,
			EmbeddingFunc(cfg.EmbeddingURL, cfg.EmbeddingKey, cfg.EmbeddingModel))
	default:
		return nil, fmt.Errorf("unknown knowledge backend %q", cfg.Backend)
	}
}

type Handler struct {
	config  *Config
	backend Backend
	logger  logger.Logger
}

func NewHandler(cfg *Config, backend Backend, log logger.Logger) *Handler {
	return &Handler{
		config:  cfg,
		backend: backend,
		logger: log.WithFields(map[string]interface{}{
			"taskType": TaskType,
			"backend":  backend.Name(),
		}),
	}
}

// Execute retrieves the passages best matching input.Query.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()

	out, err := h.execute(ctx, input)
	if err != nil {
		h.logger.WithFields(map[string]interface{}{"query": logger.Truncate(input.Query, 100)}).
			Error("knowledge search failed", apperrors.LogFields(apperrors.NewKnowledgeBaseError(err)))
		return nil, err
	}

	h.logger.Info("knowledge search completed", map[string]interface{}{
		"passages": len(out.Passages),
		"duration": time.Since(start).String(),
	})
	return out, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	k := input.TopK
	if k <= 0 {
		k = h.config.TopK
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	passages, err := h.backend.Search(ctx, query, k)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, ErrKnowledgeTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrKnowledgeSearchFailed, err)
	}

	if len(passages) > k {
		passages = passages[:k]
	}
	for i := range passages {
		passages[i].Content = trimPassage(passages[i].Content, h.config.MaxPassageChars)
	}
	return &Output{Passages: passages, Backend: h.backend.Name()}, nil
}

func trimPassage(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + " …"
}
