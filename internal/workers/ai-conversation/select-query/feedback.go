package selectquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"care-assistant/internal/common/database"
	"care-assistant/internal/models"
)

// FeedbackEntry is one low-confidence selection kept for later review.
type FeedbackEntry struct {
	Utterance string
	Binding   models.ParameterBinding
	Rationale string
	CreatedAt time.Time
}

// FeedbackLog writes to the query_selection_feedback table.
type FeedbackLog struct {
	db database.Querier
}

func NewFeedbackLog(db database.Querier) *FeedbackLog {
	return &FeedbackLog{db: db}
}

const insertFeedbackSQL = `INSERT INTO query_selection_feedback
	(utterance, selected_query, confidence, params, missing_required, rationale, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// the latest matching row only; earlier identical questions keep their result
const markFeedbackSQL = `UPDATE query_selection_feedback SET success = $1
	WHERE id = (
		SELECT id FROM query_selection_feedback
		WHERE utterance = $2 AND selected_query = $3
		ORDER BY created_at DESC LIMIT 1
	)`

func (f *FeedbackLog) Record(ctx context.Context, e FeedbackEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	b := e.Binding
	if _, err := f.db.ExecContext(ctx, insertFeedbackSQL,
		e.Utterance, b.QueryName, b.Confidence, bindingJSON(b.Params),
		strings.Join(b.MissingRequired, ","), e.Rationale, e.CreatedAt); err != nil {
		return fmt.Errorf("record selection feedback: %w", err)
	}
	return nil
}

// MarkResult stores whether the selected query then executed successfully.
func (f *FeedbackLog) MarkResult(ctx context.Context, utterance, query string, success bool) error {
	if _, err := f.db.ExecContext(ctx, markFeedbackSQL, success, utterance, query); err != nil {
		return fmt.Errorf("mark selection feedback: %w", err)
	}
	return nil
}

// bindingJSON renders the proposed values without the seller scope.
func bindingJSON(params map[string]interface{}) string {
	visible := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k != "seller_id" {
			visible[k] = v
		}
	}
	raw, err := json.Marshal(visible)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
