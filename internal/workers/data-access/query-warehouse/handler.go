// internal/workers/data-access/query-warehouse/handler.go
package querywarehouse

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"care-assistant/internal/common/database"
	apperrors "care-assistant/internal/common/errors"
	"care-assistant/internal/common/logger"
	"care-assistant/internal/common/metrics"
	"care-assistant/internal/models"
	querycatalog "care-assistant/internal/workers/data-access/query-catalog"
)

const (
	TaskType = "query-warehouse"
)

const (
	paramSellerID  = "seller_id"
	paramLimit     = "limit"
	paramStartDate = "start_date"
	paramEndDate   = "end_date"
)

// Handler executes catalog queries with typed bindings. It never returns a Go error:
// every failure becomes a QueryResult with status error.
type Handler struct {
	config  *Config
	catalog *querycatalog.Catalog
	db      database.Querier
	logger  logger.Logger
}

func NewHandler(config *Config, catalog *querycatalog.Catalog, db database.Querier, log logger.Logger) *Handler {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Handler{
		config:  config,
		catalog: catalog,
		db:      db,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (out *Output) {
	defer func() {
		if r := recover(); r != nil {
			out = h.fail(input.QueryName, apperrors.NewWarehouseError(input.QueryName, fmt.Errorf("panic: %v", r)), nil, time.Now())
		}
	}()
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	start := time.Now()

	descriptor, ok := h.catalog.Get(input.QueryName)
	if !ok {
		return h.fail(input.QueryName, apperrors.NewUnknownQueryError(input.QueryName), nil, start)
	}

	bound, err := h.bind(descriptor, input)
	if err != nil {
		return h.fail(descriptor.Name, err, bound, start)
	}

	sqlText, args, err := rewritePlaceholders(descriptor, bound)
	if err != nil {
		return h.fail(descriptor.Name, err, bound, start)
	}

	h.logger.Debug("executing query", map[string]interface{}{
		"query":  descriptor.Name,
		"sql":    sqlText,
		"params": bound,
	})

	queryCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	rows, err := h.query(queryCtx, sqlText, args)
	if err != nil {
		if errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
			return h.fail(descriptor.Name, apperrors.NewTimeoutError("warehouse", err), bound, start)
		}
		return h.fail(descriptor.Name, apperrors.NewWarehouseError(descriptor.Name, err), bound, start)
	}

	rows = applyResultShape(rows, descriptor.ResultShape)
	elapsed := time.Since(start)

	metrics.QueryExecutions.WithLabelValues(descriptor.Name, string(models.QueryStatusSuccess)).Inc()
	metrics.QueryDuration.WithLabelValues(descriptor.Name).Observe(elapsed.Seconds())

	h.logger.Info("query executed", map[string]interface{}{
		"query":    descriptor.Name,
		"rowCount": len(rows),
		"ms":       elapsed.Milliseconds(),
	})

	return &Output{
		QueryResult: models.QueryResult{
			Status: models.QueryStatusSuccess,
			Data:   rows,
			Count:  len(rows),
		},
		BoundParams:        bound,
		QueryExecutionTime: elapsed.Milliseconds(),
	}
}

// bind applies seller scoping, defaults, date fallbacks and type coercion.
func (h *Handler) bind(d *models.QueryDescriptor, input *Input) (map[string]interface{}, error) {
	bound := make(map[string]interface{})

	for name, value := range input.Params {
		if !d.Declares(name) || name == paramSellerID || value == nil {
			continue
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		coerced, err := querycatalog.Coerce(value, d.TypeOf(name))
		if err != nil {
			if d.IsRequired(name) {
				return bound, apperrors.NewParameterTypeError(name, string(d.TypeOf(name)), value)
			}
			h.logger.Warn("dropping optional parameter", map[string]interface{}{
				"query": d.Name,
				"param": name,
				"error": err.Error(),
			})
			continue
		}
		bound[name] = coerced
	}

	// seller_id always comes from the authenticated scope
	if d.Declares(paramSellerID) {
		if input.Seller.SellerID == "" {
			return bound, apperrors.NewMissingRequiredParameterError(d.Name, []string{paramSellerID})
		}
		bound[paramSellerID] = input.Seller.SellerID
	}

	for _, name := range d.OptionalParams {
		if _, ok := bound[name]; ok {
			continue
		}
		if def, ok := d.Defaults[name]; ok {
			coerced, err := querycatalog.Coerce(def, d.TypeOf(name))
			if err == nil {
				bound[name] = coerced
			}
		}
	}

	today := truncateDay(h.config.Now())
	if d.IsRequired(paramStartDate) {
		if _, ok := bound[paramStartDate]; !ok {
			bound[paramStartDate] = today.AddDate(0, 0, -30)
		}
	}
	if d.IsRequired(paramEndDate) {
		if _, ok := bound[paramEndDate]; !ok {
			bound[paramEndDate] = today
		}
	}

	if d.Declares(paramLimit) {
		bound[paramLimit] = capLimit(bound[paramLimit], h.config.RowCap)
	}

	return bound, nil
}

func capLimit(v interface{}, rowCap int) int64 {
	limit, _ := v.(int64)
	if limit <= 0 || limit > int64(rowCap) {
		return int64(rowCap)
	}
	return limit
}

// rewritePlaceholders turns @name into $n. Every placeholder must be bound; nil is
// accepted only for nullable params.
func rewritePlaceholders(d *models.QueryDescriptor, bound map[string]interface{}) (string, []interface{}, error) {
	names := querycatalog.Placeholders(d.SQLTemplate)
	index := make(map[string]int, len(names))
	args := make([]interface{}, 0, len(names))

	for _, name := range names {
		value, ok := bound[name]
		if !ok || value == nil {
			if d.IsNullable(name) {
				value = nil
			} else {
				return "", nil, apperrors.NewUnboundParameterError(d.Name, name)
			}
		}
		args = append(args, value)
		index[name] = len(args)
	}

	sqlText := querycatalog.ReplacePlaceholders(d.SQLTemplate, func(name string) string {
		return "$" + strconv.Itoa(index[name])
	})
	return sqlText, args, nil
}

func (h *Handler) query(ctx context.Context, sqlText string, args []interface{}) ([]map[string]interface{}, error) {
	rows, err := h.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0)
	for rows.Next() {
		if len(out) >= h.config.RowCap {
			break
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			record[col] = normalizeValue(values[i])
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// normalizeValue makes driver values JSON-native. Temporal values become ISO-8601.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(models.DateLayout)
		}
		return val.Format(time.RFC3339)
	case []byte:
		s := string(val)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	default:
		return val
	}
}

func applyResultShape(rows []map[string]interface{}, shape map[string]string) []map[string]interface{} {
	if len(shape) == 0 {
		return rows
	}
	for i, row := range rows {
		filtered := make(map[string]interface{}, len(shape))
		for field := range shape {
			if v, ok := row[field]; ok {
				filtered[field] = v
			}
		}
		rows[i] = filtered
	}
	return rows
}

func (h *Handler) fail(queryName string, err error, bound map[string]interface{}, start time.Time) *Output {
	std := apperrors.Normalize(err)
	msg := MsgWarehouseError
	switch std.Code {
	case apperrors.ErrCodeUnknownQuery:
		msg = MsgUnknownQuery
	case apperrors.ErrCodeParameterType:
		msg = MsgParameterType
	case apperrors.ErrCodeUnboundParameter, apperrors.ErrCodeMissingRequiredParameter:
		msg = MsgUnboundParameter
	}

	label := queryName
	if msg == MsgUnknownQuery {
		label = "unknown"
	}
	metrics.QueryExecutions.WithLabelValues(label, string(models.QueryStatusError)).Inc()

	h.logger.Error("query failed", map[string]interface{}{
		"query":        queryName,
		"errorMessage": msg,
		"code":         std.Code,
		"details":      std.Details,
		"retryable":    std.Retryable,
	})

	return &Output{
		QueryResult: models.QueryResult{
			Status:       models.QueryStatusError,
			Data:         []map[string]interface{}{},
			ErrorMessage: msg,
		},
		BoundParams:        bound,
		QueryExecutionTime: time.Since(start).Milliseconds(),
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
