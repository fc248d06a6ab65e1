package querycatalog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"care-assistant/internal/models"
)

var ErrCoercion = errors.New("PARAMETER_TYPE")

var dateLayouts = []string{
	models.DateLayout,
	"02.01.2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Coerce converts a decoded value (JSON scalar, Go scalar or time.Time) to the Go
// representation of typ: string, int64, float64, bool or time.Time for dates.
func Coerce(value interface{}, typ models.ParamType) (interface{}, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil value for %s", ErrCoercion, typ)
	}

	switch typ {
	case models.ParamString:
		switch v := value.(type) {
		case string:
			return v, nil
		case time.Time:
			return v.Format(models.DateLayout), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		default:
			return fmt.Sprint(v), nil
		}

	case models.ParamInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
				return nil, fmt.Errorf("%w: %v is not an integer", ErrCoercion, v)
			}
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an integer", ErrCoercion, v)
			}
			return n, nil
		}

	case models.ParamFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(v), ",", ".", 1), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number", ErrCoercion, v)
			}
			return f, nil
		}

	case models.ParamBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "ja", "yes":
				return true, nil
			case "false", "0", "nein", "no":
				return false, nil
			}
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrCoercion, v)
		case float64:
			return v != 0, nil
		case int:
			return v != 0, nil
		}

	case models.ParamDate:
		switch v := value.(type) {
		case time.Time:
			return truncateDay(v), nil
		case string:
			s := strings.TrimSpace(v)
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return truncateDay(t), nil
				}
			}
			return nil, fmt.Errorf("%w: %q is not a date", ErrCoercion, v)
		}

	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrCoercion, typ)
	}

	return nil, fmt.Errorf("%w: cannot convert %T to %s", ErrCoercion, value, typ)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
