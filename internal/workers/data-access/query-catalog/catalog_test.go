package querycatalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"care-assistant/internal/models"
	"care-assistant/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const testCatalogYAML = `
version: "1"
queries:
  - name: get_active_care_stays_now
    description: Aktuell laufende Care Stays des Verkäufers
    sql: |
      SELECT customer_name, agency_name, arrival
      FROM care_stays
      WHERE seller_id = @seller_id AND arrival <= CURRENT_DATE AND departure >= CURRENT_DATE
      LIMIT @limit
    params:
      seller_id: {type: string, required: true}
      limit: {type: int, default: 100}
    result_shape:
      customer_name: label
      agency_name: label
      arrival: date
    use_cases: ["Wie viele aktive Einsätze habe ich?"]
  - name: get_contract_terminations
    description: Kündigungen im Zeitraum
    sql: |
      SELECT COUNT(*) FILTER (WHERE kind = 'serious') AS serious_terminations
      FROM terminations
      WHERE seller_id = @seller_id AND terminated_at BETWEEN @start_date AND @end_date
    params:
      seller_id: {type: string, required: true}
      start_date: {type: date, required: true}
      end_date: {type: date, required: true}
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ==========================
// Load Tests
// ==========================

func TestLoad_Success(t *testing.T) {
	cat, err := Load(&Config{Path: writeCatalog(t, testCatalogYAML)})
	require.NoError(t, err)

	assert.Equal(t, 2, cat.Len())
	assert.Equal(t, []string{"get_active_care_stays_now", "get_contract_terminations"}, cat.Names())

	d, ok := cat.Get("get_active_care_stays_now")
	require.True(t, ok)
	assert.Equal(t, []string{"seller_id"}, d.RequiredParams)
	assert.Equal(t, []string{"limit"}, d.OptionalParams)
	assert.Equal(t, models.ParamInt, d.TypeOf("limit"))
	assert.Equal(t, 100, d.Defaults["limit"])
	assert.Equal(t, "date", d.ResultShape["arrival"])

	_, ok = cat.Get("get_nothing")
	assert.False(t, ok)
}

func TestFromRegistry_InvariantViolations(t *testing.T) {
	tests := []struct {
		name    string
		entry   registry.QueryEntry
		problem string
	}{
		{
			name: "undeclared placeholder",
			entry: registry.QueryEntry{
				Name: "q1", SQL: "SELECT * FROM t WHERE a = @a AND b = @b",
				Params: map[string]registry.ParamSpec{"a": {Type: "string", Required: true}},
			},
			problem: "placeholder @b is not declared",
		},
		{
			name: "unsupported type",
			entry: registry.QueryEntry{
				Name: "q2", SQL: "SELECT * FROM t WHERE a = @a",
				Params: map[string]registry.ParamSpec{"a": {Type: "uuid", Required: true}},
			},
			problem: `unsupported type "uuid"`,
		},
		{
			name: "default on required param",
			entry: registry.QueryEntry{
				Name: "q3", SQL: "SELECT * FROM t WHERE a = @a",
				Params: map[string]registry.ParamSpec{"a": {Type: "int", Required: true, Default: 3}},
			},
			problem: "default for a which is not optional",
		},
		{
			name: "incompatible default",
			entry: registry.QueryEntry{
				Name: "q4", SQL: "SELECT * FROM t LIMIT @limit",
				Params: map[string]registry.ParamSpec{"limit": {Type: "int", Default: "viele"}},
			},
			problem: "default for limit is not a int",
		},
		{
			name: "nullable required param",
			entry: registry.QueryEntry{
				Name: "q5", SQL: "SELECT * FROM t WHERE a ILIKE @customer_name",
				Params: map[string]registry.ParamSpec{"customer_name": {Type: "string", Required: true, Nullable: true}},
			},
			problem: "required param customer_name cannot be nullable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromRegistry(&registry.QueryCatalog{Queries: []registry.QueryEntry{tt.entry}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCatalogInvalid))
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestPlaceholders(t *testing.T) {
	sql := "SELECT data->'x' FROM t WHERE tags @> '{a}' AND s = @seller_id AND d >= @start_date AND s2 = @seller_id"
	assert.Equal(t, []string{"seller_id", "start_date"}, Placeholders(sql))
}

func TestDescribe_OmitsSQLAndBoundParams(t *testing.T) {
	cat, err := Load(&Config{Path: writeCatalog(t, testCatalogYAML)})
	require.NoError(t, err)

	desc := cat.Describe()
	assert.Contains(t, desc, "get_contract_terminations: Kündigungen im Zeitraum")
	assert.Contains(t, desc, "Pflichtparameter: end_date, start_date")
	assert.NotContains(t, desc, "SELECT")
	assert.NotContains(t, desc, "seller_id")
}

// ==========================
// Coercion Tests
// ==========================

func TestCoerce(t *testing.T) {
	may := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   interface{}
		typ     models.ParamType
		want    interface{}
		wantErr bool
	}{
		{"int from json float", float64(42), models.ParamInt, int64(42), false},
		{"int from string", " 7 ", models.ParamInt, int64(7), false},
		{"int rejects fraction", 1.5, models.ParamInt, nil, true},
		{"float from german decimal", "3,5", models.ParamFloat, 3.5, false},
		{"bool from ja", "ja", models.ParamBool, true, false},
		{"bool rejects text", "vielleicht", models.ParamBool, nil, true},
		{"date iso", "2025-05-01", models.ParamDate, may, false},
		{"date german", "01.05.2025", models.ParamDate, may, false},
		{"date rejects text", "Mai", models.ParamDate, nil, true},
		{"string from number", float64(12), models.ParamString, "12", false},
		{"nil value", nil, models.ParamString, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.value, tt.typ)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrCoercion))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
