package selectquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-assistant/internal/common/config"
	"care-assistant/internal/common/llm"
	"care-assistant/internal/common/logger"
	"care-assistant/internal/models"
	querycatalog "care-assistant/internal/workers/data-access/query-catalog"
	extractentities "care-assistant/internal/workers/extraction/extract-entities"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func loadTestCatalog(t *testing.T) *querycatalog.Catalog {
	catalog, err := querycatalog.Load(&querycatalog.Config{Path: "../../../../configs/queries.yaml"})
	require.NoError(t, err)
	return catalog
}

type testDeps struct {
	feedback *FeedbackLog
	mock     sqlmock.Sqlmock
	requests []llm.Request
}

// createTestHandler answers the "select" stage with selectReply and the
// entity extraction stage with extractReply.
func createTestHandler(t *testing.T, selectReply string, selectErr error, extractReply string, withFeedback bool) (*Handler, *testDeps) {
	deps := &testDeps{}
	if withFeedback {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		deps.feedback = NewFeedbackLog(db)
		deps.mock = mock
	}

	client := llm.FuncClient(func(ctx context.Context, req llm.Request) (string, error) {
		deps.requests = append(deps.requests, req)
		if req.Stage == "extract_entities" {
			return extractReply, nil
		}
		return selectReply, selectErr
	})

	log := logger.NewTestLogger(t)
	extCfg := extractentities.LoadConfig()
	extCfg.KnownAgencies = config.DefaultKnownAgencies()
	extractor := extractentities.NewHandler(extCfg, client, log)

	cfg := LoadConfig()
	cfg.Now = func() time.Time { return fixedNow }
	return NewHandler(cfg, loadTestCatalog(t), extractor, deps.feedback, client, log), deps
}

// ==========================
// Selection Tests
// ==========================

func TestExecute_ResolvedDatesOverrideModel(t *testing.T) {
	h, _ := createTestHandler(t,
		`{"selected_query":"get_contract_terminations","params":{"start_date":"2025-04-01","end_date":"2025-04-30"},"confidence":5}`,
		nil, `{}`, false)

	out := h.Execute(context.Background(), &Input{Utterance: "Wie viele Kündigungen gab es im Mai 2025?"})

	assert.False(t, out.NeedsClarification)
	assert.Equal(t, "get_contract_terminations", out.SelectedQuery)
	assert.Equal(t, "2025-05-01", out.Params["start_date"])
	assert.Equal(t, "2025-05-31", out.Params["end_date"])
	assert.Equal(t, 5, out.Confidence)
	assert.Empty(t, out.MissingRequired)
}

func TestExecute_SinceMonthRunsToToday(t *testing.T) {
	h, _ := createTestHandler(t, `{"selected_query":"get_cvr_lead_contract","params":{},"confidence":4}`, nil, `{}`, false)

	out := h.Execute(context.Background(), &Input{Utterance: "Meine Abschlussquote seit Januar"})

	assert.False(t, out.NeedsClarification)
	assert.Equal(t, "2025-01-01", out.Params["start_date"])
	assert.Equal(t, "2025-06-15", out.Params["end_date"])
}

func TestExecute_DefaultsToCurrentMonth(t *testing.T) {
	h, _ := createTestHandler(t, `{"selected_query":"get_monthly_performance","confidence":4}`, nil, `{}`, false)

	out := h.Execute(context.Background(), &Input{Utterance: "Wie läuft mein Umsatz?"})

	assert.False(t, out.NeedsClarification)
	assert.Equal(t, "2025-06-01", out.Params["start_date"])
	assert.Equal(t, "2025-06-30", out.Params["end_date"])
}

func TestExecute_LowConfidenceAsksAndRecordsFeedback(t *testing.T) {
	h, deps := createTestHandler(t,
		`{"selected_query":"get_customer_history","possible_queries":["get_customer_history","get_customer_tickets"],"confidence":2,"rationale":"Kunde unklar"}`,
		nil, `{}`, true)
	utterance := "Was weißt du über Küll?"

	deps.mock.ExpectExec("INSERT INTO query_selection_feedback").
		WithArgs(utterance, "get_customer_history", 2, `{"customer_name":"Küll"}`, "", "Kunde unklar", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	out := h.Execute(context.Background(), &Input{Utterance: utterance})

	assert.True(t, out.NeedsClarification)
	assert.Equal(t, "Küll", out.Params["customer_name"])
	assert.Equal(t, []string{"get_customer_history", "get_customer_tickets"}, out.PossibleQueries)
	assert.Contains(t, out.ClarificationPrompt, "oder")
	assert.NoError(t, deps.mock.ExpectationsWereMet())
}

func TestExecute_MissingCustomerAsksForIt(t *testing.T) {
	h, deps := createTestHandler(t, `{"selected_query":"get_customer_tickets","confidence":4}`, nil, `{}`, false)

	out := h.Execute(context.Background(), &Input{Utterance: "Zeig mir die offenen Tickets"})

	assert.True(t, out.NeedsClarification)
	assert.Equal(t, []string{"customer_name"}, out.MissingRequired)
	assert.Equal(t, "Um welchen Kunden geht es?", out.ClarificationPrompt)

	// one extraction pass for the missing name
	require.Len(t, deps.requests, 2)
	assert.Equal(t, "extract_entities", deps.requests[1].Stage)
}

func TestExecute_ExtractionFillsMissingParam(t *testing.T) {
	h, _ := createTestHandler(t, `{"selected_query":"get_customer_tickets","confidence":4}`, nil, `{"customer_name":"Herr Ramm"}`, false)

	out := h.Execute(context.Background(), &Input{Utterance: "Tickets zu dem Ramm-Fall"})

	assert.False(t, out.NeedsClarification)
	assert.Equal(t, "Ramm", out.Params["customer_name"])
}

func TestExecute_ParseErrorFallsBackToDefault(t *testing.T) {
	for _, tc := range []struct {
		name  string
		reply string
		err   error
	}{
		{name: "prose", reply: "Ich denke, die aktiven Einsätze."},
		{name: "confidence out of range", reply: `{"selected_query":"get_active_contracts","confidence":9}`},
		{name: "unknown query without candidates", reply: `{"selected_query":"get_everything","confidence":4}`},
		{name: "model error", err: llm.ErrLLMTimeout},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := createTestHandler(t, tc.reply, tc.err, `{}`, false)

			out := h.Execute(context.Background(), &Input{Utterance: "Was läuft gerade?"})

			assert.True(t, out.ParseError)
			assert.False(t, out.NeedsClarification)
			assert.Equal(t, "get_active_care_stays_now", out.SelectedQuery)
			assert.Equal(t, 3, out.Confidence)
		})
	}
}

func TestExecute_NoDefaultAsksGenerically(t *testing.T) {
	h, _ := createTestHandler(t, "kein json", nil, `{}`, false)
	h.config.DefaultQuery = ""

	out := h.Execute(context.Background(), &Input{Utterance: "hm"})

	assert.True(t, out.NeedsClarification)
	assert.Empty(t, out.SelectedQuery)
	assert.NotEmpty(t, out.ClarificationPrompt)
}

func TestExecute_UnknownPickWithCandidatesAsks(t *testing.T) {
	h, _ := createTestHandler(t,
		`{"selected_query":"get_everything","possible_queries":["get_active_contracts","get_contracts_by_agency","bogus","get_active_contracts"],"confidence":3}`,
		nil, `{}`, false)

	out := h.Execute(context.Background(), &Input{Utterance: "Meine Verträge"})

	assert.True(t, out.NeedsClarification)
	assert.Empty(t, out.SelectedQuery)
	assert.Equal(t, 1, out.Confidence)
	assert.Equal(t, []string{"get_active_contracts", "get_contracts_by_agency"}, out.PossibleQueries)
	assert.Equal(t, "Meinen Sie Alle aktiven Verträge des Verkäufers oder Verträge mit einer bestimmten Agentur?", out.ClarificationPrompt)
}

func TestExecute_CandidatesKeepResolvedParams(t *testing.T) {
	h, _ := createTestHandler(t,
		`{"selected_query":null,"possible_queries":["get_customer_history","get_customer_tickets"],"confidence":2}`,
		nil, `{}`, false)

	out := h.Execute(context.Background(), &Input{Utterance: "Was weißt du über den Kunden Küll?"})

	assert.True(t, out.NeedsClarification)
	assert.Empty(t, out.SelectedQuery)
	assert.Equal(t, []string{"get_customer_history", "get_customer_tickets"}, out.PossibleQueries)
	assert.Equal(t, "Küll", out.Params["customer_name"])
	assert.NotContains(t, out.Params, "seller_id")
}

func TestExecute_DropsSellerAndUndeclaredParams(t *testing.T) {
	h, _ := createTestHandler(t,
		`{"selected_query":"get_contracts_by_agency","params":{"seller_id":"other-seller","foo":"bar","agency_name":"Senio"},"confidence":5}`,
		nil, `{}`, false)

	out := h.Execute(context.Background(), &Input{Utterance: "Wie viele Verträge habe ich mit Senioport?"})

	assert.NotContains(t, out.Params, "seller_id")
	assert.NotContains(t, out.Params, "foo")
	assert.Equal(t, "senioport", out.Params["agency_name"])
	assert.False(t, out.NeedsClarification)
}

func TestExecute_PromptCarriesCatalogAndHistory(t *testing.T) {
	h, deps := createTestHandler(t, `{"selected_query":"get_contract_terminations","confidence":5}`, nil, `{}`, false)
	history := []models.Turn{
		{Role: models.RoleUser, Content: "Wie viele Kündigungen gab es im April?"},
		{Role: models.RoleToolResult, Content: "get_contract_terminations: success, 1 Datensätze", QueryName: "get_contract_terminations"},
		{Role: models.RoleAssistant, Content: "Im April gab es 2 ernsthafte Kündigungen.", QueryName: "get_contract_terminations"},
	}

	h.Execute(context.Background(), &Input{Utterance: "Und im Mai?", History: history})

	require.NotEmpty(t, deps.requests)
	system := deps.requests[0].System
	assert.Contains(t, system, "get_contract_terminations")
	assert.Contains(t, system, "Heutiges Datum: 2025-06-15")
	assert.Contains(t, system, "2 ernsthafte Kündigungen")
	assert.Contains(t, system, "Zeitraum: 2025-05-01 bis 2025-05-31")
	assert.Contains(t, system, "Zuletzt ausgeführte Abfrage: get_contract_terminations")
	assert.NotContains(t, system, "SELECT")
	assert.True(t, deps.requests[0].JSON)
}

func TestExecute_PromptWithoutHistoryNamesNoLastQuery(t *testing.T) {
	h, deps := createTestHandler(t, `{"selected_query":"get_active_contracts","confidence":5}`, nil, `{}`, false)

	h.Execute(context.Background(), &Input{Utterance: "Meine aktiven Verträge"})

	require.NotEmpty(t, deps.requests)
	assert.NotContains(t, deps.requests[0].System, "Zuletzt ausgeführte Abfrage")
}

// ==========================
// Feedback Tests
// ==========================

func TestMarkResult(t *testing.T) {
	h, deps := createTestHandler(t, "", nil, `{}`, true)

	deps.mock.ExpectExec("UPDATE query_selection_feedback SET success").
		WithArgs(true, "Was weißt du über Küll?", "get_customer_history").
		WillReturnResult(sqlmock.NewResult(0, 1))

	h.MarkResult(context.Background(), "Was weißt du über Küll?", "get_customer_history", true)

	assert.NoError(t, deps.mock.ExpectationsWereMet())
}

func TestExecute_FeedbackFailureDoesNotFailSelection(t *testing.T) {
	h, deps := createTestHandler(t, `{"selected_query":"get_active_contracts","confidence":1}`, nil, `{}`, true)

	deps.mock.ExpectExec("INSERT INTO query_selection_feedback").WillReturnError(errors.New("read-only transaction"))

	out := h.Execute(context.Background(), &Input{Utterance: "Verträge?"})

	assert.Equal(t, "get_active_contracts", out.SelectedQuery)
	assert.True(t, out.NeedsClarification)
	assert.NoError(t, deps.mock.ExpectationsWereMet())
}

// ==========================
// Parameter Rule Tests
// ==========================

func TestApplyDateRules(t *testing.T) {
	catalog := loadTestCatalog(t)
	ranged, _ := catalog.Get("get_recent_leads")
	plain, _ := catalog.Get("get_active_contracts")

	tests := []struct {
		name      string
		d         *models.QueryDescriptor
		params    map[string]interface{}
		utterance string
		want      map[string]interface{}
	}{
		{
			name:   "none gives current month",
			d:      ranged,
			params: map[string]interface{}{},
			want:   map[string]interface{}{"start_date": "2025-06-01", "end_date": "2025-06-30"},
		},
		{
			name:   "start only ends today",
			d:      ranged,
			params: map[string]interface{}{"start_date": "2025-03-01"},
			want:   map[string]interface{}{"start_date": "2025-03-01", "end_date": "2025-06-15"},
		},
		{
			name:   "end only starts at first of its month",
			d:      ranged,
			params: map[string]interface{}{"end_date": "2025-04-20"},
			want:   map[string]interface{}{"start_date": "2025-04-01", "end_date": "2025-04-20"},
		},
		{
			name:   "no date params declared",
			d:      plain,
			params: map[string]interface{}{},
			want:   map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applyDateRules(tt.d, tt.params, tt.utterance, fixedNow)
			assert.Equal(t, tt.want, tt.params)
		})
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 1, clampConfidence(0))
	assert.Equal(t, 3, clampConfidence(2.5))
	assert.Equal(t, 4, clampConfidence(4.2))
	assert.Equal(t, 5, clampConfidence(7))
}
