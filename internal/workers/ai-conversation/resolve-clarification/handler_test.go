package resolveclarification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-assistant/internal/common/config"
	"care-assistant/internal/common/database"
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

const sessionID = "sess-1"

type testEnv struct {
	handler *Handler
	mr      *miniredis.Miniredis
	calls   int
	lastReq llm.Request
}

func setupTest(t *testing.T, reply string, replyErr error) *testEnv {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}), KeyPrefix: "qrrp:"}

	catalog, err := querycatalog.Load(&querycatalog.Config{Path: "../../../../configs/queries.yaml"})
	require.NoError(t, err)

	env := &testEnv{mr: mr}
	client := llm.FuncClient(func(ctx context.Context, req llm.Request) (string, error) {
		env.calls++
		env.lastReq = req
		return reply, replyErr
	})

	log := logger.NewTestLogger(t)
	extCfg := extractentities.LoadConfig()
	extCfg.KnownAgencies = config.DefaultKnownAgencies()

	cfg := LoadConfig()
	cfg.Now = func() time.Time { return fixedNow }
	env.handler = NewHandler(cfg, NewStore(rdb, cfg.TTL), catalog, extractentities.NewHandler(extCfg, nil, log), client, log)
	return env
}

func kuellState() models.ClarificationState {
	return models.ClarificationState{
		OriginalUtterance:   "Was weißt du über den Kunden Küll?",
		PendingQueryName:    "get_customer_history",
		PossibleQueryNames:  []string{"get_customer_history", "get_customer_tickets"},
		PartialParams:       map[string]interface{}{"customer_name": "Küll"},
		ClarificationPrompt: "Möchten Sie die Vertrags- und Care-Stay-Historie oder die Tickets zu Küll sehen?",
	}
}

func (e *testEnv) open(t *testing.T, state models.ClarificationState) {
	require.NoError(t, e.handler.Open(context.Background(), sessionID, state))
}

// ==========================
// State Lifecycle Tests
// ==========================

func TestOpen_PersistsWithTTL(t *testing.T) {
	env := setupTest(t, "", nil)
	env.open(t, kuellState())

	assert.Equal(t, 24*time.Hour, env.mr.TTL("qrrp:clarification:"+sessionID))

	state, err := env.handler.Pending(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "get_customer_history", state.PendingQueryName)
	assert.Equal(t, 0, state.AttemptCount)
	assert.True(t, fixedNow.Equal(state.CreatedAt))
}

func TestExecute_NoPendingClarification(t *testing.T) {
	env := setupTest(t, "", nil)

	_, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: "ja"})
	assert.ErrorIs(t, err, ErrNoPendingClarification)
}

func TestCancel(t *testing.T) {
	env := setupTest(t, "", nil)
	env.open(t, kuellState())

	require.NoError(t, env.handler.Cancel(context.Background(), sessionID))

	state, err := env.handler.Pending(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Nil(t, state)
}

// ==========================
// Affirmative Path Tests
// ==========================

func TestExecute_AffirmativeRunsPendingUnchanged(t *testing.T) {
	for _, reply := range []string{"ja", "Ja, bitte", "genau", "ok", "👍", "Ja, gerne!"} {
		t.Run(reply, func(t *testing.T) {
			env := setupTest(t, "", errors.New("model must not be called"))
			state := kuellState()
			state.PartialParams["secondary_name"] = "Kuell"
			env.open(t, state)

			out, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: reply})
			require.NoError(t, err)

			assert.True(t, out.Resolved)
			assert.Equal(t, OutcomeAffirmed, out.Outcome)
			assert.Equal(t, "get_customer_history", out.QueryName)
			assert.Equal(t, map[string]interface{}{"customer_name": "Küll", "secondary_name": "Kuell"}, out.Params)
			assert.Equal(t, "Was weißt du über den Kunden Küll?", out.OriginalUtterance)
			assert.Equal(t, 0, env.calls)
			assert.False(t, env.mr.Exists("qrrp:clarification:"+sessionID))
		})
	}
}

func TestExecute_AffirmativeTakesFirstCandidateWithoutPending(t *testing.T) {
	env := setupTest(t, "", nil)
	state := kuellState()
	state.PendingQueryName = ""
	state.PossibleQueryNames = []string{"get_active_contracts", "get_contracts_by_agency"}
	state.PartialParams = nil
	env.open(t, state)

	out, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: "ja"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAffirmed, out.Outcome)
	assert.Equal(t, "get_active_contracts", out.QueryName)
	assert.Equal(t, 0, env.calls)
}

func TestExecute_AffirmativeWithMissingValueAsksModel(t *testing.T) {
	env := setupTest(t, `{"resolved": true, "query": "get_customer_tickets", "params": {"customer_name": "Meier"}}`, nil)
	state := kuellState()
	state.PendingQueryName = "get_customer_tickets"
	state.PartialParams = map[string]interface{}{}
	env.open(t, state)

	out, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: "ja, Meier"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeResolved, out.Outcome)
	assert.Equal(t, "Meier", out.Params["customer_name"])
	assert.Equal(t, 1, env.calls)
}

func TestExecute_AffirmativeWithChoiceFollowsChoice(t *testing.T) {
	env := setupTest(t, `{"resolved": true, "query": "get_customer_history", "params": {}}`, nil)
	state := kuellState()
	state.PendingQueryName = "get_customer_tickets"
	state.PossibleQueryNames = []string{"get_customer_tickets", "get_customer_history"}
	env.open(t, state)

	out, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: "ja, die Historie bitte"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeResolved, out.Outcome)
	assert.Equal(t, "get_customer_history", out.QueryName)
	assert.Equal(t, "Küll", out.Params["customer_name"])
	assert.Equal(t, 1, env.calls)
	assert.Contains(t, env.lastReq.System, "get_customer_history")
}

// ==========================
// Substantive Answer Tests
// ==========================

func TestExecute_SubstantiveReplyResolves(t *testing.T) {
	env := setupTest(t, `{"resolved": true, "query": "get_customer_tickets", "params": {"seller_id": "someone-else"}}`, nil)
	env.open(t, kuellState())

	out, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: "Die Tickets"})
	require.NoError(t, err)

	assert.True(t, out.Resolved)
	assert.Equal(t, OutcomeResolved, out.Outcome)
	assert.Equal(t, "get_customer_tickets", out.QueryName)
	assert.Equal(t, "Küll", out.Params["customer_name"])
	assert.NotContains(t, out.Params, "seller_id")

	assert.Contains(t, env.lastReq.System, "Was weißt du über den Kunden Küll?")
	assert.Contains(t, env.lastReq.System, "get_customer_tickets")
	assert.Equal(t, "clarify", env.lastReq.Stage)
}

func TestExecute_OffTopicPickAsksAgain(t *testing.T) {
	env := setupTest(t, `{"resolved": true, "query": "get_active_contracts", "params": {}, "follow_up_prompt": null}`, nil)
	env.open(t, kuellState())

	out, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: "lieber die Verträge"})
	require.NoError(t, err)

	assert.False(t, out.Resolved)
	assert.Equal(t, OutcomeFollowUp, out.Outcome)
	assert.Equal(t, kuellState().ClarificationPrompt, out.FollowUpPrompt)

	state, err := env.handler.Pending(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "get_customer_history", state.PendingQueryName)
}

func TestExecute_ReplyDatesOverrideModel(t *testing.T) {
	env := setupTest(t, `{"resolved": true, "query": "get_contract_terminations", "params": {"start_date": "2025-04-01", "end_date": "2025-04-30"}}`, nil)
	env.open(t, models.ClarificationState{
		OriginalUtterance:   "Wie viele Kündigungen hatte ich?",
		PendingQueryName:    "get_contract_terminations",
		ClarificationPrompt: "Welchen Zeitraum meinen Sie?",
	})

	out, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: "im Mai 2025"})
	require.NoError(t, err)

	assert.Equal(t, "2025-05-01", out.Params["start_date"])
	assert.Equal(t, "2025-05-31", out.Params["end_date"])
}

func TestExecute_UnresolvedAsksAgain(t *testing.T) {
	env := setupTest(t, `{"resolved": false, "follow_up_prompt": "Meinen Sie Verträge oder Tickets?"}`, nil)
	env.open(t, kuellState())

	out, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: "weiß nicht"})
	require.NoError(t, err)

	assert.False(t, out.Resolved)
	assert.Equal(t, OutcomeFollowUp, out.Outcome)
	assert.Equal(t, "Meinen Sie Verträge oder Tickets?", out.FollowUpPrompt)
	assert.Equal(t, 1, out.AttemptCount)

	state, err := env.handler.Pending(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 1, state.AttemptCount)
	assert.Equal(t, "Meinen Sie Verträge oder Tickets?", state.ClarificationPrompt)
}

func TestExecute_ModelFailureRepeatsPrompt(t *testing.T) {
	for _, tc := range []struct {
		name  string
		reply string
		err   error
	}{
		{name: "error", err: llm.ErrLLMTimeout},
		{name: "prose", reply: "Ich bin mir nicht sicher."},
		{name: "resolved without query", reply: `{"resolved": true, "query": null}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTest(t, tc.reply, tc.err)
			env.open(t, kuellState())

			out, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: "hm"})
			require.NoError(t, err)

			assert.Equal(t, OutcomeFollowUp, out.Outcome)
			assert.Equal(t, kuellState().ClarificationPrompt, out.FollowUpPrompt)
		})
	}
}

func TestExecute_ExhaustedFallsBackToBestGuess(t *testing.T) {
	env := setupTest(t, `{"resolved": false, "follow_up_prompt": "Noch einmal bitte?"}`, nil)
	env.open(t, kuellState())
	ctx := context.Background()

	first, err := env.handler.Execute(ctx, &Input{SessionID: sessionID, Reply: "egal"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFollowUp, first.Outcome)

	second, err := env.handler.Execute(ctx, &Input{SessionID: sessionID, Reply: "keine Ahnung"})
	require.NoError(t, err)

	assert.True(t, second.Resolved)
	assert.Equal(t, OutcomeExhausted, second.Outcome)
	assert.True(t, second.LowConfidence)
	assert.Equal(t, "get_customer_history", second.QueryName)
	assert.Equal(t, "Küll", second.Params["customer_name"])
	assert.Equal(t, 2, second.AttemptCount)
	assert.False(t, env.mr.Exists("qrrp:clarification:"+sessionID))
}

func TestExecute_ExhaustedSkipsCandidatesWithoutValues(t *testing.T) {
	env := setupTest(t, `{"resolved": false, "follow_up_prompt": "?"}`, nil)
	state := kuellState()
	state.PartialParams = map[string]interface{}{}
	state.AttemptCount = 0
	env.open(t, state)
	env.handler.config.MaxAttempts = 1

	out, err := env.handler.Execute(context.Background(), &Input{SessionID: sessionID, Reply: "egal"})
	require.NoError(t, err)

	// both candidates need a customer name, so the default query is used
	assert.Equal(t, OutcomeExhausted, out.Outcome)
	assert.Equal(t, "get_active_care_stays_now", out.QueryName)
}
