package answerquestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postChat(h *Handler, seller, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if seller != "" {
		req.Header.Set(SellerHeader, seller)
	}
	rec := httptest.NewRecorder()
	h.ChatStream(rec, req)
	return rec
}

func eventNames(body string) []string {
	var names []string
	for _, line := range strings.Split(body, "\n") {
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		}
	}
	return names
}

func TestChatStream_Rejections(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name   string
		method string
		seller string
		body   string
		want   int
	}{
		{name: "wrong method", method: http.MethodGet, seller: sellerID, want: http.StatusMethodNotAllowed},
		{name: "no seller", method: http.MethodPost, body: `{"message":"Hallo"}`, want: http.StatusUnauthorized},
		{name: "missing message", method: http.MethodPost, seller: sellerID, body: `{"sessionId":"s"}`, want: http.StatusBadRequest},
		{name: "empty message", method: http.MethodPost, seller: sellerID, body: `{"message":""}`, want: http.StatusBadRequest},
		{name: "not json", method: http.MethodPost, seller: sellerID, body: `Hallo`, want: http.StatusBadRequest},
		{name: "too large", method: http.MethodPost, seller: sellerID, body: `{"message":"` + strings.Repeat("a", 70<<10) + `"}`, want: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/chat/stream", strings.NewReader(tt.body))
			if tt.seller != "" {
				req.Header.Set(SellerHeader, tt.seller)
			}
			rec := httptest.NewRecorder()

			env.handler.ChatStream(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
	assert.Empty(t, env.requests)
}

func TestChatStream_StreamsTurn(t *testing.T) {
	env := setupTest(t)
	env.replies["route"] = routeConversational
	env.replies["converse"] = "Hallo! Wie kann ich helfen?"

	rec := postChat(env.handler, sellerID, `{"sessionId":"sess-1","message":"Hallo"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"start", "text", "complete", "end"}, eventNames(rec.Body.String()))
	assert.Contains(t, rec.Body.String(), `"content":"Hallo! Wie kann ich helfen?"`)
	assert.Len(t, env.history.Load(t.Context(), sessionID), 2)
}

func TestChatStream_SellerComesFromHeader(t *testing.T) {
	env := setupTest(t)
	env.replies["route"] = routeConversational
	env.replies["converse"] = "Hallo!"

	rec := postChat(env.handler, "  ", `{"message":"Hallo","sellerId":"seller-1"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, env.requests)
}

func TestChatStream_ClientGoneStagesFinishTurnNotRecorded(t *testing.T) {
	env := setupTest(t)
	env.replies["route"] = routeAnalytical
	env.replies["select"] = `{"selected_query":"get_active_care_stays_now","params":{},"confidence":5}`
	env.replies["synthesize"] = "Sie haben aktuell 1 aktiven Care Stay."

	env.mock.ExpectQuery(`FROM care_stays cs`).
		WithArgs(sellerID, int64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"customer_name", "agency_name", "arrival", "departure", "caregiver_name"}).
			AddRow("Erika Küll", "Senioport", day(2025, 5, 20), nil, "Anna"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{"sessionId":"sess-1","message":"Wie viele aktive Care Stays habe ich gerade?"}`)).WithContext(ctx)
	req.Header.Set(SellerHeader, sellerID)
	rec := httptest.NewRecorder()

	env.handler.ChatStream(rec, req)

	assert.NoError(t, env.mock.ExpectationsWereMet(), "the query runs on a context the client cannot cancel")
	assert.Len(t, env.stageRequests("select"), 1)
	assert.Empty(t, eventNames(rec.Body.String()))
	assert.Empty(t, env.history.Load(context.Background(), sessionID))
}
