package answerquestion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	commonhttp "care-assistant/internal/common/http"
	"care-assistant/internal/common/validation"
	"care-assistant/internal/models"
)

// SellerHeader carries the authenticated seller, set by the auth proxy in front of the service.
const SellerHeader = "X-Seller-ID"

// ChatStream serves POST /api/chat/stream as server-sent events.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	seller := strings.TrimSpace(r.Header.Get(SellerHeader))
	if seller == "" {
		writeError(w, http.StatusUnauthorized, "missing seller")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.config.MaxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if int64(len(body)) > h.config.MaxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	if res := validation.ChatRequestSchema.ValidateJSON(string(body)); !res.Valid {
		writeError(w, http.StatusBadRequest, strings.Join(res.GetErrorMessages(), "; "))
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sse, err := commonhttp.NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// stages finish even when the client leaves; the emitter reports the
	// disconnect so the turn is not recorded
	client := r.Context()
	h.Stream(context.WithoutCancel(client), &TurnRequest{
		SessionID: req.SessionID,
		SellerID:  seller,
		Utterance: req.Message,
	}, EmitterFunc(func(ev models.StreamEvent) error {
		if err := client.Err(); err != nil {
			return err
		}
		return sse.Emit(ev)
	}))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
