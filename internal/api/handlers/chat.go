package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/saku-tracker/internal/api/middleware"
	"github.com/dvloznov/saku-tracker/internal/ledger"
)

type ChatHandler struct {
	svc *ledger.Service
	log zerolog.Logger
}

func NewChatHandler(svc *ledger.Service, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, log: log}
}

// StartSession handles POST /api/chat/sessions
func (h *ChatHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.StartChat(r.Context())
	if err != nil {
		writeLedgerError(w, r, err, "Failed to start chat")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         sess.ID,
		"state":      sess.State().String(),
		"transcript": sess.Transcript(),
	})
}

// Transcript handles GET /api/chat/sessions/{id}
func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := h.svc.ChatTranscript(id)
	if err != nil {
		writeLedgerError(w, r, err, "Failed to get transcript")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "transcript": msgs})
}

// Send handles POST /api/chat/sessions/{id}/messages
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	reply, err := h.svc.SendChatTurn(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		writeLedgerError(w, r, err, "Failed to send message")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}

// EndSession handles DELETE /api/chat/sessions/{id}
func (h *ChatHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.svc.EndChat(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}
