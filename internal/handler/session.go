// Package handler exposes the session engine's command surface over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/capitalize-ai/chat-session-engine/internal/middleware"
	"github.com/capitalize-ai/chat-session-engine/internal/session"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
)

// SessionHandler handles session command and snapshot endpoints.
type SessionHandler struct {
	engine *session.Engine
	logger *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(engine *session.Engine, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		engine: engine,
		logger: log,
	}
}

// SendRequest is the body of POST /api/v1/session/messages.
type SendRequest struct {
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Snapshot handles GET /api/v1/session
func (h *SessionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// Load handles POST /api/v1/session/load
func (h *SessionHandler) Load(w http.ResponseWriter, r *http.Request) {
	h.engine.SubmitInitialLoad()
	w.WriteHeader(http.StatusAccepted)
}

// OlderPage handles POST /api/v1/session/older
func (h *SessionHandler) OlderPage(w http.ResponseWriter, r *http.Request) {
	h.engine.SubmitOlderPageRequest()
	w.WriteHeader(http.StatusAccepted)
}

// Send handles POST /api/v1/session/messages
func (h *SessionHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The send gate belongs to the caller; the engine processes regardless.
	if !h.engine.Snapshot().CanSendMessage {
		writeError(w, http.StatusConflict, "a send or answer stream is still in progress")
		return
	}

	h.engine.SubmitSend(req.Text, req.Metadata)
	w.WriteHeader(http.StatusAccepted)
}

// Stop handles POST /api/v1/session/stop
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.engine.SubmitStop()
	w.WriteHeader(http.StatusAccepted)
}

// ClearRelatedQuestions handles DELETE /api/v1/session/related-questions
func (h *SessionHandler) ClearRelatedQuestions(w http.ResponseWriter, r *http.Request) {
	h.engine.SubmitClearRelatedQuestions()
	w.WriteHeader(http.StatusNoContent)
}
