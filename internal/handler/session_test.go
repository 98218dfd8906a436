package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-session-engine/internal/handler"
	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/internal/session"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
)

type stubTransport struct{}

func (stubTransport) SendMessage(ctx context.Context, chatID string, req session.SendRequest) (int64, error) {
	return 100, nil
}
func (stubTransport) StopStream(ctx context.Context, chatID string) error { return nil }
func (stubTransport) FetchLatest(ctx context.Context, chatID string, limit int) ([]model.RawMessage, error) {
	return nil, nil
}
func (stubTransport) FetchOlder(ctx context.Context, chatID, beforeID string, limit int) ([]model.RawMessage, bool, error) {
	return nil, false, nil
}
func (stubTransport) FetchRelatedQuestions(ctx context.Context, chatID, messageID string) ([]model.RelatedQuestion, error) {
	return nil, nil
}

type stubSub struct{}

func (stubSub) Unsubscribe() error { return nil }

type stubPush struct{}

func (stubPush) Subscribe(ctx context.Context, chatID string, h session.PushHandler) (session.Subscription, error) {
	return stubSub{}, nil
}

func newHandler(t *testing.T) (*handler.SessionHandler, *session.Engine) {
	t.Helper()
	engine, err := session.Open(context.Background(), session.Config{ChatID: "chat-1"}, stubTransport{}, stubPush{}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return handler.NewSessionHandler(engine, logger.NewNop()), engine
}

func TestSnapshotEndpoint(t *testing.T) {
	h, _ := newHandler(t)

	rec := httptest.NewRecorder()
	h.Snapshot(rec, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chat_id":"chat-1"`)
	assert.Contains(t, rec.Body.String(), `"can_send_message":true`)
}

func TestSendValidation(t *testing.T) {
	h, _ := newHandler(t)

	rec := httptest.NewRecorder()
	h.Send(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/messages", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Send(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/messages", strings.NewReader(`{"text":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendAcceptedAndGated(t *testing.T) {
	h, engine := newHandler(t)

	rec := httptest.NewRecorder()
	h.Send(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/messages", strings.NewReader(`{"text":"Hello"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	// Once the send is accepted the answer stream gates further sends.
	require.Eventually(t, func() bool {
		return engine.Snapshot().Streaming == session.StreamStreaming
	}, 2*time.Second, 5*time.Millisecond)

	rec = httptest.NewRecorder()
	h.Send(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/messages", strings.NewReader(`{"text":"again"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCommandEndpoints(t *testing.T) {
	h, _ := newHandler(t)

	rec := httptest.NewRecorder()
	h.Load(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/load", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.OlderPage(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/older", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.Stop(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/stop", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.ClearRelatedQuestions(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/session/related-questions", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
