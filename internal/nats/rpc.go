package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/internal/session"
	"github.com/capitalize-ai/chat-session-engine/internal/stream"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
	"github.com/capitalize-ai/chat-session-engine/pkg/metrics"
)

const tracerName = "github.com/capitalize-ai/chat-session-engine/internal/nats"

// Transport implements session.Transport over NATS request/reply.
type Transport struct {
	client *Client
	logger *logger.Logger
}

// NewTransport creates a transport on an established connection.
func NewTransport(client *Client, log *logger.Logger) *Transport {
	return &Transport{client: client, logger: log}
}

type sendRequest struct {
	PlaceholderID string          `json:"placeholder_id"`
	Text          string          `json:"text"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	StreamToken   string          `json:"stream_token,omitempty"`
}

type sendResponse struct {
	Accepted        bool   `json:"accepted"`
	ServerMessageID int64  `json:"server_message_id"`
	ErrorCode       string `json:"error_code,omitempty"`
	ErrorText       string `json:"error_text,omitempty"`
	Internal        bool   `json:"internal,omitempty"`
}

type historyRequest struct {
	BeforeID string `json:"before_id,omitempty"`
	Limit    int    `json:"limit"`
}

type historyResponse struct {
	Messages []model.RawMessage `json:"messages"`
	HasMore  bool               `json:"has_more"`
}

type relatedRequest struct {
	MessageID string `json:"message_id"`
}

type relatedResponse struct {
	Questions []model.RelatedQuestion `json:"questions"`
}

// SendMessage submits the send over request/reply and wires the stream
// handle's ports to the per-send stream subjects before the server can start
// producing.
func (t *Transport) SendMessage(ctx context.Context, chatID string, req session.SendRequest) (int64, error) {
	if req.Stream != nil {
		if err := t.attachStream(chatID, req.Stream); err != nil {
			return 0, fmt.Errorf("attach stream ports: %w", err)
		}
	}

	wire := sendRequest{
		PlaceholderID: req.PlaceholderID,
		Text:          req.Text,
		Metadata:      req.Metadata,
	}
	if req.Stream != nil {
		wire.StreamToken = req.Stream.Token()
	}

	var resp sendResponse
	if err := t.request(ctx, "send", SendSubject(chatID), wire, &resp); err != nil {
		return 0, err
	}
	if !resp.Accepted {
		return 0, &model.SendError{
			Code:     resp.ErrorCode,
			Detail:   resp.ErrorText,
			Internal: resp.Internal,
		}
	}
	return resp.ServerMessageID, nil
}

// attachStream registers both native-facing ports of the handle: answer
// frames flow in from the per-send stream subject, question frames flow out,
// both until the handle is disposed.
func (t *Transport) attachStream(chatID string, h *stream.Handle) error {
	sub, err := t.client.Conn().Subscribe(StreamAnswerSubject(chatID, h.Token()), func(msg *nats.Msg) {
		frame := make([]byte, len(msg.Data))
		copy(frame, msg.Data)
		h.AnswerIn(frame)
	})
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-h.Done():
				if err := sub.Unsubscribe(); err != nil {
					t.logger.Warn("stream unsubscribe failed", zap.String("chat_id", chatID), zap.Error(err))
				}
				return
			case frame := <-h.QuestionOut():
				if err := t.client.Conn().Publish(StreamQuestionSubject(chatID, h.Token()), frame); err != nil {
					t.logger.Warn("question frame publish failed", zap.String("chat_id", chatID), zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// StopStream asks the server to stop the in-progress answer. Best effort.
func (t *Transport) StopStream(ctx context.Context, chatID string) error {
	var resp struct {
		OK bool `json:"ok"`
	}
	return t.request(ctx, "stop", StopSubject(chatID), struct{}{}, &resp)
}

// FetchLatest retrieves the most recent history page.
func (t *Transport) FetchLatest(ctx context.Context, chatID string, limit int) ([]model.RawMessage, error) {
	var resp historyResponse
	if err := t.request(ctx, "fetch_latest", LatestSubject(chatID), historyRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// FetchOlder retrieves the page before beforeID.
func (t *Transport) FetchOlder(ctx context.Context, chatID, beforeID string, limit int) ([]model.RawMessage, bool, error) {
	var resp historyResponse
	req := historyRequest{BeforeID: beforeID, Limit: limit}
	if err := t.request(ctx, "fetch_older", OlderSubject(chatID), req, &resp); err != nil {
		return nil, false, err
	}
	return resp.Messages, resp.HasMore, nil
}

// FetchRelatedQuestions retrieves follow-up suggestions for a completed turn.
func (t *Transport) FetchRelatedQuestions(ctx context.Context, chatID, messageID string) ([]model.RelatedQuestion, error) {
	var resp relatedResponse
	if err := t.request(ctx, "fetch_related", RelatedSubject(chatID), relatedRequest{MessageID: messageID}, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

func (t *Transport) request(ctx context.Context, op, subject string, req, resp any) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "nats.request")
	span.SetAttributes(
		attribute.String("rpc.operation", op),
		attribute.String("messaging.destination", subject),
	)
	defer span.End()

	start := time.Now()
	err := t.doRequest(ctx, subject, req, resp)
	status := "ok"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordTransportRPC(op, status, time.Since(start).Seconds())
	return err
}

func (t *Transport) doRequest(ctx context.Context, subject string, req, resp any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	msg, err := t.client.Conn().RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}

	if err := json.Unmarshal(msg.Data, resp); err != nil {
		return &model.ProtocolError{Subject: subject, Err: err}
	}
	return nil
}
