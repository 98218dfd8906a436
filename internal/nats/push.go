package nats

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/internal/session"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
)

// PushFeed implements session.PushListener over a per-chat NATS wildcard
// subscription.
type PushFeed struct {
	client *Client
	logger *logger.Logger
}

// NewPushFeed creates a push feed on an established connection.
func NewPushFeed(client *Client, log *logger.Logger) *PushFeed {
	return &PushFeed{client: client, logger: log}
}

type pushError struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Subscribe starts delivering push events for the chat to the handler.
// Callbacks run on the NATS dispatch goroutine; the handler only enqueues.
func (f *PushFeed) Subscribe(ctx context.Context, chatID string, h session.PushHandler) (session.Subscription, error) {
	log := f.logger.WithChat(chatID)
	sub, err := f.client.Conn().Subscribe(PushSubject(chatID), func(msg *nats.Msg) {
		f.dispatch(log, msg, h)
	})
	if err != nil {
		return nil, err
	}
	return &subscription{sub: sub}, nil
}

func (f *PushFeed) dispatch(log *logger.Logger, msg *nats.Msg, h session.PushHandler) {
	kind := msg.Subject[strings.LastIndexByte(msg.Subject, '.')+1:]

	drop := func(err error) {
		perr := &model.ProtocolError{Subject: msg.Subject, Err: err}
		log.Warn("dropping push payload", zap.Error(perr))
	}

	switch kind {
	case PushKindMessage:
		var raw model.RawMessage
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			drop(err)
			return
		}
		h.OnMessage(raw)

	case PushKindError:
		var pe pushError
		if err := json.Unmarshal(msg.Data, &pe); err != nil {
			drop(err)
			return
		}
		h.OnError(pe.Code, pe.Reason)

	case PushKindLatest:
		var batch historyResponse
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			drop(err)
			return
		}
		h.OnLatestBatch(batch.Messages)

	case PushKindOlder:
		var batch historyResponse
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			drop(err)
			return
		}
		h.OnOlderBatch(batch.Messages, batch.HasMore)

	case PushKindFinished:
		h.OnStreamFinished()

	default:
		f.logger.Debug("ignoring push subject", zap.String("subject", msg.Subject))
	}
}

type subscription struct {
	sub *nats.Subscription
}

func (s *subscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
