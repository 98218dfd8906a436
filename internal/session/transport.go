package session

import (
	"context"
	"encoding/json"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/internal/stream"
)

// SendRequest is the outbound payload of one send, including the stream
// handle whose ports the transport registers for the answer.
type SendRequest struct {
	PlaceholderID string
	Text          string
	Metadata      json.RawMessage
	Stream        *stream.Handle
}

// Transport is the wire/RPC collaborator that carries outbound commands.
// Implementations are opaque to the engine; every call is fire-and-await.
type Transport interface {
	// SendMessage submits a user message. On acceptance it returns the
	// server-assigned message id. A rejection surfaces as *model.SendError;
	// any other error is a transport failure.
	SendMessage(ctx context.Context, chatID string, req SendRequest) (int64, error)

	// StopStream asks the server to stop the in-progress answer. Best effort.
	StopStream(ctx context.Context, chatID string) error

	FetchLatest(ctx context.Context, chatID string, limit int) ([]model.RawMessage, error)

	FetchOlder(ctx context.Context, chatID, beforeID string, limit int) ([]model.RawMessage, bool, error)

	FetchRelatedQuestions(ctx context.Context, chatID, messageID string) ([]model.RelatedQuestion, error)
}

// PushHandler receives server-initiated events for one chat. Callbacks may
// run on the push listener's own goroutines; implementations must only
// enqueue.
type PushHandler interface {
	OnMessage(raw model.RawMessage)
	OnError(code, reason string)
	OnLatestBatch(msgs []model.RawMessage)
	OnOlderBatch(msgs []model.RawMessage, hasMore bool)
	OnStreamFinished()
}

// Subscription is a live push registration, released at session close.
type Subscription interface {
	Unsubscribe() error
}

// PushListener delivers server push events for a chat.
type PushListener interface {
	Subscribe(ctx context.Context, chatID string, h PushHandler) (Subscription, error)
}
