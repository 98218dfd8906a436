package session

import (
	"encoding/json"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
)

// Event is one unit of input to the state machine. UI commands, transport
// completions and push callbacks are all translated into events and applied
// by the single reducer goroutine.
type Event interface {
	eventName() string
}

// RequestInitialLoad asks for the latest page of history.
type RequestInitialLoad struct{}

// ReceivedLatest carries the latest history batch, from the fetch RPC or the
// push feed.
type ReceivedLatest struct {
	Messages []model.RawMessage
}

// InitialLoadFailed reports a failed latest fetch. Absorbed.
type InitialLoadFailed struct {
	Err error
}

// RequestOlderPage asks for the page before the oldest durable message.
type RequestOlderPage struct{}

// ReceivedOlderPage carries an older history batch.
type ReceivedOlderPage struct {
	Messages []model.RawMessage
	HasMore  bool
}

// OlderPageFailed reports a failed older fetch. Absorbed.
type OlderPageFailed struct {
	Err error
}

// SendMessage submits a new user message.
type SendMessage struct {
	Text     string
	Metadata json.RawMessage
}

// SendAccepted confirms the send with the server-assigned message id.
type SendAccepted struct {
	ServerMessageID int64
}

// SendRejected reports a rejected or failed send.
type SendRejected struct {
	Err *model.SendError
}

// InboundPushMessage carries one server-pushed persisted message.
type InboundPushMessage struct {
	Raw model.RawMessage
}

// StreamFinished signals that the answer stream completed.
type StreamFinished struct{}

// StreamFailed signals that the answer stream errored out. Partial content
// already rendered is kept; only phase bookkeeping changes.
type StreamFailed struct {
	Code   string
	Reason string
}

// StopStream stops the in-progress answer.
type StopStream struct{}

// ReceivedRelatedQuestions carries follow-up suggestions for the last turn.
type ReceivedRelatedQuestions struct {
	Questions []model.RelatedQuestion
}

// RelatedQuestionsFailed reports a failed related-questions fetch. Log only.
type RelatedQuestionsFailed struct {
	Err error
}

// ClearRelatedQuestions drops the stored suggestion list.
type ClearRelatedQuestions struct{}

func (RequestInitialLoad) eventName() string       { return "request_initial_load" }
func (ReceivedLatest) eventName() string           { return "received_latest" }
func (InitialLoadFailed) eventName() string        { return "initial_load_failed" }
func (RequestOlderPage) eventName() string         { return "request_older_page" }
func (ReceivedOlderPage) eventName() string        { return "received_older_page" }
func (OlderPageFailed) eventName() string          { return "older_page_failed" }
func (SendMessage) eventName() string              { return "send_message" }
func (SendAccepted) eventName() string             { return "send_accepted" }
func (SendRejected) eventName() string             { return "send_rejected" }
func (InboundPushMessage) eventName() string       { return "inbound_push_message" }
func (StreamFinished) eventName() string           { return "stream_finished" }
func (StreamFailed) eventName() string             { return "stream_failed" }
func (StopStream) eventName() string               { return "stop_stream" }
func (ReceivedRelatedQuestions) eventName() string { return "received_related_questions" }
func (RelatedQuestionsFailed) eventName() string   { return "related_questions_failed" }
func (ClearRelatedQuestions) eventName() string    { return "clear_related_questions" }
