package session

import (
	"github.com/capitalize-ai/chat-session-engine/internal/model"
)

// LoadPhase tracks a history load, independently for the initial load and
// pagination.
type LoadPhase string

const (
	LoadLoading  LoadPhase = "loading"
	LoadFinished LoadPhase = "finished"
)

// StreamPhase tracks the answer stream.
type StreamPhase string

const (
	StreamStreaming StreamPhase = "streaming"
	StreamDone      StreamPhase = "done"
)

// SendPhase tracks an in-flight send.
type SendPhase string

const (
	SendSending SendPhase = "sending"
	SendDone    SendPhase = "done"
)

// State is the reducer-owned session state. Only the Machine mutates it.
type State struct {
	InitialLoad           LoadPhase
	PrevLoad              LoadPhase
	Streaming             StreamPhase
	Sending               SendPhase
	HasMorePrevious       bool
	RelatedQuestions      []model.RelatedQuestion
	AcceptRelatedQuestion bool
	LastSentMessageID     string
	CanSendMessage        bool

	// questionPlaceholderID is kept for rollback on a rejected send.
	questionPlaceholderID string
}

func newState() State {
	return State{
		InitialLoad:     LoadFinished,
		PrevLoad:        LoadFinished,
		Streaming:       StreamDone,
		Sending:         SendDone,
		HasMorePrevious: true,
		CanSendMessage:  true,
	}
}

// recomputeCanSend re-derives the send gate. It is recomputed after every
// transition, never inferred piecemeal.
func (s *State) recomputeCanSend() {
	s.CanSendMessage = s.Sending == SendDone && s.Streaming == StreamDone
}

// Snapshot is the immutable view handed to the presentation layer after each
// processed event.
type Snapshot struct {
	ChatID                string                  `json:"chat_id"`
	Messages              []model.Message         `json:"messages"`
	InitialLoad           LoadPhase               `json:"initial_load"`
	PrevLoad              LoadPhase               `json:"prev_load"`
	Streaming             StreamPhase             `json:"streaming"`
	Sending               SendPhase               `json:"sending"`
	HasMorePrevious       bool                    `json:"has_more_previous"`
	RelatedQuestions      []model.RelatedQuestion `json:"related_questions,omitempty"`
	AcceptRelatedQuestion bool                    `json:"accept_related_question"`
	LastSentMessageID     string                  `json:"last_sent_message_id,omitempty"`
	CanSendMessage        bool                    `json:"can_send_message"`
	StreamActive          bool                    `json:"stream_active"`
}
