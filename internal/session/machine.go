// Package session implements the chat session reconciliation engine: a
// single-writer state machine that resolves user commands, the answer stream
// and the server push feed into one consistent message list.
package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/internal/reconcile"
	"github.com/capitalize-ai/chat-session-engine/internal/store"
	"github.com/capitalize-ai/chat-session-engine/internal/stream"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
)

// DefaultPageSize is the history page size when none is configured.
const DefaultPageSize = 50

// relatedQuestionsID is the fixed id of the pinned suggestions message; the
// store's remove-before-insert keeps it unique.
const relatedQuestionsID = "related-questions"

// MachineConfig configures a Machine.
type MachineConfig struct {
	ChatID   string
	PageSize int
	// Now is injectable for deterministic placeholder ids in tests.
	Now func() time.Time
}

// Machine applies events to session state and returns side-effect
// descriptors. It performs no I/O. All methods must be called from a single
// goroutine.
type Machine struct {
	chatID   string
	pageSize int
	now      func() time.Time

	state   State
	store   *store.Store
	ids     *reconcile.Reconciler
	streams *stream.Manager
	log     *logger.Logger
}

// NewMachine creates a machine with all phases settled and an empty store.
func NewMachine(cfg MachineConfig, log *logger.Logger) *Machine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{
		chatID:   cfg.ChatID,
		pageSize: cfg.PageSize,
		now:      cfg.Now,
		state:    newState(),
		store:    store.New(),
		ids:      reconcile.New(),
		streams:  stream.NewManager(),
		log:      log,
	}
}

// Snapshot returns an immutable copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	var related []model.RelatedQuestion
	if len(m.state.RelatedQuestions) > 0 {
		related = make([]model.RelatedQuestion, len(m.state.RelatedQuestions))
		copy(related, m.state.RelatedQuestions)
	}
	return Snapshot{
		ChatID:                m.chatID,
		Messages:              m.store.Messages(),
		InitialLoad:           m.state.InitialLoad,
		PrevLoad:              m.state.PrevLoad,
		Streaming:             m.state.Streaming,
		Sending:               m.state.Sending,
		HasMorePrevious:       m.state.HasMorePrevious,
		RelatedQuestions:      related,
		AcceptRelatedQuestion: m.state.AcceptRelatedQuestion,
		LastSentMessageID:     m.state.LastSentMessageID,
		CanSendMessage:        m.state.CanSendMessage,
		StreamActive:          m.streams.Active() != nil,
	}
}

// Close disposes the active stream handle, if any. Part of session teardown.
func (m *Machine) Close() {
	m.streams.Close()
}

// Apply runs one transition. Transitions are atomic relative to each other
// because the engine serializes all calls through one goroutine.
func (m *Machine) Apply(ev Event) []Effect {
	switch ev := ev.(type) {
	case RequestInitialLoad:
		m.state.InitialLoad = LoadLoading
		return []Effect{FetchLatestEffect{Limit: m.pageSize}}

	case ReceivedLatest:
		m.store.ReplaceLatest(m.fromRawBatch(ev.Messages))
		m.state.InitialLoad = LoadFinished
		return nil

	case InitialLoadFailed:
		m.log.Warn("initial load failed", zap.String("chat_id", m.chatID), zap.Error(ev.Err))
		m.state.InitialLoad = LoadFinished
		return nil

	case RequestOlderPage:
		m.state.PrevLoad = LoadLoading
		beforeID, _ := m.store.OldestDurableCursor()
		return []Effect{FetchOlderEffect{BeforeID: beforeID, Limit: m.pageSize}}

	case ReceivedOlderPage:
		m.store.MergeOlder(m.fromRawBatch(ev.Messages))
		m.state.PrevLoad = LoadFinished
		m.state.HasMorePrevious = ev.HasMore
		return nil

	case OlderPageFailed:
		m.log.Warn("older page load failed", zap.String("chat_id", m.chatID), zap.Error(ev.Err))
		m.state.PrevLoad = LoadFinished
		return nil

	case SendMessage:
		return m.applySend(ev)

	case SendAccepted:
		return m.applySendAccepted(ev)

	case SendRejected:
		return m.applySendRejected(ev)

	case InboundPushMessage:
		m.applyInbound(ev.Raw)
		return nil

	case StreamFinished:
		return m.applyStreamDone(true, "", "")

	case StreamFailed:
		return m.applyStreamDone(false, ev.Code, ev.Reason)

	case StopStream:
		return m.applyStop()

	case ReceivedRelatedQuestions:
		m.applyRelated(ev.Questions)
		return nil

	case RelatedQuestionsFailed:
		m.log.Warn("related questions fetch failed", zap.String("chat_id", m.chatID), zap.Error(ev.Err))
		return nil

	case ClearRelatedQuestions:
		m.state.RelatedQuestions = nil
		return nil

	default:
		m.log.Warn("unhandled event", zap.String("event", ev.eventName()))
		return nil
	}
}

func (m *Machine) applySend(ev SendMessage) []Effect {
	// The previous turn's suggestions are stale the moment a new send goes
	// out; the pinned message goes with them.
	m.store.RemoveEphemeral(model.TagRelatedQuestions)
	m.state.RelatedQuestions = nil
	m.state.AcceptRelatedQuestion = false

	now := m.now()
	placeholderID := strconv.FormatInt(now.UnixMilli(), 10)
	m.store.InsertDurable(model.Message{
		ID:              placeholderID,
		Author:          model.Author{Kind: model.AuthorPending, Token: placeholderID},
		Text:            ev.Text,
		CreatedAtMillis: now.UnixMilli(),
		RefMetadata:     ev.Metadata,
	})
	m.ids.ExpectQuestion(placeholderID)
	m.state.questionPlaceholderID = placeholderID

	// Single-flight by replacement: Open disposes any prior handle.
	handle := m.streams.Open()

	m.state.Sending = SendSending
	m.state.recomputeCanSend()

	return []Effect{SendEffect{
		PlaceholderID: placeholderID,
		Text:          ev.Text,
		Metadata:      ev.Metadata,
		Handle:        handle,
	}}
}

func (m *Machine) applySendAccepted(ev SendAccepted) []Effect {
	m.state.LastSentMessageID = strconv.FormatInt(ev.ServerMessageID, 10)
	m.state.Sending = SendDone

	answerID := reconcile.AnswerPlaceholderID(ev.ServerMessageID)
	m.ids.ExpectAnswer(answerID)
	m.store.InsertDurable(model.Message{
		ID:              answerID,
		Author:          model.Author{Kind: model.AuthorPending, Token: answerID},
		CreatedAtMillis: m.now().UnixMilli(),
	})

	m.state.Streaming = StreamStreaming
	m.state.recomputeCanSend()
	return nil
}

func (m *Machine) applySendRejected(ev SendRejected) []Effect {
	if id := m.state.questionPlaceholderID; id != "" {
		m.store.RemoveByID(id)
		m.state.questionPlaceholderID = ""
	}
	m.ids.ClearPendingQuestion()

	// The handle opened for this send never started; discard it silently.
	m.streams.Dispose(m.streams.Active())

	sendErr := ev.Err
	if sendErr == nil {
		sendErr = &model.SendError{Code: "unknown", Internal: true}
	}
	now := m.now()
	m.store.PinEphemeral(model.Message{
		ID:              fmt.Sprintf("send-error-%d", now.UnixNano()),
		Author:          model.Author{Kind: model.AuthorSystem},
		Text:            sendErr.UserText(),
		CreatedAtMillis: now.UnixMilli(),
		Tag:             model.TagSendError,
	})

	m.state.Sending = SendDone
	m.state.recomputeCanSend()
	return nil
}

func (m *Machine) applyInbound(raw model.RawMessage) {
	kind, ok := authorKindFromRole(raw.AuthorRole)
	if !ok {
		perr := &model.ProtocolError{Subject: "push message", Err: fmt.Errorf("unknown author role %q", raw.AuthorRole)}
		m.log.Warn("dropping push payload", zap.String("chat_id", m.chatID), zap.Error(perr))
		return
	}

	m.ids.ObserveInbound(raw.ID, kind)
	localID := m.ids.Resolve(raw.ID)

	m.store.InsertDurable(model.Message{
		ID:              localID,
		Author:          model.Author{Kind: kind, UserID: raw.AuthorUserID},
		Text:            raw.Text,
		CreatedAtMillis: raw.CreatedAtMillis,
		RefMetadata:     raw.RefMetadata,
	})

	if kind == model.AuthorAssistant && m.state.Streaming == StreamStreaming {
		if h := m.streams.Active(); h != nil {
			h.MarkProduced()
		}
	}
}

func (m *Machine) applyStreamDone(finished bool, code, reason string) []Effect {
	// The handle is not disposed here: disposal happens on explicit stop, on
	// replacement by the next send, or at session close.
	hadStream := m.streams.Active() != nil

	m.state.Streaming = StreamDone
	m.state.AcceptRelatedQuestion = true
	m.state.recomputeCanSend()

	if !finished {
		m.log.Warn("answer stream failed",
			zap.String("chat_id", m.chatID),
			zap.String("code", code),
			zap.String("reason", reason),
		)
		return nil
	}
	if hadStream && m.state.LastSentMessageID != "" {
		return []Effect{FetchRelatedEffect{MessageID: m.state.LastSentMessageID}}
	}
	return nil
}

func (m *Machine) applyStop() []Effect {
	handle := m.streams.Active()
	if handle == nil || m.state.Streaming != StreamStreaming {
		// Nothing streaming, or the stream already finished. No-op.
		return nil
	}

	if !handle.Produced() {
		// Not yet started: drop the answer placeholder and its token so the
		// next turn's confirmation cannot be misattributed.
		if token, ok := m.ids.PendingAnswer(); ok {
			m.store.RemoveByID(token)
			m.ids.ClearPendingAnswer()
		}
	}

	m.streams.Dispose(handle)
	m.state.Streaming = StreamDone
	m.state.recomputeCanSend()

	return []Effect{StopStreamEffect{}}
}

func (m *Machine) applyRelated(questions []model.RelatedQuestion) {
	if !m.state.AcceptRelatedQuestion || len(questions) == 0 {
		// A later send superseded this turn, or there is nothing to show.
		m.log.Debug("discarding related questions",
			zap.String("chat_id", m.chatID),
			zap.Int("count", len(questions)),
			zap.Bool("accepting", m.state.AcceptRelatedQuestion),
		)
		return
	}

	m.state.RelatedQuestions = questions
	payload, _ := json.Marshal(questions)
	m.store.PinEphemeral(model.Message{
		ID:              relatedQuestionsID,
		Author:          model.Author{Kind: model.AuthorSystem},
		CreatedAtMillis: m.now().UnixMilli(),
		Tag:             model.TagRelatedQuestions,
		RefMetadata:     payload,
	})
}

// fromRawBatch converts and reconciles a history batch. Malformed entries
// are dropped, not surfaced.
func (m *Machine) fromRawBatch(raws []model.RawMessage) []model.Message {
	msgs := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		kind, ok := authorKindFromRole(raw.AuthorRole)
		if !ok {
			perr := &model.ProtocolError{Subject: "history batch", Err: fmt.Errorf("unknown author role %q", raw.AuthorRole)}
			m.log.Warn("dropping batch entry", zap.String("chat_id", m.chatID), zap.Error(perr))
			continue
		}
		msgs = append(msgs, model.Message{
			ID:              m.ids.Resolve(raw.ID),
			Author:          model.Author{Kind: kind, UserID: raw.AuthorUserID},
			Text:            raw.Text,
			CreatedAtMillis: raw.CreatedAtMillis,
			RefMetadata:     raw.RefMetadata,
		})
	}
	return msgs
}

func authorKindFromRole(role string) (model.AuthorKind, bool) {
	switch model.AuthorKind(role) {
	case model.AuthorUser, model.AuthorAssistant, model.AuthorSystem:
		return model.AuthorKind(role), true
	default:
		return "", false
	}
}
