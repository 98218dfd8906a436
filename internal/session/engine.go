package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
	"github.com/capitalize-ai/chat-session-engine/pkg/metrics"
)

// Config configures an Engine.
type Config struct {
	ChatID     string
	PageSize   int
	RPCTimeout time.Duration
	// QueueSize bounds the event queue. Producers block (or drop on close)
	// when it is full.
	QueueSize int
}

// Engine runs the single-writer reducer loop. Producers (command methods,
// transport completions, push callbacks) only enqueue typed events; every
// transition is applied atomically by one goroutine. A fresh immutable
// snapshot is published after each applied event.
type Engine struct {
	cfg       Config
	machine   *Machine
	transport Transport
	log       *logger.Logger

	events   chan Event
	snapshot atomic.Pointer[Snapshot]
	sub      Subscription

	closing   chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
	effects   sync.WaitGroup
}

// Open creates the engine, subscribes to the push feed and starts the
// reducer loop. The caller owns Close.
func Open(ctx context.Context, cfg Config, transport Transport, push PushListener, log *logger.Logger) (*Engine, error) {
	if cfg.ChatID == "" {
		return nil, errors.New("session: chat id is required")
	}
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = 30 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	e := &Engine{
		cfg:       cfg,
		machine:   NewMachine(MachineConfig{ChatID: cfg.ChatID, PageSize: cfg.PageSize}, log),
		transport: transport,
		log:       log,
		events:    make(chan Event, cfg.QueueSize),
		closing:   make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	snap := e.machine.Snapshot()
	e.snapshot.Store(&snap)

	sub, err := push.Subscribe(ctx, cfg.ChatID, pushEvents{e})
	if err != nil {
		return nil, fmt.Errorf("session: subscribe push feed: %w", err)
	}
	e.sub = sub

	go e.loop()
	return e, nil
}

// Snapshot returns the state after the most recently applied event.
func (e *Engine) Snapshot() Snapshot {
	return *e.snapshot.Load()
}

// SubmitInitialLoad requests the latest history page.
func (e *Engine) SubmitInitialLoad() { e.enqueue(RequestInitialLoad{}) }

// SubmitOlderPageRequest requests the page before the oldest durable message.
func (e *Engine) SubmitOlderPageRequest() { e.enqueue(RequestOlderPage{}) }

// SubmitSend submits a user message. Callers should check CanSendMessage on
// the snapshot first; the engine still processes regardless.
func (e *Engine) SubmitSend(text string, metadata json.RawMessage) {
	e.enqueue(SendMessage{Text: text, Metadata: metadata})
}

// SubmitStop stops the in-progress answer stream.
func (e *Engine) SubmitStop() { e.enqueue(StopStream{}) }

// SubmitClearRelatedQuestions drops the stored suggestion list.
func (e *Engine) SubmitClearRelatedQuestions() { e.enqueue(ClearRelatedQuestions{}) }

// Close tears the session down: stops the loop, waits for in-flight effect
// goroutines, disposes the active stream handle, then deregisters the push
// subscription. Safe to call more than once.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closing)
		<-e.loopDone
		e.effects.Wait()
		e.machine.Close()
		if e.sub != nil {
			err = e.sub.Unsubscribe()
		}
	})
	return err
}

func (e *Engine) enqueue(ev Event) {
	select {
	case <-e.closing:
		// Late completions and push callbacks after close are dropped.
	case e.events <- ev:
	}
}

func (e *Engine) loop() {
	defer close(e.loopDone)
	for {
		select {
		case <-e.closing:
			return
		case ev := <-e.events:
			effects := e.machine.Apply(ev)
			metrics.RecordSessionEvent(ev.eventName())
			snap := e.machine.Snapshot()
			e.snapshot.Store(&snap)
			metrics.SetStreamActive(snap.StreamActive && snap.Streaming == StreamStreaming)
			for _, eff := range effects {
				e.runEffect(eff)
			}
		}
	}
}

// runEffect executes one side-effect descriptor on its own goroutine,
// fire-and-await: no lock is held during the RPC, and the completion
// re-enters the queue as an event.
func (e *Engine) runEffect(eff Effect) {
	e.effects.Add(1)
	go func() {
		defer e.effects.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RPCTimeout)
		defer cancel()

		switch eff := eff.(type) {
		case FetchLatestEffect:
			msgs, err := e.transport.FetchLatest(ctx, e.cfg.ChatID, eff.Limit)
			if err != nil {
				e.enqueue(InitialLoadFailed{Err: &model.TransportError{Op: "fetch latest", Err: err}})
				return
			}
			e.enqueue(ReceivedLatest{Messages: msgs})

		case FetchOlderEffect:
			msgs, hasMore, err := e.transport.FetchOlder(ctx, e.cfg.ChatID, eff.BeforeID, eff.Limit)
			if err != nil {
				e.enqueue(OlderPageFailed{Err: &model.TransportError{Op: "fetch older", Err: err}})
				return
			}
			e.enqueue(ReceivedOlderPage{Messages: msgs, HasMore: hasMore})

		case SendEffect:
			serverID, err := e.transport.SendMessage(ctx, e.cfg.ChatID, SendRequest{
				PlaceholderID: eff.PlaceholderID,
				Text:          eff.Text,
				Metadata:      eff.Metadata,
				Stream:        eff.Handle,
			})
			if err != nil {
				var sendErr *model.SendError
				if !errors.As(err, &sendErr) {
					e.log.Warn("send transport failure", zap.String("chat_id", e.cfg.ChatID), zap.Error(err))
					sendErr = &model.SendError{Code: "transport", Internal: true}
				}
				metrics.RecordSend("rejected")
				e.enqueue(SendRejected{Err: sendErr})
				return
			}
			metrics.RecordSend("accepted")
			e.enqueue(SendAccepted{ServerMessageID: serverID})

		case StopStreamEffect:
			if err := e.transport.StopStream(ctx, e.cfg.ChatID); err != nil {
				// Best effort; the local state already settled.
				e.log.Warn("stop stream rpc failed", zap.String("chat_id", e.cfg.ChatID), zap.Error(err))
			}

		case FetchRelatedEffect:
			questions, err := e.transport.FetchRelatedQuestions(ctx, e.cfg.ChatID, eff.MessageID)
			if err != nil {
				metrics.RecordRelatedFetch("error")
				e.enqueue(RelatedQuestionsFailed{Err: &model.TransportError{Op: "fetch related questions", Err: err}})
				return
			}
			metrics.RecordRelatedFetch("ok")
			e.enqueue(ReceivedRelatedQuestions{Questions: questions})
		}
	}()
}

// pushEvents adapts the push feed callbacks onto the event queue.
type pushEvents struct {
	e *Engine
}

func (p pushEvents) OnMessage(raw model.RawMessage) {
	metrics.RecordPushMessage()
	p.e.enqueue(InboundPushMessage{Raw: raw})
}

func (p pushEvents) OnError(code, reason string) {
	p.e.enqueue(StreamFailed{Code: code, Reason: reason})
}

func (p pushEvents) OnLatestBatch(msgs []model.RawMessage) {
	p.e.enqueue(ReceivedLatest{Messages: msgs})
}

func (p pushEvents) OnOlderBatch(msgs []model.RawMessage, hasMore bool) {
	p.e.enqueue(ReceivedOlderPage{Messages: msgs, HasMore: hasMore})
}

func (p pushEvents) OnStreamFinished() {
	p.e.enqueue(StreamFinished{})
}
