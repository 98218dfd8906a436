// Package stream owns the duplex channel pair backing one in-flight answer
// stream and enforces single-flight: at most one live handle per session.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle is the channel pair tied to one outbound send. The question port
// carries the outbound payload to the transport; the answer port carries
// streamed output back. A handle that never produced output can be discarded
// silently; one that did requires an explicit stop signal to the transport.
type Handle struct {
	token    string
	question chan []byte
	answer   chan []byte
	done     chan struct{}

	produced atomic.Bool
	disposed atomic.Bool
	once     sync.Once
}

func newHandle() *Handle {
	return &Handle{
		token:    uuid.New().String(),
		question: make(chan []byte, 1),
		answer:   make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

// Token identifies the handle for correlation with the outbound send payload.
func (h *Handle) Token() string { return h.token }

// QuestionIn is the client-side port for outbound question frames.
func (h *Handle) QuestionIn() chan<- []byte { return h.question }

// QuestionOut is the transport-side port draining outbound question frames.
func (h *Handle) QuestionOut() <-chan []byte { return h.question }

// AnswerIn delivers one streamed answer frame from the transport, marking
// the handle as having produced output. Frames are dropped, not blocked on,
// when the consumer is not draining or the handle is disposed; the durable
// message still arrives via the push feed.
func (h *Handle) AnswerIn(frame []byte) bool {
	h.produced.Store(true)
	select {
	case <-h.done:
		return false
	case h.answer <- frame:
		return true
	default:
		return false
	}
}

// AnswerOut is the client-side port for streamed answer frames.
func (h *Handle) AnswerOut() <-chan []byte { return h.answer }

// Done is closed when the handle is disposed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// MarkProduced records that the stream has started producing output.
func (h *Handle) MarkProduced() { h.produced.Store(true) }

// Produced reports whether any output has been observed on this handle.
func (h *Handle) Produced() bool { return h.produced.Load() }

// Disposed reports whether dispose has run.
func (h *Handle) Disposed() bool { return h.disposed.Load() }

func (h *Handle) dispose() {
	h.once.Do(func() {
		h.disposed.Store(true)
		close(h.done)
	})
}

// Manager owns at most one live Handle.
type Manager struct {
	active *Handle
}

// NewManager returns a manager with no live handle.
func NewManager() *Manager {
	return &Manager{}
}

// Open disposes any existing handle, then constructs a fresh pair. The old
// handle is fully disposed before the new one is observable anywhere.
func (m *Manager) Open() *Handle {
	if m.active != nil {
		m.active.dispose()
	}
	m.active = newHandle()
	return m.active
}

// Active returns the live handle, or nil.
func (m *Manager) Active() *Handle {
	return m.active
}

// Dispose releases the handle. Idempotent; safe to call for a handle already
// replaced by Open.
func (m *Manager) Dispose(h *Handle) {
	if h == nil {
		return
	}
	h.dispose()
	if m.active == h {
		m.active = nil
	}
}

// Close disposes the live handle, if any. Called on session close.
func (m *Manager) Close() {
	m.Dispose(m.active)
}
