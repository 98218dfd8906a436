package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-session-engine/internal/stream"
)

func TestSingleFlightReplacement(t *testing.T) {
	m := stream.NewManager()

	first := m.Open()
	require.False(t, first.Disposed())

	// Opening a new stream disposes the old handle before the new one is
	// observable anywhere.
	second := m.Open()
	assert.True(t, first.Disposed())
	assert.False(t, second.Disposed())
	assert.NotEqual(t, first.Token(), second.Token())
	assert.Same(t, second, m.Active())
}

func TestDisposeIdempotent(t *testing.T) {
	m := stream.NewManager()
	h := m.Open()

	m.Dispose(h)
	m.Dispose(h)
	m.Dispose(nil)

	assert.True(t, h.Disposed())
	assert.Nil(t, m.Active())

	select {
	case <-h.Done():
	default:
		t.Fatal("Done must be closed after dispose")
	}
}

func TestDisposeStaleHandleKeepsActive(t *testing.T) {
	m := stream.NewManager()
	old := m.Open()
	current := m.Open()

	m.Dispose(old) // already replaced; must not clear the live handle
	assert.Same(t, current, m.Active())
}

func TestCloseDisposesActive(t *testing.T) {
	m := stream.NewManager()
	h := m.Open()
	m.Close()
	assert.True(t, h.Disposed())
	assert.Nil(t, m.Active())

	m.Close() // no live handle is fine
}

func TestProducedFlag(t *testing.T) {
	m := stream.NewManager()
	h := m.Open()
	require.False(t, h.Produced())

	require.True(t, h.AnswerIn([]byte("tok")))
	assert.True(t, h.Produced())

	frame := <-h.AnswerOut()
	assert.Equal(t, []byte("tok"), frame)

	h.MarkProduced()
	assert.True(t, h.Produced())
}

func TestAnswerInAfterDispose(t *testing.T) {
	m := stream.NewManager()
	h := m.Open()
	for h.AnswerIn([]byte("x")) {
		// fill the buffer; writes must drop, never block
	}
	m.Dispose(h)
	assert.False(t, h.AnswerIn([]byte("late")))
}
