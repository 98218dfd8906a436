package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/internal/reconcile"
)

func TestResolveWithoutMapping(t *testing.T) {
	r := reconcile.New()
	assert.Equal(t, "42", r.Resolve("42"))
}

func TestAnswerReconciliation(t *testing.T) {
	r := reconcile.New()
	r.ExpectAnswer("T")

	r.ObserveInbound("900", model.AuthorAssistant)
	require.Equal(t, "T", r.Resolve("900"))

	// The token was consumed: a second unrelated assistant message resolves
	// to its own raw id, no stale mapping reused.
	r.ObserveInbound("901", model.AuthorAssistant)
	assert.Equal(t, "901", r.Resolve("901"))

	// The first mapping survives for the session.
	assert.Equal(t, "T", r.Resolve("900"))
}

func TestQuestionAndAnswerAreIndependent(t *testing.T) {
	r := reconcile.New()
	r.ExpectQuestion("Q")
	r.ExpectAnswer("A")

	r.ObserveInbound("10", model.AuthorAssistant)
	r.ObserveInbound("11", model.AuthorUser)

	assert.Equal(t, "A", r.Resolve("10"))
	assert.Equal(t, "Q", r.Resolve("11"))
}

func TestSystemRoleNeverConsumesTokens(t *testing.T) {
	r := reconcile.New()
	r.ExpectAnswer("A")

	r.ObserveInbound("5", model.AuthorSystem)
	assert.Equal(t, "5", r.Resolve("5"))

	token, ok := r.PendingAnswer()
	require.True(t, ok)
	assert.Equal(t, "A", token)
}

func TestLastWriterWinsPendingToken(t *testing.T) {
	r := reconcile.New()
	r.ExpectQuestion("old")
	r.ExpectQuestion("new")

	r.ObserveInbound("7", model.AuthorUser)
	assert.Equal(t, "new", r.Resolve("7"))
}

func TestClearPendingAnswer(t *testing.T) {
	r := reconcile.New()
	r.ExpectAnswer("A")
	r.ClearPendingAnswer()

	r.ObserveInbound("3", model.AuthorAssistant)
	assert.Equal(t, "3", r.Resolve("3"))

	_, ok := r.PendingAnswer()
	assert.False(t, ok)
}

func TestAnswerPlaceholderID(t *testing.T) {
	assert.Equal(t, "101", reconcile.AnswerPlaceholderID(100))
	assert.Equal(t, "1", reconcile.AnswerPlaceholderID(0))
}
