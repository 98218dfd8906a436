// Package reconcile maps server-issued message ids onto locally created
// placeholder ids so that a confirmed message updates the placeholder bubble
// in place instead of duplicating it.
package reconcile

import (
	"strconv"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
)

// Reconciler tracks at most one pending placeholder token per author role.
// A newer send supersedes an earlier pending token for the same role
// (last-writer-wins; sends are not pipelined). Mappings created from a
// pending token are kept for the session lifetime and only replaced on
// overwrite.
type Reconciler struct {
	byServerID      map[string]string
	pendingQuestion string
	pendingAnswer   string
}

// New returns an empty reconciler.
func New() *Reconciler {
	return &Reconciler{byServerID: make(map[string]string)}
}

// ExpectQuestion registers the question placeholder token awaiting server
// confirmation.
func (r *Reconciler) ExpectQuestion(token string) {
	r.pendingQuestion = token
}

// ExpectAnswer registers the answer placeholder token awaiting server
// confirmation.
func (r *Reconciler) ExpectAnswer(token string) {
	r.pendingAnswer = token
}

// PendingQuestion returns the currently pending question token, if any.
func (r *Reconciler) PendingQuestion() (string, bool) {
	return r.pendingQuestion, r.pendingQuestion != ""
}

// PendingAnswer returns the currently pending answer token, if any.
func (r *Reconciler) PendingAnswer() (string, bool) {
	return r.pendingAnswer, r.pendingAnswer != ""
}

// ClearPendingQuestion drops the pending question token without consuming it.
func (r *Reconciler) ClearPendingQuestion() {
	r.pendingQuestion = ""
}

// ClearPendingAnswer drops the pending answer token without consuming it.
// Used when a stream is stopped before producing output.
func (r *Reconciler) ClearPendingAnswer() {
	r.pendingAnswer = ""
}

// ObserveInbound records serverID -> pending token for the role, consuming
// the token. Roles without a pending token leave the mapping untouched, so a
// later unrelated message with the same role resolves to its own raw id.
func (r *Reconciler) ObserveInbound(serverID string, role model.AuthorKind) {
	switch role {
	case model.AuthorUser:
		if r.pendingQuestion != "" {
			r.byServerID[serverID] = r.pendingQuestion
			r.pendingQuestion = ""
		}
	case model.AuthorAssistant:
		if r.pendingAnswer != "" {
			r.byServerID[serverID] = r.pendingAnswer
			r.pendingAnswer = ""
		}
	}
}

// Resolve returns the local id already visible in the store for serverID, or
// serverID itself when no mapping exists. Every inbound confirmed message
// must pass through Resolve before insertion.
func (r *Reconciler) Resolve(serverID string) string {
	if local, ok := r.byServerID[serverID]; ok {
		return local
	}
	return serverID
}

// AnswerPlaceholderID derives the answer placeholder id from the confirmed
// question id. The transport reserves the id adjacent to the accepted send
// for the answer; that arithmetic lives only here so the convention can be
// replaced with an explicit correlation id without touching the state
// machine.
func AnswerPlaceholderID(serverMessageID int64) string {
	return strconv.FormatInt(serverMessageID+1, 10)
}
