// Package model defines data structures for the chat session engine.
package model

import (
	"encoding/json"
)

// AuthorKind identifies who produced a message.
type AuthorKind string

const (
	AuthorUser      AuthorKind = "user"
	AuthorAssistant AuthorKind = "assistant"
	AuthorSystem    AuthorKind = "system"
	// AuthorPending marks a locally created placeholder whose server-side
	// author confirmation has not arrived yet.
	AuthorPending AuthorKind = "pending"
)

// Author describes the sender of a message.
type Author struct {
	Kind   AuthorKind `json:"kind"`
	UserID string     `json:"user_id,omitempty"`
	// Token correlates a pending placeholder with its eventual confirmation.
	Token string `json:"token,omitempty"`
}

// EphemeralTag classifies locally synthesized, non-persisted messages.
type EphemeralTag string

const (
	TagRelatedQuestions EphemeralTag = "related_questions"
	TagSendError        EphemeralTag = "send_error"
)

// Message is one entry in the session's ordered message list.
//
// Durable messages are (or will be) persisted server-side and survive
// pagination merges. Ephemeral messages are UI artifacts pinned at the head
// of the list and excluded from pagination cursors.
type Message struct {
	ID             string          `json:"id"`
	Author         Author          `json:"author"`
	Text           string          `json:"text"`
	CreatedAtMillis int64          `json:"created_at_millis"`
	Ephemeral      bool            `json:"ephemeral,omitempty"`
	Tag            EphemeralTag    `json:"tag,omitempty"`
	RefMetadata    json.RawMessage `json:"ref_metadata,omitempty"`
}

// RawMessage is the wire form of a server-confirmed message, before identity
// reconciliation rewrites its id.
type RawMessage struct {
	ID              string          `json:"id"`
	AuthorRole      string          `json:"author_role"`
	AuthorUserID    string          `json:"author_user_id,omitempty"`
	Text            string          `json:"text"`
	CreatedAtMillis int64           `json:"created_at_millis"`
	RefMetadata     json.RawMessage `json:"ref_metadata,omitempty"`
}

// RelatedQuestion is a follow-up suggestion fetched after a completed turn.
type RelatedQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
