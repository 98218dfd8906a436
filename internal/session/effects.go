package session

import (
	"encoding/json"

	"github.com/capitalize-ai/chat-session-engine/internal/stream"
)

// Effect is a side-effect descriptor returned by Apply. All I/O stays out of
// the transition function; the engine executes effects and feeds their
// completions back in as events.
type Effect interface {
	effectName() string
}

// FetchLatestEffect issues the fetch-latest RPC.
type FetchLatestEffect struct {
	Limit int
}

// FetchOlderEffect issues the fetch-older RPC. BeforeID is empty when the
// store holds no durable message yet.
type FetchOlderEffect struct {
	BeforeID string
	Limit    int
}

// SendEffect issues the send RPC with the freshly opened stream handle.
type SendEffect struct {
	PlaceholderID string
	Text          string
	Metadata      json.RawMessage
	Handle        *stream.Handle
}

// StopStreamEffect issues the best-effort stop RPC.
type StopStreamEffect struct{}

// FetchRelatedEffect issues the related-questions fetch for a completed turn.
type FetchRelatedEffect struct {
	MessageID string
}

func (FetchLatestEffect) effectName() string  { return "fetch_latest" }
func (FetchOlderEffect) effectName() string   { return "fetch_older" }
func (SendEffect) effectName() string         { return "send" }
func (StopStreamEffect) effectName() string   { return "stop_stream" }
func (FetchRelatedEffect) effectName() string { return "fetch_related" }
