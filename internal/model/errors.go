package model

import (
	"fmt"
)

// TransportError wraps a network or RPC failure. Absorbed at the reducer
// boundary: logged, never surfaced to the message list.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError marks a malformed or unexpected push payload. Logged and
// dropped.
type ProtocolError struct {
	Subject string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: %v", e.Subject, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// SendError is a rejected send. It is the only error class that materializes
// as a visible (ephemeral) message. When Internal is set the server-provided
// detail is suppressed.
type SendError struct {
	Code     string
	Detail   string
	Internal bool
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send rejected: %s", e.Code)
}

// UserText returns the text rendered into the error banner.
func (e *SendError) UserText() string {
	if e.Internal || e.Detail == "" {
		return "Something went wrong sending your message."
	}
	return e.Detail
}
