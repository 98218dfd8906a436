package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateMessageContent validates message content before it reaches the
// engine.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateChatID validates a chat ID.
func ValidateChatID(id string) error {
	if len(id) == 0 {
		return errors.New("chat ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("chat ID exceeds maximum length")
	}
	return nil
}
