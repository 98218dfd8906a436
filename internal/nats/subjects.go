package nats

import (
	"fmt"
)

// SubjectPrefix is the prefix for all chat subjects.
const SubjectPrefix = "chat"

// SendSubject is the request/reply subject for submitting a message.
func SendSubject(chatID string) string {
	return fmt.Sprintf("%s.%s.send", SubjectPrefix, chatID)
}

// StopSubject is the request/reply subject for stopping the answer stream.
func StopSubject(chatID string) string {
	return fmt.Sprintf("%s.%s.stop", SubjectPrefix, chatID)
}

// LatestSubject is the request/reply subject for the latest history page.
func LatestSubject(chatID string) string {
	return fmt.Sprintf("%s.%s.history.latest", SubjectPrefix, chatID)
}

// OlderSubject is the request/reply subject for older history pages.
func OlderSubject(chatID string) string {
	return fmt.Sprintf("%s.%s.history.older", SubjectPrefix, chatID)
}

// RelatedSubject is the request/reply subject for related questions.
func RelatedSubject(chatID string) string {
	return fmt.Sprintf("%s.%s.related", SubjectPrefix, chatID)
}

// PushSubject is the wildcard subscription covering all push events for a
// chat.
func PushSubject(chatID string) string {
	return fmt.Sprintf("%s.%s.push.>", SubjectPrefix, chatID)
}

// StreamAnswerSubject carries streamed answer frames for one send, keyed by
// the stream handle token.
func StreamAnswerSubject(chatID, streamToken string) string {
	return fmt.Sprintf("%s.%s.stream.%s.out", SubjectPrefix, chatID, streamToken)
}

// StreamQuestionSubject carries outbound question frames for one send.
func StreamQuestionSubject(chatID, streamToken string) string {
	return fmt.Sprintf("%s.%s.stream.%s.in", SubjectPrefix, chatID, streamToken)
}

// Push event suffixes, the last token of a push subject.
const (
	PushKindMessage  = "msg"
	PushKindError    = "error"
	PushKindLatest   = "latest"
	PushKindOlder    = "older"
	PushKindFinished = "done"
)
