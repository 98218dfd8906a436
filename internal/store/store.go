// Package store holds the ordered in-memory message list for one session.
//
// The list is newest-first. Ephemeral messages are always kept at the head,
// ahead of every durable message, and never participate in pagination merges
// or cursor computation. Ids are unique at any instant; inserts remove any
// existing record with the same id first.
package store

import (
	"github.com/capitalize-ai/chat-session-engine/internal/model"
)

// Store is mutated only from the session reducer goroutine.
type Store struct {
	messages []model.Message
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Len returns the number of messages, ephemeral included.
func (s *Store) Len() int {
	return len(s.messages)
}

// Messages returns a copy of the list, newest first.
func (s *Store) Messages() []model.Message {
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ephemeralHead returns the index of the first durable message, which is also
// the length of the leading ephemeral run.
func (s *Store) ephemeralHead() int {
	for i, m := range s.messages {
		if !m.Ephemeral {
			return i
		}
	}
	return len(s.messages)
}

// InsertDurable removes any message with the same id, then inserts msg as the
// newest durable entry, directly below the pinned ephemeral run.
func (s *Store) InsertDurable(msg model.Message) {
	msg.Ephemeral = false
	s.RemoveByID(msg.ID)
	at := s.ephemeralHead()
	s.messages = append(s.messages, model.Message{})
	copy(s.messages[at+1:], s.messages[at:])
	s.messages[at] = msg
}

// PinEphemeral removes any message with the same id, then pins msg at the
// absolute head of the list.
func (s *Store) PinEphemeral(msg model.Message) {
	msg.Ephemeral = true
	s.RemoveByID(msg.ID)
	s.messages = append([]model.Message{msg}, s.messages...)
}

// RemoveByID removes the message with the given id, reporting whether one
// was present.
func (s *Store) RemoveByID(id string) bool {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveHead removes the newest message, ephemeral or durable.
func (s *Store) RemoveHead() {
	if len(s.messages) > 0 {
		s.messages = s.messages[1:]
	}
}

// RemoveEphemeral removes every ephemeral message carrying the given tag.
func (s *Store) RemoveEphemeral(tag model.EphemeralTag) {
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.Ephemeral && m.Tag == tag {
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
}

// MergeOlder set-unions an older page into the list. Current durable records
// win on duplicate ids (they already reflect authoritative, reconciled
// state); new entries are appended in their incoming order. The ephemeral
// run is re-pinned at the head.
func (s *Store) MergeOlder(older []model.Message) {
	s.merge(nil, older)
}

// ReplaceLatest refreshes the newest end of the list with a latest batch,
// using the same union policy as MergeOlder: existing records win on
// duplicate ids, ephemerals stay pinned. Existing durables absent from the
// batch are kept below it.
func (s *Store) ReplaceLatest(latest []model.Message) {
	s.merge(latest, nil)
}

func (s *Store) merge(newer, older []model.Message) {
	seen := make(map[string]int, len(s.messages))
	var ephemeral, durable []model.Message
	for _, m := range s.messages {
		if m.Ephemeral {
			ephemeral = append(ephemeral, m)
			continue
		}
		seen[m.ID] = len(durable)
		durable = append(durable, m)
	}

	merged := make([]model.Message, 0, len(durable)+len(newer)+len(older))
	taken := make(map[string]bool, len(seen))
	for _, m := range newer {
		m.Ephemeral = false
		if i, ok := seen[m.ID]; ok {
			m = durable[i]
		}
		if !taken[m.ID] {
			taken[m.ID] = true
			merged = append(merged, m)
		}
	}
	for _, m := range durable {
		if !taken[m.ID] {
			taken[m.ID] = true
			merged = append(merged, m)
		}
	}
	for _, m := range older {
		m.Ephemeral = false
		if !taken[m.ID] {
			taken[m.ID] = true
			merged = append(merged, m)
		}
	}

	s.messages = append(ephemeral, merged...)
}

// OldestDurableCursor returns the id of the oldest durable message, used as
// the pagination boundary. Ephemeral messages never skew the cursor.
func (s *Store) OldestDurableCursor() (string, bool) {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if !s.messages[i].Ephemeral {
			return s.messages[i].ID, true
		}
	}
	return "", false
}
