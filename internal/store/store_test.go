package store_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/internal/store"
)

func durable(id string) model.Message {
	return model.Message{
		ID:     id,
		Author: model.Author{Kind: model.AuthorUser},
		Text:   "msg " + id,
	}
}

func banner(id string, tag model.EphemeralTag) model.Message {
	return model.Message{
		ID:        id,
		Author:    model.Author{Kind: model.AuthorSystem},
		Ephemeral: true,
		Tag:       tag,
	}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestInsertDurableDedup(t *testing.T) {
	s := store.New()
	s.InsertDurable(durable("1"))
	s.InsertDurable(durable("2"))
	s.InsertDurable(durable("1")) // re-insert moves it to the head

	require.Equal(t, []string{"1", "2"}, ids(s.Messages()))
}

func TestNoDuplicateIDsEver(t *testing.T) {
	s := store.New()
	for i := 0; i < 3; i++ {
		s.InsertDurable(durable("a"))
		s.InsertDurable(durable("b"))
		s.MergeOlder([]model.Message{durable("a"), durable("c")})
		s.ReplaceLatest([]model.Message{durable("b"), durable("d")})
	}

	seen := map[string]bool{}
	for _, m := range s.Messages() {
		require.Falsef(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
}

func TestInsertDurableStaysBelowEphemerals(t *testing.T) {
	s := store.New()
	s.PinEphemeral(banner("banner", model.TagSendError))
	s.InsertDurable(durable("1"))

	require.Equal(t, []string{"banner", "1"}, ids(s.Messages()))
}

func TestMergeOlderScenario(t *testing.T) {
	// Store holds durable ids [5,4,3] and one ephemeral banner at head.
	// Fetch returns [3,2,1]; final order must be [banner,5,4,3,2,1].
	s := store.New()
	s.InsertDurable(durable("3"))
	s.InsertDurable(durable("4"))
	s.InsertDurable(durable("5"))
	s.PinEphemeral(banner("banner", model.TagRelatedQuestions))

	s.MergeOlder([]model.Message{durable("3"), durable("2"), durable("1")})

	require.Equal(t, []string{"banner", "5", "4", "3", "2", "1"}, ids(s.Messages()))
}

func TestMergeOlderExistingWins(t *testing.T) {
	s := store.New()
	existing := durable("3")
	existing.Text = "reconciled text"
	s.InsertDurable(existing)

	stale := durable("3")
	stale.Text = "stale server copy"
	s.MergeOlder([]model.Message{stale, durable("2")})

	msgs := s.Messages()
	require.Equal(t, []string{"3", "2"}, ids(msgs))
	assert.Equal(t, "reconciled text", msgs[0].Text)
}

func TestEphemeralPinnedAfterAnyMerge(t *testing.T) {
	s := store.New()
	s.InsertDurable(durable("10"))
	s.PinEphemeral(banner("e1", model.TagSendError))
	s.PinEphemeral(banner("e2", model.TagRelatedQuestions))

	s.MergeOlder([]model.Message{durable("9"), durable("8")})
	s.ReplaceLatest([]model.Message{durable("11"), durable("10")})

	msgs := s.Messages()
	inDurables := false
	for _, m := range msgs {
		if !m.Ephemeral {
			inDurables = true
		}
		if inDurables {
			require.Falsef(t, m.Ephemeral, "ephemeral %s below a durable message", m.ID)
		}
	}
	assert.Equal(t, "e2", msgs[0].ID)
	assert.Equal(t, "e1", msgs[1].ID)
}

func TestReplaceLatest(t *testing.T) {
	s := store.New()
	s.InsertDurable(durable("1"))
	s.InsertDurable(durable("2"))

	s.ReplaceLatest([]model.Message{durable("4"), durable("3"), durable("2")})

	require.Equal(t, []string{"4", "3", "2", "1"}, ids(s.Messages()))
}

func TestOldestDurableCursorSkipsEphemerals(t *testing.T) {
	s := store.New()
	_, ok := s.OldestDurableCursor()
	require.False(t, ok)

	s.PinEphemeral(banner("banner", model.TagSendError))
	_, ok = s.OldestDurableCursor()
	require.False(t, ok, "ephemeral messages must not skew the cursor")

	s.InsertDurable(durable("7"))
	s.InsertDurable(durable("8"))
	cursor, ok := s.OldestDurableCursor()
	require.True(t, ok)
	assert.Equal(t, "7", cursor)
}

func TestRemoveByIDAndHead(t *testing.T) {
	s := store.New()
	s.InsertDurable(durable("1"))
	s.InsertDurable(durable("2"))

	require.True(t, s.RemoveByID("1"))
	require.False(t, s.RemoveByID("1"))
	require.Equal(t, []string{"2"}, ids(s.Messages()))

	s.RemoveHead()
	require.Zero(t, s.Len())
	s.RemoveHead() // empty store is a no-op
}

func TestRemoveEphemeralByTag(t *testing.T) {
	s := store.New()
	s.InsertDurable(durable("1"))
	s.PinEphemeral(banner("related", model.TagRelatedQuestions))
	s.PinEphemeral(banner("err", model.TagSendError))

	s.RemoveEphemeral(model.TagRelatedQuestions)

	require.Equal(t, []string{"err", "1"}, ids(s.Messages()))
}

func TestMergeOlderManyPages(t *testing.T) {
	s := store.New()
	s.InsertDurable(durable("100"))
	for page := 0; page < 5; page++ {
		var batch []model.Message
		for i := 0; i < 10; i++ {
			batch = append(batch, durable(fmt.Sprintf("p%d-%d", page, i)))
		}
		s.MergeOlder(batch)
	}
	require.Equal(t, 51, s.Len())
	require.Equal(t, "100", s.Messages()[0].ID)
}
