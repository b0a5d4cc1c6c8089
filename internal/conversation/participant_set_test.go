package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/models"
)

func TestParticipantSetDedupesAndSorts(t *testing.T) {
	set := NewParticipantSet(5, 1, 3, 1, 5)
	require.Equal(t, 3, set.Len())
	assert.Equal(t, []int64{1, 3, 5}, set.IDs())
	assert.True(t, set.Contains(3))
	assert.False(t, set.Contains(2))
}

func TestParticipantSetIDsReturnsCopy(t *testing.T) {
	set := NewParticipantSet(1, 2)
	ids := set.IDs()
	ids[0] = 99
	assert.Equal(t, []int64{1, 2}, set.IDs())
}

func TestParticipantSetEqual(t *testing.T) {
	assert.True(t, NewParticipantSet(1, 2, 3).Equal(NewParticipantSet(3, 2, 1)))
	assert.False(t, NewParticipantSet(1, 2).Equal(NewParticipantSet(1, 2, 3)))
	assert.False(t, NewParticipantSet(1, 2, 4).Equal(NewParticipantSet(1, 2, 3)))
	assert.True(t, NewParticipantSet().Equal(NewParticipantSet()))
}

func TestParticipantSetFingerprint(t *testing.T) {
	set := NewParticipantSet(20, 3)
	assert.Equal(t, "d:3,20", set.Fingerprint(true))
	assert.Equal(t, "g:3,20", set.Fingerprint(false))
	assert.Equal(t, set.Fingerprint(false), NewParticipantSet(3, 20, 3).Fingerprint(false))
}

func TestProject(t *testing.T) {
	all := models.RecallScopeAll
	active := models.Message{ID: 1, ConversationID: 2, SenderID: 3, Body: "hi"}
	recalled := active
	recalled.Body = RecalledPlaceholder
	recalled.IsRecalled = true
	recalled.RecallScope = &all

	view := Project(active)
	assert.Equal(t, "hi", view.Body)
	assert.Equal(t, models.VisibilityVisible, view.Visibility)

	view = Project(recalled)
	assert.Equal(t, RecalledPlaceholder, view.Body)
	assert.Equal(t, models.VisibilityRecalled, view.Visibility)

	// the placeholder wins even if the stored body was never rewritten
	recalled.Body = "hi"
	assert.Equal(t, RecalledPlaceholder, Project(recalled).Body)
}

func TestListKeysNormalizeParams(t *testing.T) {
	assert.Equal(t, "conversations:user:7:page:1:limit:20:search:", ListKey(7, ListParams{}))
	assert.Equal(t, "conversations:user:7:page:2:limit:100:search:team+a", ListKey(7, ListParams{Page: 2, Limit: 500, Search: "  Team A "}))
	assert.Equal(t, "conversation:4:detail", DetailKey(4))
	assert.Equal(t, "conversation:4:messages:user:7:page:1:limit:20", MessagesKey(4, 7, 0, 0))
}
