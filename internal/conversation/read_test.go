package conversation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/conversation"
)

func TestMarkConversationRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.create(t, 1, []int64{2}, nil, strPtr("one"))
	convID := res.Conversation.ID
	_, err := env.svc.SendMessage(ctx, convID, 1, "two")
	require.NoError(t, err)
	_, err = env.svc.SendMessage(ctx, convID, 2, "mine")
	require.NoError(t, err)

	page, err := env.svc.ListConversations(ctx, 2, conversation.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Conversations[0].UnreadCount)

	n, err := env.svc.MarkConversationRead(ctx, convID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = env.svc.MarkConversationRead(ctx, convID, 2)
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err = env.svc.ListConversations(ctx, 2, conversation.ListParams{})
	require.NoError(t, err)
	assert.Zero(t, page.Conversations[0].UnreadCount)

	page, err = env.svc.ListConversations(ctx, 1, conversation.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Conversations[0].UnreadCount)
}

func TestMarkMessagesReadSubset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.create(t, 1, []int64{2, 3}, nil, strPtr("a"))
	convID := res.Conversation.ID
	b, err := env.svc.SendMessage(ctx, convID, 1, "b")
	require.NoError(t, err)
	other := env.create(t, 1, []int64{3}, nil, strPtr("elsewhere"))

	n, err := env.svc.MarkMessagesRead(ctx, convID, 2, []int64{b.ID, other.SeedMessage.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = env.svc.MarkMessagesRead(ctx, convID, 1, []int64{res.SeedMessage.ID})
	require.NoError(t, err)
	assert.Zero(t, n, "own messages are never marked")

	page, err := env.svc.ListConversations(ctx, 3, conversation.ListParams{Search: ""})
	require.NoError(t, err)
	var unread int64
	for _, s := range page.Conversations {
		if s.ID == convID {
			unread = s.UnreadCount
		}
	}
	// the read marker is global, so user 3 sees only the untouched message
	assert.Equal(t, int64(1), unread)
}

func TestMarkReadRequiresParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.create(t, 1, []int64{2}, nil, strPtr("hi"))

	_, err := env.svc.MarkConversationRead(ctx, res.Conversation.ID, 9)
	require.ErrorIs(t, err, conversation.ErrForbidden)
	_, err = env.svc.MarkMessagesRead(ctx, res.Conversation.ID, 9, []int64{res.SeedMessage.ID})
	require.ErrorIs(t, err, conversation.ErrForbidden)
	_, err = env.svc.MarkMessagesRead(ctx, res.Conversation.ID, 2, nil)
	require.ErrorIs(t, err, conversation.ErrValidation)

	stored, err := env.messages.GetMessage(ctx, res.SeedMessage.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ReadAt)
}
