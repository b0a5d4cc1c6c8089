package conversation_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/cache"
	"conversation-service/internal/conversation"
	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
)

func TestListConversationsIsCachedAndInvalidated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.create(t, 1, []int64{2}, nil, strPtr("hi"))
	key := conversation.ListKey(2, conversation.ListParams{})

	page, err := env.svc.ListConversations(ctx, 2, conversation.ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	require.True(t, env.redis.Exists(key))

	raw, err := env.redis.Get(key)
	require.NoError(t, err)
	var cached models.ConversationPage
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, int64(1), cached.Total)
	assert.Equal(t, res.Conversation.ID, cached.Conversations[0].ID)

	_, err = env.svc.SendMessage(ctx, res.Conversation.ID, 1, "again")
	require.NoError(t, err)
	assert.False(t, env.redis.Exists(key))

	page, err = env.svc.ListConversations(ctx, 2, conversation.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, "again", page.Conversations[0].LastMessage.Body)
	assert.Equal(t, int64(2), page.Conversations[0].UnreadCount)
	assert.True(t, env.redis.Exists(key))
}

func TestCreateInvalidatesEveryCachedPage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cachedPages := func() int {
		n := 0
		for _, k := range env.redis.Keys() {
			if strings.HasPrefix(k, "conversations:user:1:") {
				n++
			}
		}
		return n
	}

	for i := 0; i < 250; i++ {
		_, err := env.svc.ListConversations(ctx, 1, conversation.ListParams{Search: fmt.Sprintf("term-%d", i)})
		require.NoError(t, err)
	}
	require.Equal(t, 250, cachedPages())

	env.create(t, 1, []int64{2}, nil, nil)
	assert.Zero(t, cachedPages())
}

func TestListConversationsServesFromCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	key := conversation.ListKey(5, conversation.ListParams{})

	stale := models.ConversationPage{
		Conversations: []models.ConversationSummary{{ID: 77, IsDirect: true}},
		Total:         1,
		Page:          1,
		Limit:         20,
	}
	payload, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, env.redis.Set(key, string(payload)))

	page, err := env.svc.ListConversations(ctx, 5, conversation.ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	assert.Equal(t, int64(77), page.Conversations[0].ID)
}

func TestListConversationsOrderingSearchAndPaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alpha := env.create(t, 1, []int64{2, 3}, strPtr("Alpha Team"), nil)
	beta := env.create(t, 1, []int64{2, 4}, strPtr("beta"), nil)
	direct := env.create(t, 1, []int64{2}, nil, nil)

	_, err := env.svc.SendMessage(ctx, alpha.Conversation.ID, 3, "bump")
	require.NoError(t, err)

	page, err := env.svc.ListConversations(ctx, 2, conversation.ListParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Conversations, 2)
	assert.Equal(t, alpha.Conversation.ID, page.Conversations[0].ID)
	assert.Equal(t, direct.Conversation.ID, page.Conversations[1].ID)
	assert.Equal(t, []int64{1, 2, 3}, page.Conversations[0].ParticipantIDs)
	assert.True(t, page.Conversations[1].IsDirect)
	assert.Nil(t, page.Conversations[1].LastMessage)

	page, err = env.svc.ListConversations(ctx, 2, conversation.ListParams{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	assert.Equal(t, beta.Conversation.ID, page.Conversations[0].ID)

	page, err = env.svc.ListConversations(ctx, 2, conversation.ListParams{Search: "TEAM"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Conversations, 1)
	assert.Equal(t, alpha.Conversation.ID, page.Conversations[0].ID)

	page, err = env.svc.ListConversations(ctx, 9, conversation.ListParams{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Conversations)
	assert.Empty(t, page.Conversations)
}

func TestInvalidationFailureDoesNotFailWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.create(t, 1, []int64{2}, nil, nil)

	broken := new(mocks.CacheMock)
	broken.On("DeleteByPrefix", mock.Anything, mock.Anything).Return(int64(0), errors.New("redis unavailable"))
	svc := env.newService(broken, env.conversations)

	view, err := svc.SendMessage(ctx, res.Conversation.ID, 1, "still delivered")
	require.NoError(t, err)
	assert.Equal(t, "still delivered", view.Body)
	assert.Equal(t, 1, env.count(t, "messages"))

	n, err := svc.MarkConversationRead(ctx, res.Conversation.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	broken.AssertCalled(t, "DeleteByPrefix", mock.Anything, "conversations:user:1:")
	broken.AssertCalled(t, "DeleteByPrefix", mock.Anything, "conversations:user:2:")
	broken.AssertCalled(t, "DeleteByPrefix", mock.Anything, fmt.Sprintf("conversation:%d:", res.Conversation.ID))
}

func TestCacheFaultsDegradeToStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.create(t, 1, []int64{2}, nil, strPtr("hi"))

	broken := new(mocks.CacheMock)
	broken.On("Get", mock.Anything, mock.Anything).Return("", errors.New("redis unavailable"))
	broken.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis unavailable"))
	svc := env.newService(broken, env.conversations)

	page, err := svc.ListConversations(ctx, 1, conversation.ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	assert.Equal(t, res.Conversation.ID, page.Conversations[0].ID)

	msgs, err := svc.ListMessages(ctx, res.Conversation.ID, 2, 1, 20)
	require.NoError(t, err)
	require.Len(t, msgs.Messages, 1)
}

func TestUndecodableCacheEntryIsReplaced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, 1, []int64{2}, nil, nil)
	key := conversation.ListKey(1, conversation.ListParams{})
	require.NoError(t, env.redis.Set(key, "{not json"))

	page, err := env.svc.ListConversations(ctx, 1, conversation.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	raw, err := env.cache.Get(ctx, key)
	require.NoError(t, err)
	assert.NotEqual(t, "{not json", raw)
}

func TestGetConversationDetail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.create(t, 3, []int64{1, 2}, strPtr("Crew"), nil)

	detail, err := env.svc.GetConversation(ctx, res.Conversation.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, detail.ParticipantIDs)
	assert.False(t, detail.IsDirect)
	assert.True(t, env.redis.Exists(conversation.DetailKey(res.Conversation.ID)))

	_, err = env.svc.GetConversation(ctx, res.Conversation.ID, 9)
	require.ErrorIs(t, err, conversation.ErrForbidden)
	_, err = env.svc.GetConversation(ctx, 404, 1)
	require.ErrorIs(t, err, conversation.ErrForbidden)
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.create(t, 1, []int64{2}, nil, nil)

	_, err := env.svc.SendMessage(ctx, res.Conversation.ID, 1, "   ")
	require.ErrorIs(t, err, conversation.ErrValidation)
	_, err = env.svc.SendMessage(ctx, res.Conversation.ID, 3, "intruder")
	require.ErrorIs(t, err, conversation.ErrForbidden)
	assert.Equal(t, 0, env.count(t, "messages"))
}

func TestCoordinatorWithoutCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, 1, []int64{2}, nil, nil)

	coordinator := conversation.NewCoordinator(nil, env.conversations, env.messages, 0, zerolog.Nop())
	coordinator.Invalidate(ctx, []int64{1, 2}, nil)
	page, err := coordinator.ListConversations(ctx, 1, conversation.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = env.cache.Get(ctx, conversation.ListKey(1, conversation.ListParams{}))
	require.ErrorIs(t, err, cache.ErrMiss)
}
