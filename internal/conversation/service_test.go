package conversation_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/cache"
	"conversation-service/internal/conversation"
	"conversation-service/internal/db"
	"conversation-service/internal/mocks"
	"conversation-service/internal/repositories"
)

type testEnv struct {
	db            *sqlx.DB
	conversations *repositories.ConversationRepo
	messages      *repositories.MessageRepo
	redis         *miniredis.Miniredis
	cache         *cache.RedisCache
	events        *mocks.EventPublisherMock
	svc           *conversation.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	database, err := db.Connect(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, database, zerolog.Nop()))
	t.Cleanup(func() { database.Close() })

	mr := miniredis.RunT(t)
	redisCache := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { redisCache.Close() })

	env := &testEnv{
		db:            database,
		conversations: repositories.NewConversationRepo(database),
		messages:      repositories.NewMessageRepo(database),
		redis:         mr,
		cache:         redisCache,
		events:        new(mocks.EventPublisherMock),
	}
	env.events.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	env.svc = env.newService(redisCache, env.conversations)
	return env
}

func (e *testEnv) newService(c cache.Cache, conversations repositories.ConversationRepository) *conversation.Service {
	coordinator := conversation.NewCoordinator(c, conversations, e.messages, time.Minute, zerolog.Nop())
	return conversation.NewService(conversations, e.messages, coordinator, zerolog.Nop(),
		conversation.WithClock(steppingClock()),
		conversation.WithEventPublisher(e.events),
	)
}

// steppingClock advances one second per call so writes are strictly ordered.
func steppingClock() func() time.Time {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func (e *testEnv) create(t *testing.T, requester int64, participants []int64, title, seed *string) conversation.CreateResult {
	t.Helper()
	res, err := e.svc.CreateOrGetConversation(context.Background(), conversation.CreateConversationInput{
		RequesterID:    requester,
		ParticipantIDs: participants,
		Title:          title,
		SeedMessage:    seed,
	})
	require.NoError(t, err)
	return res
}

func strPtr(s string) *string { return &s }
