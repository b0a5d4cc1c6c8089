package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisCacheGetSet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestRedisCacheDel(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	n, err := c.Del(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	n, err = c.Del(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRedisCacheDeleteByPrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < scanBatch+25; i++ {
		require.NoError(t, c.Set(ctx, "conversations:user:1:page:"+time.Duration(i).String(), "x", time.Minute))
	}
	require.NoError(t, c.Set(ctx, "conversations:user:12:page:1", "keep", time.Minute))
	require.NoError(t, c.Set(ctx, "conversation:5:detail", "keep", time.Minute))

	n, err := c.DeleteByPrefix(ctx, "conversations:user:1:")
	require.NoError(t, err)
	assert.Equal(t, int64(scanBatch+25), n)

	assert.True(t, mr.Exists("conversations:user:12:page:1"))
	assert.True(t, mr.Exists("conversation:5:detail"))

	_, err = c.DeleteByPrefix(ctx, "")
	require.Error(t, err)
}

func TestRedisCacheDeleteByPrefixEscapesGlob(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k[1]:a", "x", 0))
	require.NoError(t, c.Set(ctx, "k1:a", "x", 0))

	n, err := c.DeleteByPrefix(ctx, "k[1]:")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, mr.Exists("k1:a"))
}

func TestRedisCachePing(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))
	mr.Close()
	require.Error(t, c.Ping(context.Background()))
}
