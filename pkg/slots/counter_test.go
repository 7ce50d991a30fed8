package slots

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounter(t *testing.T) (*RedisCounter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	counter := NewRedisCounter(client, "")
	t.Cleanup(func() { counter.Close() })
	return counter, mr
}

func TestRedisCounter_HandsOutIncreasingNonces(t *testing.T) {
	counter, _ := newTestCounter(t)
	ctx := context.Background()

	for want := uint64(0); want < 3; want++ {
		got, err := counter.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRedisCounter_UsesDefaultKey(t *testing.T) {
	counter, mr := newTestCounter(t)

	_, err := counter.Next(context.Background())
	require.NoError(t, err)

	value, err := mr.Get(DefaultNonceKey)
	require.NoError(t, err)
	assert.Equal(t, "1", value)
}

func TestRedisCounter_ReportsUnavailableServer(t *testing.T) {
	counter, mr := newTestCounter(t)
	mr.Close()

	_, err := counter.Next(context.Background())
	assert.Error(t, err)
}

func TestRedisCounter_HintFeedsSubmit(t *testing.T) {
	counter, mr := newTestCounter(t)
	mr.Set(DefaultNonceKey, "4")
	store := NewStore(t.TempDir(), createLogger())

	hint, err := counter.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), hint)

	nonce, err := store.Submit(hint, &Request{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), nonce)
}
