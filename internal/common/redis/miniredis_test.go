package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecomet/ubx/internal/common/config"
	"github.com/edgecomet/ubx/internal/common/logger"
)

// TestClientAgainstMiniredis exercises the Client against an in-process
// miniredis server, so these cases run in CI without a live Redis
// instance the way TestClientBasicOperations above needs one.
func TestClientAgainstMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)

	log, err := logger.NewDefaultLogger()
	require.NoError(t, err)

	client, err := NewClient(&config.RedisConfig{Addr: mr.Addr()}, log.Logger)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "ubx:k", "v", time.Minute))
		v, err := client.Get(ctx, "ubx:k")
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	})

	t.Run("setnx loop guard semantics", func(t *testing.T) {
		keys := NewKeyGenerator()
		key := keys.RemoveparamGuardKey(1, 2, "https://example.com/?utm_source=x")

		acquired, err := client.SetNX(ctx, key, "1", 5*time.Second)
		require.NoError(t, err)
		assert.True(t, acquired, "first CheckAndMark should acquire the guard")

		acquired, err = client.SetNX(ctx, key, "1", 5*time.Second)
		require.NoError(t, err)
		assert.False(t, acquired, "second CheckAndMark within TTL should observe the loop")

		mr.FastForward(6 * time.Second)

		acquired, err = client.SetNX(ctx, key, "1", 5*time.Second)
		require.NoError(t, err)
		assert.True(t, acquired, "guard should expire after its TTL")
	})

	t.Run("snapshot swap publish does not error", func(t *testing.T) {
		keys := NewKeyGenerator()
		err := client.GetClient().Publish(ctx, keys.SnapshotSwapChannel(), "swap").Err()
		assert.NoError(t, err)
	})
}
