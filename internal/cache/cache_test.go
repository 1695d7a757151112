package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache_Disabled_IsAlwaysANoop(t *testing.T) {
	c, err := NewCache(Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, c.IsEnabled())

	ctx := context.Background()
	assert.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	assert.Error(t, c.Get(ctx, "k", new(string)))

	exists, err := c.Exists(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.DeletePattern(ctx, "k:*"))
	assert.NoError(t, c.Expire(ctx, "k", time.Minute))
	assert.NoError(t, c.Close())

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "false", stats["enabled"])
}

func TestRequestKey_IsStableAndOrderSensitive(t *testing.T) {
	a := RequestKey("search", "spotify", "hello")
	b := RequestKey("search", "spotify", "hello")
	assert.Equal(t, a, b)

	c := RequestKey("search", "hello", "spotify")
	assert.NotEqual(t, a, c)
}

func TestRequestKey_DifferentMethodsNeverCollide(t *testing.T) {
	a := RequestKey("search", "x")
	b := RequestKey("get_lyrics", "x")
	assert.NotEqual(t, a, b)
}

func TestRequestPattern_MatchesRequestKeyPrefix(t *testing.T) {
	key := RequestKey("search", "spotify", "hello")
	pattern := RequestPattern("search")
	prefix := pattern[:len(pattern)-1]
	assert.True(t, len(key) >= len(prefix) && key[:len(prefix)] == prefix)
}
