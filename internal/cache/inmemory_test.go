package cache

import (
	"context"
	"testing"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/config"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/stretchr/testify/assert"
)

func newTestCache(enabled bool) Cache {
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = enabled
	cfg.Cache.TTL = time.Minute
	return NewInMemoryCache(cfg, logger.NewNoopLogger())
}

func TestInMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(true)

	key := GenerateKey(PrefixSettings, "fl_1")
	assert.Equal(t, "settings:v1::fl_1", key)

	c.Set(ctx, key, "value", 0)
	v, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	c.Delete(ctx, key)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
}

func TestInMemoryCache_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(true)

	c.Set(ctx, GenerateKey(PrefixSettings, "a"), 1, 0)
	c.Set(ctx, GenerateKey(PrefixSettings, "b"), 2, 0)
	c.Set(ctx, GenerateKey(PrefixService, "a"), 3, 0)

	c.DeleteByPrefix(ctx, PrefixSettings)

	_, ok := c.Get(ctx, GenerateKey(PrefixSettings, "a"))
	assert.False(t, ok)
	_, ok = c.Get(ctx, GenerateKey(PrefixSettings, "b"))
	assert.False(t, ok)
	_, ok = c.Get(ctx, GenerateKey(PrefixService, "a"))
	assert.True(t, ok)
}

func TestInMemoryCache_Disabled(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(false)

	c.Set(ctx, "k", "v", 0)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
