package cache

import (
	"testing"
	"time"

	"github.com/salonsuite/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewFactory_Defaults(t *testing.T) {
	f := NewFactory(config.RedisConfig{})

	assert.NotNil(t, f.logger)
	assert.True(t, f.allowInMemoryFallback)
}

func TestFactory_CreateIdempotencyStore_RedisDisabled(t *testing.T) {
	f := NewFactory(config.RedisConfig{Enabled: false}, WithLogger(zap.NewNop()))

	store, err := f.CreateIdempotencyStore()
	require.NoError(t, err)

	_, ok := store.(*InMemoryIdempotencyStore)
	assert.True(t, ok, "disabled Redis should yield the in-memory store")
}

func TestFactory_CreateIdempotencyStore_RedisDisabledIgnoresFallbackPolicy(t *testing.T) {
	// The fallback policy only applies when Redis is wanted but unreachable.
	// Explicitly disabled Redis always yields the in-memory store.
	f := NewFactory(config.RedisConfig{Enabled: false}, WithInMemoryFallback(false))

	store, err := f.CreateIdempotencyStore()
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestFactory_CreateLevelCache_RedisDisabled(t *testing.T) {
	f := NewFactory(config.RedisConfig{Enabled: false},
		WithCacheTTL(30*time.Second),
	)

	lc := f.CreateLevelCache()
	defer lc.Close()

	_, ok := lc.(*InMemoryLevelCache)
	assert.True(t, ok, "disabled Redis should yield the in-memory cache")
}
