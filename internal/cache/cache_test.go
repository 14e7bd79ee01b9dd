package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
)

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "purchase_orders:1", []byte("a"), 0))
	require.NoError(t, store.Set(ctx, "purchase_orders:2", []byte("b"), 10*time.Second))

	now = now.Add(30 * time.Second)
	got, err := store.Get(ctx, "purchase_orders:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	_, err = store.Get(ctx, "purchase_orders:2")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, "purchase_orders:1"))
	_, err = store.Get(ctx, "purchase_orders:1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.Error(t, store.Set(ctx, "", []byte("x"), 0))
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	value := []byte("draft")

	require.NoError(t, store.Set(ctx, "k", value, 0))
	value[0] = 'X'
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "draft", string(got))
}

func TestNewStoreDrivers(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	var cfg config.Config

	for driver, want := range map[string]any{"noop": noopStore{}, "memory": &MemoryStore{}} {
		cfg.Cache.Driver = driver
		store, err := NewStore(lc, cfg, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, want, store)
	}

	cfg.Cache.Driver = "memcached"
	_, err := NewStore(lc, cfg, zap.NewNop())
	assert.Error(t, err)

	assert.Equal(t, "procura:purchase_orders:1", namespaced("purchase_orders:1"))
}
