package cursor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "fuji_all_contracts", Key("fuji"))
	assert.Equal(t, "sepolia_all_contracts", Key("sepolia"))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	key := Key("fuji")

	assert.Equal(t, uint64(99), store.Load(ctx, key, 99))

	require.NoError(t, store.Save(ctx, key, 42))
	assert.Equal(t, uint64(42), store.Load(ctx, key, 0))

	require.NoError(t, store.Reset(ctx, key, 7))
	assert.Equal(t, uint64(7), store.Load(ctx, key, 0))

	require.NoError(t, store.Close())
}

func TestMemoryStoreConcurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Independent network loops write distinct keys concurrently
	var wg sync.WaitGroup
	networks := []string{"fuji", "sepolia", "mainnet", "base"}
	for _, network := range networks {
		wg.Add(1)
		go func(network string) {
			defer wg.Done()
			key := Key(network)
			for i := uint64(1); i <= 100; i++ {
				_ = store.Save(ctx, key, i)
			}
		}(network)
	}
	wg.Wait()

	for _, network := range networks {
		assert.Equal(t, uint64(100), store.Load(ctx, Key(network), 0))
	}
}
