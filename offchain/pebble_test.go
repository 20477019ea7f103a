package offchain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwadesk/chainlistener/events"
)

func setupStore(t *testing.T) *PebbleStore {
	t.Helper()

	store, err := NewPebbleStore(&PebbleConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func testEvent(block uint64) *events.RawLogEvent {
	return &events.RawLogEvent{
		Network:      "fuji",
		Contract:     common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		ContractName: "RWADesk",
		Name:         "PostProof",
		Args:         map[string]interface{}{"proofId": "777"},
		TxHash:       common.BytesToHash([]byte{0xab}),
		LogIndex:     2,
		BlockNumber:  block,
	}
}

func TestNewPebbleStore(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewPebbleStore(nil)
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := NewPebbleStore(&PebbleConfig{})
		assert.Error(t, err)
	})
}

func TestSaveAndGetEvent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ev := testEvent(50)

	require.NoError(t, store.SaveEvent(ctx, ev))

	got, err := store.GetEvent(ctx, ev.Identity())
	require.NoError(t, err)

	assert.Equal(t, "fuji", got.Network)
	assert.Equal(t, "RWADesk", got.ContractName)
	assert.Equal(t, "PostProof", got.Name)
	assert.Equal(t, ev.TxHash, got.TxHash)
	assert.Equal(t, uint(2), got.LogIndex)
	assert.Equal(t, uint64(50), got.BlockNumber)
	assert.False(t, got.StoredAt.IsZero())
}

func TestSaveEventIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ev := testEvent(50)

	require.NoError(t, store.SaveEvent(ctx, ev))
	// Redelivery of the same identity overwrites, never duplicates
	require.NoError(t, store.SaveEvent(ctx, ev))

	got, err := store.GetEvent(ctx, ev.Identity())
	require.NoError(t, err)
	assert.Equal(t, uint64(50), got.BlockNumber)
}

func TestGetEventNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetEvent(context.Background(), events.Identity{
		Network: "fuji",
		TxHash:  common.BytesToHash([]byte{0x01}),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClosedStore(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.SaveEvent(context.Background(), testEvent(1)), ErrClosed)
	_, err := store.GetEvent(context.Background(), testEvent(1).Identity())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPersistHandler(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ev := testEvent(50)

	require.NoError(t, events.PersistHandler(ctx, ev, store))

	_, err := store.GetEvent(ctx, ev.Identity())
	assert.NoError(t, err)
}
