package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func identityAt(network string, n byte, index uint) Identity {
	return Identity{
		Network:  network,
		TxHash:   common.BytesToHash([]byte{n}),
		LogIndex: index,
	}
}

func TestWindowAdmitOnce(t *testing.T) {
	w := NewWindow(0)
	id := identityAt("fuji", 1, 2)

	assert.True(t, w.Admit(id, 50))
	assert.False(t, w.Admit(id, 50), "second admit of the same identity must be rejected")
	assert.True(t, w.Seen(id))
	assert.Equal(t, 1, w.Len())
}

func TestWindowDistinctIdentities(t *testing.T) {
	w := NewWindow(0)

	// Same tx hash, different log index
	assert.True(t, w.Admit(identityAt("fuji", 1, 0), 50))
	assert.True(t, w.Admit(identityAt("fuji", 1, 1), 50))

	// Same tx hash and index, different network
	assert.True(t, w.Admit(identityAt("sepolia", 1, 0), 50))

	assert.Equal(t, 3, w.Len())
}

func TestWindowUnboundedNeverCompacts(t *testing.T) {
	w := NewWindow(0)
	w.Admit(identityAt("fuji", 1, 0), 10)

	w.Compact(1_000_000)
	assert.Equal(t, 1, w.Len())
}

func TestWindowCompact(t *testing.T) {
	w := NewWindow(100)
	old := identityAt("fuji", 1, 0)
	recent := identityAt("fuji", 2, 0)

	w.Admit(old, 50)
	w.Admit(recent, 450)

	// Horizon is 500-100=400: evicts the block-50 entry only
	w.Compact(500)

	assert.False(t, w.Seen(old))
	assert.True(t, w.Seen(recent))

	// Evicted identities are admitted again; across-run dedup is the
	// offchain store's responsibility, not the window's.
	assert.True(t, w.Admit(old, 510))
}

func TestWindowCompactBelowRetention(t *testing.T) {
	w := NewWindow(100)
	w.Admit(identityAt("fuji", 1, 0), 10)

	// Cursor has not yet moved past the retention span
	w.Compact(90)
	assert.Equal(t, 1, w.Len())
}
