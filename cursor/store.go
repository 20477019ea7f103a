// Package cursor persists the "last fully processed block" position for
// each network's listener loop. Loads never fail: an absent or unreadable
// value degrades to the caller-supplied default so a loop can always start.
package cursor

import (
	"context"
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrClosed is returned when operating on a closed store
	ErrClosed = errors.New("cursor store closed")
)

// Store persists per-network block cursors. Implementations must be safe
// for concurrent use by independent network loops; each loop writes only
// its own key.
type Store interface {
	// Load returns the stored cursor for key, or def when the key is
	// absent or its value cannot be parsed. Load never fails.
	Load(ctx context.Context, key string, def uint64) uint64

	// Save persists the cursor. Callers treat failures as best-effort:
	// the error is logged, never propagated into the loop.
	Save(ctx context.Context, key string, value uint64) error

	// Reset overwrites the cursor through the same write path as Save.
	// It is a distinct operation because it forgoes the monotonicity
	// expectation and exists for administrative rewinds.
	Reset(ctx context.Context, key string, value uint64) error

	// Close releases the store's resources
	Close() error
}

// Key returns the cursor key for a network. All of a network's registries
// share one cursor.
func Key(network string) string {
	return fmt.Sprintf("%s_all_contracts", network)
}
