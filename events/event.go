// Package events holds the event model shared by the fetch and listener
// layers: raw decoded logs, their dedup identities, the in-run dedup
// window and the per-network contract registry.
package events

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// RawLogEvent is one decoded contract event as observed on a network.
// It is produced by the log fetcher and handed to a handler; it is not
// retained after dispatch.
type RawLogEvent struct {
	// Network is the network identifier the event was observed on
	Network string

	// Contract is the emitting contract's address
	Contract common.Address

	// ContractName is the registry name of the emitting contract
	ContractName string

	// Name is the event name from the contract ABI
	Name string

	// Args holds the decoded event arguments, indexed and non-indexed
	Args map[string]interface{}

	// TxHash is the hash of the transaction that emitted the event
	TxHash common.Hash

	// LogIndex is the log's index within its block
	LogIndex uint

	// BlockNumber is the block the event was emitted in
	BlockNumber uint64
}

// Identity returns the event's dedup identity
func (e *RawLogEvent) Identity() Identity {
	return Identity{
		Network:  e.Network,
		TxHash:   e.TxHash,
		LogIndex: e.LogIndex,
	}
}

// Identity uniquely identifies one emitted log within a network's history.
// It exists only for in-run dedup membership tests and is never persisted:
// crash recovery is the cursor's job, not the window's.
type Identity struct {
	Network  string
	TxHash   common.Hash
	LogIndex uint
}

// String renders the identity for log output
func (id Identity) String() string {
	return fmt.Sprintf("%s/%s/%d", id.Network, id.TxHash.Hex(), id.LogIndex)
}

// OffchainStore is the downstream store boundary a handler applies its
// effect to. Implementations must be idempotent with respect to the event
// identity: the dedup window does not survive restarts, so an event may be
// redelivered across runs.
type OffchainStore interface {
	SaveEvent(ctx context.Context, ev *RawLogEvent) error
}

// HandlerFn applies one event's effect to the offchain store. Handlers are
// registered per event name and invoked synchronously on the listener
// loop's own goroutine; a handler error aborts the current sweep.
type HandlerFn func(ctx context.Context, ev *RawLogEvent, store OffchainStore) error

// PersistHandler is the default handler: it records the event in the
// offchain store as-is.
func PersistHandler(ctx context.Context, ev *RawLogEvent, store OffchainStore) error {
	if err := store.SaveEvent(ctx, ev); err != nil {
		return fmt.Errorf("failed to persist event %s: %w", ev.Identity(), err)
	}
	return nil
}
