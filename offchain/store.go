// Package offchain is the downstream side of event dispatch: handlers
// apply each event's effect here. Records are keyed by event identity,
// so a redelivered event overwrites itself. The listener relies on that
// idempotence across restarts.
package offchain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rwadesk/chainlistener/events"
)

// Common errors
var (
	// ErrNotFound is returned when an event record does not exist
	ErrNotFound = errors.New("event not found")

	// ErrClosed is returned when operating on a closed store
	ErrClosed = errors.New("offchain store closed")
)

// StoredEvent is the persisted form of a dispatched event
type StoredEvent struct {
	Network      string                 `json:"network"`
	Contract     common.Address         `json:"contract"`
	ContractName string                 `json:"contractName"`
	Name         string                 `json:"name"`
	Args         map[string]interface{} `json:"args"`
	TxHash       common.Hash            `json:"txHash"`
	LogIndex     uint                   `json:"logIndex"`
	BlockNumber  uint64                 `json:"blockNumber"`
	StoredAt     time.Time              `json:"storedAt"`
}

// Store persists dispatched events. Implementations must tolerate
// concurrent writes from independent network loops and must be idempotent
// per event identity.
type Store interface {
	events.OffchainStore

	// GetEvent returns a stored event by identity, or ErrNotFound
	GetEvent(ctx context.Context, id events.Identity) (*StoredEvent, error)

	// Close releases the store's resources
	Close() error
}
