package offchain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/rwadesk/chainlistener/events"
)

const eventPrefix = "/events/"

// PebbleStore implements Store using PebbleDB
type PebbleStore struct {
	db     *pebble.DB
	logger *zap.Logger
	closed atomic.Bool
}

// PebbleConfig holds PebbleStore configuration
type PebbleConfig struct {
	Path   string
	Logger *zap.Logger
}

// NewPebbleStore opens (or creates) a pebble-backed offchain store
func NewPebbleStore(cfg *PebbleConfig) (*PebbleStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := pebble.Open(cfg.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open offchain database: %w", err)
	}

	return &PebbleStore{
		db:     db,
		logger: logger,
	}, nil
}

// SaveEvent persists the event keyed by its identity. Saving the same
// identity twice overwrites the prior record, so redelivery is harmless.
func (s *PebbleStore) SaveEvent(ctx context.Context, ev *events.RawLogEvent) error {
	if s.closed.Load() {
		return ErrClosed
	}

	record := &StoredEvent{
		Network:      ev.Network,
		Contract:     ev.Contract,
		ContractName: ev.ContractName,
		Name:         ev.Name,
		Args:         ev.Args,
		TxHash:       ev.TxHash,
		LogIndex:     ev.LogIndex,
		BlockNumber:  ev.BlockNumber,
		StoredAt:     time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", ev.Identity(), err)
	}

	if err := s.db.Set(eventKey(ev.Identity()), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to store event %s: %w", ev.Identity(), err)
	}

	return nil
}

// GetEvent returns a stored event by identity
func (s *PebbleStore) GetEvent(ctx context.Context, id events.Identity) (*StoredEvent, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	value, closer, err := s.db.Get(eventKey(id))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	defer closer.Close()

	var record StoredEvent
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", id, err)
	}

	return &record, nil
}

// Close closes the underlying database
func (s *PebbleStore) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}
	return s.db.Close()
}

func eventKey(id events.Identity) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/%d", eventPrefix, id.Network, id.TxHash.Hex(), id.LogIndex))
}
