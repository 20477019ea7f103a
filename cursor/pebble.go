package cursor

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// keyPrefix namespaces cursor entries inside the pebble database
const keyPrefix = "/cursors/"

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

// NewPebbleStore opens (or creates) a pebble-backed cursor store
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
		return nil, fmt.Errorf("failed to open cursor database: %w", err)
	}

	return &PebbleStore{
		db:     db,
		logger: logger,
	}, nil
}

// Load returns the stored cursor for key, or def when absent or unreadable
func (s *PebbleStore) Load(ctx context.Context, key string, def uint64) uint64 {
	if s.closed.Load() {
		return def
	}

	value, closer, err := s.db.Get(cursorKey(key))
	if err != nil {
		if err != pebble.ErrNotFound {
			s.logger.Warn("failed to load cursor, using default",
				zap.String("key", key),
				zap.Uint64("default", def),
				zap.Error(err),
			)
		}
		return def
	}
	defer closer.Close()

	cur, err := decodeUint64(value)
	if err != nil {
		s.logger.Warn("corrupt cursor value, using default",
			zap.String("key", key),
			zap.Uint64("default", def),
			zap.Error(err),
		)
		return def
	}

	return cur
}

// Save persists the cursor with a synced write
func (s *PebbleStore) Save(ctx context.Context, key string, value uint64) error {
	return s.put(key, value)
}

// Reset overwrites the cursor; identical write path to Save
func (s *PebbleStore) Reset(ctx context.Context, key string, value uint64) error {
	return s.put(key, value)
}

func (s *PebbleStore) put(key string, value uint64) error {
	if s.closed.Load() {
		return ErrClosed
	}

	if err := s.db.Set(cursorKey(key), encodeUint64(value), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save cursor %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database
func (s *PebbleStore) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}
	return s.db.Close()
}

func cursorKey(key string) []byte {
	return []byte(keyPrefix + key)
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid uint64 length %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
