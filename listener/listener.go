// Package listener drives the per-network polling loops: fetch new logs
// past the persisted cursor, dedup, dispatch to handlers, advance the
// cursor, sleep. Loops are self-healing and never exit on their own;
// only context cancellation stops them.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rwadesk/chainlistener/cursor"
	"github.com/rwadesk/chainlistener/events"
	"github.com/rwadesk/chainlistener/fetch"
	"github.com/rwadesk/chainlistener/internal/config"
)

// State is a listener loop's lifecycle state
type State string

const (
	// StateConnecting is entered once at startup while the initial
	// cursor is loaded
	StateConnecting State = "connecting"
	// StatePolling is the steady state: sweep, dispatch, advance, sleep
	StatePolling State = "polling"
	// StateBackoff follows an unrecovered tick error
	StateBackoff State = "backoff"
)

// ChainReader reads the current chain height
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Fetcher fetches decoded logs for one contract event across a block range
type Fetcher interface {
	Fetch(ctx context.Context, contract *events.Contract, eventName string, fromBlock, toBlock uint64) ([]*events.RawLogEvent, error)
}

// Config holds one listener loop's configuration
type Config struct {
	// Network is the network identifier this loop is bound to
	Network string
	// PollInterval is the sleep between successful ticks
	PollInterval time.Duration
	// BackoffInterval is the sleep after a failed tick
	BackoffInterval time.Duration
	// DedupRetentionBlocks bounds the dedup window; 0 means unbounded
	DedupRetentionBlocks uint64
}

// Status is a point-in-time snapshot of one loop, served by the HTTP API
type Status struct {
	Network   string    `json:"network"`
	State     State     `json:"state"`
	Cursor    uint64    `json:"cursor"`
	Contracts int       `json:"contracts"`
	DedupSize int       `json:"dedupSize"`
	LastTick  time.Time `json:"lastTick,omitzero"`
	LastError string    `json:"lastError,omitempty"`
}

// Listener is one network's polling loop. It exclusively owns its dedup
// window and cursor key; the cursor and offchain stores are the only
// resources shared with other loops.
type Listener struct {
	cfg      Config
	chain    ChainReader
	fetcher  Fetcher
	registry *events.Registry
	cursors  cursor.Store
	offchain events.OffchainStore
	window   *events.Window
	metrics  *Metrics
	logger   *zap.Logger
	key      string

	mu       sync.RWMutex
	state    State
	cursor   uint64
	lastTick time.Time
	lastErr  error
}

// New creates a listener loop. Intervals default to the service-wide
// values when unset.
func New(cfg Config, chain ChainReader, fetcher Fetcher, registry *events.Registry, cursors cursor.Store, offchain events.OffchainStore, metrics *Metrics, logger *zap.Logger) (*Listener, error) {
	if cfg.Network == "" {
		return nil, fmt.Errorf("network is required")
	}
	if chain == nil || fetcher == nil || registry == nil || cursors == nil || offchain == nil {
		return nil, fmt.Errorf("chain, fetcher, registry, cursor store and offchain store are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultPollInterval
	}
	if cfg.BackoffInterval <= 0 {
		cfg.BackoffInterval = config.DefaultBackoffInterval
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Listener{
		cfg:      cfg,
		chain:    chain,
		fetcher:  fetcher,
		registry: registry,
		cursors:  cursors,
		offchain: offchain,
		window:   events.NewWindow(cfg.DedupRetentionBlocks),
		metrics:  metrics,
		logger:   logger.With(zap.String("network", cfg.Network)),
		key:      cursor.Key(cfg.Network),
		state:    StateConnecting,
	}, nil
}

// Run drives the loop until ctx is cancelled. The returned error is
// always the context's; everything else is absorbed by backoff.
func (l *Listener) Run(ctx context.Context) error {
	l.setState(StateConnecting)
	if err := l.connect(ctx); err != nil {
		return err
	}
	l.setState(StatePolling)

	l.logger.Info("listening for contract events",
		zap.Int("contracts", len(l.registry.Contracts())),
		zap.Uint64("from_block", l.Cursor()+1),
	)

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("listener stopped", zap.Error(err))
			return err
		}

		if err := l.tick(ctx); err != nil {
			if ctx.Err() != nil {
				l.logger.Info("listener stopped", zap.Error(ctx.Err()))
				return ctx.Err()
			}

			l.recordError(err)
			l.metrics.TickErrors.WithLabelValues(l.cfg.Network).Inc()
			l.logger.Error("tick failed, backing off",
				zap.Duration("backoff", l.cfg.BackoffInterval),
				zap.Error(err),
			)

			l.setState(StateBackoff)
			if !l.sleep(ctx, l.cfg.BackoffInterval) {
				return ctx.Err()
			}
			l.setState(StatePolling)
			continue
		}

		if !l.sleep(ctx, l.cfg.PollInterval) {
			return ctx.Err()
		}
	}
}

// connect loads the initial cursor, defaulting to the current height - 1
// when none is stored. The height query retries until it succeeds; the
// loop must come up even when the provider is briefly down.
func (l *Listener) connect(ctx context.Context) error {
	for {
		height, err := l.chain.BlockNumber(ctx)
		if err == nil {
			var def uint64
			if height > 0 {
				def = height - 1
			}
			cur := l.cursors.Load(ctx, l.key, def)
			l.setCursor(cur)
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.recordError(err)
		l.logger.Error("failed to read chain height, retrying",
			zap.Duration("backoff", l.cfg.BackoffInterval),
			zap.Error(err),
		)
		if !l.sleep(ctx, l.cfg.BackoffInterval) {
			return ctx.Err()
		}
	}
}

// tick performs one sweep: fetch every contract/event pair past the
// cursor, dispatch first-seen events, then advance and persist the
// cursor. Any returned error leaves the cursor untouched so the next
// tick re-fetches the same range.
func (l *Listener) tick(ctx context.Context) error {
	height, err := l.chain.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain height: %w", err)
	}

	cur := l.Cursor()
	if height <= cur {
		l.logger.Debug("no new blocks",
			zap.Uint64("height", height),
			zap.Uint64("cursor", cur),
		)
		l.touch()
		return nil
	}

	// sweep is the in-tick cursor intent. A pruned range jumps it to the
	// current height, abandoning the unfetchable span for the remaining
	// contract/event pairs of this sweep.
	sweep := cur

	for _, contract := range l.registry.Contracts() {
		for _, eventName := range contract.Events() {
			from := sweep + 1
			if from > height {
				continue
			}

			evs, err := l.fetcher.Fetch(ctx, contract, eventName, from, height)
			if errors.Is(err, fetch.ErrPrunedRange) {
				l.logger.Warn("block range pruned, skipping forward",
					zap.String("contract", contract.Name),
					zap.String("event", eventName),
					zap.Uint64("from", from),
					zap.Uint64("to", height),
				)
				l.metrics.PrunedRanges.WithLabelValues(l.cfg.Network).Inc()
				sweep = height
				continue
			}
			if err != nil {
				return err
			}

			for _, ev := range evs {
				if err := l.dispatch(ctx, ev); err != nil {
					return err
				}
			}
		}
	}

	l.setCursor(height)
	if err := l.cursors.Save(ctx, l.key, height); err != nil {
		// Best-effort persistence: the loop must not stall because the
		// store is briefly unavailable. A crash before the next
		// successful save redelivers the range; handlers are idempotent.
		l.metrics.CursorSaveFailures.WithLabelValues(l.cfg.Network).Inc()
		l.logger.Warn("failed to persist cursor",
			zap.Uint64("cursor", height),
			zap.Error(err),
		)
	}

	l.window.Compact(height)
	l.touch()
	l.metrics.Ticks.WithLabelValues(l.cfg.Network).Inc()
	l.metrics.CursorHeight.WithLabelValues(l.cfg.Network).Set(float64(height))

	return nil
}

// dispatch routes one event through the dedup window to its handler
func (l *Listener) dispatch(ctx context.Context, ev *events.RawLogEvent) error {
	handler, ok := l.registry.Handler(ev.Name)
	if !ok {
		l.logger.Warn("no handler registered for event",
			zap.String("event", ev.Name),
			zap.String("contract", ev.ContractName),
		)
		return nil
	}

	if l.window.Seen(ev.Identity()) {
		l.logger.Debug("duplicate event skipped",
			zap.Stringer("identity", ev.Identity()),
		)
		l.metrics.DuplicatesSkipped.WithLabelValues(l.cfg.Network).Inc()
		return nil
	}

	if err := handler(ctx, ev, l.offchain); err != nil {
		return fmt.Errorf("handler for %s failed on %s: %w", ev.Name, ev.Identity(), err)
	}

	// Marked only after the handler succeeds: a failed event must be
	// retried when the next tick re-fetches this range, while events
	// dispatched earlier in the aborted sweep stay protected.
	l.window.Admit(ev.Identity(), ev.BlockNumber)

	l.logger.Debug("event dispatched",
		zap.String("event", ev.Name),
		zap.String("contract", ev.ContractName),
		zap.Uint64("block", ev.BlockNumber),
	)
	l.metrics.EventsDispatched.WithLabelValues(l.cfg.Network, ev.Name).Inc()

	return nil
}

// sleep blocks for d or until ctx is cancelled; it reports whether the
// full duration elapsed.
func (l *Listener) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Cursor returns the last fully processed block number
func (l *Listener) Cursor() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cursor
}

// Status returns a snapshot of the loop's state
func (l *Listener) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Status{
		Network:   l.cfg.Network,
		State:     l.state,
		Cursor:    l.cursor,
		Contracts: len(l.registry.Contracts()),
		DedupSize: l.window.Len(),
		LastTick:  l.lastTick,
	}
	if l.lastErr != nil {
		s.LastError = l.lastErr.Error()
	}
	return s
}

func (l *Listener) setState(state State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
}

func (l *Listener) setCursor(cur uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursor = cur
}

func (l *Listener) touch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastTick = time.Now()
	l.lastErr = nil
}

func (l *Listener) recordError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastErr = err
}
