package listener

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/rwadesk/chainlistener/client"
	"github.com/rwadesk/chainlistener/cursor"
	"github.com/rwadesk/chainlistener/events"
	"github.com/rwadesk/chainlistener/fetch"
	"github.com/rwadesk/chainlistener/internal/config"
)

// Supervisor starts one listener loop per enabled network, performing the
// one-time connection and account setup each loop needs. It does not
// monitor loop health beyond launch: loops are self-healing, and a
// process orchestrator outside this service restarts the whole process
// if one is ever needed.
type Supervisor struct {
	networks    []config.NetworkConfig
	listenerCfg config.ListenerConfig
	cursors     cursor.Store
	offchain    events.OffchainStore
	handlers    map[string]events.HandlerFn
	metrics     *Metrics
	logger      *zap.Logger

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	listeners []*Listener
	clients   []*client.Client
}

// NewSupervisor creates a supervisor for the configured networks
func NewSupervisor(cfg *config.Config, cursors cursor.Store, offchain events.OffchainStore, handlers map[string]events.HandlerFn, metrics *Metrics, logger *zap.Logger) (*Supervisor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cursors == nil || offchain == nil {
		return nil, fmt.Errorf("cursor store and offchain store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Supervisor{
		networks:    cfg.EnabledNetworks(),
		listenerCfg: cfg.Listener,
		cursors:     cursors,
		offchain:    offchain,
		handlers:    handlers,
		metrics:     metrics,
		logger:      logger.Named("supervisor"),
	}, nil
}

// Start launches one listener loop per enabled network. A network that
// fails setup is logged and skipped; it does not prevent the others from
// starting.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("starting listener loops",
		zap.Int("networks", len(s.networks)),
	)

	for _, net := range s.networks {
		if err := s.launch(ctx, net); err != nil {
			s.logger.Error("failed to start network listener",
				zap.String("network", net.Name),
				zap.Error(err),
			)
		}
	}

	s.mu.Lock()
	started := len(s.listeners)
	s.mu.Unlock()

	s.logger.Info("listener loops started",
		zap.Int("started", started),
	)

	return nil
}

// launch performs the one-time setup for one network and starts its loop
func (s *Supervisor) launch(ctx context.Context, net config.NetworkConfig) error {
	netLogger := s.logger.With(zap.String("network", net.Name))
	netLogger.Info("connecting", zap.String("endpoint", net.RPCEndpoint))

	cli, err := client.NewClient(&client.Config{
		Endpoint: net.RPCEndpoint,
		Timeout:  net.RPCTimeout,
		Logger:   netLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	var acct *client.Account
	if net.PrivateKeyEnv != "" {
		acct, err = client.NewAccount(os.Getenv(net.PrivateKeyEnv))
		if err != nil {
			cli.Close()
			return fmt.Errorf("failed to load account from %s: %w", net.PrivateKeyEnv, err)
		}
	}

	registry, err := events.NewRegistry(net.Name, net.Registries)
	if err != nil {
		cli.Close()
		return fmt.Errorf("failed to build registry: %w", err)
	}
	for name, fn := range s.handlers {
		registry.RegisterHandler(name, fn)
	}

	l, err := New(Config{
		Network:              net.Name,
		PollInterval:         s.listenerCfg.PollInterval,
		BackoffInterval:      s.listenerCfg.BackoffInterval,
		DedupRetentionBlocks: s.listenerCfg.DedupRetentionBlocks,
	}, cli, fetch.NewLogFetcher(net.Name, cli, netLogger), registry, s.cursors, s.offchain, s.metrics, s.logger)
	if err != nil {
		cli.Close()
		return err
	}

	fields := []zap.Field{
		zap.String("endpoint", net.RPCEndpoint),
		zap.Int("contracts", len(registry.Contracts())),
	}
	if acct != nil {
		fields = append(fields, zap.String("account", acct.Address.Hex()))
	}
	netLogger.Info("connected", fields...)

	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.clients = append(s.clients, cli)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			netLogger.Error("listener exited", zap.Error(err))
		}
	}()

	return nil
}

// Stop cancels all loops and waits for them to drain, bounded by ctx
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	s.logger.Info("stopping listener loops")
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("listener loops stopped")
	case <-ctx.Done():
		s.logger.Warn("listener shutdown timed out")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cli := range s.clients {
		cli.Close()
	}
	s.clients = nil

	return nil
}

// Statuses returns a snapshot of every running loop
func (s *Supervisor) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]Status, 0, len(s.listeners))
	for _, l := range s.listeners {
		statuses = append(statuses, l.Status())
	}
	return statuses
}

// ListenerCount returns the number of launched loops
func (s *Supervisor) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
