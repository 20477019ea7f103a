package client

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Client wraps an Ethereum JSON-RPC connection with the operations the
// listener loops need: chain height queries and ranged log filtering.
type Client struct {
	ethClient *ethclient.Client
	rpcClient *rpc.Client
	endpoint  string
	logger    *zap.Logger
}

// Config holds client configuration
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewClient dials the RPC endpoint and verifies the connection
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	client := &Client{
		ethClient: ethclient.NewClient(rpcClient),
		rpcClient: rpcClient,
		endpoint:  cfg.Endpoint,
		logger:    logger,
	}

	if err := client.Ping(ctx); err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to ping RPC endpoint: %w", err)
	}

	logger.Info("connected to RPC endpoint",
		zap.String("endpoint", cfg.Endpoint))

	return client, nil
}

// Ping verifies the connection to the RPC endpoint
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ethClient.ChainID(ctx)
	return err
}

// Close closes the client connection
func (c *Client) Close() {
	if c.ethClient != nil {
		c.ethClient.Close()
	}
}

// Endpoint returns the endpoint this client is connected to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// BlockNumber returns the current chain height
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	height, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return height, nil
}

// ChainID returns the chain ID
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return chainID, nil
}

// FilterLogs executes a ranged log filter query. Provider errors are
// returned unwrapped so callers can classify them.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return c.ethClient.FilterLogs(ctx, q)
}
