// Package fetch queries a network's registry contracts for event logs
// across block ranges, isolating provider-specific error conditions from
// the listener loop above it.
package fetch

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/rwadesk/chainlistener/events"
)

// Client defines the RPC operations the fetcher needs
type Client interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// LogFetcher fetches and decodes event logs for one network
type LogFetcher struct {
	network string
	client  Client
	logger  *zap.Logger
}

// NewLogFetcher creates a fetcher bound to one network's client
func NewLogFetcher(network string, client Client, logger *zap.Logger) *LogFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogFetcher{
		network: network,
		client:  client,
		logger:  logger,
	}
}

// Fetch returns the decoded logs emitted by contract for the named event
// in [fromBlock, toBlock], in provider-returned order.
//
// A pruned range surfaces as ErrPrunedRange; every other provider failure
// is wrapped in *ProviderError and propagates unchanged in meaning.
func (f *LogFetcher) Fetch(ctx context.Context, contract *events.Contract, eventName string, fromBlock, toBlock uint64) ([]*events.RawLogEvent, error) {
	topic, err := contract.EventID(eventName)
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{contract.Address},
		Topics:    [][]common.Hash{{topic}},
	}

	logs, err := f.client.FilterLogs(ctx, query)
	if err != nil {
		if isPruned(err) {
			return nil, fmt.Errorf("%w: %s %s [%d,%d]: %v",
				ErrPrunedRange, contract.Name, eventName, fromBlock, toBlock, err)
		}
		return nil, &ProviderError{
			Network: f.network,
			Op:      fmt.Sprintf("filter %s.%s [%d,%d]", contract.Name, eventName, fromBlock, toBlock),
			Err:     err,
		}
	}

	result := make([]*events.RawLogEvent, 0, len(logs))
	for i := range logs {
		lg := &logs[i]
		if lg.Removed {
			// Reorged-out log; nothing to dispatch
			continue
		}

		ev, decodeErr := contract.DecodeLog(f.network, lg)
		if decodeErr != nil {
			// The filter matched topic0, so a decode failure means a
			// malformed log rather than a wrong subscription. Skip it
			// instead of wedging the whole range.
			f.logger.Warn("skipping undecodable log",
				zap.String("contract", contract.Name),
				zap.String("event", eventName),
				zap.String("tx_hash", lg.TxHash.Hex()),
				zap.Uint64("block", lg.BlockNumber),
				zap.Error(decodeErr),
			)
			continue
		}

		result = append(result, ev)
	}

	return result, nil
}
