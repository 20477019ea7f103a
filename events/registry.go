package events

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rwadesk/chainlistener/internal/config"
)

// ValidatorRegistryName is the registry reserved for validator bookkeeping.
// It is never polled for events.
const ValidatorRegistryName = "ValidatorRegistry"

// Contract is one registry contract prepared for event fetching: its
// address, parsed ABI and the event names subscribed on it.
type Contract struct {
	Name    string
	Address common.Address

	parsed abi.ABI
	events []string
}

// Events returns the subscribed event names
func (c *Contract) Events() []string {
	return c.events
}

// EventID returns the topic0 hash for a subscribed event
func (c *Contract) EventID(name string) (common.Hash, error) {
	ev, ok := c.parsed.Events[name]
	if !ok {
		return common.Hash{}, fmt.Errorf("event %s not in ABI of contract %s", name, c.Name)
	}
	return ev.ID, nil
}

// DecodeLog decodes a raw log emitted by this contract into a RawLogEvent.
// Indexed arguments come from the topics, the rest from the data segment.
func (c *Contract) DecodeLog(network string, lg *types.Log) (*RawLogEvent, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}

	ev, err := c.parsed.EventByID(lg.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("unknown event topic %s: %w", lg.Topics[0].Hex(), err)
	}

	args := make(map[string]interface{})

	var indexed abi.Arguments
	for _, input := range ev.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
			return nil, fmt.Errorf("failed to parse indexed arguments: %w", err)
		}
	}

	nonIndexed := ev.Inputs.NonIndexed()
	if len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(args, lg.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack event data: %w", err)
		}
	}

	return &RawLogEvent{
		Network:      network,
		Contract:     lg.Address,
		ContractName: c.Name,
		Name:         ev.Name,
		Args:         args,
		TxHash:       lg.TxHash,
		LogIndex:     lg.Index,
		BlockNumber:  lg.BlockNumber,
	}, nil
}

// Registry holds one network's pollable contracts and the handlers
// registered per event name. Contracts are immutable after construction;
// handler registration happens once at startup before the loop runs.
type Registry struct {
	network   string
	contracts []*Contract

	mu       sync.RWMutex
	handlers map[string]HandlerFn
}

// NewRegistry builds a registry from a network's configured registries,
// parsing each ABI and resolving subscribed events. The validator
// bookkeeping registry is skipped.
func NewRegistry(network string, registries []config.RegistryConfig) (*Registry, error) {
	r := &Registry{
		network:  network,
		handlers: make(map[string]HandlerFn),
	}

	for _, reg := range registries {
		if reg.Name == ValidatorRegistryName {
			continue
		}
		if !common.IsHexAddress(reg.Address) {
			return nil, fmt.Errorf("registry %s: invalid address %q", reg.Name, reg.Address)
		}

		parsed, err := abi.JSON(strings.NewReader(reg.ABI))
		if err != nil {
			return nil, fmt.Errorf("registry %s: failed to parse ABI: %w", reg.Name, err)
		}

		c := &Contract{
			Name:    reg.Name,
			Address: common.HexToAddress(reg.Address),
			parsed:  parsed,
			events:  reg.Events,
		}

		// Fail at startup, not at poll time, when a subscribed event
		// is missing from the ABI.
		for _, name := range reg.Events {
			if _, err := c.EventID(name); err != nil {
				return nil, err
			}
		}

		r.contracts = append(r.contracts, c)
	}

	return r, nil
}

// Network returns the network this registry belongs to
func (r *Registry) Network() string {
	return r.network
}

// Contracts returns the pollable contracts in registration order
func (r *Registry) Contracts() []*Contract {
	return r.contracts
}

// RegisterHandler binds a handler to an event name
func (r *Registry) RegisterHandler(eventName string, fn HandlerFn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[eventName] = fn
}

// Handler returns the handler bound to an event name
func (r *Registry) Handler(eventName string) (HandlerFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.handlers[eventName]
	return fn, ok
}
