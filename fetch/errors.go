package fetch

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// ErrPrunedRange marks a fetch whose block range the provider no longer
// retains. It is an expected condition, not a failure: the listener skips
// the unfetchable range forward instead of retrying it.
var ErrPrunedRange = errors.New("block range pruned by provider")

// prunedRangeCode is the JSON-RPC error code providers return for
// history that has been pruned ("block out of range").
const prunedRangeCode = -32000

// ProviderError wraps any transport or RPC failure other than a pruned
// range. It aborts the current tick and sends the listener into backoff.
type ProviderError struct {
	Network string
	Op      string
	Err     error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return "provider error on " + e.Network + " during " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying provider error
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// isPruned reports whether a provider error denotes pruned history
func isPruned(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == prunedRangeCode {
		return true
	}
	// Some providers phrase the condition without the canonical code
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "block out of range") || strings.Contains(msg, "pruned")
}
