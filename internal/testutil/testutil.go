// Package testutil provides shared fixtures for tests: quiet loggers and
// fabricated contract logs matching the PostProof test ABI.
package testutil

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// PostProofABI is a minimal registry ABI used across tests:
// PostProof(address indexed submitter, uint256 proofId)
const PostProofABI = `[{"type":"event","name":"PostProof","inputs":[{"name":"submitter","type":"address","indexed":true},{"name":"proofId","type":"uint256","indexed":false}]}]`

// NewTestLogger creates a development logger for tests
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return logger
}

// PostProofTopic returns topic0 for the PostProof test event
func PostProofTopic() common.Hash {
	return crypto.Keccak256Hash([]byte("PostProof(address,uint256)"))
}

// NewPostProofLog fabricates a raw log for the PostProof test event
func NewPostProofLog(contract common.Address, block uint64, txHash common.Hash, index uint, submitter common.Address, proofID uint64) types.Log {
	data := make([]byte, 32)
	data[31] = byte(proofID)
	data[30] = byte(proofID >> 8)

	return types.Log{
		Address: contract,
		Topics: []common.Hash{
			PostProofTopic(),
			common.BytesToHash(common.LeftPadBytes(submitter.Bytes(), 32)),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
		Index:       index,
	}
}
