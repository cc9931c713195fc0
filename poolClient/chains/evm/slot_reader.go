package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// SlotReader reads contract view methods
type SlotReader struct {
	rpcClient    *RPCClient
	contractABI  abi.ABI
	contractAddr ethcommon.Address
	chain        string
}

// NewSlotReader creates a slot reader
func NewSlotReader(rpcClient *RPCClient, contractABI abi.ABI, contractAddr ethcommon.Address, chain string) *SlotReader {
	return &SlotReader{
		rpcClient:    rpcClient,
		contractABI:  contractABI,
		contractAddr: contractAddr,
		chain:        chain,
	}
}

// ReadSlot calls the view method named slot, pinned to the current head so
// the snapshot height is exact.
func (r *SlotReader) ReadSlot(ctx context.Context, slot string, args ...any) (ledger.Snapshot, error) {
	method, ok := r.contractABI.Methods[slot]
	if !ok {
		return ledger.Snapshot{}, errors.NewValidationError(r.chain, fmt.Sprintf("unknown slot %q", slot))
	}
	if !method.IsConstant() {
		return ledger.Snapshot{}, errors.NewValidationError(r.chain, fmt.Sprintf("slot %q is not a view method", slot))
	}

	input, err := r.contractABI.Pack(slot, args...)
	if err != nil {
		return ledger.Snapshot{}, errors.NewValidationError(r.chain, fmt.Sprintf("invalid arguments for %s: %v", slot, err))
	}

	head, err := r.rpcClient.GetLatestBlock(ctx)
	if err != nil {
		return ledger.Snapshot{}, classifyRead(r.chain, "get block number", err)
	}

	out, err := r.rpcClient.CallContract(ctx, ethereum.CallMsg{
		To:   &r.contractAddr,
		Data: input,
	}, new(big.Int).SetUint64(head))
	if err != nil {
		return ledger.Snapshot{}, classifyRead(r.chain, "call "+slot, err)
	}

	decoded, err := method.Outputs.Unpack(out)
	if err != nil {
		return ledger.Snapshot{}, errors.NewRPCError(r.chain, fmt.Sprintf("failed to decode %s output", slot), err)
	}

	values := make([]any, len(decoded))
	for i, v := range decoded {
		values[i] = normalizeValue(v)
	}

	return ledger.Snapshot{
		SlotName:   slot,
		Values:     values,
		AsOfHeight: head,
		FetchedAt:  time.Now().UTC(),
	}, nil
}
