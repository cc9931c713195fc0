package evm

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-pool-client/poolClient/config"
)

// mockEthClient is a mock implementation of the Ethereum client for testing
type mockEthClient struct {
	mock.Mock
}

var _ ethBackend = (*mockEthClient)(nil)

func (m *mockEthClient) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if id := args.Get(0); id != nil {
		return id.(*big.Int), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEthClient) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockEthClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	args := m.Called(ctx, q)
	if logs := args.Get(0); logs != nil {
		return logs.([]types.Log), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEthClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, msg, blockNumber)
	if out := args.Get(0); out != nil {
		return out.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEthClient) PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.(*big.Int), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockEthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockEthClient) TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	if receipt := args.Get(0); receipt != nil {
		return receipt.(*types.Receipt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEthClient) Close() {
	m.Called()
}

// jsonRPCError mimics an error answer from a node.
type jsonRPCError struct {
	code int
	msg  string
}

func (e *jsonRPCError) Error() string  { return e.msg }
func (e *jsonRPCError) ErrorCode() int { return e.code }

const testContractAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func testConfig() *config.Config {
	start := int64(-1)
	lookback, tolerance := uint64(5), uint64(12)
	return &config.Config{
		ChainID:              "eip155:31337",
		RPCURLs:              []string{"http://localhost:8545"},
		ContractAddress:      testContractAddr,
		Slots:                []string{"getOperators", "getValidators"},
		EventTypes:           []string{"PubKeyDeposited"},
		EventLookbackBlocks:  &lookback,
		ReorgToleranceBlocks: &tolerance,
		EventStartFrom:       &start,
		MaxBlockRange:        10,
	}
}

func newTestClient(t *testing.T, cfg *config.Config, backends ...*mockEthClient) *Client {
	t.Helper()
	bs := make([]ethBackend, len(backends))
	for i, b := range backends {
		bs[i] = b
	}
	client, err := NewClientWithRPC(NewRPCClientWithBackends(bs, 0, zerolog.Nop()), cfg, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func pubKeyDepositedLog(t *testing.T, block uint64, index uint, depositor ethcommon.Address, amount *big.Int, pubkey []byte) types.Log {
	t.Helper()
	contractABI, err := ParseABI("")
	require.NoError(t, err)
	ev := contractABI.Events["PubKeyDeposited"]

	data, err := ev.Inputs.NonIndexed().Pack(amount, pubkey)
	require.NoError(t, err)

	return types.Log{
		Address:     ethcommon.HexToAddress(testContractAddr),
		Topics:      []ethcommon.Hash{ev.ID, ethcommon.BytesToHash(depositor.Bytes())},
		Data:        data,
		BlockNumber: block,
		BlockHash:   ethcommon.BigToHash(new(big.Int).SetUint64(block)),
		TxHash:      ethcommon.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(index))),
		Index:       index,
	}
}
