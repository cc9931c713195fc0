package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ethBackend is the subset of *ethclient.Client the pool client uses.
type ethBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)
	Close()
}

var _ ethBackend = (*ethclient.Client)(nil)

// RPCClient provides EVM RPC operations over a pool of endpoints with
// round-robin failover and a shared client-side rate limit
type RPCClient struct {
	clients []ethBackend
	index   uint64
	mu      sync.RWMutex
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewRPCClient dials every RPC URL and keeps the endpoints whose chain ID matches
func NewRPCClient(ctx context.Context, rpcURLs []string, expectedChainID int64, requestsPerSecond float64, logger zerolog.Logger) (*RPCClient, error) {
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided")
	}

	log := logger.With().Str("component", "evm_rpc_client").Logger()
	clients := make([]ethBackend, 0, len(rpcURLs))

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, url := range rpcURLs {
		client, err := ethclient.DialContext(dialCtx, url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("failed to connect to RPC endpoint, skipping")
			continue
		}

		if !verifyChainID(dialCtx, client, expectedChainID, url, log) {
			client.Close()
			continue
		}

		clients = append(clients, client)
		log.Info().Str("url", url).Msg("connected to RPC endpoint")
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("failed to connect to any valid RPC endpoints")
	}

	return newRPCClient(clients, requestsPerSecond, log), nil
}

// NewRPCClientWithBackends builds a client over already connected backends.
func NewRPCClientWithBackends(backends []ethBackend, requestsPerSecond float64, logger zerolog.Logger) *RPCClient {
	return newRPCClient(backends, requestsPerSecond, logger.With().Str("component", "evm_rpc_client").Logger())
}

func newRPCClient(clients []ethBackend, requestsPerSecond float64, logger zerolog.Logger) *RPCClient {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &RPCClient{
		clients: clients,
		limiter: limiter,
		logger:  logger,
	}
}

func verifyChainID(ctx context.Context, client ethBackend, expected int64, url string, log zerolog.Logger) bool {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		// Slow endpoints are kept; failover skips them if they stay broken
		log.Warn().
			Err(err).
			Str("url", url).
			Int64("expected_chain_id", expected).
			Msg("failed to verify chain ID, proceeding with client anyway")
		return true
	}
	if chainID.Int64() != expected {
		log.Warn().
			Str("url", url).
			Int64("expected_chain_id", expected).
			Int64("actual_chain_id", chainID.Int64()).
			Msg("chain ID mismatch, closing client")
		return false
	}
	return true
}

// executeWithFailover executes a function with round-robin failover. The
// last endpoint error is kept in the chain so callers can classify it.
func (rc *RPCClient) executeWithFailover(ctx context.Context, operation string, fn func(ethBackend) error) error {
	rc.mu.RLock()
	clients := rc.clients
	rc.mu.RUnlock()

	if len(clients) == 0 {
		return fmt.Errorf("no RPC clients available for %s", operation)
	}

	var lastErr error
	maxAttempts := len(clients)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := rc.limiter.Wait(ctx); err != nil {
			return err
		}

		index := atomic.AddUint64(&rc.index, 1) - 1
		client := clients[index%uint64(len(clients))]
		if client == nil {
			continue
		}

		err := fn(client)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		rc.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Err(err).
			Msg("operation failed, trying next endpoint")
	}

	return fmt.Errorf("operation %s failed after trying %d endpoints: %w", operation, maxAttempts, lastErr)
}

// IsHealthy checks if any RPC in the pool answers
func (rc *RPCClient) IsHealthy(ctx context.Context) bool {
	rc.mu.RLock()
	hasClients := len(rc.clients) > 0
	rc.mu.RUnlock()

	if !hasClients {
		return false
	}

	_, err := rc.GetLatestBlock(ctx)
	return err == nil
}

// GetLatestBlock returns the latest block number
func (rc *RPCClient) GetLatestBlock(ctx context.Context) (uint64, error) {
	var blockNum uint64
	err := rc.executeWithFailover(ctx, "get_block_number", func(client ethBackend) error {
		var innerErr error
		blockNum, innerErr = client.BlockNumber(ctx)
		return innerErr
	})
	return blockNum, err
}

// FilterLogs fetches logs matching the filter query
func (rc *RPCClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := rc.executeWithFailover(ctx, "filter_logs", func(client ethBackend) error {
		var innerErr error
		logs, innerErr = client.FilterLogs(ctx, query)
		return innerErr
	})
	return logs, err
}

// CallContract executes a read-only call at the given block (nil = latest)
func (rc *RPCClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := rc.executeWithFailover(ctx, "call_contract", func(client ethBackend) error {
		var innerErr error
		out, innerErr = client.CallContract(ctx, msg, blockNumber)
		return innerErr
	})
	return out, err
}

// PendingNonceAt returns the next nonce for an account
func (rc *RPCClient) PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error) {
	var nonce uint64
	err := rc.executeWithFailover(ctx, "pending_nonce_at", func(client ethBackend) error {
		var innerErr error
		nonce, innerErr = client.PendingNonceAt(ctx, account)
		return innerErr
	})
	return nonce, err
}

// GetGasPrice fetches the current gas price
func (rc *RPCClient) GetGasPrice(ctx context.Context) (*big.Int, error) {
	var gasPrice *big.Int
	err := rc.executeWithFailover(ctx, "get_gas_price", func(client ethBackend) error {
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		var innerErr error
		gasPrice, innerErr = client.SuggestGasPrice(callCtx)
		return innerErr
	})
	return gasPrice, err
}

// EstimateGas estimates the gas a call needs
func (rc *RPCClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := rc.executeWithFailover(ctx, "estimate_gas", func(client ethBackend) error {
		var innerErr error
		gas, innerErr = client.EstimateGas(ctx, msg)
		return innerErr
	})
	return gas, err
}

// SendTransaction broadcasts a signed transaction. A node rejection is
// returned as is; only transport failures move on to the next endpoint.
func (rc *RPCClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	var rejected error
	err := rc.executeWithFailover(ctx, "send_transaction", func(client ethBackend) error {
		err := client.SendTransaction(ctx, tx)
		if err != nil && isNodeRejection(err) {
			rejected = err
			return nil
		}
		return err
	})
	if rejected != nil {
		return rejected
	}
	return err
}

// GetTransactionReceipt fetches a transaction receipt
func (rc *RPCClient) GetTransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := rc.executeWithFailover(ctx, "get_transaction_receipt", func(client ethBackend) error {
		var innerErr error
		receipt, innerErr = client.TransactionReceipt(ctx, txHash)
		if innerErr == ethereum.NotFound {
			// Pending is an answer, not an endpoint failure
			receipt = nil
			return nil
		}
		return innerErr
	})
	return receipt, err
}

// Close closes all RPC connections
func (rc *RPCClient) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	for _, client := range rc.clients {
		if client != nil {
			client.Close()
		}
	}
	rc.clients = nil
}
