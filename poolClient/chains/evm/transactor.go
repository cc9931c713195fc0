package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// NoSignerReason is the failure reason reported when no signing identity is configured.
const NoSignerReason = "no signing identity configured"

// Transactor signs and broadcasts contract calls with an operator supplied key
type Transactor struct {
	rpcClient    *RPCClient
	contractABI  abi.ABI
	contractAddr ethcommon.Address
	chainID      *big.Int
	gasLimit     uint64
	chain        string

	key  *ecdsa.PrivateKey
	from ethcommon.Address

	// one broadcast at a time keeps pending nonces sequential
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewTransactor creates a transactor. An empty key yields a read-only
// transactor whose submissions fail.
func NewTransactor(
	rpcClient *RPCClient,
	contractABI abi.ABI,
	contractAddr ethcommon.Address,
	privateKeyHex string,
	chainID int64,
	gasLimit uint64,
	chain string,
	logger zerolog.Logger,
) (*Transactor, error) {
	t := &Transactor{
		rpcClient:    rpcClient,
		contractABI:  contractABI,
		contractAddr: contractAddr,
		chainID:      big.NewInt(chainID),
		gasLimit:     gasLimit,
		chain:        chain,
		logger:       logger.With().Str("component", "evm_transactor").Logger(),
	}

	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		t.logger.Info().Msg("no signer key configured, submissions disabled")
		return t, nil
	}

	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, errors.NewConfigError(chain, fmt.Sprintf("invalid signer private key: %v", err))
	}
	t.key = key
	t.from = crypto.PubkeyToAddress(key.PublicKey)
	t.logger.Info().Str("signer", t.from.Hex()).Msg("signer loaded")
	return t, nil
}

// Signer returns the signing address, if any.
func (t *Transactor) Signer() (ethcommon.Address, bool) {
	return t.from, t.key != nil
}

// Submit packs, signs and broadcasts a call to method and returns the
// transaction hash once a node accepted it.
func (t *Transactor) Submit(ctx context.Context, method string, args ...any) (string, error) {
	if t.key == nil {
		return "", errors.NewSubmissionError(t.chain, NoSignerReason, nil)
	}

	data, err := t.contractABI.Pack(method, args...)
	if err != nil {
		return "", errors.NewValidationError(t.chain, fmt.Sprintf("invalid arguments for %s: %v", method, err))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	nonce, err := t.rpcClient.PendingNonceAt(ctx, t.from)
	if err != nil {
		return "", classifyRead(t.chain, "get pending nonce", err)
	}

	gasPrice, err := t.rpcClient.GetGasPrice(ctx)
	if err != nil {
		return "", classifyRead(t.chain, "get gas price", err)
	}

	gas := t.gasLimit
	if gas == 0 {
		gas, err = t.rpcClient.EstimateGas(ctx, ethereum.CallMsg{
			From:     t.from,
			To:       &t.contractAddr,
			GasPrice: gasPrice,
			Data:     data,
		})
		if err != nil {
			return "", classifySubmit(t.chain, err)
		}
	}

	tx := types.NewTransaction(nonce, t.contractAddr, big.NewInt(0), gas, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), t.key)
	if err != nil {
		return "", errors.NewTransactionError(t.chain, "failed to sign transaction", err)
	}

	if err := t.rpcClient.SendTransaction(ctx, signedTx); err != nil {
		return "", classifySubmit(t.chain, err)
	}

	txHash := signedTx.Hash().Hex()
	t.logger.Info().
		Str("method", method).
		Str("tx_hash", txHash).
		Uint64("nonce", nonce).
		Uint64("gas", gas).
		Msg("transaction broadcast")
	return txHash, nil
}

// Receipt reports inclusion of a broadcast transaction.
func (t *Transactor) Receipt(ctx context.Context, txHash string) (ledger.Receipt, bool, error) {
	if len(strings.TrimPrefix(txHash, "0x")) != 2*ethcommon.HashLength {
		return ledger.Receipt{}, false, errors.NewValidationError(t.chain, fmt.Sprintf("invalid transaction hash %q", txHash))
	}

	receipt, err := t.rpcClient.GetTransactionReceipt(ctx, ethcommon.HexToHash(txHash))
	if err != nil {
		return ledger.Receipt{}, false, classifyRead(t.chain, "get transaction receipt", err)
	}
	if receipt == nil {
		return ledger.Receipt{}, false, nil
	}

	var height uint64
	if receipt.BlockNumber != nil {
		height = receipt.BlockNumber.Uint64()
	}
	return ledger.Receipt{
		BlockHeight: height,
		Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
	}, true, nil
}
