package evm

import (
	"context"
	"fmt"
	"iter"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/pushchain/push-pool-client/poolClient/config"
	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// Client implements ledger.Ledger against an EVM StakingPool contract
type Client struct {
	rpcClient  *RPCClient
	reader     *SlotReader
	subscriber *Subscriber
	transactor *Transactor
	chain      string
	logger     zerolog.Logger
}

var _ ledger.Ledger = (*Client)(nil)

// NewClient dials the configured RPC endpoints and assembles the client
func NewClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	chainID, err := cfg.EVMChainID()
	if err != nil {
		return nil, err
	}

	rpcClient, err := NewRPCClient(ctx, cfg.RPCURLs, chainID, cfg.RPCRequestsPerSecond, logger)
	if err != nil {
		return nil, errors.NewNetworkError(cfg.ChainID, "failed to create RPC client", err)
	}

	client, err := NewClientWithRPC(rpcClient, cfg, logger)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	return client, nil
}

// NewClientWithRPC assembles the client over an existing RPC client
func NewClientWithRPC(rpcClient *RPCClient, cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	chainID, err := cfg.EVMChainID()
	if err != nil {
		return nil, err
	}
	if !ethcommon.IsHexAddress(cfg.ContractAddress) {
		return nil, errors.NewConfigError(cfg.ChainID, fmt.Sprintf("invalid contract address %q", cfg.ContractAddress))
	}
	contractAddr := ethcommon.HexToAddress(cfg.ContractAddress)

	log := logger.With().
		Str("chain", cfg.ChainID).
		Str("contract", contractAddr.Hex()).
		Logger()

	contractABI, err := ParseABI("")
	if err != nil {
		return nil, errors.NewInternalError(cfg.ChainID, "failed to parse contract ABI", err)
	}

	parser, err := NewEventParser(contractAddr, contractABI, cfg.EventTypes, log)
	if err != nil {
		return nil, errors.NewConfigError(cfg.ChainID, err.Error())
	}
	for _, slot := range cfg.Slots {
		if _, ok := contractABI.Methods[slot]; !ok {
			return nil, errors.NewConfigError(cfg.ChainID, fmt.Sprintf("slot %s not found in contract ABI", slot))
		}
	}

	transactor, err := NewTransactor(rpcClient, contractABI, contractAddr,
		cfg.SignerPrivateKeyHex, chainID, cfg.GasLimit, cfg.ChainID, log)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient:  rpcClient,
		reader:     NewSlotReader(rpcClient, contractABI, contractAddr, cfg.ChainID),
		subscriber: NewSubscriber(rpcClient, parser, contractAddr, cfg.MaxBlockRange, cfg.ChainID, log),
		transactor: transactor,
		chain:      cfg.ChainID,
		logger:     log.With().Str("component", "evm_client").Logger(),
	}, nil
}

func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	head, err := c.rpcClient.GetLatestBlock(ctx)
	if err != nil {
		return 0, classifyRead(c.chain, "get block number", err)
	}
	return head, nil
}

func (c *Client) ReadSlot(ctx context.Context, slot string, args ...any) (ledger.Snapshot, error) {
	return c.reader.ReadSlot(ctx, slot, args...)
}

func (c *Client) SubscribeEvents(ctx context.Context, eventType string, from, to uint64) iter.Seq2[ledger.LedgerEvent, error] {
	return c.subscriber.SubscribeEvents(ctx, eventType, from, to)
}

func (c *Client) SubmitCommand(ctx context.Context, method string, args ...any) (string, error) {
	return c.transactor.Submit(ctx, method, args...)
}

func (c *Client) CommandReceipt(ctx context.Context, requestID string) (ledger.Receipt, bool, error) {
	return c.transactor.Receipt(ctx, requestID)
}

// IsHealthy reports whether any endpoint answers
func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.rpcClient.IsHealthy(ctx)
}

// Close releases the RPC connections
func (c *Client) Close() {
	c.rpcClient.Close()
}
