package evm

import (
	"context"
	"fmt"
	"iter"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// DefaultMaxBlockRange keeps eth_getLogs safely under the common 10000 block limit.
const DefaultMaxBlockRange uint64 = 9000

// Subscriber pulls contract events over a block range with eth_getLogs
type Subscriber struct {
	rpcClient     *RPCClient
	parser        *EventParser
	contractAddr  ethcommon.Address
	maxBlockRange uint64
	chain         string
	logger        zerolog.Logger
}

// NewSubscriber creates a subscriber
func NewSubscriber(
	rpcClient *RPCClient,
	parser *EventParser,
	contractAddr ethcommon.Address,
	maxBlockRange uint64,
	chain string,
	logger zerolog.Logger,
) *Subscriber {
	if maxBlockRange == 0 {
		maxBlockRange = DefaultMaxBlockRange
	}
	return &Subscriber{
		rpcClient:     rpcClient,
		parser:        parser,
		contractAddr:  contractAddr,
		maxBlockRange: maxBlockRange,
		chain:         chain,
		logger:        logger.With().Str("component", "evm_subscriber").Logger(),
	}
}

// SubscribeEvents yields events of eventType in [from, to]. Chunks are
// fetched only as iteration reaches them; the first error ends the sequence.
func (s *Subscriber) SubscribeEvents(ctx context.Context, eventType string, from, to uint64) iter.Seq2[ledger.LedgerEvent, error] {
	return func(yield func(ledger.LedgerEvent, error) bool) {
		topic, ok := s.parser.Topic(eventType)
		if !ok {
			yield(ledger.LedgerEvent{}, errors.NewValidationError(s.chain, fmt.Sprintf("unknown event type %q", eventType)))
			return
		}
		if from > to {
			return
		}

		currentFrom := from
		for {
			currentTo := currentFrom + s.maxBlockRange - 1
			if currentTo > to || currentTo < currentFrom {
				currentTo = to
			}

			logs, err := s.fetchChunk(ctx, topic, currentFrom, currentTo)
			if err != nil {
				yield(ledger.LedgerEvent{}, err)
				return
			}

			for i := range logs {
				if logs[i].Removed {
					continue
				}
				ev, err := s.parser.Parse(&logs[i])
				if err != nil {
					yield(ledger.LedgerEvent{}, errors.NewRPCError(s.chain, "failed to decode log", err))
					return
				}
				if !yield(ev, nil) {
					return
				}
			}

			if currentTo >= to {
				return
			}
			currentFrom = currentTo + 1
		}
	}
}

func (s *Subscriber) fetchChunk(ctx context.Context, topic ethcommon.Hash, from, to uint64) ([]types.Log, error) {
	if blockRange := to - from + 1; blockRange > 1000 {
		s.logger.Debug().
			Uint64("from_block", from).
			Uint64("to_block", to).
			Uint64("range_size", blockRange).
			Msg("processing block chunk")
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []ethcommon.Address{s.contractAddr},
		Topics:    [][]ethcommon.Hash{{topic}},
	}

	logs, err := s.rpcClient.FilterLogs(ctx, query)
	if err != nil {
		return nil, classifyRead(s.chain, fmt.Sprintf("get logs %d-%d", from, to), err)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
	return logs, nil
}
