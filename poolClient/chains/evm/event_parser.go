package evm

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// EventParser decodes contract logs into ledger events
type EventParser struct {
	contractAddr ethcommon.Address
	byTopic      map[ethcommon.Hash]abi.Event
	topics       map[string]ethcommon.Hash
	logger       zerolog.Logger
}

// NewEventParser creates a parser for the given event types of the ABI
func NewEventParser(
	contractAddr ethcommon.Address,
	contractABI abi.ABI,
	eventTypes []string,
	logger zerolog.Logger,
) (*EventParser, error) {
	byTopic := make(map[ethcommon.Hash]abi.Event, len(eventTypes))
	topics := make(map[string]ethcommon.Hash, len(eventTypes))

	for _, name := range eventTypes {
		ev, ok := contractABI.Events[name]
		if !ok {
			return nil, fmt.Errorf("event %s not found in contract ABI", name)
		}
		byTopic[ev.ID] = ev
		topics[name] = ev.ID
		logger.Debug().
			Str("event", name).
			Str("topic", ev.ID.Hex()).
			Msg("registered event topic")
	}

	return &EventParser{
		contractAddr: contractAddr,
		byTopic:      byTopic,
		topics:       topics,
		logger:       logger.With().Str("component", "evm_event_parser").Logger(),
	}, nil
}

// Topic returns the signature topic of a registered event type
func (ep *EventParser) Topic(eventType string) (ethcommon.Hash, bool) {
	t, ok := ep.topics[eventType]
	return t, ok
}

// Parse decodes one log. Indexed and data arguments are merged back into
// declaration order.
func (ep *EventParser) Parse(log *types.Log) (ledger.LedgerEvent, error) {
	if len(log.Topics) == 0 {
		return ledger.LedgerEvent{}, fmt.Errorf("log %s:%d has no topics", log.TxHash.Hex(), log.Index)
	}
	if log.Address != ep.contractAddr {
		return ledger.LedgerEvent{}, fmt.Errorf("log emitted by %s, expected %s", log.Address.Hex(), ep.contractAddr.Hex())
	}
	ev, ok := ep.byTopic[log.Topics[0]]
	if !ok {
		return ledger.LedgerEvent{}, fmt.Errorf("unknown event topic %s", log.Topics[0].Hex())
	}

	values := make(map[string]any, len(ev.Inputs))

	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
			return ledger.LedgerEvent{}, fmt.Errorf("failed to parse %s topics: %w", ev.Name, err)
		}
	}
	if len(log.Data) > 0 {
		if err := ev.Inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
			return ledger.LedgerEvent{}, fmt.Errorf("failed to unpack %s data: %w", ev.Name, err)
		}
	}

	payload := make([]ledger.Field, 0, len(ev.Inputs))
	for _, in := range ev.Inputs {
		payload = append(payload, ledger.Field{
			Name:  in.Name,
			Type:  in.Type.String(),
			Value: normalizeValue(values[in.Name]),
		})
	}

	return ledger.LedgerEvent{
		BlockHeight:     log.BlockNumber,
		SequenceInBlock: log.Index,
		EventType:       ev.Name,
		Payload:         payload,
		BlockHash:       log.BlockHash.Hex(),
		TxHash:          log.TxHash.Hex(),
	}, nil
}

// normalizeValue turns ABI-decoded values into JSON friendly ones: integers
// wider than 64 bits become decimal strings, addresses become checksummed
// hex and byte strings become 0x hex.
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case ethcommon.Address:
		return x.Hex()
	case ethcommon.Hash:
		return x.Hex()
	case []byte:
		return hexutil.Encode(x)
	case uint8, uint16, uint32, uint64, int8, int16, int32, int64:
		// decimal strings, same as *big.Int
		return fmt.Sprintf("%d", x)
	case string, bool:
		return x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return hexutil.Encode(b)
		}
		return normalizeList(rv)
	case reflect.Slice:
		return normalizeList(rv)
	}
	return v
}

func normalizeList(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = normalizeValue(rv.Index(i).Interface())
	}
	return out
}
