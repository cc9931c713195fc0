package submitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	stdmath "math"
	"math/big"
	"strings"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/spf13/cast"
)

// Kind is the type of one command parameter as the user supplies it.
type Kind string

const (
	KindUint      Kind = "uint"    // decimal integer up to 2^256-1
	KindEther     Kind = "ether"   // decimal ether amount, sent as wei
	KindUintList  Kind = "uint[]"  // JSON array of integers
	KindBytes     Kind = "bytes"   // 0x hex
	KindBytes32   Kind = "bytes32" // 0x hex, exactly 32 bytes
	KindBytesList Kind = "bytes[]" // JSON array of 0x hex strings
)

// Param describes one positional parameter.
type Param struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Command maps a target slot to the contract method that updates it.
type Command struct {
	TargetSlot string  `json:"target_slot"`
	Method     string  `json:"method"`
	Params     []Param `json:"params"`
}

// Catalog is the set of commands a submitter accepts, keyed by target slot.
type Catalog map[string]Command

// DefaultCatalog lists the StakingPool management calls.
func DefaultCatalog() Catalog {
	return Catalog{
		"operators": {
			TargetSlot: "operators",
			Method:     "updateOperators",
			Params:     []Param{{Name: "operatorIds", Kind: KindUintList}},
		},
		"beacon_rewards": {
			TargetSlot: "beacon_rewards",
			Method:     "updateBeaconRewards",
			Params:     []Param{{Name: "amount", Kind: KindEther}},
		},
		"shares": {
			TargetSlot: "shares",
			Method:     "depositShares",
			Params: []Param{
				{Name: "pubkey", Kind: KindBytes},
				{Name: "operatorIds", Kind: KindUintList},
				{Name: "sharesPublicKeys", Kind: KindBytesList},
				{Name: "sharesEncrypted", Kind: KindBytesList},
				{Name: "amount", Kind: KindEther},
			},
		},
		"validators": {
			TargetSlot: "validators",
			Method:     "depositValidator",
			Params: []Param{
				{Name: "pubkey", Kind: KindBytes},
				{Name: "withdrawalCredentials", Kind: KindBytes},
				{Name: "signature", Kind: KindBytes},
				{Name: "depositDataRoot", Kind: KindBytes32},
			},
		},
	}
}

// Encode converts raw user parameters into contract call arguments. Every
// error is a user input problem.
func (c Command) Encode(raw []any) ([]any, error) {
	if len(raw) != len(c.Params) {
		return nil, fmt.Errorf("%s expects %d parameters (%s), got %d",
			c.TargetSlot, len(c.Params), c.paramNames(), len(raw))
	}

	args := make([]any, len(raw))
	for i, p := range c.Params {
		v, err := convert(p.Kind, raw[i])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		args[i] = v
	}
	return args, nil
}

func (c Command) paramNames() string {
	names := make([]string, len(c.Params))
	for i, p := range c.Params {
		names[i] = p.Name + ":" + string(p.Kind)
	}
	return strings.Join(names, ", ")
}

func convert(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("missing value")
	}
	switch kind {
	case KindUint:
		return parseUint(v)
	case KindEther:
		return parseEther(v)
	case KindUintList:
		items, err := parseList(v)
		if err != nil {
			return nil, err
		}
		out := make([]*big.Int, len(items))
		for i, item := range items {
			n, err := parseUint(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case KindBytes:
		return parseBytes(v)
	case KindBytes32:
		b, err := parseBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) != 32 {
			return nil, fmt.Errorf("expected 32 bytes, got %d", len(b))
		}
		var out [32]byte
		copy(out[:], b)
		return out, nil
	case KindBytesList:
		items, err := parseList(v)
		if err != nil {
			return nil, err
		}
		out := make([][]byte, len(items))
		for i, item := range items {
			b, err := parseBytes(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported parameter kind %q", kind)
	}
}

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

func parseUint(v any) (*big.Int, error) {
	switch f := v.(type) {
	case float32:
		v = float64(f)
		if err := checkExactFloat(float64(f)); err != nil {
			return nil, err
		}
	case float64:
		if err := checkExactFloat(f); err != nil {
			return nil, err
		}
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %v", v)
	}
	n, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid unsigned integer %q: %v", s, err)
	}
	return n.ToBig(), nil
}

// checkExactFloat rejects numbers that were already rounded when decoded
// into a float, so a large id is never submitted as a neighbouring value.
func checkExactFloat(f float64) error {
	if stdmath.IsNaN(f) || stdmath.IsInf(f, 0) || f != stdmath.Trunc(f) || stdmath.Abs(f) > maxExactFloat {
		return fmt.Errorf("number %v is not an exact integer, send it as a string", f)
	}
	return nil
}

// parseEther converts a decimal ether amount into wei. LegacyDec carries
// exactly 18 fractional digits, so its internal integer is the wei value.
func parseEther(v any) (*big.Int, error) {
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, fmt.Errorf("not a decimal amount: %v", v)
	}
	d, err := math.LegacyNewDecFromStr(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q: %v", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("ether amount %q is negative", s)
	}
	wei := d.BigInt()
	if _, overflow := uint256.FromBig(wei); overflow {
		return nil, fmt.Errorf("ether amount %q overflows uint256", s)
	}
	return wei, nil
}

func parseBytes(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected 0x hex string, got %T", v)
	}
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %v", s, err)
	}
	return b, nil
}

// parseList accepts either a decoded list or a JSON array in a string.
func parseList(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	case string:
		dec := json.NewDecoder(bytes.NewReader([]byte(x)))
		dec.UseNumber()
		var items []any
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("expected a JSON array: %v", err)
		}
		if dec.More() {
			return nil, fmt.Errorf("expected a single JSON array")
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected a JSON array, got %T", v)
	}
}
