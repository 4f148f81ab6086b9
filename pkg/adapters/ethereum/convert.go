package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// packArgs converts domain-level arguments (strings, ints) into the Go types
// the ABI encoder expects for method's inputs.
func packArgs(m abi.Method, args []any) ([]any, error) {
	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", m.Name, len(m.Inputs), len(args))
	}
	out := make([]any, len(args))
	for i, in := range m.Inputs {
		v, err := toABI(in.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("%s argument %q: %w", m.Name, in.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func toABI(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		return toAddress(v)
	case abi.SliceTy:
		if t.Elem == nil || t.Elem.T != abi.AddressTy {
			return nil, fmt.Errorf("unsupported slice type %s", t)
		}
		return toAddresses(v)
	case abi.UintTy, abi.IntTy:
		n, err := toBig(v)
		if err != nil {
			return nil, err
		}
		if t.Size > 64 {
			return n, nil
		}
		if t.Size == 8 && t.T == abi.UintTy {
			return uint8(n.Uint64()), nil
		}
		return nil, fmt.Errorf("unsupported integer type %s", t)
	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return s, nil
	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported abi type %s", t)
	}
}

func toAddress(v any) (common.Address, error) {
	switch x := v.(type) {
	case common.Address:
		return x, nil
	case string:
		if !common.IsHexAddress(x) {
			return common.Address{}, fmt.Errorf("invalid address %q", x)
		}
		return common.HexToAddress(x), nil
	default:
		return common.Address{}, fmt.Errorf("want address, got %T", v)
	}
}

func toAddresses(v any) ([]common.Address, error) {
	switch x := v.(type) {
	case []common.Address:
		return x, nil
	case []string:
		out := make([]common.Address, len(x))
		for i, s := range x {
			a, err := toAddress(s)
			if err != nil {
				return nil, err
			}
			out[i] = a
		}
		return out, nil
	default:
		return nil, fmt.Errorf("want address list, got %T", v)
	}
}

func toBig(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		return x, nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case string:
		n, ok := new(big.Int).SetString(x, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", x)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("want integer, got %T", v)
	}
}

// normalize turns decoded values into the shapes the rest of the module uses:
// addresses become lower-case hex strings.
func normalize(v any) any {
	switch x := v.(type) {
	case common.Address:
		return strings.ToLower(x.Hex())
	case []common.Address:
		out := make([]string, len(x))
		for i, a := range x {
			out[i] = strings.ToLower(a.Hex())
		}
		return out
	case common.Hash:
		return x.Hex()
	default:
		return v
	}
}

func normalizeAll(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = normalize(v)
	}
	return out
}

// decodeLogs decodes every receipt log that matches a known event.
// Unknown logs are skipped.
func decodeLogs(known []abi.Event, logs []*types.Log) ([]domain.Event, error) {
	var out []domain.Event
	for _, lg := range logs {
		if lg == nil || len(lg.Topics) == 0 {
			continue
		}
		for _, ev := range known {
			if ev.ID != lg.Topics[0] {
				continue
			}
			args := make(map[string]any)
			if err := ev.Inputs.NonIndexed().UnpackIntoMap(args, lg.Data); err != nil {
				return nil, fmt.Errorf("decode %s data: %w", ev.Name, err)
			}
			var indexed abi.Arguments
			for _, in := range ev.Inputs {
				if in.Indexed {
					indexed = append(indexed, in)
				}
			}
			if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
				return nil, fmt.Errorf("decode %s topics: %w", ev.Name, err)
			}
			for k, v := range args {
				args[k] = normalize(v)
			}
			out = append(out, domain.Event{Name: ev.Name, Args: args})
			break
		}
	}
	return out, nil
}
