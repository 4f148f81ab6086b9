package finance

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
)

func asBigInt(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return new(big.Int), nil
		}
		return x, nil
	case big.Int:
		return &x, nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case uint8:
		return big.NewInt(int64(x)), nil
	case string:
		n, ok := new(big.Int).SetString(x, 0)
		if !ok {
			return nil, fmt.Errorf("not an integer: %q", x)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unexpected ledger value %T", v)
	}
}

func asInt(v any) (int, error) {
	n, err := asBigInt(v)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("value %s overflows int", n)
	}
	return int(n.Int64()), nil
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func first(out []any, method string) (any, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return out[0], nil
}

// decodeProposal maps the outputs of the proposal view
// (recipient, amount, description, deadline, confirmations, type, status).
func decodeProposal(id int, out []any) (domain.Proposal, error) {
	if len(out) < 7 {
		return domain.Proposal{}, fmt.Errorf("proposal %d: expected 7 values, got %d", id, len(out))
	}
	amount, err := asBigInt(out[1])
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("proposal %d amount: %w", id, err)
	}
	deadline, err := asBigInt(out[3])
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("proposal %d deadline: %w", id, err)
	}
	confirmations, err := asInt(out[4])
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("proposal %d confirmations: %w", id, err)
	}
	typ, err := asInt(out[5])
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("proposal %d type: %w", id, err)
	}
	status, err := asInt(out[6])
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("proposal %d status: %w", id, err)
	}
	return domain.Proposal{
		ID:            id,
		Recipient:     strings.ToLower(asString(out[0])),
		Amount:        amount,
		Description:   asString(out[2]),
		Deadline:      time.Unix(deadline.Int64(), 0).UTC(),
		Confirmations: confirmations,
		Type:          domain.ProposalType(typ),
		Status:        domain.ProposalStatus(status),
	}, nil
}
