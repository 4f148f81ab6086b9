package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/ethereum/go-ethereum/rpc"
)

// Indexing methods offered by some hosted nodes.
const (
	methodTransfers    = "qn_getTransfersByAddress"
	methodTransactions = "qn_getTransactionsByAddress"

	codeMethodNotFound = -32601
)

// quantity is an integer the index returns either as a JSON number,
// a decimal string or a 0x-prefixed hex string.
type quantity struct{ v *big.Int }

func (q *quantity) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		q.v = nil
		return nil
	}
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return fmt.Errorf("invalid quantity %s", b)
	}
	q.v = n
	return nil
}

func (q quantity) big() *big.Int {
	if q.v == nil {
		return new(big.Int)
	}
	return q.v
}

type indexTransfer struct {
	From        string   `json:"from"`
	FromAddress string   `json:"fromAddress"`
	To          string   `json:"to"`
	ToAddress   string   `json:"toAddress"`
	Value       quantity `json:"value"`
	ValueWei    quantity `json:"valueWei"`
}

type indexTransfers struct {
	Transfers []indexTransfer `json:"transfers"`
	Data      []indexTransfer `json:"data"`
}

type indexTransaction struct {
	Hash            string   `json:"hash"`
	TransactionHash string   `json:"transactionHash"`
	From            string   `json:"from"`
	FromAddress     string   `json:"fromAddress"`
	To              string   `json:"to"`
	ToAddress       string   `json:"toAddress"`
	Value           quantity `json:"value"`
	ValueWei        quantity `json:"valueWei"`
	BlockNumber     quantity `json:"blockNumber"`
	Block           quantity `json:"block"`
	BlockTimestamp  string   `json:"blockTimestamp"`
}

type indexTransactions struct {
	Transactions []indexTransaction `json:"transactions"`
	Data         []indexTransaction `json:"data"`
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

func valueOf(a, b quantity) *big.Int {
	if a.v != nil {
		return a.v
	}
	return b.big()
}

// IncomingTransfers implements ports.LedgerIndex with native-currency
// transfers into address.
func (l *Ledger) IncomingTransfers(ctx context.Context, address string, limit int) ([]domain.Transfer, error) {
	if limit <= 0 {
		limit = 100
	}
	var resp indexTransfers
	err := l.callIndex(ctx, &resp, methodTransfers, map[string]any{
		"address":   address,
		"page":      1,
		"perPage":   limit,
		"direction": "incoming",
		"contract":  "native",
	})
	if err != nil {
		return nil, err
	}
	items := resp.Transfers
	if len(items) == 0 {
		items = resp.Data
	}
	out := make([]domain.Transfer, 0, len(items))
	for _, it := range items {
		out = append(out, domain.Transfer{
			From:  firstOf(it.From, it.FromAddress),
			To:    firstOf(it.To, it.ToAddress),
			Value: valueOf(it.Value, it.ValueWei),
		})
	}
	return out, nil
}

// RecentTransactions implements ports.LedgerIndex. Transactions are returned
// newest first. Missing timestamps are resolved from the block header.
func (l *Ledger) RecentTransactions(ctx context.Context, address string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 6
	}
	var resp indexTransactions
	err := l.callIndex(ctx, &resp, methodTransactions, map[string]any{
		"address": address,
		"page":    1,
		"perPage": limit,
		"sort":    "desc",
	})
	if err != nil {
		return nil, err
	}
	items := resp.Transactions
	if len(items) == 0 {
		items = resp.Data
	}
	out := make([]domain.Transaction, 0, len(items))
	for _, it := range items {
		tx := domain.Transaction{
			Hash:  firstOf(it.Hash, it.TransactionHash),
			From:  firstOf(it.From, it.FromAddress),
			To:    firstOf(it.To, it.ToAddress),
			Value: valueOf(it.Value, it.ValueWei),
		}
		tx.Timestamp = l.timestamp(ctx, it)
		out = append(out, tx)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Ledger) timestamp(ctx context.Context, it indexTransaction) time.Time {
	if it.BlockTimestamp != "" {
		if ts, err := time.Parse(time.RFC3339, it.BlockTimestamp); err == nil {
			return ts.UTC()
		}
	}
	block := it.BlockNumber.v
	if block == nil {
		block = it.Block.v
	}
	if block != nil {
		header, err := l.backend.HeaderByNumber(ctx, block)
		if err == nil && header != nil {
			return time.Unix(int64(header.Time), 0).UTC()
		}
		l.logger.Debug("block header lookup failed", "block", block.String(), "err", err)
	}
	return time.Now().UTC()
}

func (l *Ledger) callIndex(ctx context.Context, result any, method string, params map[string]any) error {
	if l.raw == nil {
		return domain.ErrUnsupported
	}
	var raw json.RawMessage
	if err := l.raw.CallContext(ctx, &raw, method, params); err != nil {
		if isMethodNotFound(err) {
			return fmt.Errorf("%s: %w", method, domain.ErrUnsupported)
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	return nil
}

func isMethodNotFound(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeMethodNotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "method not found") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "not supported")
}
