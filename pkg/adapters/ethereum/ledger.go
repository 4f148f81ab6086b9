// Package ethereum implements the ledger ports against an EVM JSON-RPC node.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/ports"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	DefaultReceiptPoll    = 2 * time.Second
	DefaultReceiptTimeout = 3 * time.Minute
)

// ErrReverted is returned when a mined transaction has a failed status.
var ErrReverted = errors.New("transaction reverted")

// Backend is the subset of *ethclient.Client the ledger uses.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// RawCaller issues node-specific JSON-RPC methods. *rpc.Client satisfies it.
type RawCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Ledger is a ports.Ledger and ports.LedgerIndex backed by an EVM node.
type Ledger struct {
	backend   Backend
	raw       RawCaller
	contracts contracts
	key       *ecdsa.PrivateKey
	from      common.Address
	chainID   *big.Int
	poll      time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	close     func()
}

var (
	_ ports.Ledger      = (*Ledger)(nil)
	_ ports.LedgerIndex = (*Ledger)(nil)
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithSigner sets the private key used for writes.
// Without it the ledger is read-only.
func WithSigner(key *ecdsa.PrivateKey) Option {
	return func(l *Ledger) {
		l.key = key
		if key != nil {
			l.from = crypto.PubkeyToAddress(key.PublicKey)
		}
	}
}

// WithChainID pins the chain id used for signing.
func WithChainID(id *big.Int) Option {
	return func(l *Ledger) { l.chainID = id }
}

// WithReceiptPolling sets how often and for how long Write waits for a receipt.
func WithReceiptPolling(every, timeout time.Duration) Option {
	return func(l *Ledger) {
		if every > 0 {
			l.poll = every
		}
		if timeout > 0 {
			l.timeout = timeout
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// ParseKey decodes a hex private key, with or without the 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}
	return key, nil
}

// Dial connects to the node at url.
// The chain id is fetched from the node unless WithChainID is given.
func Dial(ctx context.Context, url string, opts ...Option) (*Ledger, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial ledger node: %w", err)
	}
	client := ethclient.NewClient(rc)
	l, err := New(client, rc, opts...)
	if err != nil {
		rc.Close()
		return nil, err
	}
	if l.chainID == nil && l.key != nil {
		id, err := client.ChainID(ctx)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("fetch chain id: %w", err)
		}
		l.chainID = id
	}
	l.close = rc.Close
	return l, nil
}

// Close releases the node connection opened by Dial.
func (l *Ledger) Close() {
	if l.close != nil {
		l.close()
	}
}

// New wraps an existing backend. raw may be nil, in which case the
// indexing methods report domain.ErrUnsupported.
func New(backend Backend, raw RawCaller, opts ...Option) (*Ledger, error) {
	c, err := loadContracts()
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		backend:   backend,
		raw:       raw,
		contracts: c,
		poll:      DefaultReceiptPoll,
		timeout:   DefaultReceiptTimeout,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Signer returns the account that signs writes, or "" for a read-only ledger.
func (l *Ledger) Signer() string {
	if l.key == nil {
		return ""
	}
	return strings.ToLower(l.from.Hex())
}

// Read implements ports.Ledger.
func (l *Ledger) Read(ctx context.Context, contract, method string, args ...any) ([]any, error) {
	m, err := l.contracts.method(method)
	if err != nil {
		return nil, err
	}
	to, err := toAddress(contract)
	if err != nil {
		return nil, err
	}
	packed, err := packArgs(m, args)
	if err != nil {
		return nil, err
	}
	data, err := m.Inputs.Pack(packed...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := l.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: calldata(m.ID, data)}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, contract, err)
	}
	values, err := m.Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return normalizeAll(values), nil
}

// Write implements ports.Ledger. It blocks until the transaction is mined,
// the receipt timeout passes or ctx is done.
func (l *Ledger) Write(ctx context.Context, contract, method string, args ...any) (domain.Receipt, error) {
	if l.key == nil || l.chainID == nil {
		return domain.Receipt{}, errors.New("ledger has no signer configured")
	}
	m, err := l.contracts.method(method)
	if err != nil {
		return domain.Receipt{}, err
	}
	to, err := toAddress(contract)
	if err != nil {
		return domain.Receipt{}, err
	}
	packed, err := packArgs(m, args)
	if err != nil {
		return domain.Receipt{}, err
	}
	input, err := m.Inputs.Pack(packed...)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("pack %s: %w", method, err)
	}
	data := calldata(m.ID, input)

	nonce, err := l.backend.PendingNonceAt(ctx, l.from)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := l.backend.SuggestGasPrice(ctx)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("gas price: %w", err)
	}
	gas, err := l.backend.EstimateGas(ctx, ethereum.CallMsg{From: l.from, To: &to, Data: data})
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("estimate %s: %w", method, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(l.chainID), l.key)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("sign: %w", err)
	}
	if err := l.backend.SendTransaction(ctx, signed); err != nil {
		return domain.Receipt{}, fmt.Errorf("send %s: %w", method, err)
	}
	l.logger.Info("ledger write sent", "method", method, "contract", contract, "tx", signed.Hash().Hex())

	receipt, err := l.waitMined(ctx, signed.Hash())
	if err != nil {
		return domain.Receipt{TxHash: signed.Hash().Hex()}, err
	}
	events, err := decodeLogs(l.contracts.events(), receipt.Logs)
	if err != nil {
		return domain.Receipt{TxHash: signed.Hash().Hex()}, err
	}
	return domain.Receipt{TxHash: signed.Hash().Hex(), Events: events}, nil
}

func (l *Ledger) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		receipt, err := l.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, fmt.Errorf("%s: %w", hash.Hex(), ErrReverted)
			}
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Balance implements ports.Ledger.
func (l *Ledger) Balance(ctx context.Context, account string) (*big.Int, error) {
	addr, err := toAddress(account)
	if err != nil {
		return nil, err
	}
	bal, err := l.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", account, err)
	}
	return bal, nil
}

func calldata(selector, input []byte) []byte {
	out := make([]byte, 0, len(selector)+len(input))
	out = append(out, selector...)
	return append(out, input...)
}
