package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/ports"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	factoryAddr = "0x00000000000000000000000000000000000000fa"
	walletAddr  = "0x00000000000000000000000000000000000000aa"
	memberA     = "0x1111111111111111111111111111111111111111"
	memberB     = "0x2222222222222222222222222222222222222222"
)

type fakeBackend struct {
	mu sync.Mutex

	call     func(msg ethereum.CallMsg) ([]byte, error)
	receipt  func(hash common.Hash) (*types.Receipt, error)
	headers  map[int64]uint64
	balances map[common.Address]*big.Int

	sent  []*types.Transaction
	polls int
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return f.call(msg)
}

func (f *fakeBackend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if b, ok := f.balances[account]; ok {
		return b, nil
	}
	return new(big.Int), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 7, nil }

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(1e9), nil }

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 300000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	f.polls++
	f.mu.Unlock()
	return f.receipt(hash)
}

func (f *fakeBackend) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	ts, ok := f.headers[number.Int64()]
	if !ok {
		return nil, errors.New("unknown block")
	}
	return &types.Header{Number: number, Time: ts}, nil
}

type rpcError struct {
	code int
	msg  string
}

func (e rpcError) Error() string  { return e.msg }
func (e rpcError) ErrorCode() int { return e.code }

type fakeRaw struct {
	responses map[string]string
	err       error
	params    []any
}

func (f *fakeRaw) CallContext(_ context.Context, result any, method string, args ...any) error {
	f.params = args
	if f.err != nil {
		return f.err
	}
	body, ok := f.responses[method]
	if !ok {
		return rpcError{code: codeMethodNotFound, msg: "the method " + method + " does not exist/is not available"}
	}
	return json.Unmarshal([]byte(body), result)
}

func newTestLedger(t *testing.T, backend Backend, raw RawCaller, opts ...Option) *Ledger {
	t.Helper()
	l, err := New(backend, raw, opts...)
	require.NoError(t, err)
	return l
}

func TestRead_DecodesProposal(t *testing.T) {
	c, err := loadContracts()
	require.NoError(t, err)
	m := c.wallet.Methods[ports.MethodProposal]

	var gotID *big.Int
	backend := &fakeBackend{call: func(msg ethereum.CallMsg) ([]byte, error) {
		require.Equal(t, common.HexToAddress(walletAddr), *msg.To)
		require.Equal(t, m.ID, msg.Data[:4])
		in, err := m.Inputs.Unpack(msg.Data[4:])
		require.NoError(t, err)
		gotID = in[0].(*big.Int)
		return m.Outputs.Pack(
			common.HexToAddress("0xABCDEF0000000000000000000000000000000001"),
			big.NewInt(5e17),
			"pago de luz",
			big.NewInt(1760000000),
			big.NewInt(2),
			uint8(domain.ProposalExpense),
			uint8(domain.ProposalExecuted),
		)
	}}
	l := newTestLedger(t, backend, nil)

	out, err := l.Read(context.Background(), walletAddr, ports.MethodProposal, 2)
	require.NoError(t, err)
	require.Len(t, out, 7)
	assert.Equal(t, int64(2), gotID.Int64())
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", out[0])
	assert.Equal(t, "500000000000000000", out[1].(*big.Int).String())
	assert.Equal(t, "pago de luz", out[2])
	assert.Equal(t, uint8(domain.ProposalExecuted), out[6])
}

func TestRead_AddressList(t *testing.T) {
	c, err := loadContracts()
	require.NoError(t, err)
	m := c.factory.Methods[ports.MethodAllWallets]

	backend := &fakeBackend{call: func(ethereum.CallMsg) ([]byte, error) {
		return m.Outputs.Pack([]common.Address{common.HexToAddress(memberA), common.HexToAddress(memberB)})
	}}
	l := newTestLedger(t, backend, nil)

	out, err := l.Read(context.Background(), factoryAddr, ports.MethodAllWallets)
	require.NoError(t, err)
	assert.Equal(t, []string{memberA, memberB}, out[0])
}

func TestRead_RejectsBadArguments(t *testing.T) {
	backend := &fakeBackend{call: func(ethereum.CallMsg) ([]byte, error) {
		t.Fatal("node must not be called")
		return nil, nil
	}}
	l := newTestLedger(t, backend, nil)
	ctx := context.Background()

	_, err := l.Read(ctx, walletAddr, "noSuchMethod")
	assert.Error(t, err)

	_, err = l.Read(ctx, "not-an-address", ports.MethodWalletBalance)
	assert.Error(t, err)

	_, err = l.Read(ctx, walletAddr, ports.MethodProposal)
	assert.ErrorContains(t, err, "expects 1 arguments")

	_, err = l.Read(ctx, walletAddr, ports.MethodProposal, "x")
	assert.Error(t, err)
}

func walletCreatedLog(t *testing.T, owner, wallet string) *types.Log {
	t.Helper()
	c, err := loadContracts()
	require.NoError(t, err)
	ev := c.factory.Events[ports.EventWalletCreated]
	data, err := ev.Inputs.NonIndexed().Pack(common.HexToAddress(wallet))
	require.NoError(t, err)
	return &types.Log{
		Topics: []common.Hash{ev.ID, common.BytesToHash(common.HexToAddress(owner).Bytes())},
		Data:   data,
	}
}

func TestWrite_SignsAndDecodesEvents(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	chainID := big.NewInt(1337)

	backend := &fakeBackend{}
	backend.receipt = func(common.Hash) (*types.Receipt, error) {
		if backend.polls < 2 {
			return nil, ethereum.NotFound
		}
		return &types.Receipt{
			Status: types.ReceiptStatusSuccessful,
			Logs:   []*types.Log{{Topics: []common.Hash{{0x01}}}, walletCreatedLog(t, memberB, walletAddr)},
		}, nil
	}
	l := newTestLedger(t, backend, nil,
		WithSigner(key), WithChainID(chainID), WithReceiptPolling(time.Millisecond, time.Second))

	receipt, err := l.Write(context.Background(), factoryAddr, ports.MethodCreateWallet,
		[]string{memberA, memberB}, memberB, "Vecinos", "")
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, tx.Hash().Hex(), receipt.TxHash)
	assert.Equal(t, uint64(7), tx.Nonce())

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, l.Signer(), strings.ToLower(sender.Hex()))

	ev, ok := receipt.Find(ports.EventWalletCreated)
	require.True(t, ok)
	assert.Equal(t, walletAddr, ev.Args["walletAddress"])
	assert.Equal(t, memberB, ev.Args["owner"])
	assert.GreaterOrEqual(t, backend.polls, 2)
}

func TestWrite_Reverted(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend := &fakeBackend{receipt: func(common.Hash) (*types.Receipt, error) {
		return &types.Receipt{Status: types.ReceiptStatusFailed}, nil
	}}
	l := newTestLedger(t, backend, nil, WithSigner(key), WithChainID(big.NewInt(1)))

	receipt, err := l.Write(context.Background(), factoryAddr, ports.MethodCreateWallet,
		[]string{memberA}, memberA, "x", "")
	assert.ErrorIs(t, err, ErrReverted)
	assert.NotEmpty(t, receipt.TxHash)
}

func TestWrite_ReceiptTimeout(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend := &fakeBackend{receipt: func(common.Hash) (*types.Receipt, error) {
		return nil, ethereum.NotFound
	}}
	l := newTestLedger(t, backend, nil, WithSigner(key), WithChainID(big.NewInt(1)),
		WithReceiptPolling(time.Millisecond, 20*time.Millisecond))

	_, err = l.Write(context.Background(), factoryAddr, ports.MethodCreateWallet,
		[]string{memberA}, memberA, "x", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWrite_RequiresSigner(t *testing.T) {
	l := newTestLedger(t, &fakeBackend{}, nil)
	assert.Empty(t, l.Signer())
	_, err := l.Write(context.Background(), factoryAddr, ports.MethodCreateWallet,
		[]string{memberA}, memberA, "x", "")
	assert.ErrorContains(t, err, "no signer")
}

func TestBalance(t *testing.T) {
	backend := &fakeBackend{balances: map[common.Address]*big.Int{
		common.HexToAddress(memberA): big.NewInt(42),
	}}
	l := newTestLedger(t, backend, nil)

	bal, err := l.Balance(context.Background(), memberA)
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal.Int64())

	_, err = l.Balance(context.Background(), "0x12")
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	parsed, err := ParseKey(hexKey)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(parsed.PublicKey))

	_, err = ParseKey("zz")
	assert.Error(t, err)
}

func TestIncomingTransfers(t *testing.T) {
	raw := &fakeRaw{responses: map[string]string{
		methodTransfers: `{"transfers":[
			{"from":"0xAAAA000000000000000000000000000000000001","to":"` + walletAddr + `","value":"0xde0b6b3a7640000"},
			{"fromAddress":"0xaaaa000000000000000000000000000000000002","toAddress":"` + walletAddr + `","valueWei":"2000"},
			{"from":"0xaaaa000000000000000000000000000000000003","value":5}
		]}`,
	}}
	l := newTestLedger(t, &fakeBackend{}, raw)

	got, err := l.IncomingTransfers(context.Background(), walletAddr, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "0xaaaa000000000000000000000000000000000001", got[0].From)
	assert.Equal(t, "1000000000000000000", got[0].Value.String())
	assert.Equal(t, "0xaaaa000000000000000000000000000000000002", got[1].From)
	assert.Equal(t, int64(2000), got[1].Value.Int64())
	assert.Equal(t, int64(5), got[2].Value.Int64())

	params := raw.params[0].(map[string]any)
	assert.Equal(t, "incoming", params["direction"])
	assert.Equal(t, 100, params["perPage"])
}

func TestRecentTransactions(t *testing.T) {
	raw := &fakeRaw{responses: map[string]string{
		methodTransactions: `{"data":[
			{"hash":"0x01","from":"` + memberA + `","to":"` + walletAddr + `","value":"10","blockTimestamp":"2026-10-17T11:00:00Z"},
			{"transactionHash":"0x02","from":"` + walletAddr + `","to":"` + memberB + `","value":"3","blockNumber":"0x10"}
		]}`,
	}}
	backend := &fakeBackend{headers: map[int64]uint64{16: 1760000000}}
	l := newTestLedger(t, backend, raw)

	got, err := l.RecentTransactions(context.Background(), walletAddr, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0x01", got[0].Hash)
	assert.Equal(t, time.Date(2026, 10, 17, 11, 0, 0, 0, time.UTC), got[0].Timestamp)
	assert.Equal(t, "0x02", got[1].Hash)
	assert.Equal(t, int64(1760000000), got[1].Timestamp.Unix())
	assert.Equal(t, int64(3), got[1].Value.Int64())
}

func TestIndex_Unsupported(t *testing.T) {
	ctx := context.Background()

	l := newTestLedger(t, &fakeBackend{}, &fakeRaw{})
	_, err := l.IncomingTransfers(ctx, walletAddr, 10)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
	_, err = l.RecentTransactions(ctx, walletAddr, 10)
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	bare := newTestLedger(t, &fakeBackend{}, nil)
	_, err = bare.IncomingTransfers(ctx, walletAddr, 10)
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	failing := newTestLedger(t, &fakeBackend{}, &fakeRaw{err: errors.New("connection refused")})
	_, err = failing.IncomingTransfers(ctx, walletAddr, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnsupported)
}

func TestIsMethodNotFound(t *testing.T) {
	assert.True(t, isMethodNotFound(rpcError{code: -32601, msg: "x"}))
	assert.True(t, isMethodNotFound(errors.New("Method not found")))
	assert.False(t, isMethodNotFound(rpcError{code: -32000, msg: "execution reverted"}))
}
