package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/coperacha/pkg/adapters/memory"
	"github.com/aretw0/coperacha/pkg/bot"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/finance"
	"github.com/aretw0/coperacha/pkg/observability"
	"github.com/aretw0/coperacha/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	factory = "0x00000000000000000000000000000000000000fa"
	alice   = "0xa11ce00000000000000000000000000000000001"
	bob     = "0xb0b0000000000000000000000000000000000002"
	walletA = "0xaaaa000000000000000000000000000000000001"
	walletB = "0xbbbb000000000000000000000000000000000002"
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), finance.WeiPerNative)
}

type fakeBot struct {
	mu   sync.Mutex
	err  error
	msgs []domain.Message
}

func (b *fakeBot) Handle(_ context.Context, msg domain.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return b.err
}

type fixture struct {
	handler http.Handler
	bot     *fakeBot
	ledger  *memory.Ledger
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	l := memory.NewLedger(factory)
	l.Accounts[alice] = eth(2)
	l.AddWallet(walletA, &memory.Wallet{
		Balance: eth(3),
		Proposals: []domain.Proposal{
			{Recipient: bob, Amount: eth(1), Description: "pizza", Status: domain.ProposalPending},
			{Recipient: alice, Amount: eth(1), Description: "renta", Status: domain.ProposalExecuted},
		},
		Transfers: []domain.Transfer{
			{From: bob, To: walletA, Value: eth(1)},
			{From: alice, To: walletA, Value: eth(2)},
		},
	})
	l.AddWallet(walletB, &memory.Wallet{Balance: eth(5)})

	records := memory.NewRecordStore(
		domain.Record{Phone: "50411112222", Name: "Alice", Email: "alice@example.com", Address: alice, Wallets: []string{walletA, walletB}},
		domain.Record{Phone: "50433334444", Name: "Bob", Email: "bob@example.com", Address: bob, Wallets: []string{walletA}},
	)
	require.NoError(t, records.SetExchangeRate(context.Background(), 100))
	rates := finance.NewRates(records, finance.DefaultRate, nil)

	f := &fixture{bot: &fakeBot{}, ledger: l}
	f.handler = NewHandler(&Server{
		Bot:        f.bot,
		Finance:    finance.NewAggregator(l, records, rates),
		Governance: wallet.NewCreator(l, records, factory, wallet.WithBackoff(0)),
		Records:    records,
		Rates:      rates,
		Metrics:    observability.NewMetrics(nil).Handler(),
		Token:      token,
		Version:    "v0.1.0\n",
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestWebhook(t *testing.T) {
	f := newFixture(t, "")

	w, out := f.do(t, http.MethodPost, "/webhook", `{"from":"504","text":"hola"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "handled", out["status"])
	require.Len(t, f.bot.msgs, 1)
	assert.Equal(t, domain.Message{From: "504", Text: "hola"}, f.bot.msgs[0])

	cases := []struct {
		err    error
		code   int
		status string
	}{
		{bot.ErrThrottled, http.StatusTooManyRequests, ""},
		{fmt.Errorf("%w: %w", bot.ErrUnavailable, errors.New("redis down")), http.StatusServiceUnavailable, ""},
		{&domain.WriteError{Op: "create wallet", Err: errors.New("reverted")}, http.StatusOK, "degraded"},
	}
	for _, tc := range cases {
		f.bot.err = tc.err
		w, out := f.do(t, http.MethodPost, "/webhook", `{"from":"504","text":"1"}`)
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
		if tc.status != "" {
			assert.Equal(t, tc.status, out["status"])
		}
	}
}

func TestWebhook_RejectsBadRequests(t *testing.T) {
	f := newFixture(t, "s3cret")

	w, _ := f.do(t, http.MethodPost, "/webhook", `{"from":"504","text":"hola"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodPost, "/webhook", `{not json`, TokenHeader, "s3cret")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, "/webhook", `{"from":"  ","text":"hola"}`, TokenHeader, "s3cret")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, "/webhook", `{"from":"504","text":"hola"}`, TokenHeader, "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.bot.msgs, 1)
}

// slowBot holds every turn until release is closed.
type slowBot struct {
	entered chan context.Context
	release chan struct{}
	done    atomic.Bool
}

func (b *slowBot) Handle(ctx context.Context, _ domain.Message) error {
	b.entered <- ctx
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.done.Store(true)
	return nil
}

func TestWebhook_TurnOutlivesClient(t *testing.T) {
	b := &slowBot{entered: make(chan context.Context, 1), release: make(chan struct{})}
	srv := httptest.NewServer(NewHandler(&Server{Bot: b}))
	defer srv.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	_, err := client.Post(srv.URL+"/webhook", "application/json", strings.NewReader(`{"from":"504","text":"si"}`))
	require.Error(t, err, "client gives up before the turn ends")

	ctx := <-b.entered
	assert.Never(t, func() bool { return ctx.Err() != nil }, 100*time.Millisecond, 10*time.Millisecond)

	close(b.release)
	assert.Eventually(t, b.done.Load, time.Second, 10*time.Millisecond)
}

type queue struct {
	err  error
	msgs []domain.Message
}

func (q *queue) Submit(_ context.Context, msg domain.Message) error {
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func TestWebhook_Queued(t *testing.T) {
	q := &queue{}
	h := NewHandler(&Server{Queue: q})
	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
		return w
	}

	w := post(`{"from":" 504 ","text":"hola"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"queued"}`, w.Body.String())
	assert.Equal(t, []domain.Message{{From: "504", Text: "hola"}}, q.msgs)

	q.err = bot.ErrQueueFull
	w = post(`{"from":"504","text":"1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	q.err = bot.ErrQueueClosed
	assert.Equal(t, http.StatusServiceUnavailable, post(`{"from":"504","text":"1"}`).Code)
	assert.Len(t, q.msgs, 1)
}

func TestWebhook_QueuedThroughInbox(t *testing.T) {
	inbox := bot.NewInbox(1)
	h := NewHandler(&Server{Queue: inbox})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"from":"504","text":"hola"}`)))
	require.Equal(t, http.StatusAccepted, w.Code)

	msg := <-inbox.Messages()
	assert.Equal(t, "504", msg.From)
}

func TestGetBalances(t *testing.T) {
	f := newFixture(t, "")

	w, _ := f.do(t, http.MethodGet, "/saldos", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodGet, "/saldos?wallet=0x123", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out := f.do(t, http.MethodGet, "/saldos?wallet="+strings.ToUpper(alice[2:]), "")
	require.Equal(t, http.StatusBadRequest, w.Code, "missing 0x prefix")

	w, out = f.do(t, http.MethodGet, "/saldos?wallet="+alice, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, alice, out["address"])
	assert.Equal(t, 100.0, out["rate"])
	personal := out["personal"].(map[string]any)
	assert.Equal(t, 2.0, personal["eth"])
	assert.Equal(t, 200.0, personal["hnl"])
	community := out["community"].(map[string]any)
	assert.Equal(t, 8.0, community["eth"])
}

func TestGetDashboard(t *testing.T) {
	f := newFixture(t, "")

	w, _ := f.do(t, http.MethodGet, "/wallets/nope/dashboard", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out := f.do(t, http.MethodGet, "/wallets/"+walletA+"/dashboard", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, walletA, out["wallet"])
	balance := out["balance"].(map[string]any)
	assert.Equal(t, string(finance.StatusOK), balance["status"])
}

func TestGetContributions(t *testing.T) {
	f := newFixture(t, "")

	w, out := f.do(t, http.MethodGet, "/wallets/"+walletA+"/aportes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, out["count"])
	top := out["contributions"].([]any)[0].(map[string]any)
	assert.Equal(t, alice, top["address"])

	f.ledger.IndexDisabled = true
	w, _ = f.do(t, http.MethodGet, "/wallets/"+walletA+"/aportes", "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	f.ledger.IndexDisabled = false
	f.ledger.Unreachable[walletA] = true
	w, _ = f.do(t, http.MethodGet, "/wallets/"+walletA+"/aportes", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetProposalHistory(t *testing.T) {
	f := newFixture(t, "")

	w, out := f.do(t, http.MethodGet, "/wallets/"+walletA+"/propuestas-historial", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, out["total"])

	f.ledger.Unreachable[walletA] = true
	w, _ = f.do(t, http.MethodGet, "/wallets/"+walletA+"/propuestas-historial", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetMembers(t *testing.T) {
	f := newFixture(t, "")

	req := httptest.NewRequest(http.MethodGet, "/wallets/"+walletA+"/users", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var members []domain.Member
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	assert.Len(t, members, 2)

	req = httptest.NewRequest(http.MethodGet, "/wallets/"+walletB[:41]+"9/users", nil)
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetWalletRegistered(t *testing.T) {
	f := newFixture(t, "")

	_, out := f.do(t, http.MethodGet, "/wallet-registrada?wallet="+strings.ToUpper(bob[:2])+bob[2:], "")
	assert.Equal(t, true, out["registrada"])

	_, out = f.do(t, http.MethodGet, "/wallet-registrada?wallet=0x9999999999999999999999999999999999999999", "")
	assert.Equal(t, false, out["registrada"])
}

func TestExchangeRate(t *testing.T) {
	f := newFixture(t, "")

	_, out := f.do(t, http.MethodGet, "/config/exchange-rate", "")
	assert.Equal(t, 100.0, out["ethToHnl"])

	w, _ := f.do(t, http.MethodPost, "/config/exchange-rate", `{"ethToHnl": 81234.5}`)
	require.Equal(t, http.StatusOK, w.Code)
	_, out = f.do(t, http.MethodGet, "/config/exchange-rate", "")
	assert.Equal(t, 81234.5, out["ethToHnl"])

	w, _ = f.do(t, http.MethodPost, "/config/exchange-rate", `{"ethToHnl": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, "/config/exchange-rate", `{"ethToHnl": "abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, out = f.do(t, http.MethodGet, "/config/exchange-rate", "")
	assert.Equal(t, 81234.5, out["ethToHnl"])
}

func TestInfoHealthAndMetrics(t *testing.T) {
	f := newFixture(t, "")

	_, out := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, "ok", out["status"])

	_, out = f.do(t, http.MethodGet, "/info", "")
	assert.Equal(t, "v0.1.0", out["version"])

	w, _ := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodOptions, "/webhook", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewHandler_OmitsUnconfiguredRoutes(t *testing.T) {
	h := NewHandler(&Server{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGateway_Send(t *testing.T) {
	var got outbound
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send", r.URL.Path)
		token = r.Header.Get(TokenHeader)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	g := NewGateway(srv.URL+"/", WithGatewayToken("t0k"))
	require.NoError(t, g.Send(context.Background(), "504", "hola"))
	assert.Equal(t, outbound{To: "504", Text: "hola"}, got)
	assert.Equal(t, "t0k", token)
}

func TestGateway_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, WithRetry(3, time.Millisecond))
	require.NoError(t, g.Send(context.Background(), "504", "hola"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGateway_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Fail") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, WithRetry(3, time.Millisecond))
	err := g.Send(context.Background(), "504", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	assert.Equal(t, int32(1), calls.Load(), "client errors are not retried")

	down := NewGateway(srv.URL, WithRetry(2, time.Millisecond), WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	}))
	assert.Error(t, down.Send(context.Background(), "504", "hola"))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestProposeExpense(t *testing.T) {
	f := newFixture(t, "")

	w, out := f.do(t, http.MethodPost, "/proponerGasto",
		`{"walletAddress":"`+walletA+`","destinatario":"`+bob+`","descripcion":"pizza","miembro":"`+alice+`","monto":"0.5"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, out["txHash"])

	w, _ = f.do(t, http.MethodPost, "/proponerGasto",
		`{"walletAddress":"`+walletA+`","destinatario":"`+bob+`","descripcion":"renta","miembro":"`+alice+`","monto":50,"unidad":"HNL"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = f.do(t, http.MethodPost, "/proponerGasto",
		`{"walletAddress":"`+walletA+`","destinatario":"`+bob+`","descripcion":"agua","miembro":"`+alice+`","monto":"1000","unidad":"wei"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	proposals := f.ledger.Wallets[walletA].Proposals
	require.Len(t, proposals, 5)
	half := new(big.Int).Div(eth(1), big.NewInt(2))
	assert.Equal(t, 0, proposals[2].Amount.Cmp(half), "0.5 ETH")
	assert.Equal(t, 0, proposals[3].Amount.Cmp(half), "50 HNL at 100 HNL/ETH")
	assert.Equal(t, int64(1000), proposals[4].Amount.Int64())
	assert.Equal(t, domain.ProposalExpense, proposals[2].Type)
	assert.Equal(t, bob, proposals[2].Recipient)
}

func TestProposeExpense_Rejects(t *testing.T) {
	f := newFixture(t, "")
	valid := func(monto, unit string) string {
		return `{"walletAddress":"` + walletA + `","destinatario":"` + bob + `","descripcion":"x","miembro":"` + alice + `","monto":` + monto + `,"unidad":"` + unit + `"}`
	}

	for name, body := range map[string]string{
		"missing fields": `{"walletAddress":"` + walletA + `"}`,
		"bad json":       `{`,
		"bad unit":       valid(`1`, "btc"),
		"fractional wei": valid(`"1.5"`, "wei"),
		"bad recipient":  strings.Replace(valid(`1`, "eth"), bob, "0x123", 1),
		"zero amount":    valid(`0`, "eth"),
	} {
		w, _ := f.do(t, http.MethodPost, "/proponerGasto", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}

	f.ledger.FailWrites = errors.New("insufficient funds for gas")
	w, out := f.do(t, http.MethodPost, "/proponerGasto", valid(`1`, "eth"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, out["details"], "insufficient funds")
	assert.Len(t, f.ledger.Wallets[walletA].Proposals, 2)
}

func TestProposeMember(t *testing.T) {
	f := newFixture(t, "")

	w, _ := f.do(t, http.MethodPost, "/proponerMiembro",
		`{"walletAddress":"`+walletA+`","nuevoMiembro":"`+bob+`","descripcion":"Bob se une","miembro":"`+alice+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	p := f.ledger.Wallets[walletA].Proposals[2]
	assert.Equal(t, domain.ProposalMembershipChange, p.Type)
	assert.Zero(t, p.Amount.Sign())

	w, _ = f.do(t, http.MethodPost, "/proponerMiembro", `{"walletAddress":"`+walletA+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVote(t *testing.T) {
	f := newFixture(t, "")

	w, out := f.do(t, http.MethodPost, "/wallets/"+walletA+"/votar", `{"idPropuesta":0,"miembro":"`+alice+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, out["txHash"])
	assert.Equal(t, domain.ProposalExecuted, f.ledger.Wallets[walletA].Proposals[0].Status)

	w, _ = f.do(t, http.MethodPost, "/wallets/"+walletA+"/votar", `{"miembro":"`+alice+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing id")

	w, _ = f.do(t, http.MethodPost, "/wallets/nope/votar", `{"idPropuesta":0,"miembro":"`+alice+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.ledger.Wallets[walletA].Proposals = append(f.ledger.Wallets[walletA].Proposals,
		domain.Proposal{Recipient: bob, Amount: eth(1), Status: domain.ProposalExpired})
	w, out = f.do(t, http.MethodPost, "/wallets/"+walletA+"/votar", `{"idPropuesta":2,"miembro":"`+alice+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "La propuesta ha expirado.", out["message"])

	w, _ = f.do(t, http.MethodPost, "/wallets/"+walletA+"/votar", `{"idPropuesta":1,"miembro":"`+alice+`"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code, "already executed")
}

func TestGetWallets(t *testing.T) {
	f := newFixture(t, "")

	w, out := f.do(t, http.MethodGet, "/wallets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{walletA, walletB}, out["wallets"])
}

func TestGetAccountTransactions(t *testing.T) {
	f := newFixture(t, "")
	f.ledger.History[alice] = []domain.Transaction{
		{Hash: "0x01", From: bob, To: alice, Value: eth(1), Timestamp: time.Now().Add(-time.Hour)},
		{Hash: "0x02", From: alice, To: walletA, Value: eth(2), Timestamp: time.Now().Add(-time.Minute)},
	}

	w, out := f.do(t, http.MethodGet, "/wallets/personal/"+alice+"/txs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, out["count"])
	txs := out["txs"].([]any)
	first := txs[0].(map[string]any)
	assert.Equal(t, "0x02", first["hash"])
	assert.Equal(t, string(domain.DirectionOut), first["direction"])

	_, out = f.do(t, http.MethodGet, "/wallets/personal/"+alice+"/txs?limit=0", "")
	assert.Equal(t, 1.0, out["count"])

	w, _ = f.do(t, http.MethodGet, "/wallets/personal/"+alice+"/txs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodGet, "/wallets/personal/0x12/txs", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.ledger.IndexDisabled = true
	w, _ = f.do(t, http.MethodGet, "/wallets/personal/"+alice+"/txs", "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	f.ledger.IndexDisabled = false
	f.ledger.Unreachable[alice] = true
	w, _ = f.do(t, http.MethodGet, "/wallets/personal/"+alice+"/txs", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	// Personal listings do not shadow wallet routes.
	w, _ = f.do(t, http.MethodGet, "/wallets/"+walletA+"/dashboard", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
