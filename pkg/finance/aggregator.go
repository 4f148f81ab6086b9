package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Sizes of the lists read from the ledger index.
const (
	DashboardTransfers    = 50
	ContributionTransfers = 100
	TopContributors       = 5
	RecentTransactions    = 5
	DefaultFanout         = 8

	DefaultAccountTransactions = 6
	MaxAccountTransactions     = 50
)

// Sub-query names reported to the Observer.
const (
	QueryWalletBalance = "wallet_balance"
	QueryMembers       = "members"
	QueryProposals     = "proposals"
	QueryContributions = "contributions"
	QueryTransactions  = "transactions"
)

// Observer is notified of every best-effort sub-query outcome.
type Observer interface {
	ObserveSubQuery(query string, status Status)
}

// Dashboard is the summary of one community wallet.
type Dashboard struct {
	Wallet          string                        `json:"wallet"`
	Balance         Result[domain.Amount]         `json:"balance"`
	Members         Result[[]domain.Member]       `json:"members"`
	Proposals       Result[domain.ProposalCounts] `json:"proposals"`
	TopContributors Result[[]domain.Contribution] `json:"top_contributors"`
	Transactions    Result[[]domain.TxView]       `json:"transactions"`
}

// History lists every proposal of a wallet plus its latest transactions.
type History struct {
	Wallet       string                  `json:"wallet"`
	Total        int                     `json:"total"`
	Proposals    []domain.ProposalView   `json:"proposals"`
	Transactions Result[[]domain.TxView] `json:"transactions"`
}

// Aggregator merges record-store and ledger reads into financial views.
type Aggregator struct {
	ledger   ports.Ledger
	index    ports.LedgerIndex
	records  ports.RecordStore
	rates    *Rates
	fanout   int
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithFanout bounds the number of concurrent ledger reads per request.
func WithFanout(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.fanout = n
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithClock overrides the clock used for "time since" labels.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithObserver registers a sub-query observer (metrics).
func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		a.observer = o
	}
}

// WithIndex sets the ledger index explicitly. By default the ledger itself is
// used when it implements ports.LedgerIndex.
func WithIndex(index ports.LedgerIndex) Option {
	return func(a *Aggregator) {
		a.index = index
	}
}

// NewAggregator creates an Aggregator.
func NewAggregator(ledger ports.Ledger, records ports.RecordStore, rates *Rates, opts ...Option) *Aggregator {
	a := &Aggregator{
		ledger:  ledger,
		records: records,
		rates:   rates,
		fanout:  DefaultFanout,
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	if idx, ok := ledger.(ports.LedgerIndex); ok {
		a.index = idx
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rates == nil {
		a.rates = NewRates(nil, DefaultRate, a.logger)
	}
	return a
}

func (a *Aggregator) group() *errgroup.Group {
	g := new(errgroup.Group)
	g.SetLimit(a.fanout)
	return g
}

func (a *Aggregator) observe(query, wallet string, status Status, err error) {
	if err != nil {
		a.logger.Warn("sub-query degraded", "query", query, "wallet", wallet, "status", status, "err", err)
	}
	if a.observer != nil {
		a.observer.ObserveSubQuery(query, status)
	}
}

// PersonalAndCommunityBalance resolves the identity's record and returns the
// balance of its primary address plus the summed balance of its linked wallets.
// It returns domain.ErrNotRegistered when the identity has no primary address.
func (a *Aggregator) PersonalAndCommunityBalance(ctx context.Context, identity string) (domain.BalanceView, error) {
	rec, err := a.records.FindByPhone(ctx, identity)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.BalanceView{}, domain.ErrNotRegistered
	}
	if err != nil {
		return domain.BalanceView{}, fmt.Errorf("failed to load record: %w", err)
	}
	if !rec.HasAddress() {
		return domain.BalanceView{}, domain.ErrNotRegistered
	}
	return a.balances(ctx, rec.Address, rec.Wallets)
}

// BalanceByAddress is PersonalAndCommunityBalance keyed by primary address.
// An address without a record has no community wallets.
func (a *Aggregator) BalanceByAddress(ctx context.Context, address string) (domain.BalanceView, error) {
	address = strings.ToLower(address)
	var wallets []string
	rec, err := a.records.FindByAddress(ctx, address)
	switch {
	case err == nil:
		wallets = rec.Wallets
	case errors.Is(err, domain.ErrRecordNotFound):
	default:
		return domain.BalanceView{}, fmt.Errorf("failed to load record: %w", err)
	}
	return a.balances(ctx, address, wallets)
}

func (a *Aggregator) balances(ctx context.Context, address string, wallets []string) (domain.BalanceView, error) {
	rate := a.rates.Current(ctx)

	var personal *big.Int
	var personalErr error
	walletBalances := make([]Result[*big.Int], len(wallets))

	g := a.group()
	g.Go(func() error {
		personal, personalErr = a.ledger.Balance(ctx, address)
		return nil
	})
	for i, w := range wallets {
		g.Go(func() error {
			walletBalances[i] = Settle(a.walletBalance(ctx, w))
			return nil
		})
	}
	_ = g.Wait()

	if personalErr != nil {
		return domain.BalanceView{}, fmt.Errorf("failed to read balance of %s: %w", address, personalErr)
	}

	total := new(big.Int)
	view := domain.BalanceView{Address: address, WalletsQueried: len(wallets)}
	for i, res := range walletBalances {
		a.observe(QueryWalletBalance, wallets[i], res.Status, res.Err)
		if !res.Ok() {
			view.WalletsFailed = append(view.WalletsFailed, wallets[i])
			continue
		}
		total.Add(total, res.Value)
	}

	view.Personal = NewAmount(personal, rate)
	view.Community = NewAmount(total, rate)
	return view, nil
}

func (a *Aggregator) walletBalance(ctx context.Context, wallet string) (*big.Int, error) {
	out, err := a.ledger.Read(ctx, wallet, ports.MethodWalletBalance)
	if err != nil {
		return nil, err
	}
	v, err := first(out, ports.MethodWalletBalance)
	if err != nil {
		return nil, err
	}
	return asBigInt(v)
}

// Dashboard merges the wallet's balance, members, proposal counts, top
// contributors and latest transactions. Each section is best-effort.
func (a *Aggregator) Dashboard(ctx context.Context, wallet string) Dashboard {
	wallet = strings.ToLower(wallet)
	rate := a.rates.Current(ctx)
	d := Dashboard{Wallet: wallet}

	g := a.group()
	g.Go(func() error {
		bal, err := a.walletBalance(ctx, wallet)
		d.Balance = Settle(NewAmount(bal, rate), err)
		if !d.Balance.Ok() {
			d.Balance.Value = NewAmount(nil, rate)
		}
		return nil
	})
	g.Go(func() error {
		d.Members = Settle(a.members(ctx, wallet))
		return nil
	})
	g.Go(func() error {
		d.Proposals = Settle(a.proposalCounts(ctx, wallet))
		return nil
	})
	g.Go(func() error {
		contribs, err := a.contributions(ctx, wallet, DashboardTransfers, rate)
		if len(contribs) > TopContributors {
			contribs = contribs[:TopContributors]
		}
		d.TopContributors = Settle(contribs, err)
		return nil
	})
	g.Go(func() error {
		d.Transactions = Settle(a.transactions(ctx, wallet, RecentTransactions, rate))
		return nil
	})
	_ = g.Wait()

	a.observe(QueryWalletBalance, wallet, d.Balance.Status, d.Balance.Err)
	a.observe(QueryMembers, wallet, d.Members.Status, d.Members.Err)
	a.observe(QueryProposals, wallet, d.Proposals.Status, d.Proposals.Err)
	a.observe(QueryContributions, wallet, d.TopContributors.Status, d.TopContributors.Err)
	a.observe(QueryTransactions, wallet, d.Transactions.Status, d.Transactions.Err)
	return d
}

// Contributions aggregates every incoming transfer by source address, largest
// total first. The result is StatusUnsupported when the ledger has no index.
func (a *Aggregator) Contributions(ctx context.Context, wallet string) Result[[]domain.Contribution] {
	wallet = strings.ToLower(wallet)
	res := Settle(a.contributions(ctx, wallet, ContributionTransfers, a.rates.Current(ctx)))
	a.observe(QueryContributions, wallet, res.Status, res.Err)
	return res
}

// AccountTransactions lists the latest transactions of a personal address,
// newest first. limit is clamped to [1, MaxAccountTransactions]; zero or less
// selects DefaultAccountTransactions.
func (a *Aggregator) AccountTransactions(ctx context.Context, address string, limit int) Result[[]domain.TxView] {
	address = strings.ToLower(address)
	if limit <= 0 {
		limit = DefaultAccountTransactions
	}
	limit = min(limit, MaxAccountTransactions)
	res := Settle(a.transactions(ctx, address, limit, a.rates.Current(ctx)))
	a.observe(QueryTransactions, address, res.Status, res.Err)
	return res
}

// ProposalHistory reads every proposal of the wallet (ids 0..n-1) and its latest
// transactions. Proposal reads are mandatory; the transaction section is best-effort.
func (a *Aggregator) ProposalHistory(ctx context.Context, wallet string) (History, error) {
	wallet = strings.ToLower(wallet)
	rate := a.rates.Current(ctx)
	h := History{Wallet: wallet}

	var proposals []domain.Proposal
	var propErr error

	g := a.group()
	g.Go(func() error {
		proposals, propErr = a.proposals(ctx, wallet)
		return nil
	})
	g.Go(func() error {
		h.Transactions = Settle(a.transactions(ctx, wallet, RecentTransactions, rate))
		return nil
	})
	_ = g.Wait()

	a.observe(QueryTransactions, wallet, h.Transactions.Status, h.Transactions.Err)
	if propErr != nil {
		return History{}, fmt.Errorf("failed to read proposals of %s: %w", wallet, propErr)
	}

	h.Total = len(proposals)
	h.Proposals = make([]domain.ProposalView, 0, len(proposals))
	for _, p := range proposals {
		h.Proposals = append(h.Proposals, domain.ProposalView{
			ID:            p.ID,
			Type:          p.Type,
			Status:        p.Status,
			Recipient:     p.Recipient,
			Description:   p.Description,
			Amount:        NewAmount(p.Amount, rate),
			Confirmations: p.Confirmations,
			Deadline:      p.Deadline,
		})
	}
	return h, nil
}

// Members returns the record-store identities linked to the wallet.
func (a *Aggregator) Members(ctx context.Context, wallet string) ([]domain.Member, error) {
	return a.members(ctx, strings.ToLower(wallet))
}

func (a *Aggregator) members(ctx context.Context, wallet string) ([]domain.Member, error) {
	recs, err := a.records.FindByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Member, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.Member{Name: r.Name, Address: r.Address, Phone: r.Phone, Email: r.Email})
	}
	return out, nil
}

func (a *Aggregator) proposalCount(ctx context.Context, wallet string) (int, error) {
	out, err := a.ledger.Read(ctx, wallet, ports.MethodProposalCount)
	if err != nil {
		return 0, err
	}
	v, err := first(out, ports.MethodProposalCount)
	if err != nil {
		return 0, err
	}
	return asInt(v)
}

// readProposals reads ids 0..n-1 concurrently. Each slot gets its own Result.
func (a *Aggregator) readProposals(ctx context.Context, wallet string, n int) []Result[domain.Proposal] {
	results := make([]Result[domain.Proposal], n)
	g := a.group()
	for i := 0; i < n; i++ {
		g.Go(func() error {
			out, err := a.ledger.Read(ctx, wallet, ports.MethodProposal, i)
			if err != nil {
				results[i] = Settle(domain.Proposal{}, err)
				return nil
			}
			results[i] = Settle(decodeProposal(i, out))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Aggregator) proposals(ctx context.Context, wallet string) ([]domain.Proposal, error) {
	n, err := a.proposalCount(ctx, wallet)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Proposal, 0, n)
	var errs []error
	for _, res := range a.readProposals(ctx, wallet, n) {
		if !res.Ok() {
			errs = append(errs, res.Err)
			continue
		}
		out = append(out, res.Value)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// proposalCounts tolerates individual proposal read failures: they count toward
// Total but toward no status bucket.
func (a *Aggregator) proposalCounts(ctx context.Context, wallet string) (domain.ProposalCounts, error) {
	n, err := a.proposalCount(ctx, wallet)
	if err != nil {
		return domain.ProposalCounts{}, err
	}
	counts := domain.ProposalCounts{Total: n}
	for _, res := range a.readProposals(ctx, wallet, n) {
		if !res.Ok() {
			a.logger.Warn("proposal read failed", "wallet", wallet, "err", res.Err)
			continue
		}
		switch res.Value.Status {
		case domain.ProposalPending:
			counts.Pending++
		case domain.ProposalExecuted:
			counts.Executed++
		case domain.ProposalExpired:
			counts.Expired++
		default:
			counts.Unknown++
		}
	}
	return counts, nil
}

func (a *Aggregator) contributions(ctx context.Context, wallet string, limit int, rate float64) ([]domain.Contribution, error) {
	if a.index == nil {
		return nil, domain.ErrUnsupported
	}
	transfers, err := a.index.IncomingTransfers(ctx, wallet, limit)
	if err != nil {
		return nil, err
	}
	return RankContributions(transfers, rate), nil
}

// RankContributions groups transfers by source address, sums them and sorts the
// totals in descending order (ties by address).
func RankContributions(transfers []domain.Transfer, rate float64) []domain.Contribution {
	totals := make(map[string]*big.Int)
	for _, tr := range transfers {
		from := strings.ToLower(tr.From)
		if _, ok := totals[from]; !ok {
			totals[from] = new(big.Int)
		}
		if tr.Value != nil {
			totals[from].Add(totals[from], tr.Value)
		}
	}

	addrs := make([]string, 0, len(totals))
	for addr := range totals {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		if c := totals[addrs[i]].Cmp(totals[addrs[j]]); c != 0 {
			return c > 0
		}
		return addrs[i] < addrs[j]
	})

	out := make([]domain.Contribution, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, domain.Contribution{Address: addr, Total: NewAmount(totals[addr], rate)})
	}
	return out
}

// transactions renders the latest transactions of address; direction is
// relative to address.
func (a *Aggregator) transactions(ctx context.Context, address string, limit int, rate float64) ([]domain.TxView, error) {
	if a.index == nil {
		return nil, domain.ErrUnsupported
	}
	txs, err := a.index.RecentTransactions(ctx, address, limit)
	if err != nil {
		return nil, err
	}
	now := a.now()
	out := make([]domain.TxView, 0, len(txs))
	for _, tx := range txs {
		ts := tx.Timestamp
		if ts.IsZero() {
			ts = now
		}
		dir := domain.DirectionOut
		if strings.EqualFold(tx.To, address) {
			dir = domain.DirectionIn
		}
		out = append(out, domain.TxView{
			Hash:      tx.Hash,
			Direction: dir,
			From:      strings.ToLower(tx.From),
			To:        strings.ToLower(tx.To),
			Amount:    NewAmount(tx.Value, rate),
			Age:       TimeAgo(now, ts),
			Timestamp: ts,
		})
	}
	return out, nil
}
