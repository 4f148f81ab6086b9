package memory

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/ports"
)

// ErrUnreachable is returned for wallets marked as unreachable.
var ErrUnreachable = errors.New("ledger node unreachable")

// Wallet is the scripted on-ledger state of one community wallet.
type Wallet struct {
	Name         string
	Description  string
	Members      []string
	Balance      *big.Int
	Proposals    []domain.Proposal
	Transfers    []domain.Transfer
	Transactions []domain.Transaction
}

// Ledger is an in-memory ports.Ledger and ports.LedgerIndex.
// It is used by tests and by the local console mode.
type Ledger struct {
	mu sync.Mutex

	Factory     string
	Accounts    map[string]*big.Int
	Wallets     map[string]*Wallet
	Unreachable map[string]bool

	// IndexDisabled makes the indexing methods report domain.ErrUnsupported.
	IndexDisabled bool
	// FailWrites makes every Write fail with the given error.
	FailWrites error
	// Gate, when set, holds every Write until it receives a value or ctx is done.
	Gate chan struct{}
	// History holds the transactions of personal accounts, oldest first.
	History map[string][]domain.Transaction

	created int
	nonce   int
}

// ProposalWindow is how long a proposal created through Write stays open.
const ProposalWindow = 7 * 24 * time.Hour

// Revert reasons of the scripted wallet contract.
var (
	ErrNotMember       = errors.New("execution reverted: solo los miembros pueden operar")
	ErrAlreadyExecuted = errors.New("execution reverted: la propuesta ya fue ejecutada")
	ErrExpired         = errors.New("execution reverted: La propuesta ha expirado")
)

// NewLedger creates an empty ledger with the given factory address.
func NewLedger(factory string) *Ledger {
	return &Ledger{
		Factory:     strings.ToLower(factory),
		Accounts:    make(map[string]*big.Int),
		Wallets:     make(map[string]*Wallet),
		Unreachable: make(map[string]bool),
		History:     make(map[string][]domain.Transaction),
	}
}

// AddWallet registers a scripted wallet.
func (l *Ledger) AddWallet(address string, w *Wallet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w.Balance == nil {
		w.Balance = new(big.Int)
	}
	l.Wallets[strings.ToLower(address)] = w
}

func (l *Ledger) wallet(address string) (*Wallet, error) {
	address = strings.ToLower(address)
	if l.Unreachable[address] {
		return nil, fmt.Errorf("%s: %w", address, ErrUnreachable)
	}
	w, ok := l.Wallets[address]
	if !ok {
		return nil, fmt.Errorf("no contract at %s", address)
	}
	return w, nil
}

// Read implements ports.Ledger.
func (l *Ledger) Read(ctx context.Context, contract, method string, args ...any) ([]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if method == ports.MethodAllWallets {
		out := make([]string, 0, len(l.Wallets))
		for addr := range l.Wallets {
			out = append(out, addr)
		}
		sort.Strings(out)
		return []any{out}, nil
	}

	w, err := l.wallet(contract)
	if err != nil {
		return nil, err
	}

	switch method {
	case ports.MethodWalletBalance:
		return []any{new(big.Int).Set(w.Balance)}, nil
	case ports.MethodProposalCount:
		return []any{big.NewInt(int64(len(w.Proposals)))}, nil
	case ports.MethodProposal:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument", method)
		}
		idx, ok := args[0].(int)
		if !ok || idx < 0 || idx >= len(w.Proposals) {
			return nil, fmt.Errorf("proposal %v out of range", args[0])
		}
		p := w.Proposals[idx]
		amount := p.Amount
		if amount == nil {
			amount = new(big.Int)
		}
		return []any{
			strings.ToLower(p.Recipient),
			new(big.Int).Set(amount),
			p.Description,
			big.NewInt(p.Deadline.Unix()),
			big.NewInt(int64(p.Confirmations)),
			uint8(p.Type),
			uint8(p.Status),
		}, nil
	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

// Write implements ports.Ledger. The factory's create method and the wallet
// proposal methods are modelled.
func (l *Ledger) Write(ctx context.Context, contract, method string, args ...any) (domain.Receipt, error) {
	if l.Gate != nil {
		select {
		case <-l.Gate:
		case <-ctx.Done():
			return domain.Receipt{}, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailWrites != nil {
		return domain.Receipt{}, l.FailWrites
	}
	switch {
	case method == ports.MethodCreateWallet && strings.ToLower(contract) == l.Factory:
		return l.createWallet(args)
	case method == ports.MethodCreateProposal:
		return l.createProposal(contract, args)
	case method == ports.MethodConfirmProposal:
		return l.confirmProposal(contract, args)
	default:
		return domain.Receipt{}, fmt.Errorf("unsupported write %s on %s", method, contract)
	}
}

func (l *Ledger) receipt(events ...domain.Event) domain.Receipt {
	l.nonce++
	return domain.Receipt{TxHash: fmt.Sprintf("0x%064x", l.nonce), Events: events}
}

func (l *Ledger) createWallet(args []any) (domain.Receipt, error) {
	if len(args) != 4 {
		return domain.Receipt{}, fmt.Errorf("%s expects 4 arguments", ports.MethodCreateWallet)
	}
	members, _ := args[0].([]string)
	creator, _ := args[1].(string)
	name, _ := args[2].(string)
	desc, _ := args[3].(string)

	l.created++
	addr := fmt.Sprintf("0x%040x", 0xc0ffee0000+l.created)
	l.Wallets[addr] = &Wallet{
		Name:        name,
		Description: desc,
		Members:     append([]string(nil), members...),
		Balance:     new(big.Int),
	}
	return l.receipt(domain.Event{
		Name: ports.EventWalletCreated,
		Args: map[string]any{"owner": strings.ToLower(creator), "walletAddress": addr},
	}), nil
}

// createProposal takes (target, proposer, amount, description, isExpense).
func (l *Ledger) createProposal(contract string, args []any) (domain.Receipt, error) {
	w, err := l.wallet(contract)
	if err != nil {
		return domain.Receipt{}, err
	}
	if len(args) != 5 {
		return domain.Receipt{}, fmt.Errorf("%s expects 5 arguments", ports.MethodCreateProposal)
	}
	target, _ := args[0].(string)
	proposer, _ := args[1].(string)
	amount, _ := args[2].(*big.Int)
	desc, _ := args[3].(string)
	expense, _ := args[4].(bool)
	if !w.isMember(proposer) {
		return domain.Receipt{}, ErrNotMember
	}

	typ := domain.ProposalMembershipChange
	if expense {
		typ = domain.ProposalExpense
	}
	if amount == nil {
		amount = new(big.Int)
	}
	w.Proposals = append(w.Proposals, domain.Proposal{
		ID:          len(w.Proposals),
		Recipient:   strings.ToLower(target),
		Amount:      new(big.Int).Set(amount),
		Description: desc,
		Deadline:    time.Now().Add(ProposalWindow),
		Type:        typ,
		Status:      domain.ProposalPending,
	})
	return l.receipt(), nil
}

// confirmProposal takes (id, member). A proposal confirmed by more than half
// of the members is executed.
func (l *Ledger) confirmProposal(contract string, args []any) (domain.Receipt, error) {
	w, err := l.wallet(contract)
	if err != nil {
		return domain.Receipt{}, err
	}
	if len(args) != 2 {
		return domain.Receipt{}, fmt.Errorf("%s expects 2 arguments", ports.MethodConfirmProposal)
	}
	idx, ok := args[0].(int)
	if !ok || idx < 0 || idx >= len(w.Proposals) {
		return domain.Receipt{}, fmt.Errorf("proposal %v out of range", args[0])
	}
	member, _ := args[1].(string)
	if !w.isMember(member) {
		return domain.Receipt{}, ErrNotMember
	}

	p := &w.Proposals[idx]
	if p.Status == domain.ProposalPending && !p.Deadline.IsZero() && time.Now().After(p.Deadline) {
		p.Status = domain.ProposalExpired
	}
	switch p.Status {
	case domain.ProposalExpired:
		return domain.Receipt{}, ErrExpired
	case domain.ProposalExecuted:
		return domain.Receipt{}, ErrAlreadyExecuted
	}

	p.Confirmations++
	if p.Confirmations*2 > len(w.Members) {
		p.Status = domain.ProposalExecuted
		switch p.Type {
		case domain.ProposalExpense:
			if p.Amount != nil {
				w.Balance.Sub(w.Balance, p.Amount)
			}
		case domain.ProposalMembershipChange:
			w.Members = append(w.Members, p.Recipient)
		}
	}
	return l.receipt(), nil
}

// isMember reports whether address belongs to w. Wallets scripted without
// members accept anyone.
func (w *Wallet) isMember(address string) bool {
	if len(w.Members) == 0 {
		return true
	}
	return slices.ContainsFunc(w.Members, func(m string) bool {
		return strings.EqualFold(m, address)
	})
}

// Balance implements ports.Ledger.
func (l *Ledger) Balance(ctx context.Context, account string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account = strings.ToLower(account)
	if l.Unreachable[account] {
		return nil, fmt.Errorf("%s: %w", account, ErrUnreachable)
	}
	if b, ok := l.Accounts[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// IncomingTransfers implements ports.LedgerIndex.
func (l *Ledger) IncomingTransfers(ctx context.Context, address string, limit int) ([]domain.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IndexDisabled {
		return nil, domain.ErrUnsupported
	}
	w, err := l.wallet(address)
	if err != nil {
		return nil, err
	}
	out := append([]domain.Transfer(nil), w.Transfers...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecentTransactions implements ports.LedgerIndex. Transactions are returned newest first.
func (l *Ledger) RecentTransactions(ctx context.Context, address string, limit int) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IndexDisabled {
		return nil, domain.ErrUnsupported
	}
	txs, err := l.transactions(address)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		out = append(out, txs[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// transactions returns the scripted history of a wallet or a personal account.
func (l *Ledger) transactions(address string) ([]domain.Transaction, error) {
	address = strings.ToLower(address)
	if l.Unreachable[address] {
		return nil, fmt.Errorf("%s: %w", address, ErrUnreachable)
	}
	if w, ok := l.Wallets[address]; ok {
		return w.Transactions, nil
	}
	if txs, ok := l.History[address]; ok {
		return txs, nil
	}
	if _, ok := l.Accounts[address]; ok {
		return nil, nil
	}
	return nil, fmt.Errorf("no account or contract at %s", address)
}
