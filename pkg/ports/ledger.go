package ports

import (
	"context"
	"math/big"

	"github.com/aretw0/coperacha/pkg/domain"
)

// Ledger is the distributed-ledger client collaborator.
// Addresses are passed and returned as lower-case hex strings.
type Ledger interface {
	// Read calls a view method on contract and returns its decoded outputs.
	Read(ctx context.Context, contract, method string, args ...any) ([]any, error)

	// Write signs and broadcasts a call to method on contract and waits for its receipt.
	Write(ctx context.Context, contract, method string, args ...any) (domain.Receipt, error)

	// Balance returns the native balance of account in the smallest unit.
	Balance(ctx context.Context, account string) (*big.Int, error)
}

// LedgerIndex exposes the optional indexing methods of a ledger node.
// Implementations return domain.ErrUnsupported when the node lacks them.
type LedgerIndex interface {
	IncomingTransfers(ctx context.Context, address string, limit int) ([]domain.Transfer, error)
	RecentTransactions(ctx context.Context, address string, limit int) ([]domain.Transaction, error)
}

// Contract methods and events used against the wallet factory and community wallets.
const (
	MethodCreateWallet    = "create"
	MethodAllWallets      = "getAllWallets"
	MethodWalletBalance   = "saldoWallet"
	MethodProposalCount   = "totalPropuestas"
	MethodProposal        = "verPropuesta"
	MethodCreateProposal  = "crearPropuesta"
	MethodConfirmProposal = "confirmarPropuesta"

	EventWalletCreated = "WalletCreated"
)
