package ports

import (
	"context"

	"github.com/aretw0/coperacha/pkg/domain"
)

// SessionStore defines the interface for persisting conversation sessions.
type SessionStore interface {
	// Save persists the session for a given identity.
	Save(ctx context.Context, identity string, session *domain.Session) error

	// Load retrieves the session for a given identity.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, identity string) (*domain.Session, error)

	// Delete removes the session for a given identity.
	Delete(ctx context.Context, identity string) error

	// List returns the identities that currently hold a session.
	List(ctx context.Context) ([]string, error)
}

// RecordStore is the identity/record store collaborator.
type RecordStore interface {
	// FindByPhone returns domain.ErrRecordNotFound when no record matches.
	FindByPhone(ctx context.Context, phone string) (*domain.Record, error)

	// FindByAddress looks a record up by its primary address (case-insensitive).
	FindByAddress(ctx context.Context, address string) (*domain.Record, error)

	// FindByWallet returns every record linked to the community wallet.
	FindByWallet(ctx context.Context, wallet string) ([]domain.Record, error)

	// Insert stores a new record. It fails with domain.ErrDuplicatePhone,
	// domain.ErrDuplicateEmail or domain.ErrDuplicateAddress on collisions.
	Insert(ctx context.Context, record domain.Record) error

	// AddWalletToMembers adds wallet to the linked-wallet set of every record whose
	// primary address is in addresses. It is idempotent and returns the number of
	// records that matched.
	AddWalletToMembers(ctx context.Context, addresses []string, wallet string) (int, error)
}

// RateStore holds the native-to-local exchange rate setting.
type RateStore interface {
	// ExchangeRate returns the stored rate and whether one is set.
	ExchangeRate(ctx context.Context) (float64, bool, error)

	// SetExchangeRate stores a new rate.
	SetExchangeRate(ctx context.Context, rate float64) error
}
