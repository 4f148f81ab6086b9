package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/coperacha/pkg/domain"
)

// RecordStore implements ports.RecordStore and ports.RateStore in memory.
type RecordStore struct {
	mu      sync.RWMutex
	byPhone map[string]*domain.Record
	rate    float64
	hasRate bool

	// FailAddWallet, when set, is consulted per address by AddWalletToMembers
	// and lets tests simulate a store that fails mid fan-out.
	FailAddWallet func(address string) error
}

// NewRecordStore creates an empty store seeded with records.
func NewRecordStore(records ...domain.Record) *RecordStore {
	s := &RecordStore{byPhone: make(map[string]*domain.Record)}
	for _, r := range records {
		_ = s.Insert(context.Background(), r)
	}
	return s
}

func copyRecord(r *domain.Record) *domain.Record {
	cp := *r
	cp.Wallets = slices.Clone(r.Wallets)
	return &cp
}

// FindByPhone implements ports.RecordStore.
func (s *RecordStore) FindByPhone(ctx context.Context, phone string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byPhone[phone]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return copyRecord(r), nil
}

// FindByAddress implements ports.RecordStore.
func (s *RecordStore) FindByAddress(ctx context.Context, address string) (*domain.Record, error) {
	address = strings.ToLower(address)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.byPhone {
		if r.Address == address {
			return copyRecord(r), nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

// FindByWallet implements ports.RecordStore. Results are ordered by phone.
func (s *RecordStore) FindByWallet(ctx context.Context, wallet string) ([]domain.Record, error) {
	wallet = strings.ToLower(wallet)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Record
	for _, r := range s.byPhone {
		if slices.Contains(r.Wallets, wallet) {
			out = append(out, *copyRecord(r))
		}
	}
	slices.SortFunc(out, func(a, b domain.Record) int { return strings.Compare(a.Phone, b.Phone) })
	return out, nil
}

// Insert implements ports.RecordStore.
func (s *RecordStore) Insert(ctx context.Context, record domain.Record) error {
	record.Email = strings.ToLower(record.Email)
	record.Address = strings.ToLower(record.Address)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byPhone[record.Phone]; ok {
		return domain.ErrDuplicatePhone
	}
	for _, r := range s.byPhone {
		if r.Email == record.Email {
			return domain.ErrDuplicateEmail
		}
		if record.Address != "" && r.Address == record.Address {
			return domain.ErrDuplicateAddress
		}
	}
	if record.Wallets == nil {
		record.Wallets = []string{}
	}
	s.byPhone[record.Phone] = copyRecord(&record)
	return nil
}

// AddWalletToMembers implements ports.RecordStore.
func (s *RecordStore) AddWalletToMembers(ctx context.Context, addresses []string, wallet string) (int, error) {
	wallet = strings.ToLower(wallet)

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := 0
	for _, addr := range addresses {
		addr = strings.ToLower(addr)
		if s.FailAddWallet != nil {
			if err := s.FailAddWallet(addr); err != nil {
				return matched, err
			}
		}
		for _, r := range s.byPhone {
			if r.Address != addr {
				continue
			}
			matched++
			if !slices.Contains(r.Wallets, wallet) {
				r.Wallets = append(r.Wallets, wallet)
			}
		}
	}
	return matched, nil
}

// ExchangeRate implements ports.RateStore.
func (s *RecordStore) ExchangeRate(ctx context.Context) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate, s.hasRate, nil
}

// SetExchangeRate implements ports.RateStore.
func (s *RecordStore) SetExchangeRate(ctx context.Context, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
	s.hasRate = true
	return nil
}
