package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// insertScript claims the phone, email and address keys atomically.
// It returns 0 on success or the index (1..3) of the first key already taken.
var insertScript = backend.NewScript(`
if redis.call("exists", KEYS[1]) == 1 then return 1 end
if redis.call("exists", KEYS[2]) == 1 then return 2 end
if KEYS[3] ~= "" and redis.call("exists", KEYS[3]) == 1 then return 3 end
redis.call("set", KEYS[1], ARGV[1])
redis.call("set", KEYS[2], ARGV[2])
if KEYS[3] ~= "" then redis.call("set", KEYS[3], ARGV[2]) end
return 0
`)

// RecordStore implements ports.RecordStore and ports.RateStore using Redis.
//
// Layout (under prefix):
//
//	user:<phone>            JSON record without wallets
//	user:<phone>:wallets    ZSET of linked wallets, scored by link time
//	email:<email>           phone
//	address:<address>       phone
//	wallet:<wallet>:members SET of phones
//	config:exchange_rate    float
type RecordStore struct {
	client *backend.Client
	prefix string
	now    func() time.Time
}

// NewRecordStore creates a record store from an existing client.
func NewRecordStore(client *backend.Client, prefix string) *RecordStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RecordStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RecordStore) userKey(phone string) string    { return s.prefix + "user:" + phone }
func (s *RecordStore) walletsKey(phone string) string { return s.prefix + "user:" + phone + ":wallets" }
func (s *RecordStore) emailKey(email string) string   { return s.prefix + "email:" + email }
func (s *RecordStore) addressKey(addr string) string  { return s.prefix + "address:" + addr }
func (s *RecordStore) membersKey(wallet string) string {
	return s.prefix + "wallet:" + wallet + ":members"
}
func (s *RecordStore) rateKey() string { return s.prefix + "config:exchange_rate" }

// FindByPhone implements ports.RecordStore.
func (s *RecordStore) FindByPhone(ctx context.Context, phone string) (*domain.Record, error) {
	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, s.userKey(phone))
	wallets := pipe.ZRange(ctx, s.walletsKey(phone), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	data, err := get.Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	rec.Wallets = wallets.Val()
	if rec.Wallets == nil {
		rec.Wallets = []string{}
	}
	return &rec, nil
}

// FindByAddress implements ports.RecordStore.
func (s *RecordStore) FindByAddress(ctx context.Context, address string) (*domain.Record, error) {
	phone, err := s.client.Get(ctx, s.addressKey(strings.ToLower(address))).Result()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve address: %w", err)
	}
	return s.FindByPhone(ctx, phone)
}

// FindByWallet implements ports.RecordStore. Results are ordered by phone.
func (s *RecordStore) FindByWallet(ctx context.Context, wallet string) ([]domain.Record, error) {
	phones, err := s.client.SMembers(ctx, s.membersKey(strings.ToLower(wallet))).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet members: %w", err)
	}
	slices.Sort(phones)

	out := make([]domain.Record, 0, len(phones))
	for _, phone := range phones {
		rec, err := s.FindByPhone(ctx, phone)
		if errors.Is(err, domain.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Insert implements ports.RecordStore. Email and address are stored lower-cased.
func (s *RecordStore) Insert(ctx context.Context, record domain.Record) error {
	record.Email = strings.ToLower(record.Email)
	record.Address = strings.ToLower(record.Address)
	wallets := record.Wallets
	record.Wallets = nil

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	addrKey := ""
	if record.Address != "" {
		addrKey = s.addressKey(record.Address)
	}
	code, err := insertScript.Run(ctx, s.client,
		[]string{s.userKey(record.Phone), s.emailKey(record.Email), addrKey},
		data, record.Phone,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	switch code {
	case 1:
		return domain.ErrDuplicatePhone
	case 2:
		return domain.ErrDuplicateEmail
	case 3:
		return domain.ErrDuplicateAddress
	}

	for _, w := range wallets {
		if err := s.link(ctx, record.Phone, strings.ToLower(w)); err != nil {
			return err
		}
	}
	return nil
}

// AddWalletToMembers implements ports.RecordStore. Linking is idempotent.
func (s *RecordStore) AddWalletToMembers(ctx context.Context, addresses []string, wallet string) (int, error) {
	wallet = strings.ToLower(wallet)
	matched := 0
	for _, addr := range addresses {
		phone, err := s.client.Get(ctx, s.addressKey(strings.ToLower(addr))).Result()
		if errors.Is(err, backend.Nil) {
			continue
		}
		if err != nil {
			return matched, fmt.Errorf("failed to resolve address %s: %w", addr, err)
		}
		if err := s.link(ctx, phone, wallet); err != nil {
			return matched, err
		}
		matched++
	}
	return matched, nil
}

func (s *RecordStore) link(ctx context.Context, phone, wallet string) error {
	pipe := s.client.TxPipeline()
	pipe.ZAddNX(ctx, s.walletsKey(phone), backend.Z{Score: float64(s.now().UnixNano()), Member: wallet})
	pipe.SAdd(ctx, s.membersKey(wallet), phone)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to link wallet %s: %w", wallet, err)
	}
	return nil
}

// ExchangeRate implements ports.RateStore.
func (s *RecordStore) ExchangeRate(ctx context.Context) (float64, bool, error) {
	val, err := s.client.Get(ctx, s.rateKey()).Result()
	if errors.Is(err, backend.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read exchange rate: %w", err)
	}
	rate, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("stored exchange rate %q: %w", val, err)
	}
	return rate, true, nil
}

// SetExchangeRate implements ports.RateStore.
func (s *RecordStore) SetExchangeRate(ctx context.Context, rate float64) error {
	return s.client.Set(ctx, s.rateKey(), strconv.FormatFloat(rate, 'f', -1, 64), 0).Err()
}
