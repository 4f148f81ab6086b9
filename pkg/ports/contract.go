package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	identity := "contract-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(identity)
		session.Step = domain.StepCreateName
		session.Set(domain.KeyName, "Juan")
		session.Set(domain.KeyDraft, domain.Draft{Creator: "0xabc", Members: []string{"0xabc"}})

		err := store.Save(ctx, identity, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, identity)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, domain.StepCreateName, loaded.Step)
		assert.Equal(t, "Juan", loaded.GetString(domain.KeyName))
		// JSON-backed stores return the draft as a generic map; only presence is part of the contract.
		_, ok := loaded.Get(domain.KeyDraft)
		assert.True(t, ok)
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, identity, domain.NewSession(identity)))

		loaded, err := store.Load(ctx, identity)
		require.NoError(t, err)
		loaded.Set(domain.KeyEmail, "mutated@example.com")

		again, err := store.Load(ctx, identity)
		require.NoError(t, err)
		assert.Empty(t, again.GetString(domain.KeyEmail))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+identity)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, identity, domain.NewSession(identity)))

		err := store.Delete(ctx, identity)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, identity)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := identity + "-1"
		id2 := identity + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(id1))
		_ = store.Save(ctx, id2, domain.NewSession(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RecordRateStore is implemented by adapters that serve both records and the rate setting.
type RecordRateStore interface {
	RecordStore
	RateStore
}

// RunRecordStoreContract verifies the RecordStore and RateStore contracts.
// The store must be empty when the suite starts.
func RunRecordStoreContract(t *testing.T, store RecordRateStore) {
	ctx := context.Background()

	juan := domain.Record{
		Phone:   "50411112222",
		Name:    "Juan Pérez",
		Email:   "juan@example.com",
		Address: "0x1111111111111111111111111111111111111111",
	}
	ana := domain.Record{
		Phone:   "50433334444",
		Name:    "Ana",
		Email:   "ana@example.com",
		Address: "0x2222222222222222222222222222222222222222",
	}

	t.Run("Insert and Find", func(t *testing.T) {
		require.NoError(t, store.Insert(ctx, juan))
		require.NoError(t, store.Insert(ctx, ana))

		got, err := store.FindByPhone(ctx, juan.Phone)
		require.NoError(t, err)
		assert.Equal(t, juan.Name, got.Name)
		assert.Equal(t, juan.Address, got.Address)

		got, err = store.FindByAddress(ctx, "0x2222222222222222222222222222222222222222")
		require.NoError(t, err)
		assert.Equal(t, ana.Phone, got.Phone)
	})

	t.Run("Find Non-Existent", func(t *testing.T) {
		_, err := store.FindByPhone(ctx, "000")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)

		_, err = store.FindByAddress(ctx, "0x9999999999999999999999999999999999999999")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("Uniqueness", func(t *testing.T) {
		dup := juan
		err := store.Insert(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrDuplicatePhone)

		dup.Phone = "50455556666"
		err = store.Insert(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

		dup.Email = "other@example.com"
		err = store.Insert(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrDuplicateAddress)

		// Nothing from the rejected inserts may leak.
		_, err = store.FindByPhone(ctx, "50455556666")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("AddWalletToMembers", func(t *testing.T) {
		wallet := "0x3333333333333333333333333333333333333333"
		n, err := store.AddWalletToMembers(ctx, []string{juan.Address, ana.Address, "0x4444444444444444444444444444444444444444"}, wallet)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		// Idempotent.
		_, err = store.AddWalletToMembers(ctx, []string{juan.Address}, wallet)
		require.NoError(t, err)

		got, err := store.FindByPhone(ctx, juan.Phone)
		require.NoError(t, err)
		assert.Equal(t, []string{wallet}, got.Wallets)

		members, err := store.FindByWallet(ctx, wallet)
		require.NoError(t, err)
		assert.Len(t, members, 2)
	})

	t.Run("ExchangeRate", func(t *testing.T) {
		_, ok, err := store.ExchangeRate(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.SetExchangeRate(ctx, 81234.5))

		rate, ok, err := store.ExchangeRate(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.InDelta(t, 81234.5, rate, 1e-9)
	})
}
