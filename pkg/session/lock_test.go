package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/coperacha/pkg/domain"
)

// nopStore structure
type nopStore struct{}

func (m *nopStore) Save(ctx context.Context, identity string, s *domain.Session) error {
	return nil
}
func (m *nopStore) Load(ctx context.Context, identity string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}
func (m *nopStore) Delete(ctx context.Context, identity string) error { return nil }
func (m *nopStore) List(ctx context.Context) ([]string, error)        { return nil, nil }

func TestRegistry_LockLifecycle(t *testing.T) {
	reg := NewRegistry(&nopStore{})
	defer reg.Stop()
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("identity-%d", i)
		_ = reg.Do(ctx, id, func(ctx context.Context, s *domain.Session) error { return nil })
		_ = reg.Delete(ctx, id)
	}

	lockCount := len(reg.locks)
	t.Logf("Identities: %d, Locks Leaked: %d", count, lockCount)

	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
	if pending := reg.Pending(); pending != 0 {
		t.Errorf("expected no pending expiries after Delete, got %d", pending)
	}
}
