package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/coperacha/pkg/adapters/memory"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.SessionStore
}

func (s SlowStore) Load(ctx context.Context, identity string) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond)
	return s.SessionStore.Load(ctx, identity)
}

func TestRegistry_SerializesSameIdentity(t *testing.T) {
	store := SlowStore{memory.NewSessionStore()}
	reg := session.NewRegistry(store)
	defer reg.Stop()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := reg.Do(ctx, "50499990000", func(ctx context.Context, s *domain.Session) error {
				n, _ := s.TempData["count"].(int)
				s.Step = domain.StepAwaitingName
				s.Set("count", n+1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := reg.Load(ctx, "50499990000")
	require.NoError(t, err)
	assert.Equal(t, 20, s.TempData["count"])
}

func TestRegistry_CreatesIdleSessionLazily(t *testing.T) {
	reg := session.NewRegistry(memory.NewSessionStore())
	defer reg.Stop()

	var seen domain.Step
	err := reg.Do(context.Background(), "new", func(ctx context.Context, s *domain.Session) error {
		seen = s.Step
		assert.Empty(t, s.TempData)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StepIdle, seen)
}

func TestRegistry_IdleSessionsCarryNoTempData(t *testing.T) {
	store := memory.NewSessionStore()
	stale := domain.NewSession("x")
	stale.TempData["leftover"] = true
	require.NoError(t, store.Save(context.Background(), "x", stale))

	reg := session.NewRegistry(store)
	defer reg.Stop()

	err := reg.Do(context.Background(), "x", func(ctx context.Context, s *domain.Session) error {
		assert.Empty(t, s.TempData)
		return nil
	})
	require.NoError(t, err)
}

func TestRegistry_ExpiresOnceAfterInactivity(t *testing.T) {
	store := memory.NewSessionStore()
	var fired atomic.Int32
	reg := session.NewRegistry(store,
		session.WithTimeout(20*time.Millisecond),
		session.WithExpireFunc(func(ctx context.Context, identity string) {
			assert.Equal(t, "u1", identity)
			fired.Add(1)
		}),
	)
	defer reg.Stop()
	ctx := context.Background()

	err := reg.Do(ctx, "u1", func(ctx context.Context, s *domain.Session) error {
		s.MoveTo(domain.StepAwaitingEmail)
		s.Set(domain.KeyName, "Juan")
		return nil
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "expiry must notify exactly once")

	_, err = store.Load(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// The next message starts over from IDLE.
	err = reg.Do(ctx, "u1", func(ctx context.Context, s *domain.Session) error {
		assert.Equal(t, domain.StepIdle, s.Step)
		assert.Empty(t, s.TempData)
		return nil
	})
	require.NoError(t, err)
}

func TestRegistry_MessageSupersedesPendingExpiry(t *testing.T) {
	var fired atomic.Int32
	reg := session.NewRegistry(memory.NewSessionStore(),
		session.WithTimeout(60*time.Millisecond),
		session.WithExpireFunc(func(ctx context.Context, identity string) { fired.Add(1) }),
	)
	defer reg.Stop()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, reg.Do(ctx, "u2", func(ctx context.Context, s *domain.Session) error {
			s.MoveTo(domain.StepAwaitingMenu)
			return nil
		}))
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 1, reg.Pending())

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRegistry_ClosedSessionIsRemovedWithoutExpiry(t *testing.T) {
	store := memory.NewSessionStore()
	var fired atomic.Int32
	reg := session.NewRegistry(store,
		session.WithTimeout(10*time.Millisecond),
		session.WithExpireFunc(func(ctx context.Context, identity string) { fired.Add(1) }),
	)
	defer reg.Stop()
	ctx := context.Background()

	require.NoError(t, reg.Do(ctx, "u3", func(ctx context.Context, s *domain.Session) error {
		s.MoveTo(domain.StepCreateName)
		return nil
	}))
	require.NoError(t, reg.Do(ctx, "u3", func(ctx context.Context, s *domain.Session) error {
		s.Close()
		return nil
	}))

	assert.Equal(t, 0, reg.Pending())
	_, err := store.Load(ctx, "u3")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestRegistry_PersistsEvenWhenTurnFails(t *testing.T) {
	store := memory.NewSessionStore()
	reg := session.NewRegistry(store)
	defer reg.Stop()
	boom := errors.New("boom")

	err := reg.Do(context.Background(), "u4", func(ctx context.Context, s *domain.Session) error {
		s.MoveTo(domain.StepAwaitingMenu)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := store.Load(context.Background(), "u4")
	require.NoError(t, err)
	assert.Equal(t, domain.StepAwaitingMenu, s.Step)
}

func TestRegistry_ParallelIdentities(t *testing.T) {
	reg := session.NewRegistry(memory.NewSessionStore())
	defer reg.Stop()
	ctx := context.Background()

	release := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = reg.Do(ctx, "slow", func(ctx context.Context, s *domain.Session) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		_ = reg.Do(ctx, "fast", func(ctx context.Context, s *domain.Session) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a blocked identity must not block another one")
	}
	close(release)
}
