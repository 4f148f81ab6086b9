package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/ports"
)

// DefaultTimeout is the inactivity window after which a session is expired.
const DefaultTimeout = 5 * time.Minute

// DefaultLockTTL is the distributed lock lease when none is configured.
const DefaultLockTTL = 30 * time.Second

// ExpireFunc is called, under the identity's lock, after a session expired.
type ExpireFunc func(ctx context.Context, identity string)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// expiry is a pending inactivity timer. gen identifies the arming that created it.
type expiry struct {
	timer *time.Timer
	gen   uint64
}

// Registry owns every conversation session. It serializes work per identity,
// lets different identities proceed in parallel and expires idle sessions.
// It uses Reference Counting to garbage collect unused locks.
type Registry struct {
	store ports.SessionStore

	mu     sync.Mutex            // Global lock for locks, timers and gen
	locks  map[string]*lockEntry // Map of active locks
	timers map[string]*expiry
	gen    uint64

	timeout  time.Duration
	onExpire ExpireFunc
	locker   ports.DistributedLocker // Optional distributed locker
	lockTTL  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Registry.
type Option func(*Registry)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(r *Registry) {
		r.locker = locker
	}
}

// WithLockTTL sets the lease requested from the distributed locker.
func WithLockTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.lockTTL = d
		}
	}
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithTimeout overrides the inactivity window.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithExpireFunc registers the callback fired when a session expires.
func WithExpireFunc(fn ExpireFunc) Option {
	return func(r *Registry) {
		r.onExpire = fn
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a Registry backed by store.
func NewRegistry(store ports.SessionStore, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		locks:   make(map[string]*lockEntry),
		timers:  make(map[string]*expiry),
		timeout: DefaultTimeout,
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(identity) after unlocking.
func (r *Registry) acquire(identity string) *lockEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.locks[identity]
	if !exists {
		entry = &lockEntry{}
		r.locks[identity] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (r *Registry) release(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.locks[identity]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(r.locks, identity)
	}
}

// WithLock executes fn while holding the lock for identity.
func (r *Registry) WithLock(ctx context.Context, identity string, fn func(context.Context) error) error {
	entry := r.acquire(identity)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		r.release(identity)
	}()

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, identity, r.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				r.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"identity", identity,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Do runs fn against the identity's session inside its critical section.
// The session is created lazily, the pending expiry is cancelled before fn runs and
// re-armed after it, and the result is persisted. A session closed by fn is
// removed from the store and gets no new expiry.
func (r *Registry) Do(ctx context.Context, identity string, fn func(context.Context, *domain.Session) error) error {
	return r.WithLock(ctx, identity, func(ctx context.Context) error {
		r.disarm(identity)

		sess, err := r.store.Load(ctx, identity)
		if errors.Is(err, domain.ErrSessionNotFound) {
			sess = domain.NewSession(identity)
		} else if err != nil {
			r.arm(identity)
			return fmt.Errorf("failed to load session: %w", err)
		}
		if sess.Step == domain.StepIdle && len(sess.TempData) > 0 {
			sess.Reset()
		}

		runErr := fn(ctx, sess)

		if sess.Closed() {
			if err := r.store.Delete(ctx, identity); err != nil {
				return errors.Join(runErr, fmt.Errorf("failed to delete session: %w", err))
			}
			return runErr
		}

		sess.UpdatedAt = r.now()
		if err := r.store.Save(ctx, identity, sess); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("failed to save session: %w", err))
		}
		r.arm(identity)
		return runErr
	})
}

// Load retrieves an existing session from the store.
func (r *Registry) Load(ctx context.Context, identity string) (*domain.Session, error) {
	var sess *domain.Session
	err := r.WithLock(ctx, identity, func(ctx context.Context) error {
		var err error
		sess, err = r.store.Load(ctx, identity)
		return err
	})
	return sess, err
}

// Delete removes the session and cancels its expiry without notifying.
func (r *Registry) Delete(ctx context.Context, identity string) error {
	return r.WithLock(ctx, identity, func(ctx context.Context) error {
		r.disarm(identity)
		return r.store.Delete(ctx, identity)
	})
}

// List delegates to the store.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	return r.store.List(ctx)
}

// Pending returns the number of armed expiry timers.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels every pending expiry. Sessions stay in the store.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.timers {
		e.timer.Stop()
		delete(r.timers, id)
	}
}

// arm schedules a fresh expiry for identity, superseding any previous one.
// Must be called while holding the identity's lock.
func (r *Registry) arm(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.timers[identity]; ok {
		e.timer.Stop()
	}
	r.gen++
	gen := r.gen
	r.timers[identity] = &expiry{
		gen:   gen,
		timer: time.AfterFunc(r.timeout, func() { r.expire(identity, gen) }),
	}
}

// disarm cancels the pending expiry for identity.
// Must be called while holding the identity's lock.
func (r *Registry) disarm(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.timers[identity]; ok {
		e.timer.Stop()
		delete(r.timers, identity)
	}
}

// expire runs on the timer goroutine. It takes the identity's lock and only acts
// if gen is still the armed generation, so a timer that fired while a message
// held the lock does nothing.
func (r *Registry) expire(identity string, gen uint64) {
	ctx := context.Background()
	err := r.WithLock(ctx, identity, func(ctx context.Context) error {
		r.mu.Lock()
		e, ok := r.timers[identity]
		current := ok && e.gen == gen
		if current {
			delete(r.timers, identity)
		}
		r.mu.Unlock()

		if !current {
			return nil
		}

		if err := r.store.Delete(ctx, identity); err != nil {
			r.logger.Error("Failed to delete expired session", "identity", identity, "err", err)
		}
		r.logger.Debug("session expired", "identity", identity)
		if r.onExpire != nil {
			r.onExpire(ctx, identity)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Session expiry failed", "identity", identity, "err", err)
	}
}
