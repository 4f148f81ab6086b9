package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// farFuture scores index entries of sessions without TTL (2100-01-01).
const farFuture = 4102444800

// SessionStore implements ports.SessionStore using Redis.
// Sessions are JSON strings; a ZSET scored by expiry time indexes them for List.
type SessionStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// SessionOption configures the SessionStore.
type SessionOption func(*SessionStore)

// WithTTL sets the expiration for sessions. It bounds how long a session
// outlives a crashed process whose expiry timers were lost.
func WithTTL(ttl time.Duration) SessionOption {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// WithSessionPrefix sets the key prefix for sessions.
func WithSessionPrefix(prefix string) SessionOption {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// NewSessionStore creates a session store from an existing client.
func NewSessionStore(client *backend.Client, opts ...SessionOption) *SessionStore {
	store := &SessionStore{
		client: client,
		prefix: DefaultPrefix + "session:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *SessionStore) key(identity string) string {
	return s.prefix + identity
}

func (s *SessionStore) indexKey() string {
	return s.prefix + "index"
}

// Save persists the session.
func (s *SessionStore) Save(ctx context.Context, identity string, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	score := float64(farFuture)
	if s.ttl > 0 {
		score = float64(s.now().Add(s.ttl).Unix())
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(identity), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: identity})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the session.
func (s *SessionStore) Load(ctx context.Context, identity string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(identity)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.TempData == nil {
		sess.TempData = make(map[string]any)
	}
	return &sess, nil
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, identity string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(identity))
	pipe.ZRem(ctx, s.indexKey(), identity)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the identities with a live session, pruning expired index entries first.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	now := float64(s.now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}
