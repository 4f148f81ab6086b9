package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/internal/ratelimit"
	"github.com/aretw0/coperacha/pkg/dialogue"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/observability"
	"github.com/aretw0/coperacha/pkg/ports"
	"github.com/aretw0/coperacha/pkg/session"
)

// ErrThrottled is returned by Handle when the identity exceeded its message rate.
var ErrThrottled = errors.New("message rate exceeded")

// ErrUnavailable marks a turn that could not run because the session could
// not be loaded, locked or persisted. The message was not processed.
var ErrUnavailable = errors.New("session unavailable")

// Recorder receives per-message and expiry measurements.
type Recorder interface {
	ObserveMessage(outcome string, took time.Duration)
	ObserveExpiration()
}

// Service handles inbound messages.
type Service struct {
	registry *session.Registry
	engine   *dialogue.Engine
	sender   ports.Sender
	limiter  *ratelimit.Limiter
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	sessionOpts []session.Option
	mailboxSize int
	idleAfter   time.Duration
}

// Option configures the Service.
type Option func(*Service)

// WithLimiter enables per-identity rate limiting.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// WithRecorder registers the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSessionOptions passes options to the underlying session.Registry.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Service) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// WithMailbox sizes the per-identity queue of Run and sets how long an idle
// mailbox goroutine lingers before it is released.
func WithMailbox(size int, idleAfter time.Duration) Option {
	return func(s *Service) {
		if size > 0 {
			s.mailboxSize = size
		}
		if idleAfter > 0 {
			s.idleAfter = idleAfter
		}
	}
}

// New creates a Service. The session registry is built over store and notifies
// expired identities through sender.
func New(store ports.SessionStore, engine *dialogue.Engine, sender ports.Sender, opts ...Option) *Service {
	s := &Service{
		engine:      engine,
		sender:      sender,
		logger:      logging.NewNop(),
		now:         time.Now,
		mailboxSize: 16,
		idleAfter:   time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	sessionOpts := append([]session.Option{session.WithLogger(s.logger)}, s.sessionOpts...)
	sessionOpts = append(sessionOpts, session.WithExpireFunc(s.notifyExpired))
	s.registry = session.NewRegistry(store, sessionOpts...)
	return s
}

// Registry exposes the session registry for administration.
func (s *Service) Registry() *session.Registry {
	return s.registry
}

// Stop cancels pending expiries.
func (s *Service) Stop() {
	s.registry.Stop()
}

// Handle processes one inbound message to completion. Replies are sent while the
// identity's lock is held, so they never interleave with another turn's replies.
func (s *Service) Handle(ctx context.Context, msg domain.Message) error {
	start := s.now()
	identity := strings.TrimSpace(msg.From)
	if identity == "" {
		return fmt.Errorf("message without sender")
	}

	if !s.limiter.Allow(identity, start) {
		s.logger.Debug("message throttled", "identity", identity)
		s.observe(observability.OutcomeThrottled, 0)
		return ErrThrottled
	}

	var turnErr, sendErr error
	err := s.registry.Do(ctx, identity, func(ctx context.Context, sess *domain.Session) error {
		var replies []string
		replies, turnErr = s.engine.Handle(ctx, sess, msg.Text)
		for _, r := range replies {
			if err := s.sender.Send(ctx, identity, r); err != nil {
				sendErr = errors.Join(sendErr, err)
			}
		}
		return nil
	})

	took := s.now().Sub(start)
	switch {
	case err != nil:
		s.logger.Error("turn failed", "identity", identity, "err", err)
		s.observe(observability.OutcomeFailed, took)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case turnErr != nil || sendErr != nil:
		if turnErr != nil {
			s.logger.Warn("turn degraded", "identity", identity, "err", turnErr)
		}
		if sendErr != nil {
			s.logger.Error("reply delivery failed", "identity", identity, "err", sendErr)
		}
		s.observe(observability.OutcomeDegraded, took)
		return errors.Join(turnErr, sendErr)
	default:
		s.observe(observability.OutcomeHandled, took)
		return nil
	}
}

func (s *Service) notifyExpired(ctx context.Context, identity string) {
	if s.recorder != nil {
		s.recorder.ObserveExpiration()
	}
	s.logger.Info("session expired", "identity", identity)
	if err := s.sender.Send(ctx, identity, dialogue.ExpiredNotice); err != nil {
		s.logger.Error("failed to send expiry notice", "identity", identity, "err", err)
	}
}

func (s *Service) observe(outcome string, took time.Duration) {
	if s.recorder != nil {
		s.recorder.ObserveMessage(outcome, took)
	}
}
