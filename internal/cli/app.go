package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/aretw0/coperacha/internal/adapters/file"
	"github.com/aretw0/coperacha/internal/config"
	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/internal/ratelimit"
	"github.com/aretw0/coperacha/pkg/adapters/ethereum"
	httpAdapter "github.com/aretw0/coperacha/pkg/adapters/http"
	"github.com/aretw0/coperacha/pkg/adapters/memory"
	"github.com/aretw0/coperacha/pkg/adapters/redis"
	"github.com/aretw0/coperacha/pkg/bot"
	"github.com/aretw0/coperacha/pkg/dialogue"
	"github.com/aretw0/coperacha/pkg/finance"
	"github.com/aretw0/coperacha/pkg/observability"
	"github.com/aretw0/coperacha/pkg/persistence/middleware"
	"github.com/aretw0/coperacha/pkg/ports"
	"github.com/aretw0/coperacha/pkg/session"
	"github.com/aretw0/coperacha/pkg/wallet"
	backend "github.com/redis/go-redis/v9"
)

// LocalFactory is the factory address of the in-memory ledger used when no
// node is configured.
const LocalFactory = "0x00000000000000000000000000000000000fac70"

// Records is the record store together with its exchange rate slot.
type Records interface {
	ports.RecordStore
	ports.RateStore
}

// App is every collaborator of one running bot, assembled from a Config.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Sessions   ports.SessionStore
	Records    Records
	Ledger     ports.Ledger
	Rates      *finance.Rates
	Aggregator *finance.Aggregator
	Creator    *wallet.Creator
	Engine     *dialogue.Engine
	Service    *bot.Service

	// Inbox feeds Dispatch; the webhook submits to it.
	Inbox *bot.Inbox

	// Local is set when the ledger is the in-memory one.
	Local *memory.Ledger

	closers []func() error
}

type buildOptions struct {
	sender   ports.Sender
	sessions ports.SessionStore
	redis    *backend.Client
}

// BuildOption adjusts how Build wires the App.
type BuildOption func(*buildOptions)

// WithSender replaces the gateway sender, e.g. with the console.
func WithSender(s ports.Sender) BuildOption {
	return func(o *buildOptions) { o.sender = s }
}

// WithSessionStore overrides the session store picked from the config.
func WithSessionStore(s ports.SessionStore) BuildOption {
	return func(o *buildOptions) { o.sessions = s }
}

// WithRedisClient reuses an existing client instead of dialing cfg.Redis.Addr.
func WithRedisClient(c *backend.Client) BuildOption {
	return func(o *buildOptions) { o.redis = c }
}

// Build assembles the App. Without redis settings the stores live in memory;
// without a ledger node the in-memory ledger is used.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...BuildOption) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(nil),
	}

	var sessionOpts []session.Option
	client := o.redis
	if client == nil && cfg.Redis.Addr != "" {
		client = redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		app.closers = append(app.closers, client.Close)
	}
	if client != nil {
		if err := client.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.Sessions = redis.NewSessionStore(client,
			redis.WithSessionPrefix(cfg.Redis.Prefix+"session:"),
			redis.WithTTL(cfg.Session.Timeout*2),
		)
		app.Records = redis.NewRecordStore(client, cfg.Redis.Prefix)
		sessionOpts = append(sessionOpts,
			session.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix, redis.WithLockLogger(logger))),
			session.WithLockTTL(lockLease(cfg)),
		)
	} else {
		logger.Warn("redis not configured, records and sessions are kept in memory")
		app.Sessions = memory.NewSessionStore()
		app.Records = memory.NewRecordStore()
	}
	if o.sessions != nil {
		app.Sessions = o.sessions
	}
	sealed, err := sealSessions(cfg, app.Sessions)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Sessions = sealed

	factory, index, err := app.openLedger(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Rates = finance.NewRates(app.Records, cfg.ExchangeRateFallback, logger)
	app.Aggregator = finance.NewAggregator(app.Ledger, app.Records, app.Rates,
		finance.WithFanout(cfg.Aggregator.Fanout),
		finance.WithLogger(logger),
		finance.WithObserver(app.Metrics),
		finance.WithIndex(index),
	)
	app.Creator = wallet.NewCreator(app.Ledger, app.Records, factory,
		wallet.WithLogger(logger),
		wallet.WithObserver(app.Metrics),
	)
	app.Engine = dialogue.NewEngine(app.Records, app.Aggregator, app.Creator,
		dialogue.WithLogger(logger),
		dialogue.WithRegisterURL(cfg.WalletRegisterURL),
		dialogue.WithTransitionObserver(app.Metrics.ObserveTransition),
	)

	sender := o.sender
	if sender == nil {
		sender = app.gatewaySender()
	}

	sessionOpts = append(sessionOpts, session.WithTimeout(cfg.Session.Timeout))
	botOpts := []bot.Option{
		bot.WithLogger(logger),
		bot.WithRecorder(app.Metrics),
		bot.WithSessionOptions(sessionOpts...),
		bot.WithMailbox(cfg.Dispatch.Mailbox, cfg.Dispatch.IdleAfter),
	}
	if limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 0); limiter != nil {
		botOpts = append(botOpts, bot.WithLimiter(limiter))
	}
	app.Service = bot.New(app.Sessions, app.Engine, sender, botOpts...)
	app.Inbox = bot.NewInbox(cfg.Dispatch.QueueSize)
	app.Metrics.WatchQueues(app.Service.Registry().Pending, app.Inbox.Len)
	return app, nil
}

// Dispatch handles the messages queued on Inbox until it is closed and
// drained, or ctx is done.
func (a *App) Dispatch(ctx context.Context) error {
	return a.Service.Run(ctx, a.Inbox.Messages())
}

// lockLease covers a turn that waits for a ledger receipt even when the
// locker fails to renew it.
func lockLease(cfg *config.Config) time.Duration {
	return cfg.Ledger.ReceiptTimeout + session.DefaultLockTTL
}

// openLedger sets app.Ledger and returns the factory address and the
// transfer index to use.
func (a *App) openLedger(ctx context.Context) (string, ports.LedgerIndex, error) {
	cfg := a.Config
	if cfg.Ledger.RPCURL == "" {
		factory := cfg.Ledger.FactoryAddress
		if factory == "" {
			factory = LocalFactory
		}
		a.Logger.Warn("ledger node not configured, using the in-memory ledger", "factory", factory)
		a.Local = memory.NewLedger(factory)
		a.Ledger = a.Local
		return factory, a.Local, nil
	}
	if err := cfg.RequireLedger(); err != nil {
		return "", nil, err
	}

	opts := []ethereum.Option{
		ethereum.WithLogger(a.Logger),
		ethereum.WithReceiptPolling(0, cfg.Ledger.ReceiptTimeout),
	}
	if cfg.Ledger.ChainID > 0 {
		opts = append(opts, ethereum.WithChainID(big.NewInt(cfg.Ledger.ChainID)))
	}
	if cfg.Ledger.PrivateKey != "" {
		key, err := ethereum.ParseKey(cfg.Ledger.PrivateKey)
		if err != nil {
			return "", nil, err
		}
		opts = append(opts, ethereum.WithSigner(key))
	}
	l, err := ethereum.Dial(ctx, cfg.Ledger.RPCURL, opts...)
	if err != nil {
		return "", nil, err
	}
	a.closers = append(a.closers, func() error {
		l.Close()
		return nil
	})
	if l.Signer() == "" {
		a.Logger.Warn("ledger has no signer, wallet creation will fail")
	}
	a.Ledger = l
	return cfg.Ledger.FactoryAddress, l, nil
}

func (a *App) gatewaySender() ports.Sender {
	cfg := a.Config
	if cfg.Gateway.URL == "" {
		a.Logger.Warn("gateway not configured, replies are only logged")
		return ports.SenderFunc(func(ctx context.Context, identity, text string) error {
			a.Logger.Info("reply", "to", identity, "text", text)
			return nil
		})
	}
	return httpAdapter.NewGateway(cfg.Gateway.URL,
		httpAdapter.WithGatewayToken(cfg.Gateway.Token),
		httpAdapter.WithGatewayLogger(a.Logger),
	)
}

// Handler is the HTTP surface of the App.
func (a *App) Handler(version string) http.Handler {
	return httpAdapter.NewHandler(&httpAdapter.Server{
		Queue:      a.Inbox,
		Finance:    a.Aggregator,
		Governance: a.Creator,
		Records:    a.Records,
		Rates:      a.Rates,
		Metrics:    a.Metrics.Handler(),
		Token:      a.Config.Gateway.Token,
		Version:    version,
		Logger:     a.Logger,
	})
}

// Close stops pending expiries and releases connections.
func (a *App) Close() error {
	if a.Inbox != nil {
		a.Inbox.Close()
	}
	if a.Service != nil {
		a.Service.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// sealSessions wraps store with encryption when a session key is configured.
func sealSessions(cfg *config.Config, store ports.SessionStore) (ports.SessionStore, error) {
	if cfg.Session.EncryptionKey == "" {
		return store, nil
	}
	active, err := middleware.ParseKey(cfg.Session.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("session.encryption_key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.Session.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("session.fallback_keys[%d]: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	mw, err := middleware.NewEncryptionMiddleware(enc)
	if err != nil {
		return nil, err
	}
	return mw(store), nil
}

// OpenSessions returns the session store administration commands work on:
// redis when configured, else the console's file store.
func OpenSessions(ctx context.Context, cfg *config.Config) (ports.SessionStore, func() error, error) {
	var store ports.SessionStore
	closeStore := func() error { return nil }
	if cfg.Redis.Addr == "" {
		store = file.New(cfg.Session.Dir)
	} else {
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		store = redis.NewSessionStore(client, redis.WithSessionPrefix(cfg.Redis.Prefix+"session:"))
		closeStore = client.Close
	}
	sealed, err := sealSessions(cfg, store)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return sealed, closeStore, nil
}

// OpenRecords returns the record store for administration commands. Without
// redis it is an empty in-memory store.
func OpenRecords(ctx context.Context, cfg *config.Config) (Records, func() error, error) {
	if cfg.Redis.Addr == "" {
		return memory.NewRecordStore(), func() error { return nil }, nil
	}
	client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return redis.NewRecordStore(client, cfg.Redis.Prefix), client.Close, nil
}
