package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/internal/validator"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/ports"
)

// DefaultAttempts bounds the membership fan-out per member.
const DefaultAttempts = 3

// Ledger write outcomes reported to the Observer.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// ErrNoWalletEvent is returned when a mined creation carries no WalletCreated event.
var ErrNoWalletEvent = errors.New("receipt has no " + ports.EventWalletCreated + " event")

// Observer is notified of every ledger write.
type Observer interface {
	ObserveLedgerWrite(outcome string)
}

// Result describes a created wallet and how far its membership was mirrored.
type Result struct {
	Wallet  string   `json:"wallet_address"`
	TxHash  string   `json:"tx_hash"`
	Members []string `json:"members"`
	// Linked counts the records that now list the wallet.
	Linked int `json:"linked"`
	// Unregistered members have no identity record to link.
	Unregistered []string `json:"unregistered,omitempty"`
	// Unlinked members still failed after the last fan-out attempt.
	Unlinked []string `json:"unlinked,omitempty"`
}

// Creator runs the community wallet workflow.
type Creator struct {
	ledger   ports.Ledger
	records  ports.RecordStore
	factory  string
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
	observer Observer
}

// Option configures the Creator.
type Option func(*Creator)

// WithAttempts overrides the number of fan-out attempts per member.
func WithAttempts(n int) Option {
	return func(c *Creator) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff sets the pause between fan-out rounds.
func WithBackoff(d time.Duration) Option {
	return func(c *Creator) {
		c.backoff = d
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Creator) {
		c.logger = logger
	}
}

// WithObserver registers a ledger-write observer (metrics).
func WithObserver(o Observer) Option {
	return func(c *Creator) {
		c.observer = o
	}
}

// NewCreator creates a Creator writing through the factory contract at factory.
func NewCreator(ledger ports.Ledger, records ports.RecordStore, factory string, opts ...Option) *Creator {
	c := &Creator{
		ledger:   ledger,
		records:  records,
		factory:  strings.ToLower(factory),
		attempts: DefaultAttempts,
		backoff:  200 * time.Millisecond,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Members returns the deduplicated, lower-cased member set of draft with the
// creator always included.
func Members(draft domain.Draft) []string {
	out := make([]string, 0, len(draft.Members)+1)
	for _, m := range draft.Members {
		m = validator.NormalizeAddress(m)
		if m != "" && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	creator := validator.NormalizeAddress(draft.Creator)
	if creator != "" && !slices.Contains(out, creator) {
		out = append(out, creator)
	}
	return out
}

func validate(draft domain.Draft, members []string) error {
	if strings.TrimSpace(draft.Name) == "" {
		return &domain.ValidationError{Field: "name"}
	}
	if !validator.IsValidAddress(validator.NormalizeAddress(draft.Creator)) {
		return &domain.ValidationError{Field: "creator", Invalid: []string{draft.Creator}}
	}
	var invalid []string
	for _, m := range members {
		if !validator.IsValidAddress(m) {
			invalid = append(invalid, m)
		}
	}
	if len(invalid) > 0 {
		return &domain.ValidationError{Field: "members", Invalid: invalid}
	}
	return nil
}

// Create submits the wallet to the ledger and links it to every member's record.
// A failed ledger write returns a *domain.WriteError and is not retried.
// Fan-out failures do not fail the call; they are reported in Result.Unlinked.
func (c *Creator) Create(ctx context.Context, draft domain.Draft) (Result, error) {
	members := Members(draft)
	if err := validate(draft, members); err != nil {
		return Result{}, err
	}
	creator := validator.NormalizeAddress(draft.Creator)

	receipt, err := c.ledger.Write(ctx, c.factory, ports.MethodCreateWallet,
		members, creator, strings.TrimSpace(draft.Name), draft.Description)
	if err != nil {
		c.observe(OutcomeFailed)
		c.logger.Error("wallet creation failed", "creator", creator, "err", err)
		return Result{}, &domain.WriteError{Op: "create wallet", Err: err}
	}
	c.observe(OutcomeOK)

	addr, err := walletAddress(receipt)
	if err != nil {
		c.logger.Error("wallet created without address", "tx", receipt.TxHash, "err", err)
		return Result{}, &domain.WriteError{Op: "create wallet", Err: err}
	}

	res := Result{Wallet: addr, TxHash: receipt.TxHash, Members: members}
	c.link(ctx, &res)
	return res, nil
}

func walletAddress(receipt domain.Receipt) (string, error) {
	ev, ok := receipt.Find(ports.EventWalletCreated)
	if !ok {
		return "", ErrNoWalletEvent
	}
	addr, _ := ev.Args["walletAddress"].(string)
	addr = validator.NormalizeAddress(addr)
	if !validator.IsValidAddress(addr) {
		return "", fmt.Errorf("%w: bad walletAddress %q", ErrNoWalletEvent, addr)
	}
	return addr, nil
}

// link adds res.Wallet to each member's record, one member per write so that a
// failure only affects its own member. Failed members are retried in later rounds.
func (c *Creator) link(ctx context.Context, res *Result) {
	pending := slices.Clone(res.Members)
	for attempt := 1; attempt <= c.attempts && len(pending) > 0; attempt++ {
		if attempt > 1 && !c.pause(ctx) {
			break
		}
		var failed []string
		for _, m := range pending {
			n, err := c.records.AddWalletToMembers(ctx, []string{m}, res.Wallet)
			if err != nil {
				c.logger.Warn("membership link failed",
					"wallet", res.Wallet, "member", m, "attempt", attempt, "err", err)
				failed = append(failed, m)
				continue
			}
			if n == 0 {
				res.Unregistered = append(res.Unregistered, m)
				continue
			}
			res.Linked += n
		}
		pending = failed
	}
	if len(pending) > 0 {
		res.Unlinked = pending
		c.logger.Error("membership partially applied",
			"wallet", res.Wallet, "unlinked", pending, "linked", res.Linked)
	}
}

func (c *Creator) pause(ctx context.Context) bool {
	if c.backoff <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Creator) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveLedgerWrite(outcome)
	}
}
