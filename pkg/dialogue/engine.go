package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/finance"
	"github.com/aretw0/coperacha/pkg/ports"
	"github.com/aretw0/coperacha/pkg/wallet"
)

// DefaultRegisterURL is offered to identities without a wallet.
const DefaultRegisterURL = "https://metamask.io/download"

// exitPhrases close the conversation from any step. Compared lower-cased.
var exitPhrases = map[string]bool{
	"adiós": true,
	"adios": true,
	"exit":  true,
	"salir": true,
}

// Aggregator is the read side used by the menu options.
type Aggregator interface {
	PersonalAndCommunityBalance(ctx context.Context, identity string) (domain.BalanceView, error)
	Dashboard(ctx context.Context, wallet string) finance.Dashboard
	Contributions(ctx context.Context, wallet string) finance.Result[[]domain.Contribution]
	ProposalHistory(ctx context.Context, wallet string) (finance.History, error)
}

// WalletCreator submits a community wallet draft.
type WalletCreator interface {
	Create(ctx context.Context, draft domain.Draft) (wallet.Result, error)
}

// TransitionFunc observes step changes.
type TransitionFunc func(from, to domain.Step)

// handler advances one step. A returned error marks the turn as degraded; the
// replies gathered so far are still delivered.
type handler func(ctx context.Context, t *turn) error

// turn is the per-message working set.
type turn struct {
	sess    *domain.Session
	raw     string // trimmed input
	text    string // trimmed, lower-cased input
	record  *domain.Record
	replies []string
}

func (t *turn) say(msgs ...string) {
	t.replies = append(t.replies, msgs...)
}

func (t *turn) sayf(format string, args ...any) {
	t.replies = append(t.replies, fmt.Sprintf(format, args...))
}

// Engine is the dialogue state machine.
type Engine struct {
	records     ports.RecordStore
	finance     Aggregator
	wallets     WalletCreator
	registerURL string
	logger      *slog.Logger
	now         func() time.Time
	onStep      TransitionFunc

	table map[domain.Step]handler
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegisterURL sets the wallet signup link offered in the registration flow.
func WithRegisterURL(url string) Option {
	return func(e *Engine) {
		if url != "" {
			e.registerURL = url
		}
	}
}

// WithClock overrides the clock used for registration timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTransitionObserver registers a callback fired whenever a turn changes the step.
func WithTransitionObserver(fn TransitionFunc) Option {
	return func(e *Engine) {
		e.onStep = fn
	}
}

// NewEngine creates an Engine.
func NewEngine(records ports.RecordStore, agg Aggregator, wallets WalletCreator, opts ...Option) *Engine {
	e := &Engine{
		records:     records,
		finance:     agg,
		wallets:     wallets,
		registerURL: DefaultRegisterURL,
		logger:      logging.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.table = map[domain.Step]handler{
		domain.StepIdle:            e.idle,
		domain.StepAskRegistration: e.askRegistration,
		domain.StepAwaitingName:    e.awaitingName,
		domain.StepAwaitingEmail:   e.awaitingEmail,
		domain.StepConfirmEmail:    e.confirmEmail,
		domain.StepAskWalletOption: e.askWalletOption,
		domain.StepAwaitingWallet:  e.awaitingWallet,
		domain.StepConfirmWallet:   e.confirmWallet,
		domain.StepAwaitingMenu:    e.menu,
		domain.StepCreateName:      e.createName,
		domain.StepCreateDesc:      e.createDesc,
		domain.StepCreateMembers:   e.createMembers,
		domain.StepCreateConfirm:   e.createConfirm,
		domain.StepSelectWallet:    e.selectWallet,
		domain.StepWalletSubmenu:   e.walletSubmenu,
	}
	return e
}

// Handles reports whether the transition table has a handler for step.
func (e *Engine) Handles(step domain.Step) bool {
	_, ok := e.table[step]
	return ok
}

// Handle consumes one inbound message for sess and returns the replies to send.
// The session is mutated in place. Callers must serialize calls per identity.
func (e *Engine) Handle(ctx context.Context, sess *domain.Session, input string) ([]string, error) {
	raw := strings.TrimSpace(input)
	t := &turn{sess: sess, raw: raw, text: strings.ToLower(raw)}
	from := sess.Step

	if exitPhrases[t.text] {
		sess.Close()
		t.say(msgGoodbye)
		e.transition(from, domain.StepIdle)
		return t.replies, nil
	}

	rec, err := e.records.FindByPhone(ctx, sess.Identity)
	switch {
	case err == nil:
		t.record = rec
	case errors.Is(err, domain.ErrRecordNotFound):
	default:
		t.say(msgUnavailable)
		return t.replies, fmt.Errorf("failed to load record: %w", err)
	}

	h, ok := e.table[sess.Step]
	if !ok {
		e.logger.Warn("unknown step, resetting session", "identity", sess.Identity, "step", sess.Step)
		sess.Reset()
		h = e.idle
	}

	err = h(ctx, t)
	e.transition(from, sess.Step)
	return t.replies, err
}

func (e *Engine) transition(from, to domain.Step) {
	if from == to {
		return
	}
	e.logger.Debug("step transition", "from", from, "to", to)
	if e.onStep != nil {
		e.onStep(from, to)
	}
}

// idle starts a conversation: registration for unknown identities, the menu otherwise.
func (e *Engine) idle(ctx context.Context, t *turn) error {
	if t.record == nil {
		t.say(msgNotRegistered, msgAskRegistration)
		t.sess.MoveTo(domain.StepAskRegistration)
		return nil
	}
	name := t.record.Name
	if name == "" {
		name = "usuario"
	}
	t.sayf(msgWelcomeBack, name)
	t.say(msgMenu)
	t.sess.MoveTo(domain.StepAwaitingMenu)
	return nil
}

// answer classifies a yes/no reply.
type answer int

const (
	answerOther answer = iota
	answerYes
	answerNo
)

func yesNo(text string) answer {
	switch text {
	case "sí", "si":
		return answerYes
	case "no":
		return answerNo
	default:
		return answerOther
	}
}
