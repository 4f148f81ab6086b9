package bot_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/coperacha/internal/ratelimit"
	"github.com/aretw0/coperacha/pkg/adapters/memory"
	"github.com/aretw0/coperacha/pkg/bot"
	"github.com/aretw0/coperacha/pkg/dialogue"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/finance"
	"github.com/aretw0/coperacha/pkg/observability"
	"github.com/aretw0/coperacha/pkg/session"
	"github.com/aretw0/coperacha/pkg/wallet"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const factory = "0x00000000000000000000000000000000000000fa"

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][]string
	fail error
}

func (r *recordingSender) Send(ctx context.Context, identity, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if r.sent == nil {
		r.sent = make(map[string][]string)
	}
	r.sent[identity] = append(r.sent[identity], text)
	return nil
}

func (r *recordingSender) to(identity string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent[identity]...)
}

type fixture struct {
	svc     *bot.Service
	store   *memory.SessionStore
	sender  *recordingSender
	metrics *observability.Metrics
}

func newFixture(t *testing.T, opts ...bot.Option) *fixture {
	t.Helper()
	ledger := memory.NewLedger(factory)
	records := memory.NewRecordStore()
	engine := dialogue.NewEngine(records,
		finance.NewAggregator(ledger, records, nil),
		wallet.NewCreator(ledger, records, factory, wallet.WithBackoff(0)))

	f := &fixture{
		store:   memory.NewSessionStore(),
		sender:  &recordingSender{},
		metrics: observability.NewMetrics(nil),
	}
	opts = append([]bot.Option{bot.WithRecorder(f.metrics)}, opts...)
	f.svc = bot.New(f.store, engine, f.sender, opts...)
	t.Cleanup(f.svc.Stop)
	return f
}

func TestHandle_SendsRepliesInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, domain.Message{From: "504", Text: "hola"}))
	require.NoError(t, f.svc.Handle(ctx, domain.Message{From: "504", Text: "si"}))

	sent := f.sender.to("504")
	require.Len(t, sent, 3)
	assert.Contains(t, sent[0], "No estás registrado")
	assert.Contains(t, sent[1], "¿Deseas registrarte?")
	assert.Contains(t, sent[2], "nombre completo")

	sess, err := f.store.Load(ctx, "504")
	require.NoError(t, err)
	assert.Equal(t, domain.StepAwaitingName, sess.Step)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Messages.WithLabelValues(observability.OutcomeHandled)))
}

func TestHandle_ExitRemovesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, domain.Message{From: "504", Text: "hola"}))
	require.NoError(t, f.svc.Handle(ctx, domain.Message{From: "504", Text: "adiós"}))

	_, err := f.store.Load(ctx, "504")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Zero(t, f.svc.Registry().Pending())
}

func TestHandle_Throttled(t *testing.T) {
	f := newFixture(t, bot.WithLimiter(ratelimit.New(0.001, 1, time.Minute)))
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, domain.Message{From: "504", Text: "hola"}))
	err := f.svc.Handle(ctx, domain.Message{From: "504", Text: "si"})
	assert.ErrorIs(t, err, bot.ErrThrottled)

	assert.Len(t, f.sender.to("504"), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Messages.WithLabelValues(observability.OutcomeThrottled)))

	// Other identities are unaffected.
	assert.NoError(t, f.svc.Handle(ctx, domain.Message{From: "505", Text: "hola"}))
}

func TestHandle_SendFailureIsDegraded(t *testing.T) {
	f := newFixture(t)
	f.sender.fail = errors.New("gateway down")

	err := f.svc.Handle(context.Background(), domain.Message{From: "504", Text: "hola"})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Messages.WithLabelValues(observability.OutcomeDegraded)))

	// The turn itself still advanced.
	sess, err := f.store.Load(context.Background(), "504")
	require.NoError(t, err)
	assert.Equal(t, domain.StepAskRegistration, sess.Step)
}

func TestHandle_RejectsAnonymous(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.svc.Handle(context.Background(), domain.Message{From: " ", Text: "hola"}))
}

func TestExpiry_NotifiesOnce(t *testing.T) {
	f := newFixture(t, bot.WithSessionOptions(session.WithTimeout(20*time.Millisecond)))
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, domain.Message{From: "504", Text: "hola"}))

	assert.Eventually(t, func() bool {
		sent := f.sender.to("504")
		return len(sent) == 3 && sent[2] == dialogue.ExpiredNotice
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Len(t, f.sender.to("504"), 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Expirations))

	_, err := f.store.Load(ctx, "504")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// The next message starts over.
	require.NoError(t, f.svc.Handle(ctx, domain.Message{From: "504", Text: "hola"}))
	assert.Contains(t, f.sender.to("504")[3], "No estás registrado")
}

func TestRun_PreservesPerIdentityOrder(t *testing.T) {
	f := newFixture(t, bot.WithMailbox(2, 5*time.Millisecond))
	in := make(chan domain.Message)
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(context.Background(), in) }()

	ids := []string{"501", "502", "503", "504"}
	script := []string{"hola", "si", "Nombre", "correo@example.com"}
	for _, text := range script {
		for _, id := range ids {
			in <- domain.Message{From: id, Text: text}
		}
		// Let idle mailboxes be released between rounds.
		time.Sleep(10 * time.Millisecond)
	}
	close(in)
	require.NoError(t, <-done)

	for _, id := range ids {
		sess, err := f.store.Load(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, domain.StepConfirmEmail, sess.Step, id)
		assert.Equal(t, "correo@example.com", sess.GetString(domain.KeyEmail), id)
		assert.Len(t, f.sender.to(id), 5, id)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan domain.Message)
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx, in) }()

	for i := range 3 {
		in <- domain.Message{From: fmt.Sprint(600 + i), Text: "hola"}
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_NormalizesSender(t *testing.T) {
	f := newFixture(t)
	in := make(chan domain.Message, 3)
	in <- domain.Message{From: " 504", Text: "hola"}
	in <- domain.Message{From: "   ", Text: "hola"}
	in <- domain.Message{From: "504\n", Text: "si"}
	close(in)

	require.NoError(t, f.svc.Run(context.Background(), in))

	sess, err := f.store.Load(context.Background(), "504")
	require.NoError(t, err)
	assert.Equal(t, domain.StepAwaitingName, sess.Step)
	assert.Len(t, f.sender.to("504"), 3)

	ids, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"504"}, ids)
}

func TestInbox(t *testing.T) {
	q := bot.NewInbox(1)
	ctx := context.Background()

	require.NoError(t, q.Submit(ctx, domain.Message{From: "504", Text: "hola"}))
	assert.ErrorIs(t, q.Submit(ctx, domain.Message{From: "505", Text: "hola"}), bot.ErrQueueFull)
	assert.Equal(t, 1, q.Len())

	gone, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, q.Submit(gone, domain.Message{From: "505"}), context.Canceled)

	q.Close()
	q.Close()
	assert.ErrorIs(t, q.Submit(ctx, domain.Message{From: "505", Text: "hola"}), bot.ErrQueueClosed)

	msg, ok := <-q.Messages()
	require.True(t, ok)
	assert.Equal(t, "504", msg.From)
	_, ok = <-q.Messages()
	assert.False(t, ok)
}

func TestRun_DrainsClosedInbox(t *testing.T) {
	f := newFixture(t)
	q := bot.NewInbox(8)
	for _, msg := range []domain.Message{
		{From: "501", Text: "hola"},
		{From: "502", Text: "hola"},
		{From: "501", Text: "si"},
	} {
		require.NoError(t, q.Submit(context.Background(), msg))
	}
	q.Close()

	require.NoError(t, f.svc.Run(context.Background(), q.Messages()))
	assert.Len(t, f.sender.to("501"), 3)
	assert.Len(t, f.sender.to("502"), 2)
}

type brokenStore struct{ *memory.SessionStore }

func (brokenStore) Load(context.Context, string) (*domain.Session, error) {
	return nil, errors.New("store offline")
}

func TestHandle_StoreFailureIsUnavailable(t *testing.T) {
	ledger := memory.NewLedger(factory)
	records := memory.NewRecordStore()
	engine := dialogue.NewEngine(records, finance.NewAggregator(ledger, records, nil),
		wallet.NewCreator(ledger, records, factory))
	metrics := observability.NewMetrics(nil)
	svc := bot.New(brokenStore{memory.NewSessionStore()}, engine, &recordingSender{}, bot.WithRecorder(metrics))
	t.Cleanup(svc.Stop)

	err := svc.Handle(context.Background(), domain.Message{From: "504", Text: "hola"})
	assert.ErrorIs(t, err, bot.ErrUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Messages.WithLabelValues(observability.OutcomeFailed)))
}
