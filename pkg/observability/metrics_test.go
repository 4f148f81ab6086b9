package observability_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/finance"
	"github.com/aretw0/coperacha/pkg/observability"
	"github.com/aretw0/coperacha/pkg/wallet"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ finance.Observer = (*observability.Metrics)(nil)
	_ wallet.Observer  = (*observability.Metrics)(nil)
)

func TestMetrics_Counters(t *testing.T) {
	m := observability.NewMetrics(nil)

	m.ObserveSubQuery(finance.QueryContributions, finance.StatusUnsupported)
	m.ObserveSubQuery(finance.QueryContributions, finance.StatusUnsupported)
	m.ObserveSubQuery(finance.QueryWalletBalance, finance.StatusOK)
	m.ObserveLedgerWrite(wallet.OutcomeFailed)
	m.ObserveTransition(domain.StepIdle, domain.StepAskRegistration)
	m.ObserveMessage(observability.OutcomeHandled, 10*time.Millisecond)
	m.ObserveMessage(observability.OutcomeThrottled, 0)
	m.ObserveExpiration()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SubQueries.WithLabelValues("contributions", "unsupported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubQueries.WithLabelValues("wallet_balance", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerWrites.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("IDLE", "ASK_REGISTRATION")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("throttled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Expirations))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.ObserveExpiration()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "coperacha_session_expirations_total 1"))
}

func TestMetrics_WatchQueues(t *testing.T) {
	m := observability.NewMetrics(nil)
	pending, queued := 3, 0
	m.WatchQueues(func() int { return pending }, func() int { return queued })
	queued = 7

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "coperacha_sessions_pending 3")
	assert.Contains(t, w.Body.String(), "coperacha_inbox_queued 7")
}
