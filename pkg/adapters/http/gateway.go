package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/pkg/ports"
	"github.com/cenkalti/backoff/v4"
)

// DefaultSendAttempts bounds delivery attempts per reply.
const DefaultSendAttempts = 3

// outbound is the body posted to the gateway's send endpoint.
type outbound struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// Gateway is a ports.Sender that posts replies to the transport gateway.
// Server errors and network failures are retried with exponential backoff;
// client errors are not.
type Gateway struct {
	url      string
	token    string
	client   *http.Client
	attempts uint64
	initial  time.Duration
	logger   *slog.Logger
}

var _ ports.Sender = (*Gateway)(nil)

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) { g.client = c }
}

// WithGatewayToken sends token in TokenHeader.
func WithGatewayToken(token string) GatewayOption {
	return func(g *Gateway) { g.token = token }
}

// WithRetry sets the attempt count and the first backoff interval.
func WithRetry(attempts int, initial time.Duration) GatewayOption {
	return func(g *Gateway) {
		if attempts > 0 {
			g.attempts = uint64(attempts)
		}
		if initial > 0 {
			g.initial = initial
		}
	}
}

// WithGatewayLogger configures the structured logger.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = logger }
}

// NewGateway creates a sender posting to baseURL + "/send".
func NewGateway(baseURL string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		url:      strings.TrimRight(baseURL, "/") + "/send",
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: DefaultSendAttempts,
		initial:  250 * time.Millisecond,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Send implements ports.Sender.
func (g *Gateway) Send(ctx context.Context, identity, text string) error {
	body, err := json.Marshal(outbound{To: identity, Text: text})
	if err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.initial
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, g.attempts-1), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := g.post(ctx, body)
		if err != nil {
			g.logger.Warn("gateway send failed", "to", identity, "attempt", attempt, "err", err)
		}
		return err
	}, b)
}

func (g *Gateway) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set(TokenHeader, g.token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("gateway returned %s", resp.Status)
	default:
		return backoff.Permanent(fmt.Errorf("gateway rejected message: %s", resp.Status))
	}
}
