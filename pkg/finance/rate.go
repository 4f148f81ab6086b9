package finance

import (
	"context"
	"log/slog"

	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/ports"
)

// DefaultRate is used when neither the store nor the configuration provide a rate.
const DefaultRate = 80000

// Rates reads the exchange rate through the rate store, falling back to a
// configured value when none is stored.
type Rates struct {
	store    ports.RateStore
	fallback float64
	logger   *slog.Logger
}

// NewRates creates a read-through rate source.
func NewRates(store ports.RateStore, fallback float64, logger *slog.Logger) *Rates {
	if fallback <= 0 {
		fallback = DefaultRate
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Rates{store: store, fallback: fallback, logger: logger}
}

// Current returns the stored rate when it is positive, the fallback otherwise.
func (r *Rates) Current(ctx context.Context) float64 {
	if r.store == nil {
		return r.fallback
	}
	rate, ok, err := r.store.ExchangeRate(ctx)
	if err != nil {
		r.logger.Warn("exchange rate lookup failed, using fallback", "err", err, "fallback", r.fallback)
		return r.fallback
	}
	if !ok || rate <= 0 {
		return r.fallback
	}
	return rate
}

// Set stores a new rate. Non-positive rates are rejected.
func (r *Rates) Set(ctx context.Context, rate float64) error {
	if rate <= 0 {
		return &domain.ValidationError{Field: "exchange rate"}
	}
	if r.store == nil {
		return &domain.WriteError{Op: "set exchange rate", Err: ErrNoRateStore}
	}
	if err := r.store.SetExchangeRate(ctx, rate); err != nil {
		return &domain.WriteError{Op: "set exchange rate", Err: err}
	}
	return nil
}
