// Package fx resolves exchange rates from the stored rate history.
package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

// Resolver looks up the latest applicable rate for a currency pair
type Resolver struct {
	FXRateRepo domain.FXRateRepository
}

// NewResolver creates a new Resolver instance
func NewResolver(fxRateRepo domain.FXRateRepository) *Resolver {
	return &Resolver{FXRateRepo: fxRateRepo}
}

// Rate returns the rate converting one unit of from into to, using the most
// recent row dated on or before asOf. Identical currencies resolve to 1.
// ok is false when no row exists; err is reserved for storage failures.
func (r *Resolver) Rate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, bool, error) {
	if from == to {
		return decimal.NewFromInt(1), true, nil
	}

	row, err := r.FXRateRepo.LatestOnOrBefore(ctx, from, to, domain.DateOf(asOf))
	if errors.Is(err, domain.ErrNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to resolve fx rate %s/%s: %w", from, to, err)
	}
	return row.Rate, true, nil
}

// MustRate is Rate with a missing rate reported as ErrMissingFXRate
func (r *Resolver) MustRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	rate, ok, err := r.Rate(ctx, from, to, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s to %s on %s", domain.ErrMissingFXRate, from, to, asOf.Format(domain.DateLayout))
	}
	return rate, nil
}
