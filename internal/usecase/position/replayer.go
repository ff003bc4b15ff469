package position

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
)

// Replayer drives a Tracker over a timeline loaded for a scope
type Replayer struct {
	Loader *timeline.Loader
}

// NewReplayer creates a new Replayer instance
func NewReplayer(loader *timeline.Loader) *Replayer {
	return &Replayer{Loader: loader}
}

// Replay loads the scope and folds it into tracker
func (r *Replayer) Replay(ctx context.Context, scope timeline.Scope, tracker *Tracker) error {
	events, err := r.Loader.Load(ctx, scope)
	if err != nil {
		return err
	}
	return tracker.ApplyAll(events)
}

// Positions replays a scope from the seed and returns the resulting states ordered by asset
func (r *Replayer) Positions(ctx context.Context, scope timeline.Scope, seed []State) ([]State, error) {
	tracker := NewTracker(seed)
	if err := r.Replay(ctx, scope, tracker); err != nil {
		return nil, err
	}
	return tracker.Positions(), nil
}

// AvailableShares returns the shares of one asset held at the end of asOf,
// optionally leaving one trade out of the replay
func (r *Replayer) AvailableShares(ctx context.Context, portfolioID, assetID uuid.UUID, asOf time.Time, excludeTradeID *uuid.UUID) (decimal.Decimal, error) {
	tracker := NewTracker(nil)
	err := r.Replay(ctx, timeline.Scope{
		PortfolioID:    portfolioID,
		AssetID:        &assetID,
		Until:          &asOf,
		ExcludeTradeID: excludeTradeID,
	}, tracker)
	if err != nil {
		return decimal.Zero, err
	}
	st, _ := tracker.Get(assetID)
	return st.Shares, nil
}
