package holdings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/fx"
	"github.com/simaogato/portfolio-engine/internal/usecase/position"
	"github.com/simaogato/portfolio-engine/internal/usecase/snapshot"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
)

// PositionView is one valued position as of a date.
// Pointer fields are nil when the data needed to compute them is missing.
type PositionView struct {
	AssetID     uuid.UUID
	Symbol      string
	Name        string
	Currency    string
	Shares      decimal.Decimal
	AvgCost     decimal.Decimal
	CostBasis   decimal.Decimal
	RealizedPnL decimal.Decimal

	LastPrice     *decimal.Decimal
	MarketValue   *decimal.Decimal
	UnrealizedPnL *decimal.Decimal

	// Base currency conversion, only filled when requested and a rate exists
	BaseCurrency      string
	FXRate            *decimal.Decimal
	MarketValueBase   *decimal.Decimal
	CostBasisBase     *decimal.Decimal
	UnrealizedPnLBase *decimal.Decimal
}

// HoldingsService values point-in-time positions
type HoldingsService struct {
	PortfolioRepo domain.PortfolioRepository
	AssetRepo     domain.AssetRepository
	PriceRepo     domain.PriceRepository
	Replayer      *position.Replayer
	Snapshots     *snapshot.SnapshotService
	FX            *fx.Resolver

	// UseSnapshots seeds replays from the latest snapshot when true
	UseSnapshots bool
}

// NewHoldingsService creates a new HoldingsService instance
func NewHoldingsService(repos domain.Repositories, replayer *position.Replayer, snapshots *snapshot.SnapshotService, resolver *fx.Resolver, useSnapshots bool) *HoldingsService {
	return &HoldingsService{
		PortfolioRepo: repos.Portfolios,
		AssetRepo:     repos.Assets,
		PriceRepo:     repos.Prices,
		Replayer:      replayer,
		Snapshots:     snapshots,
		FX:            resolver,
		UseSnapshots:  useSnapshots,
	}
}

// GetPositions replays the portfolio through asOf and values every position
// at the latest price on or before asOf
func (s *HoldingsService) GetPositions(ctx context.Context, portfolioID uuid.UUID, asOf time.Time, inBaseCurrency bool) ([]PositionView, error) {
	asOf = domain.DateOf(asOf)

	// 1. Portfolio must exist
	portfolio, err := s.PortfolioRepo.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	// 2. Replay, optionally resuming from a snapshot
	scope := timeline.Scope{PortfolioID: portfolioID, Until: &asOf}
	var seed []position.State
	if s.UseSnapshots && s.Snapshots != nil {
		resumed, ok, err := s.Snapshots.Resume(ctx, portfolioID, asOf)
		if err != nil {
			return nil, err
		}
		if ok {
			seed = resumed.States
			scope.After = &resumed.Date
		}
	}
	states, err := s.Replayer.Positions(ctx, scope, seed)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return []PositionView{}, nil
	}

	// 3. Reference data and prices in batch
	ids := make([]uuid.UUID, 0, len(states))
	for _, st := range states {
		ids = append(ids, st.AssetID)
	}
	assets, err := s.AssetRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	prices, err := s.PriceRepo.LatestForAssets(ctx, ids, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	// 4. Value each position
	views := make([]PositionView, 0, len(states))
	for _, st := range states {
		view := PositionView{
			AssetID:     st.AssetID,
			Shares:      st.Shares,
			AvgCost:     st.AvgCost(),
			CostBasis:   st.CostBasis,
			RealizedPnL: st.RealizedPnL,
		}
		if asset, ok := assets[st.AssetID]; ok {
			view.Symbol, view.Name, view.Currency = asset.Symbol, asset.Name, asset.Currency
		}
		if price, ok := prices[st.AssetID]; ok {
			lp := price.Close
			view.LastPrice = &lp
			if st.Shares.GreaterThan(decimal.Zero) {
				mv := st.Shares.Mul(lp)
				unrealized := mv.Sub(st.CostBasis)
				view.MarketValue, view.UnrealizedPnL = &mv, &unrealized
			}
		}

		// 5. Optional base currency conversion; a missing rate leaves the fields nil
		if inBaseCurrency {
			view.BaseCurrency = portfolio.BaseCurrency
			if err := s.convert(ctx, &view, portfolio.BaseCurrency, asOf); err != nil {
				return nil, err
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *HoldingsService) convert(ctx context.Context, view *PositionView, base string, asOf time.Time) error {
	if view.Currency == "" {
		return nil
	}
	rate, ok, err := s.FX.Rate(ctx, view.Currency, base, asOf)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	view.FXRate = &rate
	costBase := view.CostBasis.Mul(rate)
	view.CostBasisBase = &costBase
	if view.MarketValue != nil {
		mvBase := view.MarketValue.Mul(rate)
		unrealizedBase := mvBase.Sub(costBase)
		view.MarketValueBase, view.UnrealizedPnLBase = &mvBase, &unrealizedBase
	}
	return nil
}
