package taxlot

import (
	"context"

	"github.com/google/uuid"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/logger"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
)

// TaxLotService rebuilds and reads persisted tax lots
type TaxLotService struct {
	Loader     *timeline.Loader
	TaxLotRepo domain.TaxLotRepository
	Tx         domain.TxManager
}

// NewTaxLotService creates a new TaxLotService instance
func NewTaxLotService(loader *timeline.Loader, taxLotRepo domain.TaxLotRepository, tx domain.TxManager) *TaxLotService {
	return &TaxLotService{
		Loader:     loader,
		TaxLotRepo: taxLotRepo,
		Tx:         tx,
	}
}

// RebuildTaxLots deletes and recreates every lot of (portfolio, asset) from the
// full timeline. Called inside a ledger mutation it joins that transaction.
func (s *TaxLotService) RebuildTaxLots(ctx context.Context, portfolioID, assetID uuid.UUID) ([]*domain.TaxLot, error) {
	var lots []*domain.TaxLot

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		// 1. Load the un-snapshotted timeline for the pair
		events, err := s.Loader.Load(ctx, timeline.Scope{PortfolioID: portfolioID, AssetID: &assetID})
		if err != nil {
			return err
		}

		// 2. Replay into lots
		lots, err = Build(events)
		if err != nil {
			return err
		}

		// 3. Replace the stored lots
		return s.TaxLotRepo.Replace(ctx, portfolioID, assetID, lots)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("Tax lots rebuilt",
		"portfolio_id", portfolioID, "asset_id", assetID, "lots", len(lots))
	return lots, nil
}

// ListTaxLots returns the stored lots of (portfolio, asset) in lot order
func (s *TaxLotService) ListTaxLots(ctx context.Context, portfolioID, assetID uuid.UUID) ([]*domain.TaxLot, error) {
	return s.TaxLotRepo.List(ctx, portfolioID, assetID)
}
