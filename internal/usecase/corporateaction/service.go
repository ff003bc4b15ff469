// Package corporateaction registers corporate actions and folds them into the
// historical ledger exactly once.
package corporateaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/logger"
	"github.com/simaogato/portfolio-engine/internal/usecase/cashledger"
	"github.com/simaogato/portfolio-engine/internal/usecase/fx"
	"github.com/simaogato/portfolio-engine/internal/usecase/taxlot"
)

// ActionInput carries the caller-editable fields of a corporate action
type ActionInput struct {
	AssetID     uuid.UUID
	Date        time.Time
	Type        domain.CorporateActionType
	Numerator   int64
	Denominator int64
}

// ProcessResult reports what processing an action produced
type ProcessResult struct {
	ActionID      uuid.UUID
	Type          domain.CorporateActionType
	TradesCreated int
	Portfolios    []uuid.UUID // portfolios whose ledger was touched
}

// CorporateActionService handles corporate action registration and processing
type CorporateActionService struct {
	ActionRepo   domain.CorporateActionRepository
	TradeRepo    domain.TradeRepository
	CashRepo     domain.CashTransactionRepository
	AssetRepo    domain.AssetRepository
	AccountRepo  domain.AccountRepository
	PriceRepo    domain.PriceRepository
	SnapshotRepo domain.SnapshotRepository
	Ledger       *cashledger.Ledger
	FX           *fx.Resolver
	TaxLots      *taxlot.TaxLotService
	Tx           domain.TxManager
	Cache        domain.CacheInvalidator

	// Now stamps processed_at
	Now func() time.Time
}

// NewCorporateActionService creates a new CorporateActionService instance
func NewCorporateActionService(repos domain.Repositories, ledger *cashledger.Ledger, taxLots *taxlot.TaxLotService, cache domain.CacheInvalidator) *CorporateActionService {
	return &CorporateActionService{
		ActionRepo:   repos.CorporateActions,
		TradeRepo:    repos.Trades,
		CashRepo:     repos.CashTransactions,
		AssetRepo:    repos.Assets,
		AccountRepo:  repos.Accounts,
		PriceRepo:    repos.Prices,
		SnapshotRepo: repos.Snapshots,
		Ledger:       ledger,
		FX:           fx.NewResolver(repos.FXRates),
		TaxLots:      taxLots,
		Tx:           repos.Tx,
		Cache:        cache,
		Now:          time.Now,
	}
}

// Create records a pending corporate action
func (s *CorporateActionService) Create(ctx context.Context, in ActionInput) (*domain.CorporateAction, error) {
	action := &domain.CorporateAction{
		ID:          domain.NewID(),
		AssetID:     in.AssetID,
		Date:        domain.DateOf(in.Date),
		Type:        in.Type,
		Numerator:   in.Numerator,
		Denominator: in.Denominator,
	}
	if err := action.Validate(); err != nil {
		return nil, domain.AsInvalidInput(err)
	}
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.AssetRepo.GetByID(ctx, action.AssetID); err != nil {
			return err
		}
		if err := s.ActionRepo.Create(ctx, action); err != nil {
			return err
		}
		return s.refreshHolders(ctx, action.Date, action.AssetID)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Corporate action registered",
		"action_id", action.ID, "asset_id", action.AssetID, "type", action.Type,
		"date", action.Date.Format(domain.DateLayout))
	s.invalidateAll()
	return action, nil
}

// Get returns one corporate action
func (s *CorporateActionService) Get(ctx context.Context, id uuid.UUID) (*domain.CorporateAction, error) {
	return s.ActionRepo.GetByID(ctx, id)
}

// List returns corporate actions, optionally for one asset, in (date, id) order
func (s *CorporateActionService) List(ctx context.Context, assetID *uuid.UUID) ([]*domain.CorporateAction, error) {
	return s.ActionRepo.List(ctx, domain.ActionQuery{AssetID: assetID})
}

// Update edits a pending action. Processed actions are immutable.
func (s *CorporateActionService) Update(ctx context.Context, id uuid.UUID, in ActionInput) (*domain.CorporateAction, error) {
	var action *domain.CorporateAction
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.pending(ctx, id)
		if err != nil {
			return err
		}
		previousAsset, previousDate := existing.AssetID, existing.Date
		existing.AssetID = in.AssetID
		existing.Date = domain.DateOf(in.Date)
		existing.Type = in.Type
		existing.Numerator = in.Numerator
		existing.Denominator = in.Denominator
		if err := existing.Validate(); err != nil {
			return domain.AsInvalidInput(err)
		}
		if _, err := s.AssetRepo.GetByID(ctx, existing.AssetID); err != nil {
			return err
		}
		if err := s.ActionRepo.Update(ctx, existing); err != nil {
			return err
		}
		action = existing
		return s.refreshHolders(ctx, earliest(previousDate, existing.Date), previousAsset, existing.AssetID)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateAll()
	return action, nil
}

// Delete removes a pending action
func (s *CorporateActionService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		action, err := s.pending(ctx, id)
		if err != nil {
			return err
		}
		if err := s.ActionRepo.Delete(ctx, id); err != nil {
			return err
		}
		return s.refreshHolders(ctx, action.Date, action.AssetID)
	})
	if err != nil {
		return err
	}
	s.invalidateAll()
	return nil
}

// refreshHolders drops the snapshots dated on or after from and rebuilds the
// tax lots of every portfolio holding one of the assets. Pending actions take
// part in replays, so registering, editing or deleting one changes both.
func (s *CorporateActionService) refreshHolders(ctx context.Context, from time.Time, assetIDs ...uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(assetIDs))
	for _, assetID := range assetIDs {
		if seen[assetID] {
			continue
		}
		seen[assetID] = true

		holders, err := s.holders(ctx, assetID)
		if err != nil {
			return err
		}
		for _, portfolioID := range holders.ids() {
			if err := s.SnapshotRepo.DeleteFrom(ctx, portfolioID, from); err != nil {
				return fmt.Errorf("failed to invalidate snapshots: %w", err)
			}
			if _, err := s.TaxLots.RebuildTaxLots(ctx, portfolioID, assetID); err != nil {
				return fmt.Errorf("failed to rebuild tax lots for portfolio %s: %w", portfolioID, err)
			}
		}
	}
	return nil
}

func earliest(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func (s *CorporateActionService) pending(ctx context.Context, id uuid.UUID) (*domain.CorporateAction, error) {
	action, err := s.ActionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if action.IsProcessed() {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyProcessed, id)
	}
	return action, nil
}

// Process applies a pending action to the historical ledger and marks it
// processed, all in one transaction. A second call fails with ErrAlreadyProcessed.
func (s *CorporateActionService) Process(ctx context.Context, actionID uuid.UUID) (*ProcessResult, error) {
	log := logger.FromContext(ctx)
	var result *ProcessResult

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		// 1. Fetch the action and reject anything already applied
		action, err := s.pending(ctx, actionID)
		if err != nil {
			return err
		}
		result = &ProcessResult{ActionID: action.ID, Type: action.Type}

		// 2. Rewrite history
		var affected portfolioSet
		switch {
		case action.Type == domain.CorporateActionDRIP:
			affected, result.TradesCreated, err = s.applyDRIP(ctx, action)
		case action.IsSplitLike():
			affected, err = s.applySplitLike(ctx, action)
		default:
			err = fmt.Errorf("%w: unsupported corporate action type %q", domain.ErrInvalidInput, action.Type)
		}
		if err != nil {
			return err
		}

		// 3. Flip to processed; a concurrent processor loses here
		if err := s.ActionRepo.MarkProcessed(ctx, action.ID, s.Now().UTC()); err != nil {
			return err
		}

		// 4. Rebuild lots of every portfolio holding the asset
		for _, portfolioID := range affected.ids() {
			if _, err := s.TaxLots.RebuildTaxLots(ctx, portfolioID, action.AssetID); err != nil {
				return fmt.Errorf("failed to rebuild tax lots for portfolio %s: %w", portfolioID, err)
			}
		}
		result.Portfolios = affected.ids()
		return nil
	})
	if err != nil {
		if domain.IsDomainRejection(err) {
			log.Warn("Corporate action rejected", "action_id", actionID, "error", err)
		} else {
			log.Error("Corporate action processing failed", "action_id", actionID, "error", err)
		}
		return nil, err
	}

	for _, portfolioID := range result.Portfolios {
		s.invalidate(portfolioID)
	}
	log.Info("Corporate action processed",
		"action_id", result.ActionID, "type", result.Type,
		"trades_created", result.TradesCreated, "portfolios", len(result.Portfolios))
	return result, nil
}

// ProcessPending processes every pending action dated on or before asOf, oldest first.
// It stops at the first failure; actions processed before it stay processed.
func (s *CorporateActionService) ProcessPending(ctx context.Context, asOf time.Time) ([]*ProcessResult, error) {
	until := domain.DateOf(asOf)
	actions, err := s.ActionRepo.List(ctx, domain.ActionQuery{Dates: domain.DateRange{Until: &until}, PendingOnly: true})
	if err != nil {
		return nil, err
	}

	results := make([]*ProcessResult, 0, len(actions))
	for _, action := range actions {
		res, err := s.Process(ctx, action.ID)
		if err != nil {
			return results, fmt.Errorf("corporate action %s: %w", action.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *CorporateActionService) invalidate(portfolioID uuid.UUID) {
	if s.Cache != nil {
		s.Cache.InvalidatePortfolio(portfolioID)
	}
}

func (s *CorporateActionService) invalidateAll() {
	if s.Cache != nil {
		s.Cache.InvalidateAll()
	}
}

// errMissingPrice normalises a price lookup miss into the domain kind
func errMissingPrice(err error, action *domain.CorporateAction) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: asset %s on or before %s", domain.ErrMissingPrice, action.AssetID, action.Date.Format(domain.DateLayout))
	}
	return err
}
