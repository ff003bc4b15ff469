// Package cashflow books caller-entered cash movements: deposits, withdrawals,
// dividends, rewards and the like.
package cashflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/logger"
	"github.com/simaogato/portfolio-engine/internal/sanitize"
	"github.com/simaogato/portfolio-engine/internal/usecase/cashledger"
	"github.com/simaogato/portfolio-engine/internal/usecase/taxlot"
)

// CashInput carries the caller-supplied fields of a cash transaction
type CashInput struct {
	PortfolioID    uuid.UUID
	AccountID      uuid.UUID
	AssetID        *uuid.UUID
	Date           time.Time
	Type           domain.CashTxnType
	Amount         decimal.Decimal
	WithholdingTax decimal.Decimal
	Shares         *decimal.Decimal
	Note           string
}

// CashflowService handles cash transaction bookings
type CashflowService struct {
	CashRepo     domain.CashTransactionRepository
	AccountRepo  domain.AccountRepository
	SnapshotRepo domain.SnapshotRepository
	TaxLots      *taxlot.TaxLotService
	Tx           domain.TxManager
	Cache        domain.CacheInvalidator
}

// NewCashflowService creates a new CashflowService instance
func NewCashflowService(repos domain.Repositories, taxLots *taxlot.TaxLotService, cache domain.CacheInvalidator) *CashflowService {
	return &CashflowService{
		CashRepo:     repos.CashTransactions,
		AccountRepo:  repos.Accounts,
		SnapshotRepo: repos.Snapshots,
		TaxLots:      taxLots,
		Tx:           repos.Tx,
		Cache:        cache,
	}
}

// Get returns one cash transaction
func (s *CashflowService) Get(ctx context.Context, id uuid.UUID) (*domain.CashTransaction, error) {
	return s.CashRepo.GetByID(ctx, id)
}

// List returns cash transactions matching q in (date, id) order
func (s *CashflowService) List(ctx context.Context, q domain.CashQuery) ([]*domain.CashTransaction, error) {
	return s.CashRepo.List(ctx, q)
}

// Create books a cash transaction with its amount sign normalised
func (s *CashflowService) Create(ctx context.Context, in CashInput) (*domain.CashTransaction, error) {
	txn := fromInput(domain.NewID(), in)

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.validate(ctx, txn); err != nil {
			return err
		}
		if err := s.CashRepo.Create(ctx, txn); err != nil {
			return fmt.Errorf("failed to create cash transaction: %w", err)
		}
		return s.refreshDerived(ctx, txn.Date, txn)
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Cash transaction rejected", "portfolio_id", txn.PortfolioID, "type", txn.Type, "error", err)
		return nil, err
	}

	s.invalidate(txn.PortfolioID)
	logger.FromContext(ctx).Info("Cash transaction created",
		"cash_txn_id", txn.ID, "portfolio_id", txn.PortfolioID, "type", txn.Type, "amount", txn.Amount.String())
	return txn, nil
}

// Update replaces every caller field of a cash transaction. System rows cannot be edited.
func (s *CashflowService) Update(ctx context.Context, id uuid.UUID, in CashInput) (*domain.CashTransaction, error) {
	txn := fromInput(id, in)
	var previous *domain.CashTransaction

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		previous, err = s.editable(ctx, id)
		if err != nil {
			return err
		}
		if err := s.validate(ctx, txn); err != nil {
			return err
		}
		if err := s.CashRepo.Update(ctx, txn); err != nil {
			return fmt.Errorf("failed to update cash transaction: %w", err)
		}

		from := txn.Date
		if previous.Date.Before(from) {
			from = previous.Date
		}
		return s.refreshDerived(ctx, from, txn, previous)
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Cash transaction update rejected", "cash_txn_id", id, "error", err)
		return nil, err
	}

	s.invalidate(txn.PortfolioID)
	if previous.PortfolioID != txn.PortfolioID {
		s.invalidate(previous.PortfolioID)
	}
	logger.FromContext(ctx).Info("Cash transaction updated", "cash_txn_id", id, "portfolio_id", txn.PortfolioID)
	return txn, nil
}

// Delete removes a caller-entered cash transaction
func (s *CashflowService) Delete(ctx context.Context, id uuid.UUID) error {
	var txn *domain.CashTransaction

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		txn, err = s.editable(ctx, id)
		if err != nil {
			return err
		}
		if err := s.CashRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete cash transaction: %w", err)
		}
		return s.refreshDerived(ctx, txn.Date, txn)
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Cash transaction delete rejected", "cash_txn_id", id, "error", err)
		return err
	}

	s.invalidate(txn.PortfolioID)
	logger.FromContext(ctx).Info("Cash transaction deleted", "cash_txn_id", id, "portfolio_id", txn.PortfolioID)
	return nil
}

func fromInput(id uuid.UUID, in CashInput) *domain.CashTransaction {
	return &domain.CashTransaction{
		ID:             id,
		PortfolioID:    in.PortfolioID,
		AccountID:      in.AccountID,
		AssetID:        in.AssetID,
		Date:           domain.DateOf(in.Date),
		Type:           in.Type,
		Amount:         cashledger.NormalizeAmount(in.Type, in.Amount),
		WithholdingTax: in.WithholdingTax,
		Shares:         in.Shares,
		Note:           sanitize.Text(in.Note),
	}
}

func (s *CashflowService) validate(ctx context.Context, txn *domain.CashTransaction) error {
	if txn.Type == domain.CashTxnTradeExpense {
		return fmt.Errorf("%w: trade expenses are generated from trades", domain.ErrInvalidInput)
	}
	if err := txn.Validate(); err != nil {
		return domain.AsInvalidInput(err)
	}
	account, err := s.AccountRepo.GetByID(ctx, txn.AccountID)
	if err != nil {
		return err
	}
	if account.PortfolioID != txn.PortfolioID {
		return fmt.Errorf("%w: account %s does not belong to portfolio %s", domain.ErrInvalidInput, account.ID, txn.PortfolioID)
	}
	return nil
}

// editable loads a row and rejects system-generated ones
func (s *CashflowService) editable(ctx context.Context, id uuid.UUID) (*domain.CashTransaction, error) {
	txn, err := s.CashRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Type == domain.CashTxnTradeExpense || txn.TradeID != nil {
		return nil, fmt.Errorf("%w: cash transaction %s belongs to a trade", domain.ErrInvalidInput, id)
	}
	return txn, nil
}

// refreshDerived drops snapshots from the earliest affected date. Stock
// dividends also move shares, so their lots are rebuilt.
func (s *CashflowService) refreshDerived(ctx context.Context, from time.Time, rows ...*domain.CashTransaction) error {
	cleared := make(map[uuid.UUID]bool, len(rows))
	rebuilt := make(map[[2]uuid.UUID]bool, len(rows))
	for _, row := range rows {
		if !cleared[row.PortfolioID] {
			if err := s.SnapshotRepo.DeleteFrom(ctx, row.PortfolioID, from); err != nil {
				return fmt.Errorf("failed to invalidate snapshots: %w", err)
			}
			cleared[row.PortfolioID] = true
		}
		if row.Type != domain.CashTxnDividendStock || row.AssetID == nil {
			continue
		}
		key := [2]uuid.UUID{row.PortfolioID, *row.AssetID}
		if rebuilt[key] {
			continue
		}
		rebuilt[key] = true
		if _, err := s.TaxLots.RebuildTaxLots(ctx, row.PortfolioID, *row.AssetID); err != nil {
			return err
		}
	}
	return nil
}

func (s *CashflowService) invalidate(portfolioID uuid.UUID) {
	if s.Cache != nil {
		s.Cache.InvalidatePortfolio(portfolioID)
	}
}
