// Package trade validates and books trades together with their paired
// cash settlement rows.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/logger"
	"github.com/simaogato/portfolio-engine/internal/sanitize"
	"github.com/simaogato/portfolio-engine/internal/usecase/cashledger"
	"github.com/simaogato/portfolio-engine/internal/usecase/fx"
	"github.com/simaogato/portfolio-engine/internal/usecase/position"
	"github.com/simaogato/portfolio-engine/internal/usecase/taxlot"
)

// TradeInput carries the caller-supplied fields of a trade.
// Empty currencies and a nil FXRate are derived from the asset, the account and stored rates.
type TradeInput struct {
	PortfolioID uuid.UUID
	AccountID   uuid.UUID
	AssetID     uuid.UUID
	Date        time.Time
	Side        domain.TradeSide
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Fee         decimal.Decimal
	Tax         decimal.Decimal

	Currency           string
	AssetCurrency      string
	SettlementCurrency string
	FXRate             *decimal.Decimal

	Note string
	Tags []string
}

// TradeService handles trade booking
type TradeService struct {
	TradeRepo    domain.TradeRepository
	CashRepo     domain.CashTransactionRepository
	AccountRepo  domain.AccountRepository
	AssetRepo    domain.AssetRepository
	SnapshotRepo domain.SnapshotRepository
	Ledger       *cashledger.Ledger
	FX           *fx.Resolver
	Replayer     *position.Replayer
	TaxLots      *taxlot.TaxLotService
	Tx           domain.TxManager
	Cache        domain.CacheInvalidator
}

// NewTradeService creates a new TradeService instance
func NewTradeService(
	repos domain.Repositories,
	ledger *cashledger.Ledger,
	resolver *fx.Resolver,
	replayer *position.Replayer,
	taxLots *taxlot.TaxLotService,
	cache domain.CacheInvalidator,
) *TradeService {
	return &TradeService{
		TradeRepo:    repos.Trades,
		CashRepo:     repos.CashTransactions,
		AccountRepo:  repos.Accounts,
		AssetRepo:    repos.Assets,
		SnapshotRepo: repos.Snapshots,
		Ledger:       ledger,
		FX:           resolver,
		Replayer:     replayer,
		TaxLots:      taxLots,
		Tx:           repos.Tx,
		Cache:        cache,
	}
}

// Get returns one trade
func (s *TradeService) Get(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	return s.TradeRepo.GetByID(ctx, id)
}

// List returns trades matching q in (date, id) order
func (s *TradeService) List(ctx context.Context, q domain.TradeQuery) ([]*domain.Trade, error) {
	return s.TradeRepo.List(ctx, q)
}

// Create validates and books a trade. A BUY also books its TRADE_EXPENSE row.
func (s *TradeService) Create(ctx context.Context, in TradeInput) (*domain.Trade, error) {
	log := logger.FromContext(ctx)
	trade := fromInput(domain.NewID(), in)

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		// 1. Shape and currency rules
		if err := s.prepare(ctx, trade); err != nil {
			return err
		}

		// 2. Holdings and funds at the trade date
		if err := s.checkAvailability(ctx, trade, nil); err != nil {
			return err
		}

		// 3. Persist the trade and its settlement row
		if err := s.TradeRepo.Create(ctx, trade); err != nil {
			return fmt.Errorf("failed to create trade: %w", err)
		}
		if err := s.syncExpense(ctx, trade); err != nil {
			return err
		}

		// 4. Derived state from the trade date on
		return s.refreshDerived(ctx, trade.Date, pairOf(trade))
	})
	if err != nil {
		logRejection(ctx, log, "Trade rejected", trade, err)
		return nil, err
	}

	s.invalidate(trade.PortfolioID)
	log.Info("Trade created",
		"trade_id", trade.ID, "portfolio_id", trade.PortfolioID, "asset_id", trade.AssetID,
		"side", trade.Side, "quantity", trade.Quantity.String(), "date", trade.Date.Format(domain.DateLayout))
	return trade, nil
}

// Update replaces every caller field of an existing trade. The sell check
// excludes the trade itself and the settlement row is rebuilt.
func (s *TradeService) Update(ctx context.Context, id uuid.UUID, in TradeInput) (*domain.Trade, error) {
	log := logger.FromContext(ctx)
	trade := fromInput(id, in)
	var previous *domain.Trade

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		// 1. Load the stored version
		var err error
		previous, err = s.TradeRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		// 2. Shape and currency rules
		if err := s.prepare(ctx, trade); err != nil {
			return err
		}

		// 3. Drop the old settlement row so it does not count against the new balance check
		if err := s.CashRepo.DeleteByTrade(ctx, id); err != nil {
			return fmt.Errorf("failed to remove trade expense: %w", err)
		}
		if err := s.checkAvailability(ctx, trade, &id); err != nil {
			return err
		}

		// 4. Persist
		if err := s.TradeRepo.Update(ctx, trade); err != nil {
			return fmt.Errorf("failed to update trade: %w", err)
		}
		if err := s.syncExpense(ctx, trade); err != nil {
			return err
		}

		// 5. Derived state from the earlier of the two dates, for both pairs
		from := trade.Date
		if previous.Date.Before(from) {
			from = previous.Date
		}
		return s.refreshDerived(ctx, from, pairOf(trade), pairOf(previous))
	})
	if err != nil {
		logRejection(ctx, log, "Trade update rejected", trade, err)
		return nil, err
	}

	s.invalidate(trade.PortfolioID)
	if previous.PortfolioID != trade.PortfolioID {
		s.invalidate(previous.PortfolioID)
	}
	log.Info("Trade updated", "trade_id", trade.ID, "portfolio_id", trade.PortfolioID, "asset_id", trade.AssetID)
	return trade, nil
}

// Delete removes a trade and its settlement row. It fails when a later sell
// would no longer be covered.
func (s *TradeService) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContext(ctx)
	var trade *domain.Trade

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		trade, err = s.TradeRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.CashRepo.DeleteByTrade(ctx, id); err != nil {
			return fmt.Errorf("failed to remove trade expense: %w", err)
		}
		if err := s.TradeRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete trade: %w", err)
		}
		return s.refreshDerived(ctx, trade.Date, pairOf(trade))
	})
	if err != nil {
		log.Warn("Trade delete rejected", "trade_id", id, "error", err)
		return err
	}

	s.invalidate(trade.PortfolioID)
	log.Info("Trade deleted", "trade_id", id, "portfolio_id", trade.PortfolioID, "asset_id", trade.AssetID)
	return nil
}

func fromInput(id uuid.UUID, in TradeInput) *domain.Trade {
	return &domain.Trade{
		ID:                 id,
		PortfolioID:        in.PortfolioID,
		AccountID:          in.AccountID,
		AssetID:            in.AssetID,
		Date:               domain.DateOf(in.Date),
		Side:               domain.TradeSide(strings.ToUpper(string(in.Side))),
		Quantity:           in.Quantity,
		Price:              in.Price,
		Fee:                in.Fee,
		Tax:                in.Tax,
		Currency:           currencyCode(in.Currency),
		AssetCurrency:      currencyCode(in.AssetCurrency),
		SettlementCurrency: currencyCode(in.SettlementCurrency),
		FXRate:             in.FXRate,
		Note:               sanitize.Text(in.Note),
		Tags:               sanitize.Tags(in.Tags),
	}
}

func currencyCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// prepare validates the trade and fills in derived currencies and the fx rate
func (s *TradeService) prepare(ctx context.Context, t *domain.Trade) error {
	if err := t.Validate(); err != nil {
		return domain.AsInvalidInput(err)
	}

	account, err := s.AccountRepo.GetByID(ctx, t.AccountID)
	if err != nil {
		return err
	}
	if account.PortfolioID != t.PortfolioID {
		return fmt.Errorf("%w: account %s does not belong to portfolio %s", domain.ErrInvalidInput, account.ID, t.PortfolioID)
	}
	asset, err := s.AssetRepo.GetByID(ctx, t.AssetID)
	if err != nil {
		return err
	}

	if t.AssetCurrency == "" {
		t.AssetCurrency = t.Currency
		if t.AssetCurrency == "" {
			t.AssetCurrency = asset.Currency
		}
	}
	if t.SettlementCurrency == "" {
		t.SettlementCurrency = account.Currency
	} else if t.SettlementCurrency != account.Currency {
		return fmt.Errorf("%w: %s given, account settles in %s", domain.ErrSettlementCurrencyMismatch, t.SettlementCurrency, account.Currency)
	}
	if t.Currency == "" {
		t.Currency = t.AssetCurrency
	}

	if t.NeedsFX() && t.FXRate == nil {
		rate, err := s.FX.MustRate(ctx, t.AssetCurrency, t.SettlementCurrency, t.Date)
		if err != nil {
			return err
		}
		t.FXRate = &rate
	}
	return nil
}

// checkAvailability enforces shares for a SELL and cash for a BUY at the trade date
func (s *TradeService) checkAvailability(ctx context.Context, t *domain.Trade, excludeTradeID *uuid.UUID) error {
	switch t.Side {
	case domain.TradeSideSell:
		available, err := s.Replayer.AvailableShares(ctx, t.PortfolioID, t.AssetID, t.Date, excludeTradeID)
		if err != nil {
			return err
		}
		if t.Quantity.GreaterThan(available) {
			return fmt.Errorf("%w: selling %s, %s available on %s",
				domain.ErrInsufficientShares, t.Quantity.String(), available.String(), t.Date.Format(domain.DateLayout))
		}
	case domain.TradeSideBuy:
		return s.Ledger.EnsureFunds(ctx, t.AccountID, t.Date, cashledger.TradeTotalCost(t))
	}
	return nil
}

// syncExpense writes the TRADE_EXPENSE row of a BUY. Callers remove any previous row first.
func (s *TradeService) syncExpense(ctx context.Context, t *domain.Trade) error {
	if t.Side != domain.TradeSideBuy {
		return nil
	}
	if err := s.CashRepo.Create(ctx, cashledger.NewTradeExpense(t)); err != nil {
		return fmt.Errorf("failed to create trade expense: %w", err)
	}
	return nil
}

type pair struct {
	portfolioID uuid.UUID
	assetID     uuid.UUID
}

func pairOf(t *domain.Trade) pair {
	return pair{portfolioID: t.PortfolioID, assetID: t.AssetID}
}

// refreshDerived drops snapshots dated on or after from and rebuilds the lots
// of every distinct pair
func (s *TradeService) refreshDerived(ctx context.Context, from time.Time, pairs ...pair) error {
	seen := make(map[pair]bool, len(pairs))
	cleared := make(map[uuid.UUID]bool, len(pairs))
	for _, p := range pairs {
		if seen[p] {
			continue
		}
		seen[p] = true

		if !cleared[p.portfolioID] {
			if err := s.SnapshotRepo.DeleteFrom(ctx, p.portfolioID, from); err != nil {
				return fmt.Errorf("failed to invalidate snapshots: %w", err)
			}
			cleared[p.portfolioID] = true
		}
		if _, err := s.TaxLots.RebuildTaxLots(ctx, p.portfolioID, p.assetID); err != nil {
			return err
		}
	}
	return nil
}

func (s *TradeService) invalidate(portfolioID uuid.UUID) {
	if s.Cache != nil {
		s.Cache.InvalidatePortfolio(portfolioID)
	}
}

func logRejection(ctx context.Context, log *slog.Logger, msg string, t *domain.Trade, err error) {
	level := slog.LevelError
	if domain.IsDomainRejection(err) || errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, msg, "trade_id", t.ID, "portfolio_id", t.PortfolioID, "asset_id", t.AssetID, "error", err)
}
