// Package pnl aggregates realized, unrealized and income figures over a window.
package pnl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/position"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
)

// Summary is the PnL of a portfolio for [From, To], valued as of AsOf
type Summary struct {
	PortfolioID uuid.UUID
	From        time.Time
	To          time.Time
	AsOf        time.Time

	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal

	IncomeDividend decimal.Decimal // cash dividends net of withholding
	IncomeReward   decimal.Decimal // rewards, fee rebates, tax refunds
	IncomeOther    decimal.Decimal // interest and other
	IncomeTotal    decimal.Decimal

	PriceReturn      decimal.Decimal
	TotalReturn      decimal.Decimal
	InvestedCashflow decimal.Decimal // deposits plus withdrawals
}

// PnLService computes period summaries
type PnLService struct {
	PortfolioRepo domain.PortfolioRepository
	CashRepo      domain.CashTransactionRepository
	PriceRepo     domain.PriceRepository
	Replayer      *position.Replayer
}

// NewPnLService creates a new PnLService instance
func NewPnLService(repos domain.Repositories, replayer *position.Replayer) *PnLService {
	return &PnLService{
		PortfolioRepo: repos.Portfolios,
		CashRepo:      repos.CashTransactions,
		PriceRepo:     repos.Prices,
		Replayer:      replayer,
	}
}

// ComputePnlSummary replays the full ledger through asOf, counting realized PnL
// only for sells inside [from, to], and classifies cash income in the same window
func (s *PnLService) ComputePnlSummary(ctx context.Context, portfolioID uuid.UUID, from, to, asOf time.Time) (*Summary, error) {
	from, to, asOf = domain.DateOf(from), domain.DateOf(to), domain.DateOf(asOf)
	if from.After(to) {
		return nil, fmt.Errorf("%w: from %s is after to %s", domain.ErrInvalidInput, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	}
	if asOf.Before(to) {
		return nil, fmt.Errorf("%w: as of %s is before to %s", domain.ErrInvalidInput, asOf.Format(domain.DateLayout), to.Format(domain.DateLayout))
	}
	if _, err := s.PortfolioRepo.GetByID(ctx, portfolioID); err != nil {
		return nil, err
	}

	summary := &Summary{PortfolioID: portfolioID, From: from, To: to, AsOf: asOf}

	// 1. Full replay, never snapshot-seeded: realized depends on the window
	tracker := position.NewTracker(nil).WithRealizedWindow(from, to)
	if err := s.Replayer.Replay(ctx, timeline.Scope{PortfolioID: portfolioID, Until: &asOf}, tracker); err != nil {
		return nil, err
	}
	states := tracker.Positions()

	// 2. Unrealized as of the valuation date
	ids := make([]uuid.UUID, 0, len(states))
	for _, st := range states {
		summary.RealizedPnL = summary.RealizedPnL.Add(st.RealizedPnL)
		ids = append(ids, st.AssetID)
	}
	if len(ids) > 0 {
		prices, err := s.PriceRepo.LatestForAssets(ctx, ids, asOf)
		if err != nil {
			return nil, fmt.Errorf("failed to load prices: %w", err)
		}
		for _, st := range states {
			price, ok := prices[st.AssetID]
			if !ok || st.Shares.LessThanOrEqual(decimal.Zero) {
				continue
			}
			summary.UnrealizedPnL = summary.UnrealizedPnL.Add(st.Shares.Mul(price.Close).Sub(st.CostBasis))
		}
	}

	// 3. Income and cashflow inside the window
	rows, err := s.CashRepo.List(ctx, domain.CashQuery{
		PortfolioID: &portfolioID,
		Dates:       domain.DateRange{From: &from, Until: &to},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cash transactions: %w", err)
	}
	for _, row := range rows {
		classify(summary, row)
	}

	summary.IncomeTotal = summary.IncomeDividend.Add(summary.IncomeReward).Add(summary.IncomeOther)
	summary.PriceReturn = summary.RealizedPnL.Add(summary.UnrealizedPnL)
	summary.TotalReturn = summary.PriceReturn.Add(summary.IncomeTotal)
	return summary, nil
}

func classify(summary *Summary, row *domain.CashTransaction) {
	switch row.Type {
	case domain.CashTxnDividendCash:
		summary.IncomeDividend = summary.IncomeDividend.Add(row.Amount.Sub(row.WithholdingTax))
	case domain.CashTxnReward, domain.CashTxnFeeRebate, domain.CashTxnTaxRefund:
		summary.IncomeReward = summary.IncomeReward.Add(row.Amount)
	case domain.CashTxnInterest, domain.CashTxnOther:
		summary.IncomeOther = summary.IncomeOther.Add(row.Amount)
	case domain.CashTxnDeposit, domain.CashTxnWithdraw:
		summary.InvestedCashflow = summary.InvestedCashflow.Add(row.Amount)
	case domain.CashTxnDividendStock, domain.CashTxnTradeExpense:
		// share movements and trade settlement are not income
	}
}
