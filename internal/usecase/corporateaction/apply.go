package corporateaction

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/cashledger"
)

type portfolioSet map[uuid.UUID]struct{}

func (p portfolioSet) add(id uuid.UUID) { p[id] = struct{}{} }

// ids returns the members in a stable order
func (p portfolioSet) ids() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(p))
	for id := range p {
		out = append(out, id)
	}
	slices.SortFunc(out, domain.CompareIDs)
	return out
}

// holders returns the portfolios with a trade or stock dividend in the asset
func (s *CorporateActionService) holders(ctx context.Context, assetID uuid.UUID) (portfolioSet, error) {
	out := portfolioSet{}
	trades, err := s.TradeRepo.List(ctx, domain.TradeQuery{AssetID: &assetID})
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	for _, tr := range trades {
		out.add(tr.PortfolioID)
	}
	divs, err := s.CashRepo.List(ctx, domain.CashQuery{
		AssetID: &assetID,
		Types:   []domain.CashTxnType{domain.CashTxnDividendStock},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load stock dividends: %w", err)
	}
	for _, div := range divs {
		out.add(div.PortfolioID)
	}
	return out, nil
}

// applySplitLike rescales every trade, stock dividend and snapshot of the asset
// dated strictly before the action. Trade notional is preserved.
func (s *CorporateActionService) applySplitLike(ctx context.Context, action *domain.CorporateAction) (portfolioSet, error) {
	ratio := action.Ratio()
	if ratio.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %d/%d", domain.ErrInvalidRatio, action.Numerator, action.Denominator)
	}
	assetID := action.AssetID
	affected := portfolioSet{}

	trades, err := s.TradeRepo.List(ctx, domain.TradeQuery{AssetID: &assetID})
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	for _, tr := range trades {
		affected.add(tr.PortfolioID)
		if !tr.Date.Before(action.Date) {
			continue
		}
		tr.Quantity = tr.Quantity.Mul(ratio)
		tr.Price = tr.Price.Div(ratio)
		if err := s.TradeRepo.Update(ctx, tr); err != nil {
			return nil, fmt.Errorf("failed to rescale trade %s: %w", tr.ID, err)
		}
	}

	divs, err := s.CashRepo.List(ctx, domain.CashQuery{
		AssetID: &assetID,
		Types:   []domain.CashTxnType{domain.CashTxnDividendStock},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load stock dividends: %w", err)
	}
	for _, div := range divs {
		affected.add(div.PortfolioID)
		if !div.Date.Before(action.Date) || div.Shares == nil {
			continue
		}
		scaled := div.Shares.Mul(ratio)
		div.Shares = &scaled
		if err := s.CashRepo.Update(ctx, div); err != nil {
			return nil, fmt.Errorf("failed to rescale stock dividend %s: %w", div.ID, err)
		}
	}

	if err := s.SnapshotRepo.ScaleShares(ctx, assetID, action.Date, ratio); err != nil {
		return nil, fmt.Errorf("failed to rescale snapshots: %w", err)
	}
	return affected, nil
}

// applyDRIP turns each cash dividend paid on the action date into a buy at the
// latest known price, paid out of the account balance
func (s *CorporateActionService) applyDRIP(ctx context.Context, action *domain.CorporateAction) (portfolioSet, int, error) {
	// 1. Price on or before the action date
	price, err := s.PriceRepo.LatestOnOrBefore(ctx, action.AssetID, action.Date)
	if err != nil {
		return nil, 0, errMissingPrice(err, action)
	}
	if price.Close.LessThanOrEqual(decimal.Zero) {
		return nil, 0, fmt.Errorf("%w: non-positive close on %s", domain.ErrMissingPrice, price.Date.Format(domain.DateLayout))
	}

	asset, err := s.AssetRepo.GetByID(ctx, action.AssetID)
	if err != nil {
		return nil, 0, err
	}

	// 2. Cash dividends of the asset paid exactly on the action date
	assetID := action.AssetID
	divs, err := s.CashRepo.List(ctx, domain.CashQuery{
		AssetID: &assetID,
		Types:   []domain.CashTxnType{domain.CashTxnDividendCash},
		Dates:   domain.On(action.Date),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load cash dividends: %w", err)
	}

	affected := portfolioSet{}
	created := 0
	for _, div := range divs {
		reinvest := div.Amount.Sub(div.WithholdingTax)
		if reinvest.LessThanOrEqual(decimal.Zero) {
			continue
		}

		// 3. The buy settles in the account currency at the rate of the dividend date
		account, err := s.AccountRepo.GetByID(ctx, div.AccountID)
		if err != nil {
			return nil, 0, err
		}
		rate, err := s.FX.MustRate(ctx, asset.Currency, account.Currency, div.Date)
		if err != nil {
			return nil, 0, fmt.Errorf("drip from cash transaction %s: %w", div.ID, err)
		}

		// 4. The account must be able to fund the reinvestment
		if err := s.Ledger.EnsureFunds(ctx, div.AccountID, div.Date, reinvest); err != nil {
			return nil, 0, fmt.Errorf("drip from cash transaction %s: %w", div.ID, err)
		}

		// 5. Synthetic buy plus its paired expense row
		trade := &domain.Trade{
			ID:                 domain.NewID(),
			PortfolioID:        div.PortfolioID,
			AccountID:          div.AccountID,
			AssetID:            assetID,
			Date:               div.Date,
			Side:               domain.TradeSideBuy,
			Quantity:           reinvest.Div(price.Close.Mul(rate)),
			Price:              price.Close,
			Fee:                decimal.Zero,
			Tax:                decimal.Zero,
			Currency:           asset.Currency,
			AssetCurrency:      asset.Currency,
			SettlementCurrency: account.Currency,
			Note:               fmt.Sprintf("DRIP from cash txn %s", div.ID),
		}
		if trade.NeedsFX() {
			trade.FXRate = &rate
		}
		if err := s.TradeRepo.Create(ctx, trade); err != nil {
			return nil, 0, fmt.Errorf("failed to create drip trade: %w", err)
		}
		// The expense mirrors the reinvested cash exactly
		expense := cashledger.NewTradeExpense(trade)
		expense.Amount = reinvest.Neg()
		if err := s.CashRepo.Create(ctx, expense); err != nil {
			return nil, 0, fmt.Errorf("failed to create drip trade expense: %w", err)
		}
		created++

		if _, seen := affected[div.PortfolioID]; !seen {
			// Snapshots from the dividend date on no longer include the new shares
			if err := s.SnapshotRepo.DeleteFrom(ctx, div.PortfolioID, div.Date); err != nil {
				return nil, 0, fmt.Errorf("failed to invalidate snapshots: %w", err)
			}
			affected.add(div.PortfolioID)
		}
	}
	return affected, created, nil
}
