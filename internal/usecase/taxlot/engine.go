// Package taxlot reconstructs FIFO tax lots from the ledger timeline.
package taxlot

import (
	"fmt"
	"iter"

	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
)

// Build replays a single (portfolio, asset) timeline into its lots, oldest first.
// A sell that cannot be matched against open lots aborts the build with ErrInsufficientLots.
func Build(events iter.Seq[timeline.Event]) ([]*domain.TaxLot, error) {
	var lots []*domain.TaxLot

	for e := range events {
		switch e.Kind {
		case timeline.KindCorporateAction:
			scaleLots(lots, e.Action.Ratio())
		case timeline.KindStockDividend:
			lots = append(lots, openDividendLot(e.Dividend))
		case timeline.KindTrade:
			tr := e.Trade
			switch tr.Side {
			case domain.TradeSideBuy:
				lots = append(lots, openBuyLot(tr))
			case domain.TradeSideSell:
				if err := consume(lots, tr); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("unknown timeline event kind %d", e.Kind)
		}
	}
	return lots, nil
}

func openBuyLot(tr *domain.Trade) *domain.TaxLot {
	total := tr.GrossCost()
	lot := &domain.TaxLot{
		ID:                 domain.NewID(),
		PortfolioID:        tr.PortfolioID,
		AccountID:          tr.AccountID,
		AssetID:            tr.AssetID,
		LotDate:            tr.Date,
		OriginalShares:     tr.Quantity,
		RemainingShares:    tr.Quantity,
		CostPerShare:       total.Div(tr.Quantity),
		TotalCost:          total,
		AssetCurrency:      tr.AssetCurrency,
		SettlementCurrency: tr.SettlementCurrency,
		Source:             domain.TaxLotSourceBuy,
		SourceID:           tr.ID,
	}
	if tr.FXRate != nil {
		rate := *tr.FXRate
		lot.FXRate = &rate
	}
	return lot
}

func openDividendLot(div *domain.CashTransaction) *domain.TaxLot {
	return &domain.TaxLot{
		ID:              domain.NewID(),
		PortfolioID:     div.PortfolioID,
		AccountID:       div.AccountID,
		AssetID:         *div.AssetID,
		LotDate:         div.Date,
		OriginalShares:  *div.Shares,
		RemainingShares: *div.Shares,
		CostPerShare:    decimal.Zero,
		TotalCost:       decimal.Zero,
		Source:          domain.TaxLotSourceStockDiv,
		SourceID:        div.ID,
	}
}

// scaleLots rescales share counts and leaves total cost untouched
func scaleLots(lots []*domain.TaxLot, ratio decimal.Decimal) {
	for _, lot := range lots {
		lot.OriginalShares = lot.OriginalShares.Mul(ratio)
		lot.RemainingShares = lot.RemainingShares.Mul(ratio)
		if lot.OriginalShares.IsZero() {
			lot.CostPerShare = decimal.Zero
		} else {
			lot.CostPerShare = lot.TotalCost.Div(lot.OriginalShares)
		}
	}
}

// consume matches a sell against open lots oldest first
func consume(lots []*domain.TaxLot, tr *domain.Trade) error {
	outstanding := tr.Quantity
	for _, lot := range lots {
		if outstanding.LessThanOrEqual(decimal.Zero) {
			break
		}
		if !lot.IsOpen() {
			continue
		}
		take := decimal.Min(lot.RemainingShares, outstanding)
		lot.RemainingShares = lot.RemainingShares.Sub(take)
		outstanding = outstanding.Sub(take)
	}
	if outstanding.GreaterThan(decimal.Zero) {
		return fmt.Errorf("%w: trade %s on %s short by %s",
			domain.ErrInsufficientLots, tr.ID, tr.Date.Format(domain.DateLayout), outstanding.String())
	}
	return nil
}

// OpenShares sums remaining shares across lots
func OpenShares(lots []*domain.TaxLot) decimal.Decimal {
	sum := decimal.Zero
	for _, lot := range lots {
		sum = sum.Add(lot.RemainingShares)
	}
	return sum
}
