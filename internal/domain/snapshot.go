package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionSnapshot is a replay checkpoint of one asset's position at the end of SnapshotDate.
// It is never authoritative: it can always be recomputed from the ledger.
type PositionSnapshot struct {
	ID           uuid.UUID
	PortfolioID  uuid.UUID
	AssetID      uuid.UUID
	SnapshotDate time.Time
	Shares       decimal.Decimal
	CostBasis    decimal.Decimal
	RealizedPnL  decimal.Decimal
}

// TaxLotSource identifies what opened a lot
type TaxLotSource string

const (
	TaxLotSourceBuy      TaxLotSource = "BUY"
	TaxLotSourceStockDiv TaxLotSource = "STOCK_DIV"
)

// TaxLot is a derived acquisition tranche. Lots are rebuilt wholesale per
// (portfolio, asset) and consumed oldest first.
type TaxLot struct {
	ID                 uuid.UUID
	PortfolioID        uuid.UUID
	AccountID          uuid.UUID
	AssetID            uuid.UUID
	LotDate            time.Time
	OriginalShares     decimal.Decimal
	RemainingShares    decimal.Decimal // 0 <= remaining <= original
	CostPerShare       decimal.Decimal
	TotalCost          decimal.Decimal
	AssetCurrency      string
	SettlementCurrency string
	FXRate             *decimal.Decimal
	Source             TaxLotSource
	SourceID           uuid.UUID
}

// IsOpen reports whether the lot still holds shares
func (l *TaxLot) IsOpen() bool {
	return l.RemainingShares.GreaterThan(decimal.Zero)
}
