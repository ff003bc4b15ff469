package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeSide is the direction of a trade
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Trade is a single buy or sell of an asset through an account
type Trade struct {
	ID          uuid.UUID
	PortfolioID uuid.UUID
	AccountID   uuid.UUID
	AssetID     uuid.UUID
	Date        time.Time
	Side        TradeSide
	Quantity    decimal.Decimal // > 0
	Price       decimal.Decimal // >= 0, in asset currency
	Fee         decimal.Decimal
	Tax         decimal.Decimal

	// Currency is the quote currency given by the caller, if any
	Currency           string
	AssetCurrency      string
	SettlementCurrency string
	FXRate             *decimal.Decimal // asset -> settlement; required when they differ

	Note string
	Tags []string
}

// Validate ensures the trade adheres to domain rules
func (t *Trade) Validate() error {
	if t.PortfolioID == uuid.Nil || t.AccountID == uuid.Nil || t.AssetID == uuid.Nil {
		return errors.New("trade must reference a portfolio, account and asset")
	}
	if t.Date.IsZero() {
		return errors.New("trade date is required")
	}
	if t.Side != TradeSideBuy && t.Side != TradeSideSell {
		return errors.New("trade side must be BUY or SELL")
	}
	if t.Quantity.LessThanOrEqual(decimal.Zero) {
		return errors.New("trade quantity must be positive")
	}
	if t.Price.IsNegative() {
		return errors.New("trade price must not be negative")
	}
	if t.Fee.IsNegative() || t.Tax.IsNegative() {
		return errors.New("trade fee and tax must not be negative")
	}
	if t.FXRate != nil && t.FXRate.LessThanOrEqual(decimal.Zero) {
		return errors.New("trade fx rate must be positive")
	}
	return nil
}

// GrossCost is quantity*price + fee + tax in asset currency
func (t *Trade) GrossCost() decimal.Decimal {
	return t.Quantity.Mul(t.Price).Add(t.Fee).Add(t.Tax)
}

// NetProceeds is quantity*price - fee - tax in asset currency
func (t *Trade) NetProceeds() decimal.Decimal {
	return t.Quantity.Mul(t.Price).Sub(t.Fee).Sub(t.Tax)
}

// NeedsFX reports whether the trade settles in a currency other than the asset's
func (t *Trade) NeedsFX() bool {
	return t.AssetCurrency != "" && t.SettlementCurrency != "" && t.AssetCurrency != t.SettlementCurrency
}
