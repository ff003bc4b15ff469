package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Price is a daily closing price of an asset
type Price struct {
	ID       uuid.UUID
	AssetID  uuid.UUID
	Date     time.Time
	Close    decimal.Decimal
	Currency string
}

// Validate ensures the price adheres to domain rules
func (p *Price) Validate() error {
	if p.AssetID == uuid.Nil {
		return errors.New("price must reference an asset")
	}
	if p.Date.IsZero() {
		return errors.New("price date is required")
	}
	if p.Close.IsNegative() {
		return errors.New("price must not be negative")
	}
	return nil
}

// FXRate converts one unit of FromCurrency into ToCurrency on Date.
// Several rows may exist per pair; resolution takes the latest on or before a date.
type FXRate struct {
	ID           uuid.UUID
	Date         time.Time
	FromCurrency string
	ToCurrency   string
	Rate         decimal.Decimal
}

// Validate ensures the rate adheres to domain rules
func (r *FXRate) Validate() error {
	if r.Date.IsZero() {
		return errors.New("fx rate date is required")
	}
	if !validCurrency(r.FromCurrency) || !validCurrency(r.ToCurrency) {
		return errors.New("fx rate currencies are invalid")
	}
	if r.Rate.LessThanOrEqual(decimal.Zero) {
		return errors.New("fx rate must be positive")
	}
	return nil
}
