package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashTxnType represents the type of a cash movement
type CashTxnType string

const (
	CashTxnDeposit       CashTxnType = "DEPOSIT"
	CashTxnWithdraw      CashTxnType = "WITHDRAW"
	CashTxnDividendCash  CashTxnType = "DIVIDEND_CASH"
	CashTxnDividendStock CashTxnType = "DIVIDEND_STOCK"
	CashTxnReward        CashTxnType = "REWARD"
	CashTxnInterest      CashTxnType = "INTEREST"
	CashTxnFeeRebate     CashTxnType = "FEE_REBATE"
	CashTxnTaxRefund     CashTxnType = "TAX_REFUND"
	CashTxnTradeExpense  CashTxnType = "TRADE_EXPENSE"
	CashTxnOther         CashTxnType = "OTHER"
)

// Valid reports whether the type is one of the known cash transaction types
func (t CashTxnType) Valid() bool {
	switch t {
	case CashTxnDeposit, CashTxnWithdraw, CashTxnDividendCash, CashTxnDividendStock,
		CashTxnReward, CashTxnInterest, CashTxnFeeRebate, CashTxnTaxRefund,
		CashTxnTradeExpense, CashTxnOther:
		return true
	}
	return false
}

// CashTransaction is a signed movement on an account's cash ledger
type CashTransaction struct {
	ID             uuid.UUID
	PortfolioID    uuid.UUID
	AccountID      uuid.UUID
	AssetID        *uuid.UUID
	Date           time.Time
	Type           CashTxnType
	Amount         decimal.Decimal  // signed
	WithholdingTax decimal.Decimal  // >= 0
	Shares         *decimal.Decimal // DIVIDEND_STOCK only

	// TradeID back-references the trade a TRADE_EXPENSE row was generated for
	TradeID *uuid.UUID
	Note    string
}

// Validate ensures the cash transaction adheres to domain rules
func (c *CashTransaction) Validate() error {
	if c.PortfolioID == uuid.Nil || c.AccountID == uuid.Nil {
		return errors.New("cash transaction must reference a portfolio and account")
	}
	if c.Date.IsZero() {
		return errors.New("cash transaction date is required")
	}
	if !c.Type.Valid() {
		return errors.New("cash transaction type is invalid")
	}
	if c.WithholdingTax.IsNegative() {
		return errors.New("withholding tax must not be negative")
	}
	if c.Type == CashTxnDividendStock {
		if c.AssetID == nil {
			return errors.New("stock dividend must reference an asset")
		}
		if c.Shares == nil || c.Shares.LessThanOrEqual(decimal.Zero) {
			return errors.New("stock dividend shares must be positive")
		}
	} else if c.Shares != nil {
		return errors.New("shares are only allowed on stock dividends")
	}
	if c.Type == CashTxnTradeExpense && c.TradeID == nil {
		return errors.New("trade expense must reference a trade")
	}
	return nil
}

// IsStockDividend reports whether the row adds shares to a position
func (c *CashTransaction) IsStockDividend() bool {
	return c.Type == CashTxnDividendStock && c.Shares != nil && c.Shares.GreaterThan(decimal.Zero)
}
