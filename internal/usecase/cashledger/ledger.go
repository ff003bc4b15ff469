// Package cashledger derives account balances and trade settlement amounts
// from cash transaction rows.
package cashledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

// Ledger answers balance questions for accounts
type Ledger struct {
	CashRepo domain.CashTransactionRepository
}

// NewLedger creates a new Ledger instance
func NewLedger(cashRepo domain.CashTransactionRepository) *Ledger {
	return &Ledger{CashRepo: cashRepo}
}

// Balance is the signed sum of every amount on the account dated on or before asOf
func (l *Ledger) Balance(ctx context.Context, accountID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	sum, err := l.CashRepo.SumAmount(ctx, accountID, domain.DateOf(asOf))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute cash balance: %w", err)
	}
	return sum, nil
}

// EnsureFunds fails with ErrInsufficientCash when the balance at asOf is below amount
func (l *Ledger) EnsureFunds(ctx context.Context, accountID uuid.UUID, asOf time.Time, amount decimal.Decimal) error {
	balance, err := l.Balance(ctx, accountID, asOf)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, required %s", domain.ErrInsufficientCash, balance.String(), amount.String())
	}
	return nil
}

// TradeTotalCost is quantity*price+fee+tax in settlement currency.
// The fx rate applies only when the asset and settlement currencies differ.
func TradeTotalCost(t *domain.Trade) decimal.Decimal {
	cost := t.GrossCost()
	if t.NeedsFX() && t.FXRate != nil {
		cost = cost.Mul(*t.FXRate)
	}
	return cost
}

// NewTradeExpense builds the system TRADE_EXPENSE row paired with a BUY
func NewTradeExpense(t *domain.Trade) *domain.CashTransaction {
	tradeID := t.ID
	assetID := t.AssetID
	return &domain.CashTransaction{
		ID:          domain.NewID(),
		PortfolioID: t.PortfolioID,
		AccountID:   t.AccountID,
		AssetID:     &assetID,
		Date:        t.Date,
		Type:        domain.CashTxnTradeExpense,
		Amount:      TradeTotalCost(t).Neg(),
		TradeID:     &tradeID,
		Note:        "auto: trade buy",
	}
}

// NormalizeAmount applies the sign convention of a cash transaction type:
// deposits are credits, withdrawals and trade expenses are debits.
// Other types keep the sign they were given.
func NormalizeAmount(typ domain.CashTxnType, amount decimal.Decimal) decimal.Decimal {
	switch typ {
	case domain.CashTxnDeposit:
		return amount.Abs()
	case domain.CashTxnWithdraw, domain.CashTxnTradeExpense:
		return amount.Abs().Neg()
	default:
		return amount
	}
}
