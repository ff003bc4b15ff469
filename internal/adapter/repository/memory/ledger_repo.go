package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

func byDateThenID[T any](date func(T) time.Time, id func(T) uuid.UUID) func(a, b T) int {
	return func(a, b T) int {
		if c := date(a).Compare(date(b)); c != 0 {
			return c
		}
		return domain.CompareIDs(id(a), id(b))
	}
}

func matchID(filter *uuid.UUID, id uuid.UUID) bool {
	return filter == nil || *filter == id
}

func copyTrade(tr *domain.Trade) *domain.Trade {
	cp := *tr
	cp.Tags = slices.Clone(tr.Tags)
	if tr.FXRate != nil {
		rate := *tr.FXRate
		cp.FXRate = &rate
	}
	return &cp
}

type tradeRepository struct{ s *Store }

func (r *tradeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	var out *domain.Trade
	r.s.read(func(t *tables) {
		if tr, ok := t.trades[id]; ok {
			out = copyTrade(tr)
		}
	})
	if out == nil {
		return nil, fmt.Errorf("trade %s: %w", id, domain.ErrNotFound)
	}
	return out, nil
}

func (r *tradeRepository) List(ctx context.Context, q domain.TradeQuery) ([]*domain.Trade, error) {
	var out []*domain.Trade
	r.s.read(func(t *tables) {
		for _, tr := range t.trades {
			if !matchID(q.PortfolioID, tr.PortfolioID) || !matchID(q.AccountID, tr.AccountID) ||
				!matchID(q.AssetID, tr.AssetID) || !q.Dates.Contains(tr.Date) {
				continue
			}
			out = append(out, copyTrade(tr))
		}
	})
	slices.SortFunc(out, byDateThenID(
		func(tr *domain.Trade) time.Time { return tr.Date },
		func(tr *domain.Trade) uuid.UUID { return tr.ID },
	))
	return out, nil
}

func (r *tradeRepository) Create(ctx context.Context, trade *domain.Trade) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.trades[trade.ID]; ok {
			return fmt.Errorf("trade %s: %w", trade.ID, domain.ErrConflict)
		}
		if err := checkLedgerRefs(t, trade.PortfolioID, trade.AccountID, &trade.AssetID); err != nil {
			return err
		}
		t.trades[trade.ID] = copyTrade(trade)
		return nil
	})
}

func (r *tradeRepository) Update(ctx context.Context, trade *domain.Trade) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.trades[trade.ID]; !ok {
			return fmt.Errorf("trade %s: %w", trade.ID, domain.ErrNotFound)
		}
		if err := checkLedgerRefs(t, trade.PortfolioID, trade.AccountID, &trade.AssetID); err != nil {
			return err
		}
		t.trades[trade.ID] = copyTrade(trade)
		return nil
	})
}

func (r *tradeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.trades[id]; !ok {
			return fmt.Errorf("trade %s: %w", id, domain.ErrNotFound)
		}
		delete(t.trades, id)
		return nil
	})
}

// checkLedgerRefs mirrors the foreign keys of the SQL schema
func checkLedgerRefs(t *tables, portfolioID, accountID uuid.UUID, assetID *uuid.UUID) error {
	if _, ok := t.portfolios[portfolioID]; !ok {
		return fmt.Errorf("portfolio %s: %w", portfolioID, domain.ErrNotFound)
	}
	acc, ok := t.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	if acc.PortfolioID != portfolioID {
		return fmt.Errorf("account %s does not belong to portfolio %s: %w", accountID, portfolioID, domain.ErrInvalidInput)
	}
	if assetID != nil {
		if _, ok := t.assets[*assetID]; !ok {
			return fmt.Errorf("asset %s: %w", *assetID, domain.ErrNotFound)
		}
	}
	return nil
}

func copyCash(c *domain.CashTransaction) *domain.CashTransaction {
	cp := *c
	if c.AssetID != nil {
		id := *c.AssetID
		cp.AssetID = &id
	}
	if c.Shares != nil {
		s := *c.Shares
		cp.Shares = &s
	}
	if c.TradeID != nil {
		id := *c.TradeID
		cp.TradeID = &id
	}
	return &cp
}

type cashTransactionRepository struct{ s *Store }

func (r *cashTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CashTransaction, error) {
	var out *domain.CashTransaction
	r.s.read(func(t *tables) {
		if c, ok := t.cash[id]; ok {
			out = copyCash(c)
		}
	})
	if out == nil {
		return nil, fmt.Errorf("cash transaction %s: %w", id, domain.ErrNotFound)
	}
	return out, nil
}

func (r *cashTransactionRepository) List(ctx context.Context, q domain.CashQuery) ([]*domain.CashTransaction, error) {
	var out []*domain.CashTransaction
	r.s.read(func(t *tables) {
		for _, c := range t.cash {
			if !matchID(q.PortfolioID, c.PortfolioID) || !matchID(q.AccountID, c.AccountID) || !q.Dates.Contains(c.Date) {
				continue
			}
			if q.AssetID != nil && (c.AssetID == nil || *c.AssetID != *q.AssetID) {
				continue
			}
			if len(q.Types) > 0 && !slices.Contains(q.Types, c.Type) {
				continue
			}
			out = append(out, copyCash(c))
		}
	})
	slices.SortFunc(out, byDateThenID(
		func(c *domain.CashTransaction) time.Time { return c.Date },
		func(c *domain.CashTransaction) uuid.UUID { return c.ID },
	))
	return out, nil
}

func (r *cashTransactionRepository) Create(ctx context.Context, txn *domain.CashTransaction) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.cash[txn.ID]; ok {
			return fmt.Errorf("cash transaction %s: %w", txn.ID, domain.ErrConflict)
		}
		if err := checkLedgerRefs(t, txn.PortfolioID, txn.AccountID, txn.AssetID); err != nil {
			return err
		}
		t.cash[txn.ID] = copyCash(txn)
		return nil
	})
}

func (r *cashTransactionRepository) Update(ctx context.Context, txn *domain.CashTransaction) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.cash[txn.ID]; !ok {
			return fmt.Errorf("cash transaction %s: %w", txn.ID, domain.ErrNotFound)
		}
		if err := checkLedgerRefs(t, txn.PortfolioID, txn.AccountID, txn.AssetID); err != nil {
			return err
		}
		t.cash[txn.ID] = copyCash(txn)
		return nil
	})
}

func (r *cashTransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.cash[id]; !ok {
			return fmt.Errorf("cash transaction %s: %w", id, domain.ErrNotFound)
		}
		delete(t.cash, id)
		return nil
	})
}

func (r *cashTransactionRepository) DeleteByTrade(ctx context.Context, tradeID uuid.UUID) error {
	return r.s.write(func(t *tables) error {
		for id, c := range t.cash {
			if c.TradeID != nil && *c.TradeID == tradeID {
				delete(t.cash, id)
			}
		}
		return nil
	})
}

func (r *cashTransactionRepository) SumAmount(ctx context.Context, accountID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	r.s.read(func(t *tables) {
		for _, c := range t.cash {
			if c.AccountID == accountID && !c.Date.After(asOf) {
				sum = sum.Add(c.Amount)
			}
		}
	})
	return sum, nil
}

func copyAction(a *domain.CorporateAction) *domain.CorporateAction {
	cp := *a
	if a.ProcessedAt != nil {
		at := *a.ProcessedAt
		cp.ProcessedAt = &at
	}
	return &cp
}

type corporateActionRepository struct{ s *Store }

func (r *corporateActionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CorporateAction, error) {
	var out *domain.CorporateAction
	r.s.read(func(t *tables) {
		if a, ok := t.actions[id]; ok {
			out = copyAction(a)
		}
	})
	if out == nil {
		return nil, fmt.Errorf("corporate action %s: %w", id, domain.ErrNotFound)
	}
	return out, nil
}

func (r *corporateActionRepository) List(ctx context.Context, q domain.ActionQuery) ([]*domain.CorporateAction, error) {
	var out []*domain.CorporateAction
	r.s.read(func(t *tables) {
		for _, a := range t.actions {
			if !matchID(q.AssetID, a.AssetID) || !q.Dates.Contains(a.Date) {
				continue
			}
			if q.PendingOnly && a.IsProcessed() {
				continue
			}
			out = append(out, copyAction(a))
		}
	})
	slices.SortFunc(out, byDateThenID(
		func(a *domain.CorporateAction) time.Time { return a.Date },
		func(a *domain.CorporateAction) uuid.UUID { return a.ID },
	))
	return out, nil
}

func (r *corporateActionRepository) Create(ctx context.Context, action *domain.CorporateAction) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.actions[action.ID]; ok {
			return fmt.Errorf("corporate action %s: %w", action.ID, domain.ErrConflict)
		}
		if _, ok := t.assets[action.AssetID]; !ok {
			return fmt.Errorf("asset %s: %w", action.AssetID, domain.ErrNotFound)
		}
		t.actions[action.ID] = copyAction(action)
		return nil
	})
}

func (r *corporateActionRepository) Update(ctx context.Context, action *domain.CorporateAction) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.actions[action.ID]; !ok {
			return fmt.Errorf("corporate action %s: %w", action.ID, domain.ErrNotFound)
		}
		t.actions[action.ID] = copyAction(action)
		return nil
	})
}

func (r *corporateActionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.actions[id]; !ok {
			return fmt.Errorf("corporate action %s: %w", id, domain.ErrNotFound)
		}
		delete(t.actions, id)
		return nil
	})
}

func (r *corporateActionRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.s.write(func(t *tables) error {
		a, ok := t.actions[id]
		if !ok {
			return fmt.Errorf("corporate action %s: %w", id, domain.ErrNotFound)
		}
		if a.IsProcessed() {
			return fmt.Errorf("corporate action %s: %w", id, domain.ErrAlreadyProcessed)
		}
		cp := copyAction(a)
		cp.ProcessedAt = &at
		t.actions[id] = cp
		return nil
	})
}
