package timeline

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

// Scope bounds the events loaded for a replay
type Scope struct {
	PortfolioID uuid.UUID
	AssetID     *uuid.UUID // nil = every asset of the portfolio
	Until       *time.Time // inclusive "as of" bound
	After       *time.Time // exclusive lower bound, set when resuming from a snapshot

	// ExcludeTradeID leaves one trade out, used when re-validating an edit of that trade
	ExcludeTradeID *uuid.UUID
}

func (s Scope) dates() domain.DateRange {
	return domain.DateRange{After: s.After, Until: s.Until}
}

// Loader reads the ledger rows of a scope and merges them into a timeline
type Loader struct {
	TradeRepo  domain.TradeRepository
	CashRepo   domain.CashTransactionRepository
	ActionRepo domain.CorporateActionRepository
}

// NewLoader creates a new Loader instance
func NewLoader(
	tradeRepo domain.TradeRepository,
	cashRepo domain.CashTransactionRepository,
	actionRepo domain.CorporateActionRepository,
) *Loader {
	return &Loader{
		TradeRepo:  tradeRepo,
		CashRepo:   cashRepo,
		ActionRepo: actionRepo,
	}
}

// Load returns the merged timeline for a scope.
// Only pending corporate actions are included: processed ones have already
// been folded into the historical rows they affect.
func (l *Loader) Load(ctx context.Context, scope Scope) (iter.Seq[Event], error) {
	portfolioID := scope.PortfolioID

	trades, err := l.TradeRepo.List(ctx, domain.TradeQuery{
		PortfolioID: &portfolioID,
		AssetID:     scope.AssetID,
		Dates:       scope.dates(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	if scope.ExcludeTradeID != nil {
		kept := trades[:0]
		for _, tr := range trades {
			if tr.ID != *scope.ExcludeTradeID {
				kept = append(kept, tr)
			}
		}
		trades = kept
	}

	dividends, err := l.CashRepo.List(ctx, domain.CashQuery{
		PortfolioID: &portfolioID,
		AssetID:     scope.AssetID,
		Types:       []domain.CashTxnType{domain.CashTxnDividendStock},
		Dates:       scope.dates(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load stock dividends: %w", err)
	}

	actions, err := l.ActionRepo.List(ctx, domain.ActionQuery{
		AssetID:     scope.AssetID,
		Dates:       scope.dates(),
		PendingOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load corporate actions: %w", err)
	}

	return Merge(actions, dividends, trades), nil
}
