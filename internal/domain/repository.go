package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateRange bounds a ledger query. Nil bounds are open.
type DateRange struct {
	From   *time.Time // inclusive lower bound
	After  *time.Time // exclusive lower bound
	Until  *time.Time // inclusive upper bound
	Before *time.Time // exclusive upper bound
}

// On returns a range matching exactly one date
func On(date time.Time) DateRange {
	d := DateOf(date)
	return DateRange{From: &d, Until: &d}
}

// Contains reports whether date falls inside the range
func (r DateRange) Contains(date time.Time) bool {
	if r.From != nil && date.Before(*r.From) {
		return false
	}
	if r.After != nil && !date.After(*r.After) {
		return false
	}
	if r.Until != nil && date.After(*r.Until) {
		return false
	}
	if r.Before != nil && !date.Before(*r.Before) {
		return false
	}
	return true
}

// TradeQuery filters trades. Results are ordered by (date, id).
type TradeQuery struct {
	PortfolioID *uuid.UUID
	AccountID   *uuid.UUID
	AssetID     *uuid.UUID
	Dates       DateRange
}

// CashQuery filters cash transactions. Results are ordered by (date, id).
// An empty Types slice matches every type.
type CashQuery struct {
	PortfolioID *uuid.UUID
	AccountID   *uuid.UUID
	AssetID     *uuid.UUID
	Types       []CashTxnType
	Dates       DateRange
}

// ActionQuery filters corporate actions. Results are ordered by (date, id).
type ActionQuery struct {
	AssetID     *uuid.UUID
	Dates       DateRange
	PendingOnly bool
}

// PortfolioRepository defines the interface for portfolio persistence operations
type PortfolioRepository interface {
	// GetByID retrieves a portfolio by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Portfolio, error)

	// Create creates a new portfolio
	Create(ctx context.Context, portfolio *Portfolio) error

	// List returns every portfolio ordered by name
	List(ctx context.Context) ([]*Portfolio, error)
}

// AccountRepository defines the interface for account persistence operations
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	Create(ctx context.Context, account *Account) error
	ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]*Account, error)
}

// AssetRepository defines the interface for asset persistence operations
type AssetRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Asset, error)
	Create(ctx context.Context, asset *Asset) error

	// List returns every asset ordered by symbol
	List(ctx context.Context) ([]*Asset, error)

	// ListByIDs retrieves the assets with the given IDs, keyed by ID.
	// Unknown IDs are absent from the result.
	ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Asset, error)
}

// TradeRepository defines the interface for trade persistence operations
type TradeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Trade, error)
	List(ctx context.Context, q TradeQuery) ([]*Trade, error)
	Create(ctx context.Context, trade *Trade) error
	Update(ctx context.Context, trade *Trade) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CashTransactionRepository defines the interface for cash ledger persistence operations
type CashTransactionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*CashTransaction, error)
	List(ctx context.Context, q CashQuery) ([]*CashTransaction, error)
	Create(ctx context.Context, txn *CashTransaction) error
	Update(ctx context.Context, txn *CashTransaction) error
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByTrade removes the system-generated rows linked to a trade
	DeleteByTrade(ctx context.Context, tradeID uuid.UUID) error

	// SumAmount returns the signed sum of amounts for an account dated on or before asOf
	SumAmount(ctx context.Context, accountID uuid.UUID, asOf time.Time) (decimal.Decimal, error)
}

// CorporateActionRepository defines the interface for corporate action persistence operations
type CorporateActionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*CorporateAction, error)
	List(ctx context.Context, q ActionQuery) ([]*CorporateAction, error)
	Create(ctx context.Context, action *CorporateAction) error
	Update(ctx context.Context, action *CorporateAction) error
	Delete(ctx context.Context, id uuid.UUID) error

	// MarkProcessed sets processed_at if it is still unset.
	// It returns ErrAlreadyProcessed when the action was processed already.
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PriceRepository defines the interface for price history persistence operations
type PriceRepository interface {
	// LatestOnOrBefore returns the most recent price dated on or before date.
	// It returns ErrNotFound when there is none.
	LatestOnOrBefore(ctx context.Context, assetID uuid.UUID, date time.Time) (*Price, error)

	// LatestForAssets is the batch form of LatestOnOrBefore. Assets without a price are absent.
	LatestForAssets(ctx context.Context, assetIDs []uuid.UUID, date time.Time) (map[uuid.UUID]*Price, error)

	// Upsert inserts or replaces the price for (asset, date)
	Upsert(ctx context.Context, price *Price) error
}

// FXRateRepository defines the interface for exchange rate persistence operations
type FXRateRepository interface {
	// LatestOnOrBefore returns the most recent rate for the pair dated on or before date.
	// It returns ErrNotFound when there is none.
	LatestOnOrBefore(ctx context.Context, from, to string, date time.Time) (*FXRate, error)

	// Upsert inserts or replaces the rate for (date, from, to)
	Upsert(ctx context.Context, rate *FXRate) error
}

// SnapshotRepository defines the interface for position snapshot persistence operations
type SnapshotRepository interface {
	// LatestDate returns the most recent snapshot date on or before asOf, or nil
	LatestDate(ctx context.Context, portfolioID uuid.UUID, asOf time.Time) (*time.Time, error)

	// ListByDate returns every row of one snapshot, ordered by asset ID
	ListByDate(ctx context.Context, portfolioID uuid.UUID, date time.Time) ([]*PositionSnapshot, error)

	// ReplaceForDate deletes the snapshot for (portfolio, date) and writes rows in its place
	ReplaceForDate(ctx context.Context, portfolioID uuid.UUID, date time.Time, rows []*PositionSnapshot) error

	// ScaleShares multiplies shares by ratio on every snapshot of the asset dated before the given date
	ScaleShares(ctx context.Context, assetID uuid.UUID, before time.Time, ratio decimal.Decimal) error

	// DeleteFrom removes the portfolio's snapshots dated on or after from
	DeleteFrom(ctx context.Context, portfolioID uuid.UUID, from time.Time) error
}

// TaxLotRepository defines the interface for tax lot persistence operations
type TaxLotRepository interface {
	// List returns lots for (portfolio, asset) in lot order
	List(ctx context.Context, portfolioID, assetID uuid.UUID) ([]*TaxLot, error)

	// Replace deletes every lot for (portfolio, asset) and inserts lots in order
	Replace(ctx context.Context, portfolioID, assetID uuid.UUID, lots []*TaxLot) error
}

// TxManager runs a function inside one atomic storage transaction.
// The transaction travels in the context; repositories called with that
// context join it. A nested WithinTx reuses the outer transaction.
// fn returning an error rolls everything back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReportCache stores derived read results keyed by string.
// Implementations are injected and closed explicitly on shutdown.
type ReportCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	DeletePrefix(prefix string)
	Flush()
	Close()
}

// CacheInvalidator drops derived results after ledger or market data changes
type CacheInvalidator interface {
	InvalidatePortfolio(portfolioID uuid.UUID)
	InvalidateAll()
}

// Repositories bundles every repository an adapter provides
type Repositories struct {
	Portfolios       PortfolioRepository
	Accounts         AccountRepository
	Assets           AssetRepository
	Trades           TradeRepository
	CashTransactions CashTransactionRepository
	CorporateActions CorporateActionRepository
	Prices           PriceRepository
	FXRates          FXRateRepository
	Snapshots        SnapshotRepository
	TaxLots          TaxLotRepository
	Tx               TxManager
}
