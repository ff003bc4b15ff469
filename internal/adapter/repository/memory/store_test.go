package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repos     domain.Repositories
	portfolio *domain.Portfolio
	account   *domain.Account
	asset     *domain.Asset
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	repos := NewStore().Repositories()

	p := &domain.Portfolio{ID: domain.NewID(), Name: "Main", BaseCurrency: "USD", CostMethod: domain.CostMethodAverage}
	require.NoError(t, repos.Portfolios.Create(ctx, p))
	acc := &domain.Account{ID: domain.NewID(), PortfolioID: p.ID, Name: "Broker", Currency: "USD"}
	require.NoError(t, repos.Accounts.Create(ctx, acc))
	asset := &domain.Asset{ID: domain.NewID(), Symbol: "AAPL", Name: "Apple", AssetType: domain.AssetTypeStock, Exchange: "NASDAQ", Currency: "USD"}
	require.NoError(t, repos.Assets.Create(ctx, asset))

	return fixture{repos: repos, portfolio: p, account: acc, asset: asset}
}

func (f fixture) deposit(date time.Time, amount int64) *domain.CashTransaction {
	return &domain.CashTransaction{
		ID: domain.NewID(), PortfolioID: f.portfolio.ID, AccountID: f.account.ID,
		Date: date, Type: domain.CashTxnDeposit, Amount: decimal.NewFromInt(amount),
	}
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := f.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, f.repos.CashTransactions.Create(ctx, f.deposit(day, 100)))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	sum, err := f.repos.CashTransactions.SumAmount(ctx, f.account.ID, day)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := f.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, f.repos.CashTransactions.Create(ctx, f.deposit(day, 100)))
		// A nested successful transaction is still undone by the outer failure
		require.NoError(t, f.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
			return f.repos.CashTransactions.Create(ctx, f.deposit(day, 50))
		}))
		return domain.ErrInsufficientCash
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientCash)
	sum, _ := f.repos.CashTransactions.SumAmount(ctx, f.account.ID, day)
	assert.True(t, sum.IsZero())
}

func TestWithinTx_RollbackDiscardsWritesOutsideTx(t *testing.T) {
	outer := context.Background()
	f := newFixture(t)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := f.repos.Tx.WithinTx(outer, func(ctx context.Context) error {
		// Written on the outer context while the transaction is open
		require.NoError(t, f.repos.CashTransactions.Create(outer, f.deposit(day, 100)))
		return domain.ErrInsufficientCash
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientCash)
	sum, _ := f.repos.CashTransactions.SumAmount(outer, f.account.ID, day)
	assert.True(t, sum.IsZero())
}

func TestWithinTx_Commit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return f.repos.CashTransactions.Create(ctx, f.deposit(day, 100))
	}))

	sum, _ := f.repos.CashTransactions.SumAmount(ctx, f.account.ID, day)
	assert.Equal(t, "100", sum.String())
	before, _ := f.repos.CashTransactions.SumAmount(ctx, f.account.ID, day.AddDate(0, 0, -1))
	assert.True(t, before.IsZero())
}

func TestCorporateActions_MarkProcessedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	act := &domain.CorporateAction{ID: domain.NewID(), AssetID: f.asset.ID, Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Type: domain.CorporateActionSplit, Numerator: 2, Denominator: 1}
	require.NoError(t, f.repos.CorporateActions.Create(ctx, act))

	require.NoError(t, f.repos.CorporateActions.MarkProcessed(ctx, act.ID, time.Now()))
	err := f.repos.CorporateActions.MarkProcessed(ctx, act.ID, time.Now())
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	pending, err := f.repos.CorporateActions.List(ctx, domain.ActionQuery{PendingOnly: true})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTrades_ListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	mk := func(date time.Time) *domain.Trade {
		return &domain.Trade{ID: domain.NewID(), PortfolioID: f.portfolio.ID, AccountID: f.account.ID, AssetID: f.asset.ID,
			Date: date, Side: domain.TradeSideBuy, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1), Tags: []string{"x"}}
	}
	late := mk(d2)
	first := mk(d1)
	second := mk(d1)
	for _, tr := range []*domain.Trade{late, second, first} {
		require.NoError(t, f.repos.Trades.Create(ctx, tr))
	}

	all, err := f.repos.Trades.List(ctx, domain.TradeQuery{PortfolioID: &f.portfolio.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, late.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	// Returned rows are copies
	all[0].Tags[0] = "mutated"
	again, _ := f.repos.Trades.GetByID(ctx, first.ID)
	assert.Equal(t, "x", again.Tags[0])

	onlyDay1, _ := f.repos.Trades.List(ctx, domain.TradeQuery{AssetID: &f.asset.ID, Dates: domain.DateRange{Before: &d2}})
	assert.Len(t, onlyDay1, 2)
}

func TestTrades_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	tr := &domain.Trade{ID: domain.NewID(), PortfolioID: f.portfolio.ID, AccountID: uuid.New(), AssetID: f.asset.ID}
	err := f.repos.Trades.Create(context.Background(), tr)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssets_DuplicateSymbol(t *testing.T) {
	f := newFixture(t)
	dup := &domain.Asset{ID: domain.NewID(), Symbol: "aapl", Name: "Apple again", AssetType: domain.AssetTypeStock, Exchange: "NASDAQ", Currency: "USD"}
	err := f.repos.Assets.Create(context.Background(), dup)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSnapshots_ScaleAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }

	for _, day := range []int{5, 10} {
		require.NoError(t, f.repos.Snapshots.ReplaceForDate(ctx, f.portfolio.ID, d(day), []*domain.PositionSnapshot{{
			ID: domain.NewID(), PortfolioID: f.portfolio.ID, AssetID: f.asset.ID, SnapshotDate: d(day),
			Shares: decimal.NewFromInt(100), CostBasis: decimal.NewFromInt(1000),
		}}))
	}

	require.NoError(t, f.repos.Snapshots.ScaleShares(ctx, f.asset.ID, d(10), decimal.NewFromInt(2)))
	early, _ := f.repos.Snapshots.ListByDate(ctx, f.portfolio.ID, d(5))
	late, _ := f.repos.Snapshots.ListByDate(ctx, f.portfolio.ID, d(10))
	assert.Equal(t, "200", early[0].Shares.String())
	assert.Equal(t, "1000", early[0].CostBasis.String())
	assert.Equal(t, "100", late[0].Shares.String())

	latest, _ := f.repos.Snapshots.LatestDate(ctx, f.portfolio.ID, d(31))
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(d(10)))

	require.NoError(t, f.repos.Snapshots.DeleteFrom(ctx, f.portfolio.ID, d(6)))
	latest, _ = f.repos.Snapshots.LatestDate(ctx, f.portfolio.ID, d(31))
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(d(5)))
}

func TestFXRates_LatestOnOrBefore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, f.repos.FXRates.Upsert(ctx, &domain.FXRate{ID: domain.NewID(), Date: d(1), FromCurrency: "EUR", ToCurrency: "USD", Rate: decimal.RequireFromString("1.1")}))
	require.NoError(t, f.repos.FXRates.Upsert(ctx, &domain.FXRate{ID: domain.NewID(), Date: d(5), FromCurrency: "EUR", ToCurrency: "USD", Rate: decimal.RequireFromString("1.2")}))
	require.NoError(t, f.repos.FXRates.Upsert(ctx, &domain.FXRate{ID: domain.NewID(), Date: d(5), FromCurrency: "EUR", ToCurrency: "USD", Rate: decimal.RequireFromString("1.25")}))

	got, err := f.repos.FXRates.LatestOnOrBefore(ctx, "EUR", "USD", d(4))
	require.NoError(t, err)
	assert.Equal(t, "1.1", got.Rate.String())

	got, err = f.repos.FXRates.LatestOnOrBefore(ctx, "EUR", "USD", d(9))
	require.NoError(t, err)
	assert.Equal(t, "1.25", got.Rate.String())

	_, err = f.repos.FXRates.LatestOnOrBefore(ctx, "USD", "EUR", d(9))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
