package corporateaction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/adapter/repository/memory"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/cashledger"
	"github.com/simaogato/portfolio-engine/internal/usecase/taxlot"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCacheInvalidator is a mock implementation of CacheInvalidator for testing
type MockCacheInvalidator struct {
	mock.Mock
}

func (m *MockCacheInvalidator) InvalidatePortfolio(portfolioID uuid.UUID) {
	m.Called(portfolioID)
}

func (m *MockCacheInvalidator) InvalidateAll() {
	m.Called()
}

type harness struct {
	repos     domain.Repositories
	service   *CorporateActionService
	cache     *MockCacheInvalidator
	portfolio *domain.Portfolio
	account   *domain.Account
	asset     *domain.Asset
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	repos := memory.NewStore().Repositories()

	p := &domain.Portfolio{ID: domain.NewID(), Name: "P", BaseCurrency: "USD", CostMethod: domain.CostMethodAverage}
	require.NoError(t, repos.Portfolios.Create(ctx, p))
	acc := &domain.Account{ID: domain.NewID(), PortfolioID: p.ID, Name: "Broker", Currency: "USD"}
	require.NoError(t, repos.Accounts.Create(ctx, acc))
	asset := &domain.Asset{ID: domain.NewID(), Symbol: "A", Name: "Asset A", AssetType: domain.AssetTypeStock, Currency: "USD"}
	require.NoError(t, repos.Assets.Create(ctx, asset))

	loader := timeline.NewLoader(repos.Trades, repos.CashTransactions, repos.CorporateActions)
	lots := taxlot.NewTaxLotService(loader, repos.TaxLots, repos.Tx)
	cache := new(MockCacheInvalidator)
	svc := NewCorporateActionService(repos, cashledger.NewLedger(repos.CashTransactions), lots, cache)
	svc.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	return &harness{repos: repos, service: svc, cache: cache, portfolio: p, account: acc, asset: asset}
}

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (h *harness) cash(t *testing.T, typ domain.CashTxnType, date string, amount, withholding string) *domain.CashTransaction {
	t.Helper()
	assetID := h.asset.ID
	row := &domain.CashTransaction{
		ID: domain.NewID(), PortfolioID: h.portfolio.ID, AccountID: h.account.ID,
		Date: day(date), Type: typ, Amount: decimal.RequireFromString(amount), WithholdingTax: decimal.RequireFromString(withholding),
	}
	if typ == domain.CashTxnDividendCash {
		row.AssetID = &assetID
	}
	require.NoError(t, h.repos.CashTransactions.Create(context.Background(), row))
	return row
}

func (h *harness) buy(t *testing.T, date string, qty, price string) *domain.Trade {
	t.Helper()
	tr := &domain.Trade{
		ID: domain.NewID(), PortfolioID: h.portfolio.ID, AccountID: h.account.ID, AssetID: h.asset.ID,
		Date: day(date), Side: domain.TradeSideBuy, Quantity: decimal.RequireFromString(qty), Price: decimal.RequireFromString(price),
		AssetCurrency: "USD", SettlementCurrency: "USD",
	}
	require.NoError(t, h.repos.Trades.Create(context.Background(), tr))
	require.NoError(t, h.repos.CashTransactions.Create(context.Background(), cashledger.NewTradeExpense(tr)))
	return tr
}

func (h *harness) action(t *testing.T, typ domain.CorporateActionType, date string, num, den int64) *domain.CorporateAction {
	t.Helper()
	h.cache.On("InvalidateAll").Return().Maybe()
	a, err := h.service.Create(context.Background(), ActionInput{AssetID: h.asset.ID, Date: day(date), Type: typ, Numerator: num, Denominator: den})
	require.NoError(t, err)
	return a
}

func TestProcess_SplitRescalesHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.cash(t, domain.CashTxnDeposit, "2023-12-31", "5000", "0")
	original := h.buy(t, "2024-01-01", "100", "10")
	later := h.buy(t, "2024-03-01", "10", "6")
	act := h.action(t, domain.CorporateActionSplit, "2024-02-01", 2, 1)
	h.cache.On("InvalidatePortfolio", h.portfolio.ID).Return().Once()

	res, err := h.service.Process(ctx, act.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, res.TradesCreated)
	assert.Equal(t, []uuid.UUID{h.portfolio.ID}, res.Portfolios)

	tr, _ := h.repos.Trades.GetByID(ctx, original.ID)
	assert.Equal(t, "200", tr.Quantity.String())
	assert.Equal(t, "5", tr.Price.String())
	untouched, _ := h.repos.Trades.GetByID(ctx, later.ID)
	assert.Equal(t, "10", untouched.Quantity.String())

	stored, _ := h.repos.CorporateActions.GetByID(ctx, act.ID)
	require.NotNil(t, stored.ProcessedAt)

	lots, _ := h.repos.TaxLots.List(ctx, h.portfolio.ID, h.asset.ID)
	require.Len(t, lots, 2)
	assert.Equal(t, "200", lots[0].RemainingShares.String())
	assert.Equal(t, "1000", lots[0].TotalCost.String())
	h.cache.AssertExpectations(t)
}

func TestProcess_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.cash(t, domain.CashTxnDeposit, "2023-12-31", "5000", "0")
	original := h.buy(t, "2024-01-01", "100", "10")
	act := h.action(t, domain.CorporateActionSplit, "2024-02-01", 2, 1)
	h.cache.On("InvalidatePortfolio", h.portfolio.ID).Return()

	_, err := h.service.Process(ctx, act.ID)
	require.NoError(t, err)

	_, err = h.service.Process(ctx, act.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	tr, _ := h.repos.Trades.GetByID(ctx, original.ID)
	assert.Equal(t, "200", tr.Quantity.String(), "second attempt must not rescale again")
	h.cache.AssertNumberOfCalls(t, "InvalidatePortfolio", 1)
}

func TestProcess_ReverseSplitScalesDividendsAndSnapshots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.cash(t, domain.CashTxnDeposit, "2023-12-31", "5000", "0")
	h.buy(t, "2024-01-01", "100", "10")
	shares := decimal.NewFromInt(8)
	assetID := h.asset.ID
	div := &domain.CashTransaction{ID: domain.NewID(), PortfolioID: h.portfolio.ID, AccountID: h.account.ID, AssetID: &assetID,
		Date: day("2024-01-15"), Type: domain.CashTxnDividendStock, Shares: &shares}
	require.NoError(t, h.repos.CashTransactions.Create(ctx, div))
	require.NoError(t, h.repos.Snapshots.ReplaceForDate(ctx, h.portfolio.ID, day("2024-01-31"), []*domain.PositionSnapshot{{
		ID: domain.NewID(), PortfolioID: h.portfolio.ID, AssetID: h.asset.ID, SnapshotDate: day("2024-01-31"),
		Shares: decimal.NewFromInt(108), CostBasis: decimal.NewFromInt(1000),
	}}))
	act := h.action(t, domain.CorporateActionMerge, "2024-02-01", 1, 4)
	h.cache.On("InvalidatePortfolio", h.portfolio.ID).Return()

	_, err := h.service.Process(ctx, act.ID)
	require.NoError(t, err)

	storedDiv, _ := h.repos.CashTransactions.GetByID(ctx, div.ID)
	assert.Equal(t, "2", storedDiv.Shares.String())
	snaps, _ := h.repos.Snapshots.ListByDate(ctx, h.portfolio.ID, day("2024-01-31"))
	require.Len(t, snaps, 1)
	assert.Equal(t, "27", snaps[0].Shares.String())
	assert.Equal(t, "1000", snaps[0].CostBasis.String())
}

func TestProcess_DRIP(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repos.Prices.Upsert(ctx, &domain.Price{ID: domain.NewID(), AssetID: h.asset.ID, Date: day("2024-04-01"), Close: decimal.NewFromInt(20), Currency: "USD"}))
	div := h.cash(t, domain.CashTxnDividendCash, "2024-04-01", "100", "10")
	act := h.action(t, domain.CorporateActionDRIP, "2024-04-01", 1, 1)
	h.cache.On("InvalidatePortfolio", h.portfolio.ID).Return()

	res, err := h.service.Process(ctx, act.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, res.TradesCreated)

	trades, _ := h.repos.Trades.List(ctx, domain.TradeQuery{AssetID: &h.asset.ID})
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeSideBuy, trades[0].Side)
	assert.Equal(t, "4.5", trades[0].Quantity.String())
	assert.Equal(t, "20", trades[0].Price.String())
	assert.True(t, trades[0].Fee.IsZero())
	assert.Contains(t, trades[0].Note, div.ID.String())

	expenses, _ := h.repos.CashTransactions.List(ctx, domain.CashQuery{Types: []domain.CashTxnType{domain.CashTxnTradeExpense}})
	require.Len(t, expenses, 1)
	assert.Equal(t, "-90", expenses[0].Amount.String())
	assert.Equal(t, trades[0].ID, *expenses[0].TradeID)

	lots, _ := h.repos.TaxLots.List(ctx, h.portfolio.ID, h.asset.ID)
	require.Len(t, lots, 1)
	assert.Equal(t, "4.5", lots[0].RemainingShares.String())
}

func TestProcess_DRIPMissingPrice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.cash(t, domain.CashTxnDividendCash, "2024-04-01", "100", "10")
	// A later price does not count
	require.NoError(t, h.repos.Prices.Upsert(ctx, &domain.Price{ID: domain.NewID(), AssetID: h.asset.ID, Date: day("2024-04-02"), Close: decimal.NewFromInt(20)}))
	act := h.action(t, domain.CorporateActionDRIP, "2024-04-01", 1, 1)

	_, err := h.service.Process(ctx, act.ID)

	assert.ErrorIs(t, err, domain.ErrMissingPrice)
	stored, _ := h.repos.CorporateActions.GetByID(ctx, act.ID)
	assert.Nil(t, stored.ProcessedAt)
}

func TestProcess_DRIPInsufficientCashRollsBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repos.Prices.Upsert(ctx, &domain.Price{ID: domain.NewID(), AssetID: h.asset.ID, Date: day("2024-03-28"), Close: decimal.NewFromInt(20)}))
	// Balance is 95: the first reinvestment (90) fits, the second (40) does not
	h.cash(t, domain.CashTxnDividendCash, "2024-04-01", "100", "10")
	h.cash(t, domain.CashTxnWithdraw, "2024-04-01", "-45", "0")
	h.cash(t, domain.CashTxnDividendCash, "2024-04-01", "40", "0")
	act := h.action(t, domain.CorporateActionDRIP, "2024-04-01", 1, 1)

	_, err := h.service.Process(ctx, act.ID)

	assert.ErrorIs(t, err, domain.ErrInsufficientCash)
	trades, _ := h.repos.Trades.List(ctx, domain.TradeQuery{})
	assert.Empty(t, trades, "partial drip must be rolled back")
	stored, _ := h.repos.CorporateActions.GetByID(ctx, act.ID)
	assert.Nil(t, stored.ProcessedAt)
	h.cache.AssertNotCalled(t, "InvalidatePortfolio", mock.Anything)
}

func TestProcess_DRIPSkipsFullyWithheld(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repos.Prices.Upsert(ctx, &domain.Price{ID: domain.NewID(), AssetID: h.asset.ID, Date: day("2024-04-01"), Close: decimal.NewFromInt(20)}))
	h.cash(t, domain.CashTxnDividendCash, "2024-04-01", "10", "10")
	act := h.action(t, domain.CorporateActionDRIP, "2024-04-01", 1, 1)

	res, err := h.service.Process(ctx, act.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, res.TradesCreated)
	assert.Empty(t, res.Portfolios)
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Create(ctx, ActionInput{AssetID: h.asset.ID, Date: day("2024-01-01"), Type: domain.CorporateActionSplit, Numerator: 0, Denominator: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidRatio)

	_, err = h.service.Create(ctx, ActionInput{AssetID: h.asset.ID, Date: day("2024-01-01"), Type: "SPINOFF", Numerator: 1, Denominator: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.service.Create(ctx, ActionInput{AssetID: uuid.New(), Date: day("2024-01-01"), Type: domain.CorporateActionSplit, Numerator: 2, Denominator: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateAndDelete_OnlyWhilePending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.cash(t, domain.CashTxnDeposit, "2023-12-31", "5000", "0")
	h.buy(t, "2024-01-01", "100", "10")
	act := h.action(t, domain.CorporateActionSplit, "2024-02-01", 2, 1)

	updated, err := h.service.Update(ctx, act.ID, ActionInput{AssetID: h.asset.ID, Date: day("2024-02-01"), Type: domain.CorporateActionSplit, Numerator: 3, Denominator: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Numerator)

	h.cache.On("InvalidatePortfolio", h.portfolio.ID).Return()
	_, err = h.service.Process(ctx, act.ID)
	require.NoError(t, err)

	_, err = h.service.Update(ctx, act.ID, ActionInput{AssetID: h.asset.ID, Date: day("2024-02-01"), Type: domain.CorporateActionSplit, Numerator: 4, Denominator: 1})
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.ErrorIs(t, h.service.Delete(ctx, act.ID), domain.ErrAlreadyProcessed)
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.cash(t, domain.CashTxnDeposit, "2023-12-31", "5000", "0")
	h.buy(t, "2024-01-01", "100", "10")
	h.action(t, domain.CorporateActionSplit, "2024-02-01", 2, 1)
	h.action(t, domain.CorporateActionSplit, "2024-03-01", 3, 1)
	h.action(t, domain.CorporateActionSplit, "2024-09-01", 5, 1)
	h.cache.On("InvalidatePortfolio", h.portfolio.ID).Return()

	results, err := h.service.ProcessPending(ctx, day("2024-06-30"))

	require.NoError(t, err)
	assert.Len(t, results, 2)
	trades, _ := h.repos.Trades.List(ctx, domain.TradeQuery{})
	assert.Equal(t, "600", trades[0].Quantity.String())

	pending, _ := h.repos.CorporateActions.List(ctx, domain.ActionQuery{PendingOnly: true})
	assert.Len(t, pending, 1)
}

func remainingShares(t *testing.T, h *harness, assetID uuid.UUID) decimal.Decimal {
	t.Helper()
	lots, err := h.repos.TaxLots.List(context.Background(), h.portfolio.ID, assetID)
	require.NoError(t, err)
	total := decimal.Zero
	for _, l := range lots {
		total = total.Add(l.RemainingShares)
	}
	return total
}

func (h *harness) snapshot(t *testing.T, date string, shares int64) {
	t.Helper()
	require.NoError(t, h.repos.Snapshots.ReplaceForDate(context.Background(), h.portfolio.ID, day(date), []*domain.PositionSnapshot{{
		ID: domain.NewID(), PortfolioID: h.portfolio.ID, AssetID: h.asset.ID, SnapshotDate: day(date),
		Shares: decimal.NewFromInt(shares), CostBasis: decimal.NewFromInt(1000),
	}}))
}

func (h *harness) snapshotCount(t *testing.T, date string) int {
	t.Helper()
	snaps, err := h.repos.Snapshots.ListByDate(context.Background(), h.portfolio.ID, day(date))
	require.NoError(t, err)
	return len(snaps)
}

func TestCreate_DropsLaterSnapshotsAndRebuildsLots(t *testing.T) {
	h := newHarness(t)
	h.cash(t, domain.CashTxnDeposit, "2023-12-31", "5000", "0")
	h.buy(t, "2024-01-01", "100", "10")
	h.snapshot(t, "2024-01-15", 100)
	h.snapshot(t, "2024-03-01", 100)
	_, err := h.service.TaxLots.RebuildTaxLots(context.Background(), h.portfolio.ID, h.asset.ID)
	require.NoError(t, err)

	h.action(t, domain.CorporateActionSplit, "2024-02-01", 2, 1)

	assert.Equal(t, 1, h.snapshotCount(t, "2024-01-15"))
	assert.Zero(t, h.snapshotCount(t, "2024-03-01"))
	assert.Equal(t, "200", remainingShares(t, h, h.asset.ID).String())
}

func TestUpdate_RefreshesFromEarliestDateAndBothAssets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.cash(t, domain.CashTxnDeposit, "2023-12-31", "5000", "0")
	h.buy(t, "2024-01-01", "100", "10")
	act := h.action(t, domain.CorporateActionSplit, "2024-03-01", 2, 1)
	assert.Equal(t, "200", remainingShares(t, h, h.asset.ID).String())

	// Moving the action earlier drops snapshots from the new date
	h.snapshot(t, "2024-02-15", 100)
	_, err := h.service.Update(ctx, act.ID, ActionInput{AssetID: h.asset.ID, Date: day("2024-02-01"), Type: domain.CorporateActionSplit, Numerator: 3, Denominator: 1})
	require.NoError(t, err)
	assert.Zero(t, h.snapshotCount(t, "2024-02-15"))
	assert.Equal(t, "300", remainingShares(t, h, h.asset.ID).String())

	// Moving it to another asset restores the first one's lots
	other := &domain.Asset{ID: domain.NewID(), Symbol: "B", Name: "Asset B", AssetType: domain.AssetTypeStock, Currency: "USD"}
	require.NoError(t, h.repos.Assets.Create(ctx, other))
	h.snapshot(t, "2024-02-20", 300)
	_, err = h.service.Update(ctx, act.ID, ActionInput{AssetID: other.ID, Date: day("2024-02-01"), Type: domain.CorporateActionSplit, Numerator: 3, Denominator: 1})
	require.NoError(t, err)
	assert.Zero(t, h.snapshotCount(t, "2024-02-20"))
	assert.Equal(t, "100", remainingShares(t, h, h.asset.ID).String())
}

func TestDelete_RestoresLotsAndDropsSnapshots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.cash(t, domain.CashTxnDeposit, "2023-12-31", "5000", "0")
	h.buy(t, "2024-01-01", "100", "10")
	act := h.action(t, domain.CorporateActionSplit, "2024-02-01", 2, 1)
	h.snapshot(t, "2024-01-31", 100)
	h.snapshot(t, "2024-03-01", 200)

	require.NoError(t, h.service.Delete(ctx, act.ID))

	assert.Equal(t, 1, h.snapshotCount(t, "2024-01-31"))
	assert.Zero(t, h.snapshotCount(t, "2024-03-01"))
	assert.Equal(t, "100", remainingShares(t, h, h.asset.ID).String())
}

// foreignAccount opens a euro account in the harness portfolio and pays it a 100 EUR dividend
func (h *harness) foreignAccount(t *testing.T) *domain.Account {
	t.Helper()
	ctx := context.Background()
	acc := &domain.Account{ID: domain.NewID(), PortfolioID: h.portfolio.ID, Name: "Euro Broker", Currency: "EUR"}
	require.NoError(t, h.repos.Accounts.Create(ctx, acc))
	assetID := h.asset.ID
	require.NoError(t, h.repos.CashTransactions.Create(ctx, &domain.CashTransaction{
		ID: domain.NewID(), PortfolioID: h.portfolio.ID, AccountID: acc.ID, AssetID: &assetID,
		Date: day("2024-04-01"), Type: domain.CashTxnDividendCash, Amount: decimal.NewFromInt(100), WithholdingTax: decimal.Zero,
	}))
	return acc
}

func TestProcess_DRIPSettlesInAccountCurrency(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repos.Prices.Upsert(ctx, &domain.Price{ID: domain.NewID(), AssetID: h.asset.ID, Date: day("2024-04-01"), Close: decimal.NewFromInt(20), Currency: "USD"}))
	require.NoError(t, h.repos.FXRates.Upsert(ctx, &domain.FXRate{ID: domain.NewID(), Date: day("2024-03-29"), FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.5")}))
	acc := h.foreignAccount(t)
	act := h.action(t, domain.CorporateActionDRIP, "2024-04-01", 1, 1)
	h.cache.On("InvalidatePortfolio", h.portfolio.ID).Return()

	res, err := h.service.Process(ctx, act.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, res.TradesCreated)
	trades, _ := h.repos.Trades.List(ctx, domain.TradeQuery{AssetID: &h.asset.ID})
	require.Len(t, trades, 1)
	assert.Equal(t, "10", trades[0].Quantity.String())
	assert.Equal(t, "20", trades[0].Price.String())
	assert.Equal(t, "USD", trades[0].AssetCurrency)
	assert.Equal(t, "EUR", trades[0].SettlementCurrency)
	require.NotNil(t, trades[0].FXRate)
	assert.Equal(t, "0.5", trades[0].FXRate.String())

	expenses, _ := h.repos.CashTransactions.List(ctx, domain.CashQuery{Types: []domain.CashTxnType{domain.CashTxnTradeExpense}})
	require.Len(t, expenses, 1)
	assert.Equal(t, acc.ID, expenses[0].AccountID)
	assert.Equal(t, "-100", expenses[0].Amount.String())
}

func TestProcess_DRIPMissingFXRate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repos.Prices.Upsert(ctx, &domain.Price{ID: domain.NewID(), AssetID: h.asset.ID, Date: day("2024-04-01"), Close: decimal.NewFromInt(20), Currency: "USD"}))
	h.foreignAccount(t)
	act := h.action(t, domain.CorporateActionDRIP, "2024-04-01", 1, 1)

	_, err := h.service.Process(ctx, act.ID)

	assert.ErrorIs(t, err, domain.ErrMissingFXRate)
	trades, _ := h.repos.Trades.List(ctx, domain.TradeQuery{})
	assert.Empty(t, trades)
	stored, _ := h.repos.CorporateActions.GetByID(ctx, act.ID)
	assert.Nil(t, stored.ProcessedAt)
}
