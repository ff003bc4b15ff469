package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/adapter/repository/memory"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/position"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	repos     domain.Repositories
	replayer  *position.Replayer
	service   *SnapshotService
	portfolio uuid.UUID
	account   uuid.UUID
	assets    []uuid.UUID
}

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	repos := memory.NewStore().Repositories()

	p := &domain.Portfolio{ID: domain.NewID(), Name: "P", BaseCurrency: "USD", CostMethod: domain.CostMethodAverage}
	require.NoError(t, repos.Portfolios.Create(ctx, p))
	acc := &domain.Account{ID: domain.NewID(), PortfolioID: p.ID, Name: "Broker", Currency: "USD"}
	require.NoError(t, repos.Accounts.Create(ctx, acc))

	h := &harness{repos: repos, portfolio: p.ID, account: acc.ID}
	for _, sym := range []string{"AAA", "BBB"} {
		a := &domain.Asset{ID: domain.NewID(), Symbol: sym, Name: sym, AssetType: domain.AssetTypeStock, Currency: "USD"}
		require.NoError(t, repos.Assets.Create(ctx, a))
		h.assets = append(h.assets, a.ID)
	}

	loader := timeline.NewLoader(repos.Trades, repos.CashTransactions, repos.CorporateActions)
	h.replayer = position.NewReplayer(loader)
	h.service = NewSnapshotService(h.replayer, repos.Snapshots, repos.Portfolios, repos.Tx)
	return h
}

func (h *harness) trade(t *testing.T, asset int, side domain.TradeSide, date, qty, price string) {
	t.Helper()
	require.NoError(t, h.repos.Trades.Create(context.Background(), &domain.Trade{
		ID: domain.NewID(), PortfolioID: h.portfolio, AccountID: h.account, AssetID: h.assets[asset],
		Date: day(date), Side: side, Quantity: decimal.RequireFromString(qty), Price: decimal.RequireFromString(price),
	}))
}

func (h *harness) seedLedger(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	h.trade(t, 0, domain.TradeSideBuy, "2024-01-01", "100", "10")
	h.trade(t, 1, domain.TradeSideBuy, "2024-01-02", "10", "50")
	h.trade(t, 0, domain.TradeSideSell, "2024-01-10", "40", "12")
	h.trade(t, 1, domain.TradeSideSell, "2024-01-20", "10", "55") // fully closed, realized only
	h.trade(t, 0, domain.TradeSideBuy, "2024-02-10", "30", "9")
	h.trade(t, 0, domain.TradeSideSell, "2024-03-05", "25", "14")

	shares := decimal.NewFromInt(6)
	assetID := h.assets[0]
	require.NoError(t, h.repos.CashTransactions.Create(ctx, &domain.CashTransaction{
		ID: domain.NewID(), PortfolioID: h.portfolio, AccountID: h.account, AssetID: &assetID,
		Date: day("2024-02-15"), Type: domain.CashTxnDividendStock, Shares: &shares,
	}))
	require.NoError(t, h.repos.CorporateActions.Create(ctx, &domain.CorporateAction{
		ID: domain.NewID(), AssetID: h.assets[0], Date: day("2024-02-20"), Type: domain.CorporateActionSplit, Numerator: 3, Denominator: 2,
	}))
}

func TestMaterialize_WritesNonEmptyPositions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLedger(t)

	rows, err := h.service.Materialize(ctx, h.portfolio, day("2024-01-31"))

	require.NoError(t, err)
	require.Len(t, rows, 2, "closed position with realized pnl is still non-empty")
	stored, _ := h.repos.Snapshots.ListByDate(ctx, h.portfolio, day("2024-01-31"))
	assert.Len(t, stored, 2)

	// Re-materialising replaces rather than duplicates
	_, err = h.service.Materialize(ctx, h.portfolio, day("2024-01-31"))
	require.NoError(t, err)
	stored, _ = h.repos.Snapshots.ListByDate(ctx, h.portfolio, day("2024-01-31"))
	assert.Len(t, stored, 2)
}

func TestMaterialize_UnknownPortfolio(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.Materialize(context.Background(), uuid.New(), day("2024-01-31"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResume_NoSnapshot(t *testing.T) {
	h := newHarness(t)
	_, ok, err := h.service.Resume(context.Background(), h.portfolio, day("2024-12-31"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResume_EquivalentToFullReplay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLedger(t)

	for _, snapDate := range []string{"2024-01-05", "2024-01-31", "2024-02-15", "2024-02-20"} {
		_, err := h.service.Materialize(ctx, h.portfolio, day(snapDate))
		require.NoError(t, err)
	}

	for _, asOf := range []string{"2024-01-05", "2024-02-01", "2024-02-19", "2024-02-20", "2024-03-31"} {
		t.Run(asOf, func(t *testing.T) {
			until := day(asOf)
			full, err := h.replayer.Positions(ctx, timeline.Scope{PortfolioID: h.portfolio, Until: &until}, nil)
			require.NoError(t, err)

			seed, ok, err := h.service.Resume(ctx, h.portfolio, until)
			require.NoError(t, err)
			require.True(t, ok)
			assert.False(t, seed.Date.After(until))

			resumed, err := h.replayer.Positions(ctx, timeline.Scope{PortfolioID: h.portfolio, Until: &until, After: &seed.Date}, seed.States)
			require.NoError(t, err)

			want := nonEmpty(full)
			got := nonEmpty(resumed)
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].AssetID, got[i].AssetID)
				assert.True(t, want[i].Shares.Equal(got[i].Shares), "shares %s vs %s", want[i].Shares, got[i].Shares)
				assert.True(t, want[i].CostBasis.Equal(got[i].CostBasis), "cost %s vs %s", want[i].CostBasis, got[i].CostBasis)
				assert.True(t, want[i].RealizedPnL.Equal(got[i].RealizedPnL), "realized %s vs %s", want[i].RealizedPnL, got[i].RealizedPnL)
			}
		})
	}
}

func nonEmpty(states []position.State) []position.State {
	var out []position.State
	for _, st := range states {
		if !st.IsEmpty() {
			out = append(out, st)
		}
	}
	return out
}

func TestMaterializeRange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLedger(t)

	n, err := h.service.MaterializeRange(ctx, h.portfolio, day("2024-01-01"), day("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	latest, _ := h.repos.Snapshots.LatestDate(ctx, h.portfolio, day("2024-12-31"))
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(day("2024-01-03")))

	_, err = h.service.MaterializeRange(ctx, h.portfolio, day("2024-01-03"), day("2024-01-01"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLedger(t)
	for _, d := range []string{"2024-01-05", "2024-01-31"} {
		_, err := h.service.Materialize(ctx, h.portfolio, day(d))
		require.NoError(t, err)
	}

	require.NoError(t, h.service.Invalidate(ctx, h.portfolio, day("2024-01-10")))

	seed, ok, err := h.service.Resume(ctx, h.portfolio, day("2024-12-31"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, seed.Date.Equal(day("2024-01-05")))
}
