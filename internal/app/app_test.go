package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/portfolio-engine/internal/adapter/repository/memory"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/cashflow"
	"github.com/simaogato/portfolio-engine/internal/usecase/corporateaction"
	"github.com/simaogato/portfolio-engine/internal/usecase/refdata"
	"github.com/simaogato/portfolio-engine/internal/usecase/trade"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

// A pending action registered after a snapshot must not leave the seeded
// replay behind the full one
func TestSnapshotSeededPositionsFollowNewAction(t *testing.T) {
	ctx := context.Background()
	a := New(memory.NewStore().Repositories(), Options{UseSnapshots: true})

	p, err := a.RefData.CreatePortfolio(ctx, "Main", "USD", domain.CostMethodFIFO)
	require.NoError(t, err)
	acc, err := a.RefData.CreateAccount(ctx, p.ID, "Broker", "USD")
	require.NoError(t, err)
	asset, err := a.RefData.CreateAsset(ctx, refdata.AssetInput{
		Symbol: "AAPL", Name: "Apple", AssetType: domain.AssetTypeStock, Exchange: "NASDAQ", Currency: "USD",
	})
	require.NoError(t, err)
	_, err = a.Cash.Create(ctx, cashflow.CashInput{
		PortfolioID: p.ID, AccountID: acc.ID,
		Date: day(t, "2023-12-31"), Type: domain.CashTxnDeposit, Amount: decimal.NewFromInt(5000),
	})
	require.NoError(t, err)
	_, err = a.Trades.Create(ctx, trade.TradeInput{
		PortfolioID: p.ID, AccountID: acc.ID, AssetID: asset.ID,
		Date: day(t, "2024-01-01"), Side: domain.TradeSideBuy,
		Quantity: decimal.NewFromInt(100), Price: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	_, err = a.Snapshots.Materialize(ctx, p.ID, day(t, "2024-03-01"))
	require.NoError(t, err)
	_, err = a.Actions.Create(ctx, corporateaction.ActionInput{
		AssetID: asset.ID, Date: day(t, "2024-02-01"), Type: domain.CorporateActionSplit, Numerator: 2, Denominator: 1,
	})
	require.NoError(t, err)

	seeded, err := a.Holdings.GetPositions(ctx, p.ID, day(t, "2024-04-01"), false)
	require.NoError(t, err)
	a.Holdings.UseSnapshots = false
	full, err := a.Holdings.GetPositions(ctx, p.ID, day(t, "2024-04-01"), false)
	require.NoError(t, err)

	require.Len(t, full, 1)
	require.Len(t, seeded, 1)
	assert.Equal(t, "200", full[0].Shares.String())
	assert.True(t, full[0].Shares.Equal(seeded[0].Shares))
	assert.True(t, full[0].CostBasis.Equal(seeded[0].CostBasis))

	lots, err := a.TaxLots.ListTaxLots(ctx, p.ID, asset.ID)
	require.NoError(t, err)
	total := decimal.Zero
	for _, l := range lots {
		total = total.Add(l.RemainingShares)
	}
	assert.Equal(t, "200", total.String())
}
