package position

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assetA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func buy(date, qty, price string) *domain.Trade {
	return &domain.Trade{ID: domain.NewID(), AssetID: assetA, Date: day(date), Side: domain.TradeSideBuy, Quantity: dec(qty), Price: dec(price)}
}

func sell(date, qty, price string) *domain.Trade {
	return &domain.Trade{ID: domain.NewID(), AssetID: assetA, Date: day(date), Side: domain.TradeSideSell, Quantity: dec(qty), Price: dec(price)}
}

func split(date string, num, den int64) *domain.CorporateAction {
	return &domain.CorporateAction{ID: domain.NewID(), AssetID: assetA, Date: day(date), Type: domain.CorporateActionSplit, Numerator: num, Denominator: den}
}

func stockDiv(date, shares string) *domain.CashTransaction {
	asset := assetA
	s := dec(shares)
	return &domain.CashTransaction{ID: domain.NewID(), AssetID: &asset, Date: day(date), Type: domain.CashTxnDividendStock, Shares: &s}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func replay(t *testing.T, tracker *Tracker, actions []*domain.CorporateAction, divs []*domain.CashTransaction, trades []*domain.Trade) State {
	t.Helper()
	require.NoError(t, tracker.ApplyAll(timeline.Merge(actions, divs, trades)))
	st, _ := tracker.Get(assetA)
	return st
}

func TestTracker_BuyThenSell(t *testing.T) {
	st := replay(t, NewTracker(nil), nil, nil, []*domain.Trade{
		buy("2024-01-01", "100", "10"),
	})
	assertDecimal(t, "100", st.Shares, "shares")
	assertDecimal(t, "1000", st.CostBasis, "cost")
	assertDecimal(t, "10", st.AvgCost(), "avg")
}

func TestTracker_ProcessedSplitExample(t *testing.T) {
	// After processing a 2:1 split the historical buy reads 200 @ 5
	st := replay(t, NewTracker(nil), nil, nil, []*domain.Trade{
		buy("2024-01-01", "200", "5"),
		sell("2024-03-01", "50", "6"),
	})

	assertDecimal(t, "150", st.Shares, "shares")
	assertDecimal(t, "750", st.CostBasis, "cost")
	assertDecimal(t, "50", st.RealizedPnL, "realized")
	assertDecimal(t, "5", st.AvgCost(), "avg")
}

func TestTracker_PendingSplitExample(t *testing.T) {
	st := replay(t, NewTracker(nil),
		[]*domain.CorporateAction{split("2024-02-01", 2, 1)},
		nil,
		[]*domain.Trade{
			buy("2024-01-01", "100", "10"),
			sell("2024-03-01", "50", "6"),
		})

	assertDecimal(t, "150", st.Shares, "shares")
	assertDecimal(t, "750", st.CostBasis, "cost")
	assertDecimal(t, "50", st.RealizedPnL, "realized")
}

func TestTracker_ActionBeforeSameDayTrade(t *testing.T) {
	// The split applies to the 100 held shares, not to the buy on the same day
	st := replay(t, NewTracker(nil),
		[]*domain.CorporateAction{split("2024-02-01", 2, 1)},
		nil,
		[]*domain.Trade{
			buy("2024-01-01", "100", "10"),
			buy("2024-02-01", "10", "5"),
		})

	assertDecimal(t, "210", st.Shares, "shares")
	assertDecimal(t, "1050", st.CostBasis, "cost")
}

func TestTracker_StockDividendIsCostFree(t *testing.T) {
	st := replay(t, NewTracker(nil), nil,
		[]*domain.CashTransaction{stockDiv("2024-02-01", "10")},
		[]*domain.Trade{buy("2024-01-01", "100", "10")})

	assertDecimal(t, "110", st.Shares, "shares")
	assertDecimal(t, "1000", st.CostBasis, "cost")
}

func TestTracker_ActionWithoutPositionIsNoop(t *testing.T) {
	tracker := NewTracker(nil)
	require.NoError(t, tracker.ApplyAll(timeline.Merge([]*domain.CorporateAction{split("2024-01-01", 3, 1)}, nil, nil)))

	_, ok := tracker.Get(assetA)
	assert.False(t, ok)
	assert.Empty(t, tracker.Positions())
}

func TestTracker_SellAllClearsCost(t *testing.T) {
	st := replay(t, NewTracker(nil), nil, nil, []*domain.Trade{
		buy("2024-01-01", "3", "10"),
		sell("2024-01-02", "3", "11"),
	})

	assert.True(t, st.Shares.IsZero())
	assert.True(t, st.CostBasis.IsZero())
	assertDecimal(t, "3", st.RealizedPnL, "realized")
}

func TestTracker_FeesAndTaxes(t *testing.T) {
	b := buy("2024-01-01", "10", "100")
	b.Fee, b.Tax = dec("5"), dec("5")
	s := sell("2024-01-02", "5", "120")
	s.Fee, s.Tax = dec("2"), dec("3")

	st := replay(t, NewTracker(nil), nil, nil, []*domain.Trade{b, s})

	// avg = 1010/10 = 101; proceeds = 600 - 5 = 595; realized = 595 - 505 = 90
	assertDecimal(t, "90", st.RealizedPnL, "realized")
	assertDecimal(t, "505", st.CostBasis, "cost")
}

func TestTracker_RealizedWindow(t *testing.T) {
	trades := []*domain.Trade{
		buy("2024-01-01", "100", "10"),
		sell("2024-01-15", "10", "12"), // outside window
		sell("2024-02-15", "10", "15"), // inside window
	}

	tracker := NewTracker(nil).WithRealizedWindow(day("2024-02-01"), day("2024-02-28"))
	st := replay(t, tracker, nil, nil, trades)

	assertDecimal(t, "50", st.RealizedPnL, "realized")
	assertDecimal(t, "80", st.Shares, "shares")
	assertDecimal(t, "800", st.CostBasis, "cost")
}

func TestTracker_SharesNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	start := day("2024-01-01")

	for round := 0; round < 50; round++ {
		var trades []*domain.Trade
		var actions []*domain.CorporateAction
		for i := 0; i < 30; i++ {
			date := start.AddDate(0, 0, rng.Intn(60)).Format(domain.DateLayout)
			qty := decimal.NewFromInt(int64(rng.Intn(50) + 1)).String()
			price := decimal.NewFromInt(int64(rng.Intn(20) + 1)).String()
			switch rng.Intn(5) {
			case 0, 1:
				trades = append(trades, buy(date, qty, price))
			case 2, 3:
				trades = append(trades, sell(date, qty, price))
			default:
				actions = append(actions, split(date, int64(rng.Intn(3)+1), int64(rng.Intn(3)+1)))
			}
		}

		tracker := NewTracker(nil)
		for e := range timeline.Merge(actions, nil, trades) {
			require.NoError(t, tracker.Apply(e))
			st, ok := tracker.Get(assetA)
			if !ok {
				continue
			}
			require.False(t, st.Shares.IsNegative(), "shares went negative")
			if st.Shares.IsZero() {
				require.True(t, st.CostBasis.IsZero(), "cost basis must be zero without shares")
			}
		}
	}
}

func TestTracker_SeededReplayMatchesFullReplay(t *testing.T) {
	actions := []*domain.CorporateAction{split("2024-02-01", 3, 2)}
	divs := []*domain.CashTransaction{stockDiv("2024-01-20", "4")}
	trades := []*domain.Trade{
		buy("2024-01-01", "100", "10"),
		sell("2024-01-10", "30", "12"),
		buy("2024-01-31", "20", "11"),
		sell("2024-02-10", "40", "9"),
		buy("2024-03-01", "5", "8"),
	}

	full := NewTracker(nil)
	require.NoError(t, full.ApplyAll(timeline.Merge(actions, divs, trades)))

	for _, cut := range []string{"2024-01-01", "2024-01-15", "2024-01-31", "2024-02-01", "2024-02-20"} {
		t.Run(cut, func(t *testing.T) {
			snapDate := day(cut)
			before := func(d time.Time) bool { return !d.After(snapDate) }

			var a1, a2 []*domain.CorporateAction
			for _, a := range actions {
				if before(a.Date) {
					a1 = append(a1, a)
				} else {
					a2 = append(a2, a)
				}
			}
			var d1, d2 []*domain.CashTransaction
			for _, d := range divs {
				if before(d.Date) {
					d1 = append(d1, d)
				} else {
					d2 = append(d2, d)
				}
			}
			var t1, t2 []*domain.Trade
			for _, tr := range trades {
				if before(tr.Date) {
					t1 = append(t1, tr)
				} else {
					t2 = append(t2, tr)
				}
			}

			head := NewTracker(nil)
			require.NoError(t, head.ApplyAll(timeline.Merge(a1, d1, t1)))

			resumed := NewTracker(head.Positions())
			require.NoError(t, resumed.ApplyAll(timeline.Merge(a2, d2, t2)))

			want, _ := full.Get(assetA)
			got, _ := resumed.Get(assetA)
			assertDecimal(t, want.Shares.String(), got.Shares, "shares")
			assertDecimal(t, want.CostBasis.String(), got.CostBasis, "cost")
			assertDecimal(t, want.RealizedPnL.String(), got.RealizedPnL, "realized")
		})
	}
}

func TestTracker_UnknownKind(t *testing.T) {
	err := NewTracker(nil).Apply(timeline.Event{Kind: timeline.Kind(9)})
	assert.Error(t, err)
}
