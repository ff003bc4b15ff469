package main

import (
	"fmt"
	"io"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/corporateaction"
	"github.com/simaogato/portfolio-engine/internal/usecase/holdings"
	"github.com/simaogato/portfolio-engine/internal/usecase/pnl"
)

const missing = "-"

// formatMoney renders an amount with the currency's symbol, separators and minor units.
// Codes go-money does not know fall back to two decimals and the code.
func formatMoney(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return cur.Formatter().Format(minor)
}

func formatOptionalMoney(amount *decimal.Decimal, code string) string {
	if amount == nil {
		return missing
	}
	return formatMoney(*amount, code)
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	return table
}

func renderPositions(w io.Writer, rows []holdings.PositionView, inBase bool) {
	header := []string{"Symbol", "Shares", "Avg Cost", "Cost Basis", "Last Price", "Market Value", "Unrealized", "Realized"}
	if inBase {
		header = append(header, "FX Rate", "Market Value (Base)", "Unrealized (Base)")
	}
	table := newTable(w, header)

	for _, p := range rows {
		row := []string{
			p.Symbol,
			p.Shares.String(),
			formatMoney(p.AvgCost, p.Currency),
			formatMoney(p.CostBasis, p.Currency),
			formatOptionalMoney(p.LastPrice, p.Currency),
			formatOptionalMoney(p.MarketValue, p.Currency),
			formatOptionalMoney(p.UnrealizedPnL, p.Currency),
			formatMoney(p.RealizedPnL, p.Currency),
		}
		if inBase {
			rate := missing
			if p.FXRate != nil {
				rate = p.FXRate.String()
			}
			row = append(row,
				rate,
				formatOptionalMoney(p.MarketValueBase, p.BaseCurrency),
				formatOptionalMoney(p.UnrealizedPnLBase, p.BaseCurrency),
			)
		}
		table.Append(row)
	}
	table.Render()
}

func renderLots(w io.Writer, lots []*domain.TaxLot) {
	table := newTable(w, []string{"Lot Date", "Source", "Original", "Remaining", "Cost/Share", "Total Cost"})
	for _, l := range lots {
		table.Append([]string{
			formatDate(l.LotDate),
			string(l.Source),
			l.OriginalShares.String(),
			l.RemainingShares.String(),
			formatMoney(l.CostPerShare, l.AssetCurrency),
			formatMoney(l.TotalCost, l.AssetCurrency),
		})
	}
	table.SetFooter([]string{"", "", "", "", "Lots", fmt.Sprint(len(lots))})
	table.Render()
}

func renderPnl(w io.Writer, s *pnl.Summary, currency string) {
	table := newTable(w, []string{"Component", "Amount"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for _, line := range []struct {
		name   string
		amount decimal.Decimal
	}{
		{"Realized", s.RealizedPnL},
		{"Unrealized", s.UnrealizedPnL},
		{"Dividends", s.IncomeDividend},
		{"Rewards", s.IncomeReward},
		{"Other income", s.IncomeOther},
		{"Income total", s.IncomeTotal},
		{"Price return", s.PriceReturn},
		{"Total return", s.TotalReturn},
		{"Invested cashflow", s.InvestedCashflow},
	} {
		table.Append([]string{line.name, formatMoney(line.amount, currency)})
	}
	table.Render()
}

func renderSnapshots(w io.Writer, rows []*domain.PositionSnapshot, symbols map[uuid.UUID]string) {
	table := newTable(w, []string{"Symbol", "Shares", "Cost Basis", "Realized"})
	for _, r := range rows {
		symbol, ok := symbols[r.AssetID]
		if !ok {
			symbol = r.AssetID.String()
		}
		table.Append([]string{symbol, r.Shares.String(), r.CostBasis.String(), r.RealizedPnL.String()})
	}
	table.Render()
}

func renderProcessResults(w io.Writer, results ...*corporateaction.ProcessResult) {
	table := newTable(w, []string{"Action", "Type", "Trades Created", "Portfolios"})
	for _, r := range results {
		table.Append([]string{
			r.ActionID.String(),
			string(r.Type),
			fmt.Sprint(r.TradesCreated),
			fmt.Sprint(len(r.Portfolios)),
		})
	}
	table.Render()
}
