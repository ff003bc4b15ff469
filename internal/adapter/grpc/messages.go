package grpc

import (
	"github.com/shopspring/decimal"
)

// Decimals travel as JSON strings. Dates travel as YYYY-MM-DD.

type GetPositionsRequest struct {
	PortfolioID    string `json:"portfolio_id"`
	AsOf           string `json:"as_of"`
	InBaseCurrency bool   `json:"in_base_currency"`
}

type Position struct {
	AssetID     string          `json:"asset_id"`
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Currency    string          `json:"currency"`
	Shares      decimal.Decimal `json:"shares"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`

	LastPrice     *decimal.Decimal `json:"last_price,omitempty"`
	MarketValue   *decimal.Decimal `json:"market_value,omitempty"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl,omitempty"`

	BaseCurrency      string           `json:"base_currency,omitempty"`
	FXRate            *decimal.Decimal `json:"fx_rate,omitempty"`
	MarketValueBase   *decimal.Decimal `json:"market_value_base,omitempty"`
	CostBasisBase     *decimal.Decimal `json:"cost_basis_base,omitempty"`
	UnrealizedPnLBase *decimal.Decimal `json:"unrealized_pnl_base,omitempty"`
}

type GetPositionsResponse struct {
	Positions []Position `json:"positions"`
}

type ComputePnlSummaryRequest struct {
	PortfolioID string `json:"portfolio_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	AsOf        string `json:"as_of"`
}

type ComputePnlSummaryResponse struct {
	PortfolioID      string          `json:"portfolio_id"`
	From             string          `json:"from"`
	To               string          `json:"to"`
	AsOf             string          `json:"as_of"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	IncomeDividend   decimal.Decimal `json:"income_dividend"`
	IncomeReward     decimal.Decimal `json:"income_reward"`
	IncomeOther      decimal.Decimal `json:"income_other"`
	IncomeTotal      decimal.Decimal `json:"income_total"`
	PriceReturn      decimal.Decimal `json:"price_return"`
	TotalReturn      decimal.Decimal `json:"total_return"`
	InvestedCashflow decimal.Decimal `json:"invested_cashflow"`
}

type RebuildTaxLotsRequest struct {
	PortfolioID string `json:"portfolio_id"`
	AssetID     string `json:"asset_id"`
}

type TaxLot struct {
	ID                 string           `json:"id"`
	AccountID          string           `json:"account_id"`
	LotDate            string           `json:"lot_date"`
	OriginalShares     decimal.Decimal  `json:"original_shares"`
	RemainingShares    decimal.Decimal  `json:"remaining_shares"`
	CostPerShare       decimal.Decimal  `json:"cost_per_share"`
	TotalCost          decimal.Decimal  `json:"total_cost"`
	AssetCurrency      string           `json:"asset_currency"`
	SettlementCurrency string           `json:"settlement_currency"`
	FXRate             *decimal.Decimal `json:"fx_rate,omitempty"`
	Source             string           `json:"source"`
	SourceID           string           `json:"source_id"`
}

type RebuildTaxLotsResponse struct {
	Lots []TaxLot `json:"lots"`
}

type ProcessCorporateActionRequest struct {
	ActionID string `json:"action_id"`
}

type ProcessCorporateActionResponse struct {
	ActionID      string   `json:"action_id"`
	Type          string   `json:"type"`
	TradesCreated int      `json:"trades_created"`
	Portfolios    []string `json:"portfolios"`
}

type MaterializeSnapshotRequest struct {
	PortfolioID string `json:"portfolio_id"`
	Date        string `json:"date"`
}

type SnapshotRow struct {
	AssetID     string          `json:"asset_id"`
	Shares      decimal.Decimal `json:"shares"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

type MaterializeSnapshotResponse struct {
	PortfolioID string        `json:"portfolio_id"`
	Date        string        `json:"date"`
	Rows        []SnapshotRow `json:"rows"`
}
