package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/holdings"
	"github.com/simaogato/portfolio-engine/internal/usecase/pnl"
)

// Requests

type tradeRequest struct {
	PortfolioID        uuid.UUID        `json:"portfolio_id"`
	AccountID          uuid.UUID        `json:"account_id"`
	AssetID            uuid.UUID        `json:"asset_id"`
	Date               string           `json:"date"`
	Side               string           `json:"side"`
	Quantity           decimal.Decimal  `json:"quantity"`
	Price              decimal.Decimal  `json:"price"`
	Fee                decimal.Decimal  `json:"fee"`
	Tax                decimal.Decimal  `json:"tax"`
	Currency           string           `json:"currency"`
	AssetCurrency      string           `json:"asset_currency"`
	SettlementCurrency string           `json:"settlement_currency"`
	FXRate             *decimal.Decimal `json:"fx_rate"`
	Note               string           `json:"note"`
	Tags               []string         `json:"tags"`
}

type cashRequest struct {
	PortfolioID    uuid.UUID        `json:"portfolio_id"`
	AccountID      uuid.UUID        `json:"account_id"`
	AssetID        *uuid.UUID       `json:"asset_id"`
	Date           string           `json:"date"`
	Type           string           `json:"type"`
	Amount         decimal.Decimal  `json:"amount"`
	WithholdingTax decimal.Decimal  `json:"withholding_tax"`
	Shares         *decimal.Decimal `json:"shares"`
	Note           string           `json:"note"`
}

type actionRequest struct {
	AssetID     uuid.UUID `json:"asset_id"`
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Numerator   int64     `json:"numerator"`
	Denominator int64     `json:"denominator"`
}

type snapshotRequest struct {
	PortfolioID uuid.UUID `json:"portfolio_id"`
	Date        string    `json:"date"`
	// From and To materialize every date in the range instead of Date
	From string `json:"from"`
	To   string `json:"to"`
}

type rebuildLotsRequest struct {
	PortfolioID uuid.UUID `json:"portfolio_id"`
	AssetID     uuid.UUID `json:"asset_id"`
}

type portfolioRequest struct {
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`
	CostMethod   string `json:"cost_method"`
}

type accountRequest struct {
	PortfolioID uuid.UUID `json:"portfolio_id"`
	Name        string    `json:"name"`
	Currency    string    `json:"currency"`
}

type assetRequest struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	AssetType string `json:"asset_type"`
	Exchange  string `json:"exchange"`
	Currency  string `json:"currency"`
}

type priceRequest struct {
	AssetID uuid.UUID       `json:"asset_id"`
	Date    string          `json:"date"`
	Close   decimal.Decimal `json:"close"`
}

type fxRateRequest struct {
	Date string          `json:"date"`
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// Responses

type tradeResponse struct {
	ID                 uuid.UUID        `json:"id"`
	PortfolioID        uuid.UUID        `json:"portfolio_id"`
	AccountID          uuid.UUID        `json:"account_id"`
	AssetID            uuid.UUID        `json:"asset_id"`
	Date               string           `json:"date"`
	Side               string           `json:"side"`
	Quantity           decimal.Decimal  `json:"quantity"`
	Price              decimal.Decimal  `json:"price"`
	Fee                decimal.Decimal  `json:"fee"`
	Tax                decimal.Decimal  `json:"tax"`
	Currency           string           `json:"currency"`
	AssetCurrency      string           `json:"asset_currency"`
	SettlementCurrency string           `json:"settlement_currency"`
	FXRate             *decimal.Decimal `json:"fx_rate,omitempty"`
	Note               string           `json:"note,omitempty"`
	Tags               []string         `json:"tags,omitempty"`
}

func toTradeResponse(t *domain.Trade) tradeResponse {
	return tradeResponse{
		ID:                 t.ID,
		PortfolioID:        t.PortfolioID,
		AccountID:          t.AccountID,
		AssetID:            t.AssetID,
		Date:               formatDate(t.Date),
		Side:               string(t.Side),
		Quantity:           t.Quantity,
		Price:              t.Price,
		Fee:                t.Fee,
		Tax:                t.Tax,
		Currency:           t.Currency,
		AssetCurrency:      t.AssetCurrency,
		SettlementCurrency: t.SettlementCurrency,
		FXRate:             t.FXRate,
		Note:               t.Note,
		Tags:               t.Tags,
	}
}

type cashResponse struct {
	ID             uuid.UUID        `json:"id"`
	PortfolioID    uuid.UUID        `json:"portfolio_id"`
	AccountID      uuid.UUID        `json:"account_id"`
	AssetID        *uuid.UUID       `json:"asset_id,omitempty"`
	Date           string           `json:"date"`
	Type           string           `json:"type"`
	Amount         decimal.Decimal  `json:"amount"`
	WithholdingTax decimal.Decimal  `json:"withholding_tax"`
	Shares         *decimal.Decimal `json:"shares,omitempty"`
	TradeID        *uuid.UUID       `json:"trade_id,omitempty"`
	Note           string           `json:"note,omitempty"`
}

func toCashResponse(c *domain.CashTransaction) cashResponse {
	return cashResponse{
		ID:             c.ID,
		PortfolioID:    c.PortfolioID,
		AccountID:      c.AccountID,
		AssetID:        c.AssetID,
		Date:           formatDate(c.Date),
		Type:           string(c.Type),
		Amount:         c.Amount,
		WithholdingTax: c.WithholdingTax,
		Shares:         c.Shares,
		TradeID:        c.TradeID,
		Note:           c.Note,
	}
}

type actionResponse struct {
	ID          uuid.UUID  `json:"id"`
	AssetID     uuid.UUID  `json:"asset_id"`
	Date        string     `json:"date"`
	Type        string     `json:"type"`
	Numerator   int64      `json:"numerator"`
	Denominator int64      `json:"denominator"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func toActionResponse(a *domain.CorporateAction) actionResponse {
	return actionResponse{
		ID:          a.ID,
		AssetID:     a.AssetID,
		Date:        formatDate(a.Date),
		Type:        string(a.Type),
		Numerator:   a.Numerator,
		Denominator: a.Denominator,
		ProcessedAt: a.ProcessedAt,
	}
}

type processResponse struct {
	ActionID      uuid.UUID   `json:"action_id"`
	Type          string      `json:"type"`
	TradesCreated int         `json:"trades_created"`
	Portfolios    []uuid.UUID `json:"portfolios"`
}

type snapshotRowResponse struct {
	AssetID     uuid.UUID       `json:"asset_id"`
	Shares      decimal.Decimal `json:"shares"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

type taxLotResponse struct {
	ID                 uuid.UUID        `json:"id"`
	AccountID          uuid.UUID        `json:"account_id"`
	AssetID            uuid.UUID        `json:"asset_id"`
	LotDate            string           `json:"lot_date"`
	OriginalShares     decimal.Decimal  `json:"original_shares"`
	RemainingShares    decimal.Decimal  `json:"remaining_shares"`
	CostPerShare       decimal.Decimal  `json:"cost_per_share"`
	TotalCost          decimal.Decimal  `json:"total_cost"`
	AssetCurrency      string           `json:"asset_currency"`
	SettlementCurrency string           `json:"settlement_currency"`
	FXRate             *decimal.Decimal `json:"fx_rate,omitempty"`
	Source             string           `json:"source"`
	SourceID           uuid.UUID        `json:"source_id"`
}

func toTaxLotResponses(lots []*domain.TaxLot) []taxLotResponse {
	out := make([]taxLotResponse, 0, len(lots))
	for _, l := range lots {
		out = append(out, taxLotResponse{
			ID:                 l.ID,
			AccountID:          l.AccountID,
			AssetID:            l.AssetID,
			LotDate:            formatDate(l.LotDate),
			OriginalShares:     l.OriginalShares,
			RemainingShares:    l.RemainingShares,
			CostPerShare:       l.CostPerShare,
			TotalCost:          l.TotalCost,
			AssetCurrency:      l.AssetCurrency,
			SettlementCurrency: l.SettlementCurrency,
			FXRate:             l.FXRate,
			Source:             string(l.Source),
			SourceID:           l.SourceID,
		})
	}
	return out
}

type positionResponse struct {
	AssetID           uuid.UUID        `json:"asset_id"`
	Symbol            string           `json:"symbol"`
	Name              string           `json:"name"`
	Currency          string           `json:"currency"`
	Shares            decimal.Decimal  `json:"shares"`
	AvgCost           decimal.Decimal  `json:"avg_cost"`
	CostBasis         decimal.Decimal  `json:"cost_basis"`
	RealizedPnL       decimal.Decimal  `json:"realized_pnl"`
	LastPrice         *decimal.Decimal `json:"last_price"`
	MarketValue       *decimal.Decimal `json:"market_value"`
	UnrealizedPnL     *decimal.Decimal `json:"unrealized_pnl"`
	BaseCurrency      string           `json:"base_currency,omitempty"`
	FXRate            *decimal.Decimal `json:"fx_rate,omitempty"`
	MarketValueBase   *decimal.Decimal `json:"market_value_base,omitempty"`
	CostBasisBase     *decimal.Decimal `json:"cost_basis_base,omitempty"`
	UnrealizedPnLBase *decimal.Decimal `json:"unrealized_pnl_base,omitempty"`
}

func toPositionResponses(views []holdings.PositionView) []positionResponse {
	out := make([]positionResponse, 0, len(views))
	for _, v := range views {
		out = append(out, positionResponse{
			AssetID:           v.AssetID,
			Symbol:            v.Symbol,
			Name:              v.Name,
			Currency:          v.Currency,
			Shares:            v.Shares,
			AvgCost:           v.AvgCost,
			CostBasis:         v.CostBasis,
			RealizedPnL:       v.RealizedPnL,
			LastPrice:         v.LastPrice,
			MarketValue:       v.MarketValue,
			UnrealizedPnL:     v.UnrealizedPnL,
			BaseCurrency:      v.BaseCurrency,
			FXRate:            v.FXRate,
			MarketValueBase:   v.MarketValueBase,
			CostBasisBase:     v.CostBasisBase,
			UnrealizedPnLBase: v.UnrealizedPnLBase,
		})
	}
	return out
}

type pnlResponse struct {
	PortfolioID      uuid.UUID       `json:"portfolio_id"`
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

func toPnlResponse(s *pnl.Summary) pnlResponse {
	return pnlResponse{
		PortfolioID:      s.PortfolioID,
		From:             formatDate(s.From),
		To:               formatDate(s.To),
		AsOf:             formatDate(s.AsOf),
		RealizedPnL:      s.RealizedPnL,
		UnrealizedPnL:    s.UnrealizedPnL,
		IncomeDividend:   s.IncomeDividend,
		IncomeReward:     s.IncomeReward,
		IncomeOther:      s.IncomeOther,
		IncomeTotal:      s.IncomeTotal,
		PriceReturn:      s.PriceReturn,
		TotalReturn:      s.TotalReturn,
		InvestedCashflow: s.InvestedCashflow,
	}
}

type priceResponse struct {
	AssetID  uuid.UUID       `json:"asset_id"`
	Date     string          `json:"date"`
	Close    decimal.Decimal `json:"close"`
	Currency string          `json:"currency"`
}

type fxRateResponse struct {
	Date string          `json:"date"`
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}
