package http

import (
	"net/http"

	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/cashflow"
	"github.com/simaogato/portfolio-engine/internal/usecase/corporateaction"
	"github.com/simaogato/portfolio-engine/internal/usecase/trade"
)

func (req tradeRequest) toInput() (trade.TradeInput, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return trade.TradeInput{}, err
	}
	return trade.TradeInput{
		PortfolioID:        req.PortfolioID,
		AccountID:          req.AccountID,
		AssetID:            req.AssetID,
		Date:               date,
		Side:               domain.TradeSide(req.Side),
		Quantity:           req.Quantity,
		Price:              req.Price,
		Fee:                req.Fee,
		Tax:                req.Tax,
		Currency:           req.Currency,
		AssetCurrency:      req.AssetCurrency,
		SettlementCurrency: req.SettlementCurrency,
		FXRate:             req.FXRate,
		Note:               req.Note,
		Tags:               req.Tags,
	}, nil
}

func (h *Handler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	portfolioID, err := parseOptionalID("portfolio_id", q.Get("portfolio_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	accountID, err := parseOptionalID("account_id", q.Get("account_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	assetID, err := parseOptionalID("asset_id", q.Get("asset_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	dates, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	trades, err := h.Trades.List(r.Context(), domain.TradeQuery{
		PortfolioID: portfolioID,
		AccountID:   accountID,
		AssetID:     assetID,
		Dates:       dates,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, toTradeResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGetTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.Trades.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeResponse(t))
}

func (h *Handler) HandleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.Trades.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTradeResponse(t))
}

func (h *Handler) HandleUpdateTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req tradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.Trades.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeResponse(t))
}

func (h *Handler) HandleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Trades.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req cashRequest) toInput() (cashflow.CashInput, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return cashflow.CashInput{}, err
	}
	return cashflow.CashInput{
		PortfolioID:    req.PortfolioID,
		AccountID:      req.AccountID,
		AssetID:        req.AssetID,
		Date:           date,
		Type:           domain.CashTxnType(req.Type),
		Amount:         req.Amount,
		WithholdingTax: req.WithholdingTax,
		Shares:         req.Shares,
		Note:           req.Note,
	}, nil
}

func (h *Handler) HandleListCash(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	portfolioID, err := parseOptionalID("portfolio_id", q.Get("portfolio_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	accountID, err := parseOptionalID("account_id", q.Get("account_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	dates, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var types []domain.CashTxnType
	for _, t := range q["type"] {
		types = append(types, domain.CashTxnType(t))
	}

	rows, err := h.Cash.List(r.Context(), domain.CashQuery{
		PortfolioID: portfolioID,
		AccountID:   accountID,
		Types:       types,
		Dates:       dates,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]cashResponse, 0, len(rows))
	for _, c := range rows {
		out = append(out, toCashResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGetCash(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Cash.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCashResponse(c))
}

func (h *Handler) HandleCreateCash(w http.ResponseWriter, r *http.Request) {
	var req cashRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Cash.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCashResponse(c))
}

func (h *Handler) HandleUpdateCash(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req cashRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Cash.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCashResponse(c))
}

func (h *Handler) HandleDeleteCash(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Cash.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req actionRequest) toInput() (corporateaction.ActionInput, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return corporateaction.ActionInput{}, err
	}
	return corporateaction.ActionInput{
		AssetID:     req.AssetID,
		Date:        date,
		Type:        domain.CorporateActionType(req.Type),
		Numerator:   req.Numerator,
		Denominator: req.Denominator,
	}, nil
}

func (h *Handler) HandleListActions(w http.ResponseWriter, r *http.Request) {
	assetID, err := parseOptionalID("asset_id", r.URL.Query().Get("asset_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	actions, err := h.Actions.List(r.Context(), assetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]actionResponse, 0, len(actions))
	for _, a := range actions {
		out = append(out, toActionResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGetAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Actions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActionResponse(a))
}

func (h *Handler) HandleCreateAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Actions.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActionResponse(a))
}

func (h *Handler) HandleUpdateAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req actionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Actions.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActionResponse(a))
}

func (h *Handler) HandleDeleteAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Actions.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toProcessResponse(res *corporateaction.ProcessResult) processResponse {
	return processResponse{
		ActionID:      res.ActionID,
		Type:          string(res.Type),
		TradesCreated: res.TradesCreated,
		Portfolios:    res.Portfolios,
	}
}

func (h *Handler) HandleProcessAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Actions.Process(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessResponse(res))
}

// HandleProcessPending applies every pending action dated on or before as_of (default today)
func (h *Handler) HandleProcessPending(w http.ResponseWriter, r *http.Request) {
	asOf := h.today()
	if v := r.URL.Query().Get("as_of"); v != "" {
		d, err := parseDate("as_of", v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		asOf = d
	}
	results, err := h.Actions.ProcessPending(r.Context(), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]processResponse, 0, len(results))
	for _, res := range results {
		out = append(out, toProcessResponse(res))
	}
	writeJSON(w, http.StatusOK, out)
}
