package http

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/refdata"
)

type portfolioResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	BaseCurrency string    `json:"base_currency"`
	CostMethod   string    `json:"cost_method"`
}

func toPortfolioResponse(p *domain.Portfolio) portfolioResponse {
	return portfolioResponse{ID: p.ID, Name: p.Name, BaseCurrency: p.BaseCurrency, CostMethod: string(p.CostMethod)}
}

type accountResponse struct {
	ID          uuid.UUID `json:"id"`
	PortfolioID uuid.UUID `json:"portfolio_id"`
	Name        string    `json:"name"`
	Currency    string    `json:"currency"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{ID: a.ID, PortfolioID: a.PortfolioID, Name: a.Name, Currency: a.Currency}
}

type assetResponse struct {
	ID        uuid.UUID `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	AssetType string    `json:"asset_type"`
	Exchange  string    `json:"exchange,omitempty"`
	Currency  string    `json:"currency"`
}

func toAssetResponse(a *domain.Asset) assetResponse {
	return assetResponse{
		ID:        a.ID,
		Symbol:    a.Symbol,
		Name:      a.Name,
		AssetType: string(a.AssetType),
		Exchange:  a.Exchange,
		Currency:  a.Currency,
	}
}

func (h *Handler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.RefData.CreatePortfolio(r.Context(), req.Name, req.BaseCurrency, domain.CostMethod(req.CostMethod))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPortfolioResponse(p))
}

func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.RefData.GetPortfolio(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPortfolioResponse(p))
}

func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.RefData.ListPortfolios(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]portfolioResponse, 0, len(portfolios))
	for _, p := range portfolios {
		out = append(out, toPortfolioResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.RefData.CreateAccount(r.Context(), req.PortfolioID, req.Name, req.Currency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(a))
}

func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.RefData.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(a))
}

func (h *Handler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	accounts, err := h.RefData.ListAccounts(r.Context(), portfolioID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.RefData.CreateAsset(r.Context(), refdata.AssetInput{
		Symbol:    req.Symbol,
		Name:      req.Name,
		AssetType: domain.AssetType(req.AssetType),
		Exchange:  req.Exchange,
		Currency:  req.Currency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssetResponse(a))
}

func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.RefData.GetAsset(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssetResponse(a))
}

func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.RefData.ListAssets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleRecordPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.RefData.RecordPrice(r.Context(), req.AssetID, date, req.Close)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		AssetID:  p.AssetID,
		Date:     formatDate(p.Date),
		Close:    p.Close,
		Currency: p.Currency,
	})
}

func (h *Handler) HandleRecordFXRate(w http.ResponseWriter, r *http.Request) {
	var req fxRateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fx, err := h.RefData.RecordFXRate(r.Context(), date, req.From, req.To, req.Rate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fxRateResponse{
		Date: formatDate(fx.Date),
		From: fx.FromCurrency,
		To:   fx.ToCurrency,
		Rate: fx.Rate,
	})
}
