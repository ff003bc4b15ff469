package http

import (
	"net/http"

	"github.com/simaogato/portfolio-engine/internal/domain"
)

// HandleGetPositions serves GET /reports/positions?portfolio_id=&as_of=&in_base_currency=
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	portfolioID, err := parseID("portfolio_id", q.Get("portfolio_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf := domain.DateOf(h.today())
	if v := q.Get("as_of"); v != "" {
		if asOf, err = parseDate("as_of", v); err != nil {
			writeError(w, r, err)
			return
		}
	}
	inBase, err := parseBool("in_base_currency", q.Get("in_base_currency"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	views, err := h.Reports.Positions(r.Context(), portfolioID, asOf, inBase)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionResponses(views))
}

// HandleGetPnlSummary serves GET /reports/pnl/summary?portfolio_id=&from=&to=&as_of=
// as_of defaults to to.
func (h *Handler) HandleGetPnlSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	portfolioID, err := parseID("portfolio_id", q.Get("portfolio_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := parseDate("to", q.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf := to
	if v := q.Get("as_of"); v != "" {
		if asOf, err = parseDate("as_of", v); err != nil {
			writeError(w, r, err)
			return
		}
	}

	sum, err := h.Reports.PnlSummary(r.Context(), portfolioID, from, to, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPnlResponse(sum))
}

// HandleMaterializeSnapshot writes one snapshot, or one per day when from and to are given
func (h *Handler) HandleMaterializeSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.From != "" || req.To != "" {
		from, err := parseDate("from", req.From)
		if err != nil {
			writeError(w, r, err)
			return
		}
		to, err := parseDate("to", req.To)
		if err != nil {
			writeError(w, r, err)
			return
		}
		count, err := h.Snapshots.MaterializeRange(r.Context(), req.PortfolioID, from, to)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int{"snapshots": count})
		return
	}

	date, err := parseDate("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.Snapshots.Materialize(r.Context(), req.PortfolioID, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]snapshotRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, snapshotRowResponse{
			AssetID:     row.AssetID,
			Shares:      row.Shares,
			CostBasis:   row.CostBasis,
			RealizedPnL: row.RealizedPnL,
		})
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) HandleRebuildTaxLots(w http.ResponseWriter, r *http.Request) {
	var req rebuildLotsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	lots, err := h.TaxLots.RebuildTaxLots(r.Context(), req.PortfolioID, req.AssetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaxLotResponses(lots))
}

func (h *Handler) HandleListTaxLots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	portfolioID, err := parseID("portfolio_id", q.Get("portfolio_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	assetID, err := parseID("asset_id", q.Get("asset_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	lots, err := h.TaxLots.ListTaxLots(r.Context(), portfolioID, assetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaxLotResponses(lots))
}
