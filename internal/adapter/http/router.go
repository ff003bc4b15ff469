// Package http exposes the portfolio engine as a JSON REST API.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/simaogato/portfolio-engine/internal/usecase/cashflow"
	"github.com/simaogato/portfolio-engine/internal/usecase/corporateaction"
	"github.com/simaogato/portfolio-engine/internal/usecase/refdata"
	"github.com/simaogato/portfolio-engine/internal/usecase/report"
	"github.com/simaogato/portfolio-engine/internal/usecase/snapshot"
	"github.com/simaogato/portfolio-engine/internal/usecase/taxlot"
	"github.com/simaogato/portfolio-engine/internal/usecase/trade"
)

// Handler serves the REST API on top of the use-case services
type Handler struct {
	Trades    *trade.TradeService
	Cash      *cashflow.CashflowService
	Actions   *corporateaction.CorporateActionService
	Snapshots *snapshot.SnapshotService
	TaxLots   *taxlot.TaxLotService
	RefData   *refdata.RefDataService
	Reports   *report.ReportService

	// Now supplies the default as-of date
	Now func() time.Time
}

// RouterConfig holds the transport settings of the API
type RouterConfig struct {
	Token     string
	RateLimit rate.Limit
	Burst     int
}

// NewRouter builds the chi router. Everything except /api/health requires the bearer token.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if h.Now == nil {
		h.Now = time.Now
	}
	limiter := rate.NewLimiter(cfg.RateLimit, cfg.Burst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(limiter))
			r.Use(BearerAuth(cfg.Token))

			r.Get("/reports/positions", h.HandleGetPositions)
			r.Get("/reports/pnl/summary", h.HandleGetPnlSummary)

			r.Route("/trades", func(r chi.Router) {
				r.Get("/", h.HandleListTrades)
				r.Post("/", h.HandleCreateTrade)
				r.Get("/{id}", h.HandleGetTrade)
				r.Put("/{id}", h.HandleUpdateTrade)
				r.Delete("/{id}", h.HandleDeleteTrade)
			})

			r.Route("/cash-transactions", func(r chi.Router) {
				r.Get("/", h.HandleListCash)
				r.Post("/", h.HandleCreateCash)
				r.Get("/{id}", h.HandleGetCash)
				r.Put("/{id}", h.HandleUpdateCash)
				r.Delete("/{id}", h.HandleDeleteCash)
			})

			r.Route("/corporate-actions", func(r chi.Router) {
				r.Get("/", h.HandleListActions)
				r.Post("/", h.HandleCreateAction)
				r.Post("/process-pending", h.HandleProcessPending)
				r.Get("/{id}", h.HandleGetAction)
				r.Put("/{id}", h.HandleUpdateAction)
				r.Delete("/{id}", h.HandleDeleteAction)
				r.Post("/{id}/process", h.HandleProcessAction)
			})

			r.Post("/snapshots", h.HandleMaterializeSnapshot)

			r.Get("/tax-lots", h.HandleListTaxLots)
			r.Post("/tax-lots/rebuild", h.HandleRebuildTaxLots)

			r.Get("/portfolios", h.HandleListPortfolios)
			r.Post("/portfolios", h.HandleCreatePortfolio)
			r.Get("/portfolios/{id}", h.HandleGetPortfolio)
			r.Get("/portfolios/{id}/accounts", h.HandleListAccounts)
			r.Post("/accounts", h.HandleCreateAccount)
			r.Get("/accounts/{id}", h.HandleGetAccount)
			r.Get("/assets", h.HandleListAssets)
			r.Post("/assets", h.HandleCreateAsset)
			r.Get("/assets/{id}", h.HandleGetAsset)
			r.Post("/prices", h.HandleRecordPrice)
			r.Post("/fx-rates", h.HandleRecordFXRate)
		})
	})
	return r
}

func (h *Handler) today() time.Time {
	return h.Now().UTC()
}
