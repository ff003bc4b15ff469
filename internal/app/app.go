// Package app wires repositories into the use-case services.
package app

import (
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/cashflow"
	"github.com/simaogato/portfolio-engine/internal/usecase/cashledger"
	"github.com/simaogato/portfolio-engine/internal/usecase/corporateaction"
	"github.com/simaogato/portfolio-engine/internal/usecase/fx"
	"github.com/simaogato/portfolio-engine/internal/usecase/holdings"
	"github.com/simaogato/portfolio-engine/internal/usecase/pnl"
	"github.com/simaogato/portfolio-engine/internal/usecase/position"
	"github.com/simaogato/portfolio-engine/internal/usecase/refdata"
	"github.com/simaogato/portfolio-engine/internal/usecase/report"
	"github.com/simaogato/portfolio-engine/internal/usecase/snapshot"
	"github.com/simaogato/portfolio-engine/internal/usecase/taxlot"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
	"github.com/simaogato/portfolio-engine/internal/usecase/trade"
)

// Options tunes the service graph
type Options struct {
	// UseSnapshots lets position reads resume from the latest snapshot
	UseSnapshots bool

	// Cache backs the report façade; nil disables caching
	Cache domain.ReportCache
}

// App holds every service of the engine
type App struct {
	Repos domain.Repositories

	Trades    *trade.TradeService
	Cash      *cashflow.CashflowService
	Actions   *corporateaction.CorporateActionService
	Snapshots *snapshot.SnapshotService
	TaxLots   *taxlot.TaxLotService
	RefData   *refdata.RefDataService
	Holdings  *holdings.HoldingsService
	PnL       *pnl.PnLService
	Reports   *report.ReportService
}

// New builds the service graph. The report service is the cache invalidator
// every writing service notifies.
func New(repos domain.Repositories, opts Options) *App {
	// 1. Shared read-side building blocks
	loader := timeline.NewLoader(repos.Trades, repos.CashTransactions, repos.CorporateActions)
	replayer := position.NewReplayer(loader)
	resolver := fx.NewResolver(repos.FXRates)
	ledger := cashledger.NewLedger(repos.CashTransactions)

	// 2. Derived data
	taxLots := taxlot.NewTaxLotService(loader, repos.TaxLots, repos.Tx)
	snapshots := snapshot.NewSnapshotService(replayer, repos.Snapshots, repos.Portfolios, repos.Tx)

	// 3. Reports
	holdingsService := holdings.NewHoldingsService(repos, replayer, snapshots, resolver, opts.UseSnapshots)
	pnlService := pnl.NewPnLService(repos, replayer)
	reports := report.NewReportService(holdingsService, pnlService, opts.Cache)

	// 4. Writers
	return &App{
		Repos:     repos,
		Trades:    trade.NewTradeService(repos, ledger, resolver, replayer, taxLots, reports),
		Cash:      cashflow.NewCashflowService(repos, taxLots, reports),
		Actions:   corporateaction.NewCorporateActionService(repos, ledger, taxLots, reports),
		Snapshots: snapshots,
		TaxLots:   taxLots,
		RefData:   refdata.NewRefDataService(repos, reports),
		Holdings:  holdingsService,
		PnL:       pnlService,
		Reports:   reports,
	}
}
