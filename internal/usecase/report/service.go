// Package report serves position and PnL reports through a derived-result cache.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/logger"
	"github.com/simaogato/portfolio-engine/internal/usecase/holdings"
	"github.com/simaogato/portfolio-engine/internal/usecase/pnl"
)

// ReportService caches holdings and PnL reads. It is also the
// domain.CacheInvalidator that ledger mutations call after commit.
type ReportService struct {
	Holdings *holdings.HoldingsService
	PnL      *pnl.PnLService
	Cache    domain.ReportCache
}

// NewReportService creates a new ReportService instance. A nil cache disables caching.
func NewReportService(holdingsService *holdings.HoldingsService, pnlService *pnl.PnLService, cache domain.ReportCache) *ReportService {
	return &ReportService{
		Holdings: holdingsService,
		PnL:      pnlService,
		Cache:    cache,
	}
}

func portfolioPrefix(portfolioID uuid.UUID) string {
	return fmt.Sprintf("portfolio:%s:", portfolioID)
}

func positionsKey(portfolioID uuid.UUID, asOf time.Time, inBase bool) string {
	return fmt.Sprintf("%spositions:%s:%t", portfolioPrefix(portfolioID), asOf.Format(domain.DateLayout), inBase)
}

func pnlKey(portfolioID uuid.UUID, from, to, asOf time.Time) string {
	return fmt.Sprintf("%spnl:%s:%s:%s", portfolioPrefix(portfolioID),
		from.Format(domain.DateLayout), to.Format(domain.DateLayout), asOf.Format(domain.DateLayout))
}

// Positions returns the valued positions of a portfolio as of a date
func (s *ReportService) Positions(ctx context.Context, portfolioID uuid.UUID, asOf time.Time, inBaseCurrency bool) ([]holdings.PositionView, error) {
	asOf = domain.DateOf(asOf)
	key := positionsKey(portfolioID, asOf, inBaseCurrency)
	if views, ok := cached[[]holdings.PositionView](s.Cache, key); ok {
		logger.FromContext(ctx).Debug("Report cache hit", "key", key)
		return slices.Clone(views), nil
	}

	views, err := s.Holdings.GetPositions(ctx, portfolioID, asOf, inBaseCurrency)
	if err != nil {
		return nil, err
	}
	s.store(key, slices.Clone(views))
	return views, nil
}

// PnlSummary returns the PnL summary of a portfolio for a window
func (s *ReportService) PnlSummary(ctx context.Context, portfolioID uuid.UUID, from, to, asOf time.Time) (*pnl.Summary, error) {
	from, to, asOf = domain.DateOf(from), domain.DateOf(to), domain.DateOf(asOf)
	key := pnlKey(portfolioID, from, to, asOf)
	if summary, ok := cached[pnl.Summary](s.Cache, key); ok {
		logger.FromContext(ctx).Debug("Report cache hit", "key", key)
		return &summary, nil
	}

	summary, err := s.PnL.ComputePnlSummary(ctx, portfolioID, from, to, asOf)
	if err != nil {
		return nil, err
	}
	s.store(key, *summary)
	return summary, nil
}

// InvalidatePortfolio drops every cached report of one portfolio
func (s *ReportService) InvalidatePortfolio(portfolioID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	s.Cache.DeletePrefix(portfolioPrefix(portfolioID))
	slog.Debug("Report cache invalidated", "portfolio_id", portfolioID)
}

// InvalidateAll drops every cached report
func (s *ReportService) InvalidateAll() {
	if s.Cache == nil {
		return
	}
	s.Cache.Flush()
	slog.Debug("Report cache flushed")
}

func (s *ReportService) store(key string, value any) {
	if s.Cache != nil {
		s.Cache.Set(key, value)
	}
}

func cached[T any](cache domain.ReportCache, key string) (T, bool) {
	var zero T
	if cache == nil {
		return zero, false
	}
	v, ok := cache.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}
