// Package refdata manages portfolios, accounts, assets and market data.
package refdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/logger"
	"github.com/simaogato/portfolio-engine/internal/sanitize"
)

// RefDataService handles reference and market data
type RefDataService struct {
	PortfolioRepo domain.PortfolioRepository
	AccountRepo   domain.AccountRepository
	AssetRepo     domain.AssetRepository
	PriceRepo     domain.PriceRepository
	FXRateRepo    domain.FXRateRepository
	Cache         domain.CacheInvalidator
}

// NewRefDataService creates a new RefDataService instance
func NewRefDataService(repos domain.Repositories, cache domain.CacheInvalidator) *RefDataService {
	return &RefDataService{
		PortfolioRepo: repos.Portfolios,
		AccountRepo:   repos.Accounts,
		AssetRepo:     repos.Assets,
		PriceRepo:     repos.Prices,
		FXRateRepo:    repos.FXRates,
		Cache:         cache,
	}
}

// CreatePortfolio registers a portfolio. An empty cost method defaults to AVG.
func (s *RefDataService) CreatePortfolio(ctx context.Context, name, baseCurrency string, method domain.CostMethod) (*domain.Portfolio, error) {
	if method == "" {
		method = domain.CostMethodAverage
	}
	p := &domain.Portfolio{
		ID:           domain.NewID(),
		Name:         sanitize.Text(name),
		BaseCurrency: code(baseCurrency),
		CostMethod:   domain.CostMethod(strings.ToUpper(string(method))),
	}
	if err := p.Validate(); err != nil {
		return nil, domain.AsInvalidInput(err)
	}
	if err := s.PortfolioRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	logger.FromContext(ctx).Info("Portfolio created", "portfolio_id", p.ID, "base_currency", p.BaseCurrency)
	return p, nil
}

// GetPortfolio returns one portfolio
func (s *RefDataService) GetPortfolio(ctx context.Context, id uuid.UUID) (*domain.Portfolio, error) {
	return s.PortfolioRepo.GetByID(ctx, id)
}

// ListPortfolios returns every portfolio
func (s *RefDataService) ListPortfolios(ctx context.Context) ([]*domain.Portfolio, error) {
	return s.PortfolioRepo.List(ctx)
}

// CreateAccount registers an account inside an existing portfolio
func (s *RefDataService) CreateAccount(ctx context.Context, portfolioID uuid.UUID, name, currency string) (*domain.Account, error) {
	a := &domain.Account{
		ID:          domain.NewID(),
		PortfolioID: portfolioID,
		Name:        sanitize.Text(name),
		Currency:    code(currency),
	}
	if err := a.Validate(); err != nil {
		return nil, domain.AsInvalidInput(err)
	}
	if _, err := s.PortfolioRepo.GetByID(ctx, portfolioID); err != nil {
		return nil, err
	}
	if err := s.AccountRepo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	logger.FromContext(ctx).Info("Account created", "account_id", a.ID, "portfolio_id", portfolioID, "currency", a.Currency)
	return a, nil
}

// GetAccount returns one account
func (s *RefDataService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.AccountRepo.GetByID(ctx, id)
}

// ListAccounts returns the accounts of a portfolio
func (s *RefDataService) ListAccounts(ctx context.Context, portfolioID uuid.UUID) ([]*domain.Account, error) {
	return s.AccountRepo.ListByPortfolio(ctx, portfolioID)
}

// AssetInput carries the caller-supplied fields of an asset
type AssetInput struct {
	Symbol    string
	Name      string
	AssetType domain.AssetType
	Exchange  string
	Currency  string
}

// CreateAsset registers an instrument. Symbol plus exchange is unique.
func (s *RefDataService) CreateAsset(ctx context.Context, in AssetInput) (*domain.Asset, error) {
	a := &domain.Asset{
		ID:        domain.NewID(),
		Symbol:    strings.ToUpper(sanitize.Text(in.Symbol)),
		Name:      sanitize.Text(in.Name),
		AssetType: domain.AssetType(strings.ToUpper(string(in.AssetType))),
		Exchange:  strings.ToUpper(sanitize.Text(in.Exchange)),
		Currency:  code(in.Currency),
	}
	if a.AssetType == "" {
		a.AssetType = domain.AssetTypeStock
	}
	if err := a.Validate(); err != nil {
		return nil, domain.AsInvalidInput(err)
	}
	if err := s.AssetRepo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}
	logger.FromContext(ctx).Info("Asset created", "asset_id", a.ID, "symbol", a.Symbol, "exchange", a.Exchange)
	return a, nil
}

// GetAsset returns one asset
func (s *RefDataService) GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	return s.AssetRepo.GetByID(ctx, id)
}

// ListAssets returns every asset
func (s *RefDataService) ListAssets(ctx context.Context) ([]*domain.Asset, error) {
	return s.AssetRepo.List(ctx)
}

// RecordPrice upserts the close of an asset on a date.
// It drops the whole report cache.
func (s *RefDataService) RecordPrice(ctx context.Context, assetID uuid.UUID, date time.Time, closePrice decimal.Decimal) (*domain.Price, error) {
	asset, err := s.AssetRepo.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	p := &domain.Price{
		ID:       domain.NewID(),
		AssetID:  assetID,
		Date:     domain.DateOf(date),
		Close:    closePrice,
		Currency: asset.Currency,
	}
	if err := p.Validate(); err != nil {
		return nil, domain.AsInvalidInput(err)
	}
	if err := s.PriceRepo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to record price: %w", err)
	}
	s.invalidateAll()
	return p, nil
}

// RecordFXRate upserts the rate of a currency pair on a date
func (s *RefDataService) RecordFXRate(ctx context.Context, date time.Time, from, to string, rate decimal.Decimal) (*domain.FXRate, error) {
	r := &domain.FXRate{
		ID:           domain.NewID(),
		Date:         domain.DateOf(date),
		FromCurrency: code(from),
		ToCurrency:   code(to),
		Rate:         rate,
	}
	if err := r.Validate(); err != nil {
		return nil, domain.AsInvalidInput(err)
	}
	if err := s.FXRateRepo.Upsert(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to record fx rate: %w", err)
	}
	s.invalidateAll()
	return r, nil
}

func code(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func (s *RefDataService) invalidateAll() {
	if s.Cache != nil {
		s.Cache.InvalidateAll()
	}
}
