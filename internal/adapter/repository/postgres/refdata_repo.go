package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

// portfolioRepository implements domain.PortfolioRepository
type portfolioRepository struct {
	db *DB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *DB) domain.PortfolioRepository {
	return &portfolioRepository{db: db}
}

const portfolioColumns = `id, name, base_currency, cost_method`

func scanPortfolio(row scanner) (*domain.Portfolio, error) {
	var p domain.Portfolio
	if err := row.Scan(&p.ID, &p.Name, &p.BaseCurrency, &p.CostMethod); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a portfolio by its ID
func (r *portfolioRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE id = $1`
	p, err := scanPortfolio(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get portfolio "+id.String())
	}
	return p, nil
}

// Create creates a new portfolio
func (r *portfolioRepository) Create(ctx context.Context, p *domain.Portfolio) error {
	query := `
		INSERT INTO portfolios (id, name, base_currency, cost_method)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query, p.ID, p.Name, p.BaseCurrency, string(p.CostMethod))
	return mapError(err, "create portfolio")
}

// List returns every portfolio ordered by name
func (r *portfolioRepository) List(ctx context.Context) ([]*domain.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios ORDER BY name, id`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err, "list portfolios")
	}
	defer rows.Close()

	var out []*domain.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, portfolio_id, name, currency`

func scanAccount(row scanner) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.PortfolioID, &a.Name, &a.Currency); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	a, err := scanAccount(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get account "+id.String())
	}
	return a, nil
}

// Create creates a new account
func (r *accountRepository) Create(ctx context.Context, a *domain.Account) error {
	query := `
		INSERT INTO accounts (id, portfolio_id, name, currency)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query, a.ID, a.PortfolioID, a.Name, a.Currency)
	return mapError(err, "create account")
}

// ListByPortfolio returns the accounts of one portfolio
func (r *accountRepository) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE portfolio_id = $1 ORDER BY id`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, mapError(err, "list accounts")
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// assetRepository implements domain.AssetRepository
type assetRepository struct {
	db *DB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *DB) domain.AssetRepository {
	return &assetRepository{db: db}
}

const assetColumns = `id, symbol, name, asset_type, exchange, currency`

func scanAsset(row scanner) (*domain.Asset, error) {
	var a domain.Asset
	if err := row.Scan(&a.ID, &a.Symbol, &a.Name, &a.AssetType, &a.Exchange, &a.Currency); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves an asset by its ID
func (r *assetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	a, err := scanAsset(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get asset "+id.String())
	}
	return a, nil
}

// Create creates a new asset; (upper(symbol), exchange) is unique
func (r *assetRepository) Create(ctx context.Context, a *domain.Asset) error {
	query := `
		INSERT INTO assets (id, symbol, name, asset_type, exchange, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query, a.ID, a.Symbol, a.Name, string(a.AssetType), a.Exchange, a.Currency)
	return mapError(err, "create asset "+a.Symbol)
}

// List returns every asset ordered by symbol
func (r *assetRepository) List(ctx context.Context) ([]*domain.Asset, error) {
	return r.list(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY symbol, exchange`)
}

// ListByIDs retrieves the assets with the given IDs
func (r *assetRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Asset, error) {
	out := make(map[uuid.UUID]*domain.Asset, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	assets, err := r.list(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ANY($1::uuid[])`, uuidArray(ids))
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		out[a.ID] = a
	}
	return out, nil
}

func (r *assetRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Asset, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list assets")
	}
	defer rows.Close()

	var out []*domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// priceRepository implements domain.PriceRepository
type priceRepository struct {
	db *DB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *DB) domain.PriceRepository {
	return &priceRepository{db: db}
}

func scanPrice(row scanner) (*domain.Price, error) {
	var p domain.Price
	if err := row.Scan(&p.ID, &p.AssetID, &p.Date, &p.Close, &p.Currency); err != nil {
		return nil, err
	}
	p.Date = domain.DateOf(p.Date)
	return &p, nil
}

// LatestOnOrBefore returns the most recent close on or before date
func (r *priceRepository) LatestOnOrBefore(ctx context.Context, assetID uuid.UUID, date time.Time) (*domain.Price, error) {
	query := `
		SELECT id, asset_id, price_date, close, currency
		FROM prices
		WHERE asset_id = $1 AND price_date <= $2
		ORDER BY price_date DESC
		LIMIT 1
	`
	p, err := scanPrice(r.db.conn(ctx).QueryRowContext(ctx, query, assetID, date))
	if err != nil {
		return nil, mapError(err, "get price for asset "+assetID.String())
	}
	return p, nil
}

// LatestForAssets returns the most recent close on or before date for each asset
func (r *priceRepository) LatestForAssets(ctx context.Context, assetIDs []uuid.UUID, date time.Time) (map[uuid.UUID]*domain.Price, error) {
	out := make(map[uuid.UUID]*domain.Price, len(assetIDs))
	if len(assetIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT DISTINCT ON (asset_id) id, asset_id, price_date, close, currency
		FROM prices
		WHERE asset_id = ANY($1::uuid[]) AND price_date <= $2
		ORDER BY asset_id, price_date DESC
	`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, uuidArray(assetIDs), date)
	if err != nil {
		return nil, mapError(err, "list latest prices")
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		out[p.AssetID] = p
	}
	return out, rows.Err()
}

// Upsert inserts or replaces the close for (asset, date)
func (r *priceRepository) Upsert(ctx context.Context, p *domain.Price) error {
	query := `
		INSERT INTO prices (id, asset_id, price_date, close, currency)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset_id, price_date)
		DO UPDATE SET close = EXCLUDED.close, currency = EXCLUDED.currency
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query, p.ID, p.AssetID, p.Date, p.Close, p.Currency)
	return mapError(err, "upsert price")
}

// fxRateRepository implements domain.FXRateRepository
type fxRateRepository struct {
	db *DB
}

// NewFXRateRepository creates a new fx rate repository
func NewFXRateRepository(db *DB) domain.FXRateRepository {
	return &fxRateRepository{db: db}
}

// LatestOnOrBefore returns the most recent rate of a pair on or before date
func (r *fxRateRepository) LatestOnOrBefore(ctx context.Context, from, to string, date time.Time) (*domain.FXRate, error) {
	query := `
		SELECT id, rate_date, from_currency, to_currency, rate
		FROM fx_rates
		WHERE from_currency = $1 AND to_currency = $2 AND rate_date <= $3
		ORDER BY rate_date DESC, id DESC
		LIMIT 1
	`
	var fx domain.FXRate
	err := r.db.conn(ctx).QueryRowContext(ctx, query, from, to, date).Scan(
		&fx.ID, &fx.Date, &fx.FromCurrency, &fx.ToCurrency, &fx.Rate,
	)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("get fx rate %s/%s", from, to))
	}
	fx.Date = domain.DateOf(fx.Date)
	return &fx, nil
}

// Upsert inserts or replaces the rate for (date, from, to)
func (r *fxRateRepository) Upsert(ctx context.Context, fx *domain.FXRate) error {
	query := `
		INSERT INTO fx_rates (id, rate_date, from_currency, to_currency, rate)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (rate_date, from_currency, to_currency)
		DO UPDATE SET rate = EXCLUDED.rate
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query, fx.ID, fx.Date, fx.FromCurrency, fx.ToCurrency, fx.Rate)
	return mapError(err, "upsert fx rate")
}
