package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

// tradeRepository implements domain.TradeRepository
type tradeRepository struct {
	db *DB
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *DB) domain.TradeRepository {
	return &tradeRepository{db: db}
}

const tradeColumns = `
	id, portfolio_id, account_id, asset_id, trade_date, side, quantity, price, fee, tax,
	currency, asset_currency, settlement_currency, fx_rate, note, tags`

func scanTrade(row scanner) (*domain.Trade, error) {
	var t domain.Trade
	var fxRate decimal.NullDecimal
	var tags pq.StringArray
	err := row.Scan(
		&t.ID, &t.PortfolioID, &t.AccountID, &t.AssetID, &t.Date, &t.Side,
		&t.Quantity, &t.Price, &t.Fee, &t.Tax,
		&t.Currency, &t.AssetCurrency, &t.SettlementCurrency, &fxRate, &t.Note, &tags,
	)
	if err != nil {
		return nil, err
	}
	t.Date = domain.DateOf(t.Date)
	if fxRate.Valid {
		t.FXRate = &fxRate.Decimal
	}
	if len(tags) > 0 {
		t.Tags = []string(tags)
	}
	return &t, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func tagArray(tags []string) any {
	if tags == nil {
		tags = []string{}
	}
	return pq.Array(tags)
}

// GetByID retrieves a trade by its ID
func (r *tradeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`
	t, err := scanTrade(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get trade "+id.String())
	}
	return t, nil
}

// List returns trades matching q ordered by (date, id)
func (r *tradeRepository) List(ctx context.Context, q domain.TradeQuery) ([]*domain.Trade, error) {
	var f filter
	f.id("portfolio_id", q.PortfolioID)
	f.id("account_id", q.AccountID)
	f.id("asset_id", q.AssetID)
	f.dates("trade_date", q.Dates)

	query := `SELECT ` + tradeColumns + ` FROM trades` + f.where() + ` ORDER BY trade_date, id`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, f.args...)
	if err != nil {
		return nil, mapError(err, "list trades")
	}
	defer rows.Close()

	var out []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create creates a new trade
func (r *tradeRepository) Create(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		t.ID, t.PortfolioID, t.AccountID, t.AssetID, t.Date, string(t.Side),
		t.Quantity, t.Price, t.Fee, t.Tax,
		t.Currency, t.AssetCurrency, t.SettlementCurrency, nullDecimal(t.FXRate), t.Note, tagArray(t.Tags),
	)
	return mapError(err, "create trade")
}

// Update replaces every column of an existing trade
func (r *tradeRepository) Update(ctx context.Context, t *domain.Trade) error {
	query := `
		UPDATE trades SET
			portfolio_id = $2, account_id = $3, asset_id = $4, trade_date = $5, side = $6,
			quantity = $7, price = $8, fee = $9, tax = $10,
			currency = $11, asset_currency = $12, settlement_currency = $13, fx_rate = $14,
			note = $15, tags = $16
		WHERE id = $1
	`
	res, err := r.db.conn(ctx).ExecContext(ctx, query,
		t.ID, t.PortfolioID, t.AccountID, t.AssetID, t.Date, string(t.Side),
		t.Quantity, t.Price, t.Fee, t.Tax,
		t.Currency, t.AssetCurrency, t.SettlementCurrency, nullDecimal(t.FXRate), t.Note, tagArray(t.Tags),
	)
	if err != nil {
		return mapError(err, "update trade")
	}
	return expectRow(res, "trade "+t.ID.String())
}

// Delete removes a trade
func (r *tradeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM trades WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete trade")
	}
	return expectRow(res, "trade "+id.String())
}

// cashTransactionRepository implements domain.CashTransactionRepository
type cashTransactionRepository struct {
	db *DB
}

// NewCashTransactionRepository creates a new cash transaction repository
func NewCashTransactionRepository(db *DB) domain.CashTransactionRepository {
	return &cashTransactionRepository{db: db}
}

const cashColumns = `
	id, portfolio_id, account_id, asset_id, txn_date, type, amount, withholding_tax, shares, trade_id, note`

func scanCash(row scanner) (*domain.CashTransaction, error) {
	var c domain.CashTransaction
	var assetID, tradeID uuid.NullUUID
	var shares decimal.NullDecimal
	err := row.Scan(
		&c.ID, &c.PortfolioID, &c.AccountID, &assetID, &c.Date, &c.Type,
		&c.Amount, &c.WithholdingTax, &shares, &tradeID, &c.Note,
	)
	if err != nil {
		return nil, err
	}
	c.Date = domain.DateOf(c.Date)
	if assetID.Valid {
		c.AssetID = &assetID.UUID
	}
	if tradeID.Valid {
		c.TradeID = &tradeID.UUID
	}
	if shares.Valid {
		c.Shares = &shares.Decimal
	}
	return &c, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func cashArgs(c *domain.CashTransaction) []any {
	return []any{
		c.ID, c.PortfolioID, c.AccountID, nullUUID(c.AssetID), c.Date, string(c.Type),
		c.Amount, c.WithholdingTax, nullDecimal(c.Shares), nullUUID(c.TradeID), c.Note,
	}
}

// GetByID retrieves a cash transaction by its ID
func (r *cashTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CashTransaction, error) {
	query := `SELECT ` + cashColumns + ` FROM cash_transactions WHERE id = $1`
	c, err := scanCash(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get cash transaction "+id.String())
	}
	return c, nil
}

// List returns cash transactions matching q ordered by (date, id)
func (r *cashTransactionRepository) List(ctx context.Context, q domain.CashQuery) ([]*domain.CashTransaction, error) {
	var f filter
	f.id("portfolio_id", q.PortfolioID)
	f.id("account_id", q.AccountID)
	f.id("asset_id", q.AssetID)
	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		f.add("type = ANY($%d)", pq.Array(types))
	}
	f.dates("txn_date", q.Dates)

	query := `SELECT ` + cashColumns + ` FROM cash_transactions` + f.where() + ` ORDER BY txn_date, id`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, f.args...)
	if err != nil {
		return nil, mapError(err, "list cash transactions")
	}
	defer rows.Close()

	var out []*domain.CashTransaction
	for rows.Next() {
		c, err := scanCash(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash transaction: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create creates a new cash transaction
func (r *cashTransactionRepository) Create(ctx context.Context, c *domain.CashTransaction) error {
	query := `
		INSERT INTO cash_transactions (` + cashColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query, cashArgs(c)...)
	return mapError(err, "create cash transaction")
}

// Update replaces every column of an existing cash transaction
func (r *cashTransactionRepository) Update(ctx context.Context, c *domain.CashTransaction) error {
	query := `
		UPDATE cash_transactions SET
			portfolio_id = $2, account_id = $3, asset_id = $4, txn_date = $5, type = $6,
			amount = $7, withholding_tax = $8, shares = $9, trade_id = $10, note = $11
		WHERE id = $1
	`
	res, err := r.db.conn(ctx).ExecContext(ctx, query, cashArgs(c)...)
	if err != nil {
		return mapError(err, "update cash transaction")
	}
	return expectRow(res, "cash transaction "+c.ID.String())
}

// Delete removes a cash transaction
func (r *cashTransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM cash_transactions WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete cash transaction")
	}
	return expectRow(res, "cash transaction "+id.String())
}

// DeleteByTrade removes the rows generated for a trade
func (r *cashTransactionRepository) DeleteByTrade(ctx context.Context, tradeID uuid.UUID) error {
	_, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM cash_transactions WHERE trade_id = $1`, tradeID)
	return mapError(err, "delete trade expense")
}

// SumAmount returns the signed balance of an account at the end of asOf
func (r *cashTransactionRepository) SumAmount(ctx context.Context, accountID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM cash_transactions
		WHERE account_id = $1 AND txn_date <= $2
	`
	var sum decimal.Decimal
	if err := r.db.conn(ctx).QueryRowContext(ctx, query, accountID, asOf).Scan(&sum); err != nil {
		return decimal.Zero, mapError(err, "sum cash balance")
	}
	return sum, nil
}

// corporateActionRepository implements domain.CorporateActionRepository
type corporateActionRepository struct {
	db *DB
}

// NewCorporateActionRepository creates a new corporate action repository
func NewCorporateActionRepository(db *DB) domain.CorporateActionRepository {
	return &corporateActionRepository{db: db}
}

const actionColumns = `id, asset_id, action_date, type, numerator, denominator, processed_at`

func scanAction(row scanner) (*domain.CorporateAction, error) {
	var a domain.CorporateAction
	var processedAt sql.NullTime
	if err := row.Scan(&a.ID, &a.AssetID, &a.Date, &a.Type, &a.Numerator, &a.Denominator, &processedAt); err != nil {
		return nil, err
	}
	a.Date = domain.DateOf(a.Date)
	if processedAt.Valid {
		at := processedAt.Time.UTC()
		a.ProcessedAt = &at
	}
	return &a, nil
}

// GetByID retrieves a corporate action by its ID
func (r *corporateActionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CorporateAction, error) {
	query := `SELECT ` + actionColumns + ` FROM corporate_actions WHERE id = $1`
	a, err := scanAction(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get corporate action "+id.String())
	}
	return a, nil
}

// List returns corporate actions matching q ordered by (date, id)
func (r *corporateActionRepository) List(ctx context.Context, q domain.ActionQuery) ([]*domain.CorporateAction, error) {
	var f filter
	f.id("asset_id", q.AssetID)
	f.dates("action_date", q.Dates)
	if q.PendingOnly {
		f.addRaw("processed_at IS NULL")
	}

	query := `SELECT ` + actionColumns + ` FROM corporate_actions` + f.where() + ` ORDER BY action_date, id`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, f.args...)
	if err != nil {
		return nil, mapError(err, "list corporate actions")
	}
	defer rows.Close()

	var out []*domain.CorporateAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan corporate action: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create creates a new pending corporate action
func (r *corporateActionRepository) Create(ctx context.Context, a *domain.CorporateAction) error {
	query := `
		INSERT INTO corporate_actions (id, asset_id, action_date, type, numerator, denominator)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query, a.ID, a.AssetID, a.Date, string(a.Type), a.Numerator, a.Denominator)
	return mapError(err, "create corporate action")
}

// Update edits a pending corporate action
func (r *corporateActionRepository) Update(ctx context.Context, a *domain.CorporateAction) error {
	query := `
		UPDATE corporate_actions SET asset_id = $2, action_date = $3, type = $4, numerator = $5, denominator = $6
		WHERE id = $1 AND processed_at IS NULL
	`
	res, err := r.db.conn(ctx).ExecContext(ctx, query, a.ID, a.AssetID, a.Date, string(a.Type), a.Numerator, a.Denominator)
	if err != nil {
		return mapError(err, "update corporate action")
	}
	return expectRow(res, "pending corporate action "+a.ID.String())
}

// Delete removes a corporate action
func (r *corporateActionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM corporate_actions WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete corporate action")
	}
	return expectRow(res, "corporate action "+id.String())
}

// MarkProcessed sets processed_at only while it is NULL, so exactly one caller wins
func (r *corporateActionRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE corporate_actions SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL`
	res, err := r.db.conn(ctx).ExecContext(ctx, query, id, at)
	if err != nil {
		return mapError(err, "mark corporate action processed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Zero rows: either unknown or already processed
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", domain.ErrAlreadyProcessed, id)
}
