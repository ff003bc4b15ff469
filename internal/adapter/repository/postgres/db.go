package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver
	"github.com/simaogato/portfolio-engine/internal/domain"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=portfolio sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// querier is the subset of *sql.DB and *sql.Tx the repositories use
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// WithinTx runs fn inside one database transaction carried in the context.
// Nested calls join the outer transaction; only the outermost call commits.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// conn returns the transaction in ctx, or the pool when there is none
func (db *DB) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.DB
}

// PostgreSQL error codes mapped to domain kinds
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// mapError translates driver errors into domain kinds, keeping the original message
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w: %s", what, domain.ErrConflict, pqErr.Detail)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: referenced row missing: %w", what, domain.ErrNotFound)
		case pqCheckViolation:
			return fmt.Errorf("%s: %w: %s", what, domain.ErrInvalidInput, pqErr.Constraint)
		}
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

// expectRow turns a zero-row UPDATE or DELETE into ErrNotFound
func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

// Repositories returns every repository backed by this database
func (db *DB) Repositories() domain.Repositories {
	return domain.Repositories{
		Portfolios:       NewPortfolioRepository(db),
		Accounts:         NewAccountRepository(db),
		Assets:           NewAssetRepository(db),
		Trades:           NewTradeRepository(db),
		CashTransactions: NewCashTransactionRepository(db),
		CorporateActions: NewCorporateActionRepository(db),
		Prices:           NewPriceRepository(db),
		FXRates:          NewFXRateRepository(db),
		Snapshots:        NewSnapshotRepository(db),
		TaxLots:          NewTaxLotRepository(db),
		Tx:               db,
	}
}
