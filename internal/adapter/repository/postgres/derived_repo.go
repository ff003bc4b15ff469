package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

// snapshotRepository implements domain.SnapshotRepository
type snapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new position snapshot repository
func NewSnapshotRepository(db *DB) domain.SnapshotRepository {
	return &snapshotRepository{db: db}
}

// LatestDate returns the newest snapshot date on or before asOf, or nil
func (r *snapshotRepository) LatestDate(ctx context.Context, portfolioID uuid.UUID, asOf time.Time) (*time.Time, error) {
	query := `
		SELECT MAX(snapshot_date)
		FROM position_snapshots
		WHERE portfolio_id = $1 AND snapshot_date <= $2
	`
	var latest sql.NullTime
	if err := r.db.conn(ctx).QueryRowContext(ctx, query, portfolioID, asOf).Scan(&latest); err != nil {
		return nil, mapError(err, "get latest snapshot date")
	}
	if !latest.Valid {
		return nil, nil
	}
	d := domain.DateOf(latest.Time)
	return &d, nil
}

// ListByDate returns one snapshot ordered by asset ID
func (r *snapshotRepository) ListByDate(ctx context.Context, portfolioID uuid.UUID, date time.Time) ([]*domain.PositionSnapshot, error) {
	query := `
		SELECT id, portfolio_id, asset_id, snapshot_date, shares, cost_basis, realized_pnl
		FROM position_snapshots
		WHERE portfolio_id = $1 AND snapshot_date = $2
		ORDER BY asset_id
	`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, portfolioID, date)
	if err != nil {
		return nil, mapError(err, "list snapshot")
	}
	defer rows.Close()

	var out []*domain.PositionSnapshot
	for rows.Next() {
		var s domain.PositionSnapshot
		if err := rows.Scan(&s.ID, &s.PortfolioID, &s.AssetID, &s.SnapshotDate, &s.Shares, &s.CostBasis, &s.RealizedPnL); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.SnapshotDate = domain.DateOf(s.SnapshotDate)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ReplaceForDate swaps the snapshot for (portfolio, date) atomically
func (r *snapshotRepository) ReplaceForDate(ctx context.Context, portfolioID uuid.UUID, date time.Time, rows []*domain.PositionSnapshot) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		conn := r.db.conn(ctx)
		_, err := conn.ExecContext(ctx,
			`DELETE FROM position_snapshots WHERE portfolio_id = $1 AND snapshot_date = $2`,
			portfolioID, date)
		if err != nil {
			return mapError(err, "clear snapshot")
		}

		query := `
			INSERT INTO position_snapshots (id, portfolio_id, asset_id, snapshot_date, shares, cost_basis, realized_pnl)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for _, s := range rows {
			_, err := conn.ExecContext(ctx, query, s.ID, portfolioID, s.AssetID, date, s.Shares, s.CostBasis, s.RealizedPnL)
			if err != nil {
				return mapError(err, "insert snapshot row")
			}
		}
		return nil
	})
}

// ScaleShares multiplies shares on every snapshot of the asset dated before the given date
func (r *snapshotRepository) ScaleShares(ctx context.Context, assetID uuid.UUID, before time.Time, ratio decimal.Decimal) error {
	query := `
		UPDATE position_snapshots SET shares = shares * $3
		WHERE asset_id = $1 AND snapshot_date < $2
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query, assetID, before, ratio)
	return mapError(err, "scale snapshot shares")
}

// DeleteFrom removes the portfolio's snapshots dated on or after from
func (r *snapshotRepository) DeleteFrom(ctx context.Context, portfolioID uuid.UUID, from time.Time) error {
	_, err := r.db.conn(ctx).ExecContext(ctx,
		`DELETE FROM position_snapshots WHERE portfolio_id = $1 AND snapshot_date >= $2`,
		portfolioID, from)
	return mapError(err, "delete snapshots")
}

// taxLotRepository implements domain.TaxLotRepository
type taxLotRepository struct {
	db *DB
}

// NewTaxLotRepository creates a new tax lot repository
func NewTaxLotRepository(db *DB) domain.TaxLotRepository {
	return &taxLotRepository{db: db}
}

// List returns the lots of (portfolio, asset) in the order they were written
func (r *taxLotRepository) List(ctx context.Context, portfolioID, assetID uuid.UUID) ([]*domain.TaxLot, error) {
	query := `
		SELECT id, portfolio_id, account_id, asset_id, lot_date, original_shares, remaining_shares,
			cost_per_share, total_cost, asset_currency, settlement_currency, fx_rate, source, source_id
		FROM tax_lots
		WHERE portfolio_id = $1 AND asset_id = $2
		ORDER BY seq
	`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, portfolioID, assetID)
	if err != nil {
		return nil, mapError(err, "list tax lots")
	}
	defer rows.Close()

	var out []*domain.TaxLot
	for rows.Next() {
		var l domain.TaxLot
		var fxRate decimal.NullDecimal
		err := rows.Scan(
			&l.ID, &l.PortfolioID, &l.AccountID, &l.AssetID, &l.LotDate, &l.OriginalShares, &l.RemainingShares,
			&l.CostPerShare, &l.TotalCost, &l.AssetCurrency, &l.SettlementCurrency, &fxRate, &l.Source, &l.SourceID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax lot: %w", err)
		}
		l.LotDate = domain.DateOf(l.LotDate)
		if fxRate.Valid {
			l.FXRate = &fxRate.Decimal
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// Replace rewrites every lot of (portfolio, asset) atomically
func (r *taxLotRepository) Replace(ctx context.Context, portfolioID, assetID uuid.UUID, lots []*domain.TaxLot) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		conn := r.db.conn(ctx)
		_, err := conn.ExecContext(ctx,
			`DELETE FROM tax_lots WHERE portfolio_id = $1 AND asset_id = $2`,
			portfolioID, assetID)
		if err != nil {
			return mapError(err, "clear tax lots")
		}

		query := `
			INSERT INTO tax_lots (
				id, portfolio_id, account_id, asset_id, lot_date, original_shares, remaining_shares,
				cost_per_share, total_cost, asset_currency, settlement_currency, fx_rate, source, source_id, seq
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`
		for i, l := range lots {
			_, err := conn.ExecContext(ctx, query,
				l.ID, portfolioID, l.AccountID, assetID, l.LotDate, l.OriginalShares, l.RemainingShares,
				l.CostPerShare, l.TotalCost, l.AssetCurrency, l.SettlementCurrency, nullDecimal(l.FXRate),
				string(l.Source), l.SourceID, i,
			)
			if err != nil {
				return mapError(err, "insert tax lot")
			}
		}
		return nil
	})
}
