// Package snapshot materialises position checkpoints and resumes replays from them.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/logger"
	"github.com/simaogato/portfolio-engine/internal/usecase/position"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
)

// Seed is the replay starting point recovered from a snapshot.
// Events dated on or before Date are already folded into States.
type Seed struct {
	Date   time.Time
	States []position.State
}

// SnapshotService handles position snapshot operations
type SnapshotService struct {
	Replayer      *position.Replayer
	SnapshotRepo  domain.SnapshotRepository
	PortfolioRepo domain.PortfolioRepository
	Tx            domain.TxManager
}

// NewSnapshotService creates a new SnapshotService instance
func NewSnapshotService(replayer *position.Replayer, snapshotRepo domain.SnapshotRepository, portfolioRepo domain.PortfolioRepository, tx domain.TxManager) *SnapshotService {
	return &SnapshotService{
		Replayer:      replayer,
		SnapshotRepo:  snapshotRepo,
		PortfolioRepo: portfolioRepo,
		Tx:            tx,
	}
}

// Materialize replays the portfolio from zero through the end of date and
// replaces the snapshot for (portfolio, date) with the non-empty positions
func (s *SnapshotService) Materialize(ctx context.Context, portfolioID uuid.UUID, date time.Time) ([]*domain.PositionSnapshot, error) {
	snapDate := domain.DateOf(date)
	var rows []*domain.PositionSnapshot

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.PortfolioRepo.GetByID(ctx, portfolioID); err != nil {
			return err
		}

		// Never chain off an older snapshot
		states, err := s.Replayer.Positions(ctx, timeline.Scope{PortfolioID: portfolioID, Until: &snapDate}, nil)
		if err != nil {
			return err
		}

		rows = make([]*domain.PositionSnapshot, 0, len(states))
		for _, st := range states {
			if st.IsEmpty() {
				continue
			}
			rows = append(rows, &domain.PositionSnapshot{
				ID:           domain.NewID(),
				PortfolioID:  portfolioID,
				AssetID:      st.AssetID,
				SnapshotDate: snapDate,
				Shares:       st.Shares,
				CostBasis:    st.CostBasis,
				RealizedPnL:  st.RealizedPnL,
			})
		}
		return s.SnapshotRepo.ReplaceForDate(ctx, portfolioID, snapDate, rows)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Snapshot materialized",
		"portfolio_id", portfolioID, "date", snapDate.Format(domain.DateLayout), "rows", len(rows))
	return rows, nil
}

// MaterializeRange materialises one snapshot per day over [from, to] and
// returns the number of snapshots written
func (s *SnapshotService) MaterializeRange(ctx context.Context, portfolioID uuid.UUID, from, to time.Time) (int, error) {
	start, end := domain.DateOf(from), domain.DateOf(to)
	if start.After(end) {
		return 0, fmt.Errorf("%w: from %s is after to %s", domain.ErrInvalidInput,
			start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	}

	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if _, err := s.Materialize(ctx, portfolioID, d); err != nil {
			return count, fmt.Errorf("snapshot %s: %w", d.Format(domain.DateLayout), err)
		}
		count++
	}
	return count, nil
}

// Resume finds the latest snapshot dated on or before asOf.
// ok is false when the portfolio has none.
func (s *SnapshotService) Resume(ctx context.Context, portfolioID uuid.UUID, asOf time.Time) (Seed, bool, error) {
	latest, err := s.SnapshotRepo.LatestDate(ctx, portfolioID, domain.DateOf(asOf))
	if err != nil {
		return Seed{}, false, fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	if latest == nil {
		return Seed{}, false, nil
	}

	rows, err := s.SnapshotRepo.ListByDate(ctx, portfolioID, *latest)
	if err != nil {
		return Seed{}, false, fmt.Errorf("failed to load snapshot rows: %w", err)
	}

	seed := Seed{Date: *latest, States: make([]position.State, 0, len(rows))}
	for _, row := range rows {
		seed.States = append(seed.States, position.State{
			AssetID:     row.AssetID,
			Shares:      row.Shares,
			CostBasis:   row.CostBasis,
			RealizedPnL: row.RealizedPnL,
		})
	}
	return seed, true, nil
}

// Invalidate drops the portfolio's snapshots dated on or after from.
// Ledger mutations call it so no checkpoint predates a row it should include.
func (s *SnapshotService) Invalidate(ctx context.Context, portfolioID uuid.UUID, from time.Time) error {
	if err := s.SnapshotRepo.DeleteFrom(ctx, portfolioID, domain.DateOf(from)); err != nil {
		return fmt.Errorf("failed to invalidate snapshots: %w", err)
	}
	return nil
}
