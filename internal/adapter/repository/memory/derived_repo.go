package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

type snapshotRepository struct{ s *Store }

func (r *snapshotRepository) LatestDate(ctx context.Context, portfolioID uuid.UUID, asOf time.Time) (*time.Time, error) {
	var latest *time.Time
	r.s.read(func(t *tables) {
		for _, snap := range t.snapshots {
			if snap.PortfolioID != portfolioID || snap.SnapshotDate.After(asOf) {
				continue
			}
			if latest == nil || snap.SnapshotDate.After(*latest) {
				d := snap.SnapshotDate
				latest = &d
			}
		}
	})
	return latest, nil
}

func (r *snapshotRepository) ListByDate(ctx context.Context, portfolioID uuid.UUID, date time.Time) ([]*domain.PositionSnapshot, error) {
	var out []*domain.PositionSnapshot
	r.s.read(func(t *tables) {
		for _, snap := range t.snapshots {
			if snap.PortfolioID == portfolioID && snap.SnapshotDate.Equal(date) {
				cp := *snap
				out = append(out, &cp)
			}
		}
	})
	slices.SortFunc(out, func(a, b *domain.PositionSnapshot) int {
		return domain.CompareIDs(a.AssetID, b.AssetID)
	})
	return out, nil
}

func (r *snapshotRepository) ReplaceForDate(ctx context.Context, portfolioID uuid.UUID, date time.Time, rows []*domain.PositionSnapshot) error {
	return r.s.write(func(t *tables) error {
		for id, snap := range t.snapshots {
			if snap.PortfolioID == portfolioID && snap.SnapshotDate.Equal(date) {
				delete(t.snapshots, id)
			}
		}
		seen := make(map[uuid.UUID]bool, len(rows))
		for _, row := range rows {
			if seen[row.AssetID] {
				return fmt.Errorf("snapshot for asset %s on %s: %w", row.AssetID, date.Format(domain.DateLayout), domain.ErrConflict)
			}
			seen[row.AssetID] = true
			cp := *row
			t.snapshots[row.ID] = &cp
		}
		return nil
	})
}

func (r *snapshotRepository) ScaleShares(ctx context.Context, assetID uuid.UUID, before time.Time, ratio decimal.Decimal) error {
	return r.s.write(func(t *tables) error {
		for id, snap := range t.snapshots {
			if snap.AssetID == assetID && snap.SnapshotDate.Before(before) {
				cp := *snap
				cp.Shares = cp.Shares.Mul(ratio)
				t.snapshots[id] = &cp
			}
		}
		return nil
	})
}

func (r *snapshotRepository) DeleteFrom(ctx context.Context, portfolioID uuid.UUID, from time.Time) error {
	return r.s.write(func(t *tables) error {
		for id, snap := range t.snapshots {
			if snap.PortfolioID == portfolioID && !snap.SnapshotDate.Before(from) {
				delete(t.snapshots, id)
			}
		}
		return nil
	})
}

type taxLotRepository struct{ s *Store }

func copyLot(l *domain.TaxLot) *domain.TaxLot {
	cp := *l
	if l.FXRate != nil {
		rate := *l.FXRate
		cp.FXRate = &rate
	}
	return &cp
}

func (r *taxLotRepository) List(ctx context.Context, portfolioID, assetID uuid.UUID) ([]*domain.TaxLot, error) {
	var out []*domain.TaxLot
	r.s.read(func(t *tables) {
		for _, l := range t.lots[pairKey{portfolioID, assetID}] {
			out = append(out, copyLot(l))
		}
	})
	return out, nil
}

func (r *taxLotRepository) Replace(ctx context.Context, portfolioID, assetID uuid.UUID, lots []*domain.TaxLot) error {
	stored := make([]*domain.TaxLot, 0, len(lots))
	for _, l := range lots {
		stored = append(stored, copyLot(l))
	}
	return r.s.write(func(t *tables) error {
		if len(stored) == 0 {
			delete(t.lots, pairKey{portfolioID, assetID})
			return nil
		}
		t.lots[pairKey{portfolioID, assetID}] = stored
		return nil
	})
}
