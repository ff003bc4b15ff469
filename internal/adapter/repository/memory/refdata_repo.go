package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

type portfolioRepository struct{ s *Store }

func (r *portfolioRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Portfolio, error) {
	var out *domain.Portfolio
	r.s.read(func(t *tables) {
		if p, ok := t.portfolios[id]; ok {
			cp := *p
			out = &cp
		}
	})
	if out == nil {
		return nil, fmt.Errorf("portfolio %s: %w", id, domain.ErrNotFound)
	}
	return out, nil
}

func (r *portfolioRepository) Create(ctx context.Context, portfolio *domain.Portfolio) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.portfolios[portfolio.ID]; ok {
			return fmt.Errorf("portfolio %s: %w", portfolio.ID, domain.ErrConflict)
		}
		cp := *portfolio
		t.portfolios[portfolio.ID] = &cp
		return nil
	})
}

func (r *portfolioRepository) List(ctx context.Context) ([]*domain.Portfolio, error) {
	var out []*domain.Portfolio
	r.s.read(func(t *tables) {
		for _, p := range t.portfolios {
			cp := *p
			out = append(out, &cp)
		}
	})
	slices.SortFunc(out, func(a, b *domain.Portfolio) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return domain.CompareIDs(a.ID, b.ID)
	})
	return out, nil
}

type accountRepository struct{ s *Store }

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var out *domain.Account
	r.s.read(func(t *tables) {
		if a, ok := t.accounts[id]; ok {
			cp := *a
			out = &cp
		}
	})
	if out == nil {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return out, nil
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.accounts[account.ID]; ok {
			return fmt.Errorf("account %s: %w", account.ID, domain.ErrConflict)
		}
		if _, ok := t.portfolios[account.PortfolioID]; !ok {
			return fmt.Errorf("portfolio %s: %w", account.PortfolioID, domain.ErrNotFound)
		}
		cp := *account
		t.accounts[account.ID] = &cp
		return nil
	})
}

func (r *accountRepository) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]*domain.Account, error) {
	var out []*domain.Account
	r.s.read(func(t *tables) {
		for _, a := range t.accounts {
			if a.PortfolioID == portfolioID {
				cp := *a
				out = append(out, &cp)
			}
		}
	})
	slices.SortFunc(out, func(a, b *domain.Account) int { return domain.CompareIDs(a.ID, b.ID) })
	return out, nil
}

type assetRepository struct{ s *Store }

func (r *assetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	var out *domain.Asset
	r.s.read(func(t *tables) {
		if a, ok := t.assets[id]; ok {
			cp := *a
			out = &cp
		}
	})
	if out == nil {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	return out, nil
}

func (r *assetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	return r.s.write(func(t *tables) error {
		for _, existing := range t.assets {
			if existing.ID == asset.ID ||
				(strings.EqualFold(existing.Symbol, asset.Symbol) && existing.Exchange == asset.Exchange) {
				return fmt.Errorf("asset %s: %w", asset.Symbol, domain.ErrConflict)
			}
		}
		cp := *asset
		t.assets[asset.ID] = &cp
		return nil
	})
}

func (r *assetRepository) List(ctx context.Context) ([]*domain.Asset, error) {
	var out []*domain.Asset
	r.s.read(func(t *tables) {
		for _, a := range t.assets {
			cp := *a
			out = append(out, &cp)
		}
	})
	slices.SortFunc(out, func(a, b *domain.Asset) int {
		if c := strings.Compare(a.Symbol, b.Symbol); c != 0 {
			return c
		}
		return strings.Compare(a.Exchange, b.Exchange)
	})
	return out, nil
}

func (r *assetRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Asset, error) {
	out := make(map[uuid.UUID]*domain.Asset, len(ids))
	r.s.read(func(t *tables) {
		for _, id := range ids {
			if a, ok := t.assets[id]; ok {
				cp := *a
				out[id] = &cp
			}
		}
	})
	return out, nil
}

type priceRepository struct{ s *Store }

func (r *priceRepository) LatestOnOrBefore(ctx context.Context, assetID uuid.UUID, date time.Time) (*domain.Price, error) {
	var best *domain.Price
	r.s.read(func(t *tables) {
		best = latestPrice(t, assetID, date)
	})
	if best == nil {
		return nil, fmt.Errorf("price for asset %s on or before %s: %w", assetID, date.Format(domain.DateLayout), domain.ErrNotFound)
	}
	return best, nil
}

func (r *priceRepository) LatestForAssets(ctx context.Context, assetIDs []uuid.UUID, date time.Time) (map[uuid.UUID]*domain.Price, error) {
	out := make(map[uuid.UUID]*domain.Price, len(assetIDs))
	r.s.read(func(t *tables) {
		for _, id := range assetIDs {
			if p := latestPrice(t, id, date); p != nil {
				out[id] = p
			}
		}
	})
	return out, nil
}

func latestPrice(t *tables, assetID uuid.UUID, date time.Time) *domain.Price {
	var best *domain.Price
	for _, p := range t.prices {
		if p.AssetID != assetID || p.Date.After(date) {
			continue
		}
		if best == nil || p.Date.After(best.Date) {
			best = p
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

func (r *priceRepository) Upsert(ctx context.Context, price *domain.Price) error {
	return r.s.write(func(t *tables) error {
		for id, p := range t.prices {
			if p.AssetID == price.AssetID && p.Date.Equal(price.Date) {
				delete(t.prices, id)
			}
		}
		cp := *price
		t.prices[price.ID] = &cp
		return nil
	})
}

type fxRateRepository struct{ s *Store }

func (r *fxRateRepository) LatestOnOrBefore(ctx context.Context, from, to string, date time.Time) (*domain.FXRate, error) {
	var best *domain.FXRate
	r.s.read(func(t *tables) {
		for _, fx := range t.fxRates {
			if fx.FromCurrency != from || fx.ToCurrency != to || fx.Date.After(date) {
				continue
			}
			if best == nil || fx.Date.After(best.Date) ||
				(fx.Date.Equal(best.Date) && domain.CompareIDs(fx.ID, best.ID) > 0) {
				best = fx
			}
		}
	})
	if best == nil {
		return nil, fmt.Errorf("fx rate %s/%s on or before %s: %w", from, to, date.Format(domain.DateLayout), domain.ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

func (r *fxRateRepository) Upsert(ctx context.Context, rate *domain.FXRate) error {
	return r.s.write(func(t *tables) error {
		for id, fx := range t.fxRates {
			if fx.FromCurrency == rate.FromCurrency && fx.ToCurrency == rate.ToCurrency && fx.Date.Equal(rate.Date) {
				delete(t.fxRates, id)
			}
		}
		cp := *rate
		t.fxRates[rate.ID] = &cp
		return nil
	})
}
