// Package memory is an in-process implementation of every repository, used by
// tests and by the server's --memory development mode.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

type pairKey struct {
	portfolioID uuid.UUID
	assetID     uuid.UUID
}

// tables holds every row. Stored values are never mutated in place: writes
// always store a fresh copy, so cloning the maps is a consistent snapshot.
type tables struct {
	portfolios map[uuid.UUID]*domain.Portfolio
	accounts   map[uuid.UUID]*domain.Account
	assets     map[uuid.UUID]*domain.Asset
	trades     map[uuid.UUID]*domain.Trade
	cash       map[uuid.UUID]*domain.CashTransaction
	actions    map[uuid.UUID]*domain.CorporateAction
	prices     map[uuid.UUID]*domain.Price
	fxRates    map[uuid.UUID]*domain.FXRate
	snapshots  map[uuid.UUID]*domain.PositionSnapshot
	lots       map[pairKey][]*domain.TaxLot
}

func newTables() *tables {
	return &tables{
		portfolios: make(map[uuid.UUID]*domain.Portfolio),
		accounts:   make(map[uuid.UUID]*domain.Account),
		assets:     make(map[uuid.UUID]*domain.Asset),
		trades:     make(map[uuid.UUID]*domain.Trade),
		cash:       make(map[uuid.UUID]*domain.CashTransaction),
		actions:    make(map[uuid.UUID]*domain.CorporateAction),
		prices:     make(map[uuid.UUID]*domain.Price),
		fxRates:    make(map[uuid.UUID]*domain.FXRate),
		snapshots:  make(map[uuid.UUID]*domain.PositionSnapshot),
		lots:       make(map[pairKey][]*domain.TaxLot),
	}
}

func (t *tables) clone() *tables {
	return &tables{
		portfolios: maps.Clone(t.portfolios),
		accounts:   maps.Clone(t.accounts),
		assets:     maps.Clone(t.assets),
		trades:     maps.Clone(t.trades),
		cash:       maps.Clone(t.cash),
		actions:    maps.Clone(t.actions),
		prices:     maps.Clone(t.prices),
		fxRates:    maps.Clone(t.fxRates),
		snapshots:  maps.Clone(t.snapshots),
		lots:       maps.Clone(t.lots),
	}
}

// Store owns the tables and serialises transactions
type Store struct {
	mu   sync.RWMutex // guards data
	txMu sync.Mutex   // held for the whole of an outer transaction
	data *tables
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{data: newTables()}
}

type txKey struct{}

// WithinTx runs fn atomically. The outer call takes the transaction lock and
// snapshots the tables; an error from fn restores the snapshot. Nested calls
// run inside the outer transaction.
//
// Only transactions are serialised. A write made outside any transaction
// while one is open is discarded if that transaction rolls back, so every
// service write path writes through WithinTx.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	saved := s.data.clone()
	s.mu.RUnlock()

	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			s.data = saved
			s.mu.Unlock()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) read(fn func(t *tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(t *tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// Repositories returns every repository backed by this store
func (s *Store) Repositories() domain.Repositories {
	return domain.Repositories{
		Portfolios:       &portfolioRepository{s: s},
		Accounts:         &accountRepository{s: s},
		Assets:           &assetRepository{s: s},
		Trades:           &tradeRepository{s: s},
		CashTransactions: &cashTransactionRepository{s: s},
		CorporateActions: &corporateActionRepository{s: s},
		Prices:           &priceRepository{s: s},
		FXRates:          &fxRateRepository{s: s},
		Snapshots:        &snapshotRepository{s: s},
		TaxLots:          &taxLotRepository{s: s},
		Tx:               s,
	}
}
