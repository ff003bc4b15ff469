// Package position replays a timeline into average-cost position state.
package position

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/timeline"
)

// State is the average-cost position of one asset
type State struct {
	AssetID     uuid.UUID
	Shares      decimal.Decimal
	CostBasis   decimal.Decimal
	RealizedPnL decimal.Decimal
}

// AvgCost is cost basis per share, or zero for an empty position
func (s State) AvgCost() decimal.Decimal {
	if s.Shares.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return s.CostBasis.Div(s.Shares)
}

// IsEmpty reports whether every figure of the state is zero
func (s State) IsEmpty() bool {
	return s.Shares.IsZero() && s.CostBasis.IsZero() && s.RealizedPnL.IsZero()
}

// Tracker folds timeline events into per-asset state
type Tracker struct {
	states map[uuid.UUID]*State

	// realized PnL is only accumulated for sells dated inside [from, to] when set
	windowFrom *time.Time
	windowTo   *time.Time
}

// NewTracker creates a tracker seeded with the given states (nil = from zero)
func NewTracker(seed []State) *Tracker {
	t := &Tracker{states: make(map[uuid.UUID]*State, len(seed))}
	for _, s := range seed {
		st := s
		t.states[s.AssetID] = &st
	}
	return t
}

// WithRealizedWindow restricts realized PnL accumulation to sells dated in [from, to]
func (t *Tracker) WithRealizedWindow(from, to time.Time) *Tracker {
	f, u := domain.DateOf(from), domain.DateOf(to)
	t.windowFrom, t.windowTo = &f, &u
	return t
}

// Apply folds one event into the tracker
func (t *Tracker) Apply(e timeline.Event) error {
	switch e.Kind {
	case timeline.KindCorporateAction:
		t.applyAction(e.Action)
	case timeline.KindStockDividend:
		st := t.state(*e.Dividend.AssetID)
		st.Shares = st.Shares.Add(*e.Dividend.Shares)
	case timeline.KindTrade:
		t.applyTrade(e.Trade)
	default:
		return fmt.Errorf("unknown timeline event kind %d", e.Kind)
	}
	return nil
}

// ApplyAll folds a whole sequence, stopping at the first failure
func (t *Tracker) ApplyAll(events iter.Seq[timeline.Event]) error {
	for e := range events {
		if err := t.Apply(e); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) applyAction(a *domain.CorporateAction) {
	st, ok := t.states[a.AssetID]
	if !ok {
		return
	}
	st.Shares = st.Shares.Mul(a.Ratio())
	if st.Shares.LessThanOrEqual(decimal.Zero) {
		st.Shares = decimal.Zero
		st.CostBasis = decimal.Zero
	}
}

func (t *Tracker) applyTrade(tr *domain.Trade) {
	st := t.state(tr.AssetID)

	switch tr.Side {
	case domain.TradeSideBuy:
		st.CostBasis = st.CostBasis.Add(tr.GrossCost())
		st.Shares = st.Shares.Add(tr.Quantity)
	case domain.TradeSideSell:
		avg := st.AvgCost()
		released := avg.Mul(tr.Quantity)
		if t.inWindow(tr.Date) {
			st.RealizedPnL = st.RealizedPnL.Add(tr.NetProceeds().Sub(released))
		}
		st.CostBasis = st.CostBasis.Sub(released)
		st.Shares = st.Shares.Sub(tr.Quantity)
		if st.Shares.LessThanOrEqual(decimal.Zero) {
			st.Shares = decimal.Zero
			st.CostBasis = decimal.Zero
		}
	}
}

func (t *Tracker) inWindow(date time.Time) bool {
	if t.windowFrom != nil && date.Before(*t.windowFrom) {
		return false
	}
	if t.windowTo != nil && date.After(*t.windowTo) {
		return false
	}
	return true
}

func (t *Tracker) state(assetID uuid.UUID) *State {
	st, ok := t.states[assetID]
	if !ok {
		st = &State{AssetID: assetID}
		t.states[assetID] = st
	}
	return st
}

// Get returns the state of one asset
func (t *Tracker) Get(assetID uuid.UUID) (State, bool) {
	st, ok := t.states[assetID]
	if !ok {
		return State{AssetID: assetID}, false
	}
	return *st, true
}

// Positions returns every tracked state ordered by asset ID
func (t *Tracker) Positions() []State {
	out := make([]State, 0, len(t.states))
	for _, st := range t.states {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b State) int {
		return domain.CompareIDs(a.AssetID, b.AssetID)
	})
	return out
}
