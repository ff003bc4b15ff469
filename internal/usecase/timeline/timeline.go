// Package timeline merges corporate actions, stock dividends and trades into
// the single deterministic event order every replay consumes.
package timeline

import (
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

// Kind is the event discriminant. Its numeric value is the same-day rank:
// corporate actions apply before stock dividends, and both before trades.
type Kind int

const (
	KindCorporateAction Kind = iota
	KindStockDividend
	KindTrade
)

func (k Kind) String() string {
	switch k {
	case KindCorporateAction:
		return "corporate_action"
	case KindStockDividend:
		return "stock_dividend"
	case KindTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// Event is one entry of a timeline. Exactly one payload matching Kind is set.
type Event struct {
	Kind     Kind
	Action   *domain.CorporateAction
	Dividend *domain.CashTransaction
	Trade    *domain.Trade
}

// Date returns the ledger date of the active payload
func (e Event) Date() time.Time {
	switch e.Kind {
	case KindCorporateAction:
		return e.Action.Date
	case KindStockDividend:
		return e.Dividend.Date
	default:
		return e.Trade.Date
	}
}

// ID returns the row identifier of the active payload
func (e Event) ID() uuid.UUID {
	switch e.Kind {
	case KindCorporateAction:
		return e.Action.ID
	case KindStockDividend:
		return e.Dividend.ID
	default:
		return e.Trade.ID
	}
}

// AssetID returns the asset the event applies to
func (e Event) AssetID() uuid.UUID {
	switch e.Kind {
	case KindCorporateAction:
		return e.Action.AssetID
	case KindStockDividend:
		return *e.Dividend.AssetID
	default:
		return e.Trade.AssetID
	}
}

// Compare orders events by (date, kind rank, row id)
func Compare(a, b Event) int {
	if c := a.Date().Compare(b.Date()); c != 0 {
		return c
	}
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	return domain.CompareIDs(a.ID(), b.ID())
}

// Merge returns the events of the three inputs in timeline order.
// Stock-dividend rows without positive shares are dropped.
// The inputs are copied and sorted, so callers may pass them in any order.
// The sequence is produced lazily by a three-way merge.
func Merge(actions []*domain.CorporateAction, dividends []*domain.CashTransaction, trades []*domain.Trade) iter.Seq[Event] {
	a := make([]Event, 0, len(actions))
	for _, act := range actions {
		a = append(a, Event{Kind: KindCorporateAction, Action: act})
	}
	d := make([]Event, 0, len(dividends))
	for _, div := range dividends {
		if !div.IsStockDividend() || div.AssetID == nil {
			continue
		}
		d = append(d, Event{Kind: KindStockDividend, Dividend: div})
	}
	t := make([]Event, 0, len(trades))
	for _, tr := range trades {
		t = append(t, Event{Kind: KindTrade, Trade: tr})
	}
	slices.SortStableFunc(a, Compare)
	slices.SortStableFunc(d, Compare)
	slices.SortStableFunc(t, Compare)

	return func(yield func(Event) bool) {
		i, j, k := 0, 0, 0
		for i < len(a) || j < len(d) || k < len(t) {
			var next Event
			switch pick(a, i, d, j, t, k) {
			case 0:
				next = a[i]
				i++
			case 1:
				next = d[j]
				j++
			default:
				next = t[k]
				k++
			}
			if !yield(next) {
				return
			}
		}
	}
}

// pick returns which of the three heads (0, 1 or 2) sorts first
func pick(a []Event, i int, d []Event, j int, t []Event, k int) int {
	best := -1
	var head Event
	if i < len(a) {
		best, head = 0, a[i]
	}
	if j < len(d) && (best < 0 || Compare(d[j], head) < 0) {
		best, head = 1, d[j]
	}
	if k < len(t) && (best < 0 || Compare(t[k], head) < 0) {
		best = 2
	}
	return best
}

// Collect drains a sequence into a slice
func Collect(seq iter.Seq[Event]) []Event {
	return slices.Collect(seq)
}
