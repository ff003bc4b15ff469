package postgres

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/simaogato/portfolio-engine/internal/domain"
)

// filter accumulates AND-ed WHERE conditions with positional arguments
type filter struct {
	conds []string
	args  []any
}

// add appends a condition whose single placeholder is written as %d
func (f *filter) add(cond string, arg any) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, fmt.Sprintf(cond, len(f.args)))
}

// addRaw appends a condition without arguments
func (f *filter) addRaw(cond string) {
	f.conds = append(f.conds, cond)
}

func (f *filter) id(column string, id *uuid.UUID) {
	if id != nil {
		f.add(column+" = $%d", *id)
	}
}

func (f *filter) dates(column string, r domain.DateRange) {
	if r.From != nil {
		f.add(column+" >= $%d", *r.From)
	}
	if r.After != nil {
		f.add(column+" > $%d", *r.After)
	}
	if r.Until != nil {
		f.add(column+" <= $%d", *r.Until)
	}
	if r.Before != nil {
		f.add(column+" < $%d", *r.Before)
	}
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// uuidArray encodes ids for "= ANY($n::uuid[])"
func uuidArray(ids []uuid.UUID) any {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}

type scanner interface {
	Scan(dest ...any) error
}
