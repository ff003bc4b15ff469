package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CorporateActionType represents the kind of structural event
type CorporateActionType string

const (
	CorporateActionSplit        CorporateActionType = "SPLIT"
	CorporateActionReverseSplit CorporateActionType = "REVERSE_SPLIT"
	CorporateActionMerge        CorporateActionType = "MERGE" // alias for reverse split
	CorporateActionDRIP         CorporateActionType = "DRIP"
)

// CorporateAction is a split, reverse split, merge or dividend reinvestment on an asset.
// ProcessedAt moves from nil to a timestamp exactly once.
type CorporateAction struct {
	ID          uuid.UUID
	AssetID     uuid.UUID
	Date        time.Time
	Type        CorporateActionType
	Numerator   int64
	Denominator int64
	ProcessedAt *time.Time
}

// Validate ensures the corporate action adheres to domain rules
func (a *CorporateAction) Validate() error {
	if a.AssetID == uuid.Nil {
		return errors.New("corporate action must reference an asset")
	}
	if a.Date.IsZero() {
		return errors.New("corporate action date is required")
	}
	switch a.Type {
	case CorporateActionSplit, CorporateActionReverseSplit, CorporateActionMerge, CorporateActionDRIP:
	default:
		return errors.New("corporate action type must be SPLIT, REVERSE_SPLIT, MERGE or DRIP")
	}
	if a.Numerator <= 0 || a.Denominator <= 0 {
		return fmt.Errorf("%w: %d/%d", ErrInvalidRatio, a.Numerator, a.Denominator)
	}
	return nil
}

// Ratio is numerator/denominator
func (a *CorporateAction) Ratio() decimal.Decimal {
	if a.Denominator == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(a.Numerator).Div(decimal.NewFromInt(a.Denominator))
}

// IsProcessed reports whether the action has already been folded into the ledger
func (a *CorporateAction) IsProcessed() bool {
	return a.ProcessedAt != nil
}

// IsSplitLike reports whether the action rescales share counts
func (a *CorporateAction) IsSplitLike() bool {
	switch a.Type {
	case CorporateActionSplit, CorporateActionReverseSplit, CorporateActionMerge:
		return true
	}
	return false
}
