package domain

import (
	"errors"
	"fmt"
)

// Domain rejections. All of them are fatal to the current operation and are
// returned wrapped with detail, so callers classify them with errors.Is.
var (
	// ErrInsufficientShares means a sell exceeds the shares available at its date
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInsufficientLots means a sell exceeds the open FIFO lots.
	// It matches ErrInsufficientShares through errors.Is.
	ErrInsufficientLots error = &kindError{msg: "sell quantity exceeds available lots", parent: ErrInsufficientShares}

	// ErrInsufficientCash means a buy or DRIP reinvestment exceeds the account balance
	ErrInsufficientCash = errors.New("insufficient cash balance")

	// ErrMissingFXRate means currencies differ and no rate can be resolved
	ErrMissingFXRate = errors.New("fx rate required for settlement")

	// ErrMissingPrice means a DRIP needs a price that does not exist
	ErrMissingPrice = errors.New("no price history found")

	// ErrAlreadyProcessed means a corporate action was already applied
	ErrAlreadyProcessed = errors.New("corporate action already processed")

	// ErrInvalidRatio means a corporate action ratio is not positive
	ErrInvalidRatio = errors.New("split ratio must be positive")

	// ErrSettlementCurrencyMismatch means an explicit settlement currency disagrees with the account
	ErrSettlementCurrencyMismatch = errors.New("settlement currency must match account")
)

// Storage and input errors
var (
	// ErrNotFound is returned by repositories when a row does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint is violated
	ErrConflict = errors.New("already exists or violates a constraint")

	// ErrInvalidInput is returned when request data fails validation
	ErrInvalidInput = errors.New("invalid input")
)

// kindError is a sentinel that also matches a broader parent kind
type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.parent }

// IsDomainRejection reports whether err is one of the business-rule rejections
// (as opposed to a storage or input failure)
func IsDomainRejection(err error) bool {
	for _, kind := range []error{
		ErrInsufficientShares,
		ErrInsufficientCash,
		ErrMissingFXRate,
		ErrMissingPrice,
		ErrAlreadyProcessed,
		ErrInvalidRatio,
		ErrSettlementCurrencyMismatch,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// AsInvalidInput tags a validation failure with ErrInvalidInput unless it
// already carries one of the domain kinds
func AsInvalidInput(err error) error {
	if err == nil || IsDomainRejection(err) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
}
