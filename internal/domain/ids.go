package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// NewID returns a time-ordered (v7) UUID.
// Ledger rows rely on this: comparing two IDs gives their insertion order.
func NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// CompareIDs orders two row identifiers by insertion order
func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// DateOf truncates a timestamp to its calendar date in UTC.
// All ledger dates are stored and compared as UTC midnights.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a ledger date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// DateLayout is the wire format for ledger dates
const DateLayout = "2006-01-02"
