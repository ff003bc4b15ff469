package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// CostMethod is the cost-basis method recorded on a portfolio
type CostMethod string

const (
	CostMethodAverage CostMethod = "AVG"
	CostMethodFIFO    CostMethod = "FIFO"
)

// AssetType classifies an asset
type AssetType string

const (
	AssetTypeStock AssetType = "STOCK"
	AssetTypeETF   AssetType = "ETF"
	AssetTypeREIT  AssetType = "REIT"
	AssetTypeOther AssetType = "OTHER"
)

// Portfolio groups accounts and the ledger rows booked against them
type Portfolio struct {
	ID           uuid.UUID
	Name         string
	BaseCurrency string
	// CostMethod is informational: positions always use average cost and
	// tax lots always use FIFO.
	CostMethod CostMethod
}

// Validate ensures the portfolio adheres to domain rules
func (p *Portfolio) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("portfolio name cannot be empty")
	}
	if !validCurrency(p.BaseCurrency) {
		return errors.New("portfolio base currency is invalid")
	}
	switch p.CostMethod {
	case CostMethodAverage, CostMethodFIFO:
	default:
		return errors.New("portfolio cost method must be AVG or FIFO")
	}
	return nil
}

// Account is a cash/brokerage account inside a portfolio.
// Its currency is the settlement currency of every trade booked against it.
type Account struct {
	ID          uuid.UUID
	PortfolioID uuid.UUID
	Name        string
	Currency    string
}

// Validate ensures the account adheres to domain rules
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("account name cannot be empty")
	}
	if a.PortfolioID == uuid.Nil {
		return errors.New("account must belong to a portfolio")
	}
	if !validCurrency(a.Currency) {
		return errors.New("account currency is invalid")
	}
	return nil
}

// Asset is a tradable instrument
type Asset struct {
	ID        uuid.UUID
	Symbol    string
	Name      string
	AssetType AssetType
	Exchange  string
	Currency  string
}

// Validate ensures the asset adheres to domain rules
func (a *Asset) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return errors.New("asset symbol cannot be empty")
	}
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("asset name cannot be empty")
	}
	switch a.AssetType {
	case AssetTypeStock, AssetTypeETF, AssetTypeREIT, AssetTypeOther:
	default:
		return errors.New("asset type must be STOCK, ETF, REIT or OTHER")
	}
	if !validCurrency(a.Currency) {
		return errors.New("asset currency is invalid")
	}
	return nil
}

// validCurrency accepts ISO-like codes of 3 to 10 upper-case letters
func validCurrency(code string) bool {
	if len(code) < 3 || len(code) > 10 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
