package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies a transaction. The set is closed.
type Type string

const (
	Income   Type = "Income"
	Expense  Type = "Expense"
	Transfer Type = "Transfer"
)

// Types lists all transaction types in display order.
var Types = []Type{Income, Expense, Transfer}

// Categories maps each type to its allowed category vocabulary.
// The ledger itself does not enforce membership; the boundary does.
var Categories = map[Type][]string{
	Income:   {"Salary", "Bonus", "Gift", "Other"},
	Expense:  {"Food", "Transport", "Shopping", "Bills", "Health", "Other"},
	Transfer: {"Family", "Bank", "Investment"},
}

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrUnknownType     = errors.New("unknown transaction type")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidCategory = errors.New("invalid category for type")
)

// Record is one immutable ledger entry. AmountCanonical is fixed at
// append time using the rate then in effect; later rate changes never
// touch stored records.
type Record struct {
	Date            time.Time
	UserID          string
	Type            Type
	Category        string
	AmountCanonical decimal.Decimal
	Note            string
	InputCurrency   string
	InputAmount     decimal.Decimal
}

// Candidate is the user-supplied input before normalization. The
// canonical amount is computed by the ledger service, not the caller.
type Candidate struct {
	Date          time.Time
	UserID        string
	Type          Type
	Category      string
	InputAmount   decimal.Decimal
	InputCurrency string
	Note          string
}

// ParseType maps a string to a Type.
func ParseType(s string) (Type, error) {
	switch Type(strings.TrimSpace(s)) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	case Transfer:
		return Transfer, nil
	default:
		return "", ErrUnknownType
	}
}

// Valid reports whether t is one of the closed set.
func (t Type) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

// CategoryAllowed reports whether category belongs to the vocabulary
// for t. Used at the boundary only.
func CategoryAllowed(t Type, category string) bool {
	for _, c := range Categories[t] {
		if c == category {
			return true
		}
	}
	return false
}

func (c Candidate) Validate() error {
	if c.Date.IsZero() {
		return ErrInvalidDate
	}
	if !c.Type.Valid() {
		return ErrUnknownType
	}
	if !c.InputAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(c.InputCurrency) == "" {
		return ErrUnknownCurrency
	}
	return nil
}

func (r Record) Validate() error {
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if !r.Type.Valid() {
		return ErrUnknownType
	}
	if !r.InputAmount.IsPositive() || r.AmountCanonical.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.InputCurrency) == "" {
		return ErrUnknownCurrency
	}
	return nil
}
