package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Debit  TransactionType = "Debit"
	Credit TransactionType = "Credit"
)

const (
	// CategoryOther is the fallback category for descriptions no rule matches.
	CategoryOther = "Other"

	// DefaultCurrency is assigned to transactions ingested without a currency code.
	DefaultCurrency = "ZAR"

	maxDescriptionLength = 500
)

// Transaction dates must fall in [MinTransactionDate, MaxTransactionDate).
// Stores keep dates as Unix nanoseconds, which cannot represent years
// outside 1678-2262.
var (
	MinTransactionDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxTransactionDate = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

type (
	TransactionType string

	Transaction struct {
		ID           string          `json:"id"`
		CustomerID   string          `json:"customerId"`
		CustomerName string          `json:"customerName"`
		Amount       Money           `json:"amount"`
		Date         time.Time       `json:"transactionDate"`
		Description  string          `json:"description"`
		Category     string          `json:"category"` // empty = uncategorized
		Source       string          `json:"source"`
		Currency     string          `json:"currency"`
		Type         TransactionType `json:"type"`
		CreatedAt    time.Time       `json:"createdAt"`
		UpdatedAt    *time.Time      `json:"updatedAt,omitempty"`
		IsDeleted    bool            `json:"isDeleted"`
	}

	CategoryRule struct {
		ID           string    `json:"id"`
		CategoryID   string    `json:"categoryId"`
		CategoryName string    `json:"categoryName"`
		Keyword      string    `json:"keyword"`
		Priority     int       `json:"priority"`
		CreatedAt    time.Time `json:"createdAt"`
		IsDeleted    bool      `json:"isDeleted"`
	}

	Category struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Keywords    []string `json:"keywords"`
		IsDeleted   bool     `json:"isDeleted"`
	}
)

var (
	ErrEmptyCustomerID  = errors.New("empty customer id")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptySource      = errors.New("empty source")
	ErrZeroDate         = errors.New("transaction date cannot be zero")
	ErrDateOutOfRange   = errors.New("transaction date must be between 1900 and 2199")
	ErrTypeMismatch     = errors.New("transaction type does not match amount sign")
)

// TypeForAmount derives the transaction type from the amount sign.
func TypeForAmount(m Money) TransactionType {
	if m.Cents > 0 {
		return Credit
	}
	return Debit
}

// Valid reports whether tt is one of the known transaction types.
func (tt TransactionType) Valid() bool {
	return tt == Debit || tt == Credit
}

// Validate checks an ingested transaction. Normalize should run first.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.CustomerID) == "" {
		return ErrEmptyCustomerID
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > maxDescriptionLength {
		return errors.New("description too long (max 500 characters)")
	}
	if strings.TrimSpace(t.Source) == "" {
		return ErrEmptySource
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if t.Date.Before(MinTransactionDate) || !t.Date.Before(MaxTransactionDate) {
		return ErrDateOutOfRange
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if t.Type != TypeForAmount(t.Amount) {
		return ErrTypeMismatch
	}
	return nil
}

// Normalize fills defaults the upstream sources leave out: currency,
// type from the amount sign, UTC dates and the creation timestamp.
func (t *Transaction) Normalize(now time.Time) {
	t.Description = strings.TrimSpace(t.Description)
	t.Category = strings.TrimSpace(t.Category)
	t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
	if t.Currency == "" {
		t.Currency = DefaultCurrency
	}
	t.Type = TypeForAmount(t.Amount)
	t.Date = t.Date.UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now.UTC()
	}
}

// IsCandidate reports whether reconciliation should look at t.
func (t Transaction) IsCandidate() bool {
	return !t.IsDeleted && (t.Category == "" || t.Category == CategoryOther)
}
