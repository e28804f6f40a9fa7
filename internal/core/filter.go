package core

import (
	"strings"
	"time"
)

// Visibility controls whether soft-deleted rows take part in a query.
// Every store query takes it explicitly.
type Visibility int

const (
	ExcludeDeleted Visibility = iota
	IncludeDeleted
)

func (v Visibility) String() string {
	if v == IncludeDeleted {
		return "include_deleted"
	}
	return "exclude_deleted"
}

// Admits reports whether a row with the given deleted flag is visible.
func (v Visibility) Admits(isDeleted bool) bool {
	return v == IncludeDeleted || !isDeleted
}

// TransactionFilter is a conjunction of optional predicates. Zero-valued
// fields are ignored; an empty filter matches every transaction.
type TransactionFilter struct {
	ID                   string
	CustomerID           string
	CustomerNameContains string
	MinAmount            *Money
	MaxAmount            *Money
	From                 *time.Time
	To                   *time.Time
	DescriptionContains  string
	Category             string
	Source               string
	Currency             string
	Type                 TransactionType

	// Uncategorized selects rows whose category is empty.
	Uncategorized bool
}

// IsEmpty reports whether no predicate is set.
func (f TransactionFilter) IsEmpty() bool {
	return f.ID == "" &&
		f.CustomerID == "" &&
		f.CustomerNameContains == "" &&
		f.MinAmount == nil &&
		f.MaxAmount == nil &&
		f.From == nil &&
		f.To == nil &&
		f.DescriptionContains == "" &&
		f.Category == "" &&
		f.Source == "" &&
		f.Currency == "" &&
		f.Type == "" &&
		!f.Uncategorized
}

// Matches evaluates the filter against t in process. Store backends
// translate the same predicate into their own query language.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.ID != "" && t.ID != f.ID {
		return false
	}
	if f.CustomerID != "" && t.CustomerID != f.CustomerID {
		return false
	}
	if f.CustomerNameContains != "" && !containsFold(t.CustomerName, f.CustomerNameContains) {
		return false
	}
	if f.MinAmount != nil && t.Amount.Cents < f.MinAmount.Cents {
		return false
	}
	if f.MaxAmount != nil && t.Amount.Cents > f.MaxAmount.Cents {
		return false
	}
	if f.From != nil && t.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && t.Date.After(*f.To) {
		return false
	}
	if f.DescriptionContains != "" && !containsFold(t.Description, f.DescriptionContains) {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Source != "" && t.Source != f.Source {
		return false
	}
	if f.Currency != "" && t.Currency != f.Currency {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Uncategorized && t.Category != "" {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
