// Package query implements the read side: ad-hoc search, the paged
// listings and the summaries served by the HTTP API.
package query

import (
	"fmt"
	"strings"
	"time"

	"txagg/internal/core"
)

// FindRequest is an optional-field search. Every set field narrows the
// result; whitespace-only strings count as unset.
type FindRequest struct {
	ID           string
	CustomerID   string
	CustomerName string
	MinAmount    *core.Money
	MaxAmount    *core.Money
	StartDate    *time.Time
	EndDate      *time.Time
	Description  string
	Category     string
	Source       string
	Currency     string
	Type         string
}

// Filter builds the conjunctive predicate for r. A request without any
// criteria, an inverted range, or an unknown type is a validation failure.
func (r FindRequest) Filter() (core.TransactionFilter, error) {
	f := core.TransactionFilter{
		ID:                   strings.TrimSpace(r.ID),
		CustomerID:           strings.TrimSpace(r.CustomerID),
		CustomerNameContains: strings.TrimSpace(r.CustomerName),
		MinAmount:            r.MinAmount,
		MaxAmount:            r.MaxAmount,
		DescriptionContains:  strings.TrimSpace(r.Description),
		Category:             strings.TrimSpace(r.Category),
		Source:               strings.TrimSpace(r.Source),
		Currency:             strings.ToUpper(strings.TrimSpace(r.Currency)),
	}
	if r.StartDate != nil {
		from := r.StartDate.UTC()
		f.From = &from
	}
	if r.EndDate != nil {
		to := r.EndDate.UTC()
		f.To = &to
	}

	if typ := strings.TrimSpace(r.Type); typ != "" {
		tt, ok := parseType(typ)
		if !ok {
			return core.TransactionFilter{}, fmt.Errorf("%w: type must be Debit or Credit, got %q", core.ErrValidation, typ)
		}
		f.Type = tt
	}

	if f.IsEmpty() {
		return core.TransactionFilter{}, fmt.Errorf("%w: at least one search criterion is required", core.ErrValidation)
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MinAmount.Cents > f.MaxAmount.Cents {
		return core.TransactionFilter{}, fmt.Errorf("%w: minAmount %s is greater than maxAmount %s",
			core.ErrValidation, f.MinAmount, f.MaxAmount)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return core.TransactionFilter{}, fmt.Errorf("%w: startDate is after endDate", core.ErrValidation)
	}
	return f, nil
}

func parseType(s string) (core.TransactionType, bool) {
	switch {
	case strings.EqualFold(s, string(core.Debit)):
		return core.Debit, true
	case strings.EqualFold(s, string(core.Credit)):
		return core.Credit, true
	}
	return "", false
}
