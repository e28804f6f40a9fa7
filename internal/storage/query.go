package storage

import (
	"strings"

	"txagg/internal/core"
)

// whereClause renders a filter as a SQL WHERE clause with positional
// arguments. Substring predicates compare lower-cased values.
func whereClause(vis core.Visibility, f core.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, vals ...any) {
		conds = append(conds, cond)
		args = append(args, vals...)
	}

	if vis == core.ExcludeDeleted {
		add("is_deleted = 0")
	}
	if f.ID != "" {
		add("id = ?", f.ID)
	}
	if f.CustomerID != "" {
		add("customer_id = ?", f.CustomerID)
	}
	if f.CustomerNameContains != "" {
		add("instr(lower(customer_name), ?) > 0", strings.ToLower(f.CustomerNameContains))
	}
	if f.MinAmount != nil {
		add("amount_cents >= ?", f.MinAmount.Cents)
	}
	if f.MaxAmount != nil {
		add("amount_cents <= ?", f.MaxAmount.Cents)
	}
	if f.From != nil {
		add("transaction_date >= ?", f.From.UTC().UnixNano())
	}
	if f.To != nil {
		add("transaction_date <= ?", f.To.UTC().UnixNano())
	}
	if f.DescriptionContains != "" {
		add("instr(lower(description), ?) > 0", strings.ToLower(f.DescriptionContains))
	}
	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.Source != "" {
		add("source = ?", f.Source)
	}
	if f.Currency != "" {
		add("currency = ?", f.Currency)
	}
	if f.Type != "" {
		add("type = ?", string(f.Type))
	}
	if f.Uncategorized {
		add("category = ''")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
