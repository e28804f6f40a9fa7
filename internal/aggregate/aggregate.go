// Package aggregate computes breakdowns and summaries over transaction sets.
//
// All functions are pure reductions: they perform no I/O, do not modify
// their input, and return rows sorted by name so identical inputs give
// identical outputs regardless of order.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"txagg/internal/core"
)

type group struct {
	total core.Money
	count int
}

func (g *group) add(m core.Money) {
	g.total = g.total.Add(m)
	g.count++
}

func groupBy(txs []core.Transaction, key func(core.Transaction) string) (map[string]*group, []string) {
	groups := make(map[string]*group)
	var names []string
	for _, t := range txs {
		k := key(t)
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			names = append(names, k)
		}
		g.add(t.Amount)
	}
	sort.Strings(names)
	return groups, names
}

// CategoryBreakdown groups txs by category value.
func CategoryBreakdown(txs []core.Transaction) core.CategorySummary {
	groups, names := groupBy(txs, func(t core.Transaction) string { return t.Category })

	summary := core.CategorySummary{
		Breakdowns:        make([]core.CategoryBreakdown, 0, len(names)),
		TotalTransactions: len(txs),
	}
	for _, name := range names {
		g := groups[name]
		summary.Breakdowns = append(summary.Breakdowns, core.CategoryBreakdown{
			Name:          name,
			TotalAmount:   g.total,
			Count:         g.count,
			AverageAmount: core.Average(g.total, g.count),
		})
		summary.TotalAmount = summary.TotalAmount.Add(g.total)
	}
	return summary
}

// SourceBreakdown groups txs by source. Percentages are shares of the
// transaction count, not of the amount.
func SourceBreakdown(txs []core.Transaction) core.SourceSummary {
	groups, names := groupBy(txs, func(t core.Transaction) string { return t.Source })

	total := len(txs)
	summary := core.SourceSummary{
		Breakdowns:        make([]core.SourceBreakdown, 0, len(names)),
		TotalTransactions: total,
	}
	for _, name := range names {
		g := groups[name]
		summary.Breakdowns = append(summary.Breakdowns, core.SourceBreakdown{
			Name:        name,
			Count:       g.count,
			TotalAmount: g.total,
			Percentage:  percentage(g.count, total),
		})
	}
	return summary
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}

// CustomerSummary summarizes the transactions of one customer. Rows of
// other customers in txs are ignored. A customer without transactions is
// reported as core.ErrNotFound.
func CustomerSummary(customerID string, txs []core.Transaction) (core.CustomerSummary, error) {
	var own []core.Transaction
	for _, t := range txs {
		if t.CustomerID == customerID {
			own = append(own, t)
		}
	}
	if len(own) == 0 {
		return core.CustomerSummary{}, fmt.Errorf("customer %q: %w", customerID, core.ErrNotFound)
	}

	summary := core.CustomerSummary{
		CustomerID:       customerID,
		TransactionCount: len(own),
	}

	var first, last time.Time
	var firstID string
	sources := make(map[string]struct{})
	for i, t := range own {
		summary.TotalAmount = summary.TotalAmount.Add(t.Amount)
		sources[t.Source] = struct{}{}

		// earliest row names the customer; ties go to the lower id
		if i == 0 || t.Date.Before(first) || (t.Date.Equal(first) && t.ID < firstID) {
			first, firstID = t.Date, t.ID
			summary.CustomerName = t.CustomerName
		}
		if i == 0 || t.Date.After(last) {
			last = t.Date
		}
	}
	summary.AverageAmount = core.Average(summary.TotalAmount, summary.TransactionCount)
	summary.FirstDate = first
	summary.LastDate = last

	summary.Sources = make([]string, 0, len(sources))
	for s := range sources {
		summary.Sources = append(summary.Sources, s)
	}
	sort.Strings(summary.Sources)

	groups, names := groupBy(own, func(t core.Transaction) string { return t.Category })
	summary.Categories = make([]core.CategoryTotal, 0, len(names))
	for _, name := range names {
		g := groups[name]
		summary.Categories = append(summary.Categories, core.CategoryTotal{
			Name:  name,
			Total: g.total,
			Count: g.count,
		})
	}
	return summary, nil
}
