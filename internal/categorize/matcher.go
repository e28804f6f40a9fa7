// Package categorize assigns spending categories to transactions from
// keyword rules evaluated in priority order.
package categorize

import (
	"sort"
	"strings"

	"txagg/internal/core"
)

// Match returns the category of the first rule whose keyword occurs in
// description, ignoring case. rules must already be in evaluation order
// (see SortRules). No match, or no rules, yields core.CategoryOther.
func Match(description string, rules []core.CategoryRule) string {
	desc := strings.ToLower(description)
	for _, r := range rules {
		if strings.Contains(desc, strings.ToLower(r.Keyword)) {
			return r.CategoryName
		}
	}
	return core.CategoryOther
}

// SortRules returns the active rules ordered by priority, highest first.
// Rules of equal priority keep their relative input order. Deleted rules
// and rules with a blank keyword are dropped. The input is not modified.
func SortRules(rules []core.CategoryRule) []core.CategoryRule {
	active := make([]core.CategoryRule, 0, len(rules))
	for _, r := range rules {
		if r.IsDeleted || strings.TrimSpace(r.Keyword) == "" {
			continue
		}
		active = append(active, r)
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})
	return active
}
