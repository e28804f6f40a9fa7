package categorize

import (
	"context"
	"time"

	"txagg/internal/core"
	"txagg/internal/log"
)

// Categorizer assigns a category to a transaction. An already categorized
// transaction keeps its category. Implementations never fail: a missing
// match, or a missing rule set, yields core.CategoryOther.
type Categorizer interface {
	Categorize(ctx context.Context, t core.Transaction) string
}

// KeywordSet lists the keywords that map to one category.
type KeywordSet struct {
	Category string
	Keywords []string
}

// KeywordTable is an ordered category -> keywords mapping. Earlier entries
// take precedence over later ones.
type KeywordTable []KeywordSet

// DefaultKeywordTable mirrors the built-in category catalog.
func DefaultKeywordTable() KeywordTable {
	cats := core.DefaultCatalog()
	table := make(KeywordTable, 0, len(cats))
	for _, c := range cats {
		if len(c.Keywords) == 0 {
			continue
		}
		table = append(table, KeywordSet{Category: c.Name, Keywords: c.Keywords})
	}
	return table
}

// Rules expands the table into prioritized rules, first keyword highest.
func (kt KeywordTable) Rules() []core.CategoryRule {
	cats := make([]core.Category, 0, len(kt))
	for _, ks := range kt {
		cats = append(cats, core.Category{ID: ks.Category, Name: ks.Category, Keywords: ks.Keywords})
	}
	total := 0
	for _, ks := range kt {
		total += len(ks.Keywords)
	}
	return core.RulesFromCategories(cats, total, time.Time{})
}

// Static categorizes from a fixed keyword table without any store access.
type Static struct {
	rules  []core.CategoryRule
	logger *log.Logger
}

var _ Categorizer = (*Static)(nil)

// NewStatic builds a categorizer from table. The table is copied, so later
// changes by the caller have no effect.
func NewStatic(table KeywordTable, logger *log.Logger) *Static {
	s := &Static{
		rules:  SortRules(table.Rules()),
		logger: logger.WithComponent(log.ComponentCategorize),
	}
	if len(s.rules) == 0 {
		s.logger.Warn("Static keyword table is empty, every transaction falls back to Other",
			log.FieldError, core.ErrDegradedRuleSet)
	}
	return s
}

func (s *Static) Categorize(ctx context.Context, t core.Transaction) string {
	if t.Category != "" {
		return t.Category
	}
	if len(s.rules) == 0 {
		return core.CategoryOther
	}
	return Match(t.Description, s.rules)
}
