package core

import (
	"time"

	"github.com/google/uuid"
)

// Built-in category names.
const (
	CategoryGroceries      = "Groceries"
	CategoryEntertainment  = "Entertainment"
	CategoryUtilities      = "Utilities"
	CategoryTransportation = "Transportation"
	CategoryHealthcare     = "Healthcare"
	CategoryShopping       = "Shopping"
	CategoryDining         = "Dining"
	CategoryTravel         = "Travel"
	CategoryEducation      = "Education"
)

// DefaultCatalog returns the built-in categories in evaluation order.
// Each call returns fresh values with new ids.
func DefaultCatalog() []Category {
	defs := []struct {
		name, desc string
		keywords   []string
	}{
		{CategoryGroceries, "Grocery stores and supermarkets",
			[]string{"walmart", "target", "grocery", "supermarket", "safeway", "kroger", "whole foods"}},
		{CategoryEntertainment, "Entertainment and streaming services",
			[]string{"netflix", "spotify", "hulu", "disney", "hbo", "theater", "cinema", "movie"}},
		{CategoryUtilities, "Utility bills and services",
			[]string{"electric", "water", "gas", "internet", "phone", "utility", "bill"}},
		{CategoryTransportation, "Transportation and fuel",
			[]string{"uber", "lyft", "gas station", "shell", "exxon", "chevron", "parking", "transit"}},
		{CategoryHealthcare, "Healthcare and medical services",
			[]string{"pharmacy", "cvs", "walgreens", "hospital", "clinic", "doctor", "medical", "health"}},
		{CategoryShopping, "Shopping and retail",
			[]string{"amazon", "ebay", "clothing", "h&m", "zara", "store", "mall"}},
		{CategoryDining, "Restaurants and food services",
			[]string{"restaurant", "cafe", "bistro", "diner", "pizza", "burger", "starbucks", "coffee"}},
		{CategoryTravel, "Travel and accommodation",
			[]string{"flight", "hotel", "airline", "marriott", "hilton", "booking", "airbnb", "travel"}},
		{CategoryEducation, "Education and learning",
			[]string{"course", "udemy", "coursera", "school", "university", "tuition", "education", "learning"}},
		{CategoryOther, "Other uncategorized transactions", nil},
	}

	cats := make([]Category, 0, len(defs))
	for _, d := range defs {
		cats = append(cats, Category{
			ID:          uuid.NewString(),
			Name:        d.name,
			Description: d.desc,
			Keywords:    append([]string(nil), d.keywords...),
		})
	}
	return cats
}

// RulesFromCategories generates one rule per keyword. Priorities count down
// from startPriority in catalog order, so earlier categories and earlier
// keywords win. Deleted categories and categories without keywords are skipped.
func RulesFromCategories(cats []Category, startPriority int, now time.Time) []CategoryRule {
	var rules []CategoryRule
	priority := startPriority
	for _, c := range cats {
		if c.IsDeleted {
			continue
		}
		for _, kw := range c.Keywords {
			rules = append(rules, CategoryRule{
				ID:           uuid.NewString(),
				CategoryID:   c.ID,
				CategoryName: c.Name,
				Keyword:      kw,
				Priority:     priority,
				CreatedAt:    now.UTC(),
			})
			priority--
		}
	}
	return rules
}
