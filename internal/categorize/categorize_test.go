package categorize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"txagg/internal/cache"
	"txagg/internal/core"
	"txagg/internal/log"
)

func rule(keyword, category string, priority int) core.CategoryRule {
	return core.CategoryRule{ID: keyword, CategoryName: category, Keyword: keyword, Priority: priority}
}

func TestMatch(t *testing.T) {
	rules := SortRules([]core.CategoryRule{
		rule("uber", "Transportation", 50),
		rule("netflix", "Entertainment", 90),
		rule("coffee", "Dining", 10),
	})

	tests := []struct {
		name        string
		description string
		rules       []core.CategoryRule
		want        string
	}{
		{"case insensitive", "NETFLIX.COM subscription", rules, "Entertainment"},
		{"substring", "Trip with Uber BV", rules, "Transportation"},
		{"no match", "Transfer to savings", rules, core.CategoryOther},
		{"no rules", "Netflix", nil, core.CategoryOther},
		{"empty description", "", rules, core.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.description, tt.rules); got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.description, got, tt.want)
			}
		})
	}
}

func TestMatchResultIsOtherOrMatchingRule(t *testing.T) {
	rules := SortRules(DefaultKeywordTable().Rules())
	descriptions := []string{
		"Walmart Supercenter", "Shell 1234", "monthly internet bill",
		"Coursera Plus", "random transfer", "", "HILTON HOTELS", "h&m store",
	}

	for _, d := range descriptions {
		got := Match(d, rules)
		if got == core.CategoryOther {
			continue
		}
		found := false
		for _, r := range rules {
			if r.CategoryName == got && strings.Contains(strings.ToLower(d), strings.ToLower(r.Keyword)) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Match(%q) = %q, but no rule of that category matches", d, got)
		}
	}
}

func TestMatchPriorityIndependentOfInputOrder(t *testing.T) {
	high := rule("netflix", "Entertainment", 10)
	low := rule("net", "Internet", 1)

	orders := [][]core.CategoryRule{
		{high, low},
		{low, high},
	}
	for i, in := range orders {
		if got := Match("Netflix Payment", SortRules(in)); got != "Entertainment" {
			t.Errorf("order %d: got %q, want Entertainment", i, got)
		}
	}
}

func TestSortRules(t *testing.T) {
	deleted := rule("gone", "X", 100)
	deleted.IsDeleted = true
	in := []core.CategoryRule{
		rule("a", "A", 5),
		deleted,
		rule("b", "B", 9),
		rule("  ", "Blank", 50),
		rule("c", "C", 5),
	}

	got := SortRules(in)
	var keywords []string
	for _, r := range got {
		keywords = append(keywords, r.Keyword)
	}
	if strings.Join(keywords, ",") != "b,a,c" {
		t.Errorf("order = %v, want [b a c]", keywords)
	}
	if in[0].Keyword != "a" || in[2].Keyword != "b" {
		t.Error("input slice was modified")
	}
}

func TestStaticCategorize(t *testing.T) {
	ctx := context.Background()
	table := KeywordTable{
		{Category: "Entertainment", Keywords: []string{"netflix"}},
		{Category: "Utilities", Keywords: []string{"net"}},
	}
	s := NewStatic(table, log.Discard())

	tests := []struct {
		name string
		tx   core.Transaction
		want string
	}{
		{"earlier entry wins", core.Transaction{Description: "Netflix Payment"}, "Entertainment"},
		{"later entry", core.Transaction{Description: "Internet provider"}, "Utilities"},
		{"fallback", core.Transaction{Description: "ATM withdrawal"}, core.CategoryOther},
		{"already categorized", core.Transaction{Description: "Netflix", Category: "Gifts"}, "Gifts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Categorize(ctx, tt.tx); got != tt.want {
				t.Errorf("Categorize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStaticEmptyTable(t *testing.T) {
	s := NewStatic(nil, log.Discard())
	if got := s.Categorize(context.Background(), core.Transaction{Description: "Netflix"}); got != core.CategoryOther {
		t.Errorf("got %q, want Other", got)
	}
}

func TestDefaultKeywordTable(t *testing.T) {
	s := NewStatic(DefaultKeywordTable(), log.Discard())
	ctx := context.Background()

	cases := map[string]string{
		"WALMART #123":        core.CategoryGroceries,
		"Spotify Premium":     core.CategoryEntertainment,
		"Uber trip":           core.CategoryTransportation,
		"Starbucks Rosebank":  core.CategoryDining,
		"Udemy course":        core.CategoryEducation,
		"Salary October":      core.CategoryOther,
		"Airbnb Cape Town":    core.CategoryTravel,
		"CVS Pharmacy refund": core.CategoryHealthcare,
	}
	for desc, want := range cases {
		if got := s.Categorize(ctx, core.Transaction{Description: desc}); got != want {
			t.Errorf("Categorize(%q) = %q, want %q", desc, got, want)
		}
	}
}

type fakeRuleSource struct {
	mu    sync.Mutex
	rules []core.CategoryRule
	err   error
	calls int
}

func (f *fakeRuleSource) ListRules(ctx context.Context, vis core.Visibility) ([]core.CategoryRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if vis != core.ExcludeDeleted {
		return nil, errors.New("unexpected visibility")
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]core.CategoryRule(nil), f.rules...), nil
}

func (f *fakeRuleSource) set(rules []core.CategoryRule, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules, f.err = rules, err
}

func (f *fakeRuleSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestStoreCategorizerUsesSnapshot(t *testing.T) {
	ctx := context.Background()
	src := &fakeRuleSource{rules: []core.CategoryRule{
		rule("net", "Internet", 1),
		rule("netflix", "Entertainment", 10),
	}}
	c := NewStoreCategorizer(src, time.Hour, log.Discard())

	for i := 0; i < 5; i++ {
		if got := c.Categorize(ctx, core.Transaction{Description: "Netflix Payment"}); got != "Entertainment" {
			t.Fatalf("Categorize() = %q, want Entertainment", got)
		}
	}
	if n := src.callCount(); n != 1 {
		t.Errorf("ListRules called %d times, want 1", n)
	}
}

func TestStoreCategorizerShortCircuit(t *testing.T) {
	src := &fakeRuleSource{rules: []core.CategoryRule{rule("netflix", "Entertainment", 10)}}
	c := NewStoreCategorizer(src, time.Hour, log.Discard())

	tx := core.Transaction{Description: "Netflix", Category: "Subscriptions"}
	if got := c.Categorize(context.Background(), tx); got != "Subscriptions" {
		t.Errorf("got %q, want Subscriptions", got)
	}
	if n := src.callCount(); n != 0 {
		t.Errorf("rules loaded %d times for categorized transaction", n)
	}
}

func TestStoreCategorizerRefresh(t *testing.T) {
	ctx := context.Background()
	src := &fakeRuleSource{}
	c := NewStoreCategorizer(src, time.Hour, log.Discard())

	if got := c.Categorize(ctx, core.Transaction{Description: "Udemy"}); got != core.CategoryOther {
		t.Fatalf("empty rule set: got %q, want Other", got)
	}

	src.set([]core.CategoryRule{rule("udemy", "Education", 5)}, nil)
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := c.Categorize(ctx, core.Transaction{Description: "Udemy"}); got != "Education" {
		t.Errorf("after refresh: got %q, want Education", got)
	}
}

func TestStoreCategorizerStaleOnError(t *testing.T) {
	ctx := context.Background()
	src := &fakeRuleSource{rules: []core.CategoryRule{rule("uber", "Transportation", 5)}}
	c := NewStoreCategorizer(src, time.Hour, log.Discard())

	now := time.Now()
	c.snapshot = cache.NewLRUCache[[]core.CategoryRule](1, time.Hour).WithClock(func() time.Time { return now })
	if _, err := c.Rules(ctx); err != nil {
		t.Fatalf("Rules() error = %v", err)
	}

	now = now.Add(2 * time.Hour)
	src.set(nil, errors.New("connection reset"))

	if got := c.Categorize(ctx, core.Transaction{Description: "uber eats"}); got != "Transportation" {
		t.Errorf("stale snapshot: got %q, want Transportation", got)
	}
	if err := c.Refresh(ctx); err == nil {
		t.Error("Refresh() should report the store failure")
	}

	src.set([]core.CategoryRule{rule("uber", "Travel", 5)}, nil)
	if got := c.Categorize(ctx, core.Transaction{Description: "uber eats"}); got != "Travel" {
		t.Errorf("after recovery: got %q, want Travel", got)
	}
}

func TestStoreCategorizerNoSnapshotOnError(t *testing.T) {
	src := &fakeRuleSource{err: errors.New("down")}
	c := NewStoreCategorizer(src, time.Hour, log.Discard())

	if got := c.Categorize(context.Background(), core.Transaction{Description: "uber"}); got != core.CategoryOther {
		t.Errorf("got %q, want Other", got)
	}
}
