package core

import (
	"errors"
	"testing"
	"time"
)

func TestTypeForAmount(t *testing.T) {
	cases := []struct {
		cents int64
		want  TransactionType
	}{
		{1, Credit},
		{250000, Credit},
		{-1, Debit},
		{0, Debit},
	}
	for _, tc := range cases {
		if got := TypeForAmount(Money{Cents: tc.cents}); got != tc.want {
			t.Errorf("TypeForAmount(%d) = %s, want %s", tc.cents, got, tc.want)
		}
	}
}

func TestTransactionNormalize(t *testing.T) {
	loc := time.FixedZone("SAST", 2*60*60)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := Transaction{
		Amount:      Money{Cents: -4500},
		Date:        time.Date(2025, 2, 28, 10, 0, 0, 0, loc),
		Description: "  Uber Ride ",
		Currency:    "",
		Type:        Credit,
	}
	tx.Normalize(now)

	if tx.Currency != DefaultCurrency {
		t.Errorf("currency = %q, want %q", tx.Currency, DefaultCurrency)
	}
	if tx.Type != Debit {
		t.Errorf("type = %s, want Debit", tx.Type)
	}
	if tx.Date.Location() != time.UTC || tx.Date.Hour() != 8 {
		t.Errorf("date not converted to UTC: %v", tx.Date)
	}
	if tx.Description != "Uber Ride" {
		t.Errorf("description not trimmed: %q", tx.Description)
	}
	if !tx.CreatedAt.Equal(now) {
		t.Errorf("createdAt = %v, want %v", tx.CreatedAt, now)
	}

	tx.Currency = "usd"
	tx.Normalize(now.Add(time.Hour))
	if tx.Currency != "USD" {
		t.Errorf("currency = %q, want USD", tx.Currency)
	}
	if !tx.CreatedAt.Equal(now) {
		t.Error("normalize must not overwrite an existing createdAt")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:          "t1",
		CustomerID:  "CUST-001",
		Amount:      Money{Cents: -1000},
		Date:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "Netflix",
		Source:      "Credit Card System",
		Type:        Debit,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"missing customer", func(tx *Transaction) { tx.CustomerID = " " }, ErrEmptyCustomerID},
		{"missing description", func(tx *Transaction) { tx.Description = "" }, ErrEmptyDescription},
		{"missing source", func(tx *Transaction) { tx.Source = "" }, ErrEmptySource},
		{"zero date", func(tx *Transaction) { tx.Date = time.Time{} }, ErrZeroDate},
		{"date before 1900", func(tx *Transaction) { tx.Date = time.Date(1677, 6, 1, 0, 0, 0, 0, time.UTC) }, ErrDateOutOfRange},
		{"date after 2199", func(tx *Transaction) { tx.Date = time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC) }, ErrDateOutOfRange},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"type mismatch", func(tx *Transaction) { tx.Type = Credit }, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := good
			tt.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransactionIsCandidate(t *testing.T) {
	cases := []struct {
		tx   Transaction
		want bool
	}{
		{Transaction{Category: ""}, true},
		{Transaction{Category: CategoryOther}, true},
		{Transaction{Category: CategoryDining}, false},
		{Transaction{Category: "", IsDeleted: true}, false},
		{Transaction{Category: CategoryOther, IsDeleted: true}, false},
	}
	for i, tc := range cases {
		if got := tc.tx.IsCandidate(); got != tc.want {
			t.Errorf("case %d: IsCandidate() = %v, want %v", i, got, tc.want)
		}
	}
}

func TestRulesFromCategories(t *testing.T) {
	now := time.Now()
	cats := []Category{
		{ID: "c1", Name: "A", Keywords: []string{"a1", "a2"}},
		{ID: "c2", Name: "B", Keywords: []string{"b1"}, IsDeleted: true},
		{ID: "c3", Name: "C", Keywords: []string{"c1"}},
		{ID: "c4", Name: CategoryOther},
	}
	rules := RulesFromCategories(cats, 100, now)
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	want := []struct {
		keyword  string
		category string
		priority int
	}{
		{"a1", "A", 100},
		{"a2", "A", 99},
		{"c1", "C", 98},
	}
	for i, w := range want {
		r := rules[i]
		if r.Keyword != w.keyword || r.CategoryName != w.category || r.Priority != w.priority {
			t.Errorf("rule %d = %+v, want %+v", i, r, w)
		}
		if r.ID == "" || r.CategoryID == "" {
			t.Errorf("rule %d missing ids: %+v", i, r)
		}
	}
}

func TestDefaultCatalog(t *testing.T) {
	cats := DefaultCatalog()
	if len(cats) != 10 {
		t.Fatalf("expected 10 categories, got %d", len(cats))
	}
	seen := make(map[string]bool)
	for _, c := range cats {
		if seen[c.Name] {
			t.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
	}
	if last := cats[len(cats)-1]; last.Name != CategoryOther || len(last.Keywords) != 0 {
		t.Errorf("expected Other without keywords last, got %+v", last)
	}
}
