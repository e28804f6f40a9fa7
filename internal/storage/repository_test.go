package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"txagg/internal/core"
	"txagg/internal/log"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), log.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func day(d int) time.Time {
	return time.Date(2025, 4, d, 9, 30, 0, 0, time.UTC)
}

func sampleTransactions() []core.Transaction {
	mk := func(id, customer, name, desc, category, source string, cents int64, d int) core.Transaction {
		t := core.Transaction{
			ID: id, CustomerID: customer, CustomerName: name, Description: desc,
			Category: category, Source: source, Amount: core.Money{Cents: cents},
			Date: day(d), Currency: "ZAR",
		}
		t.Normalize(day(30))
		return t
	}
	deleted := mk("t5", "c1", "Thandi Nkosi", "Netflix", "", "Bank", -9900, 5)
	deleted.IsDeleted = true
	return []core.Transaction{
		mk("t1", "c1", "Thandi Nkosi", "Woolworths groceries", "Groceries", "Bank", -45000, 1),
		mk("t2", "c1", "Thandi Nkosi", "Salary", "", "Bank", 2500000, 2),
		mk("t3", "c2", "Pieter van Wyk", "Uber trip", "Transportation", "Card", -12050, 3),
		mk("t4", "c2", "Pieter van Wyk", "Random transfer", "Other", "Card", -500, 4),
		deleted,
	}
}

func TestSQLiteTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	txs := sampleTransactions()
	updated := day(20)
	txs[0].UpdatedAt = &updated
	if err := repo.UpsertTransactions(ctx, txs); err != nil {
		t.Fatalf("UpsertTransactions() error = %v", err)
	}

	got, err := repo.ListTransactions(ctx, core.ExcludeDeleted, core.TransactionFilter{ID: "t1"})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	want := txs[0]
	g := got[0]
	if g.ID != want.ID || g.Amount != want.Amount || !g.Date.Equal(want.Date) ||
		g.Type != core.Debit || g.Category != "Groceries" || g.Currency != "ZAR" ||
		g.UpdatedAt == nil || !g.UpdatedAt.Equal(updated) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", g, want)
	}
}

func TestSQLiteVisibility(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if err := repo.UpsertTransactions(ctx, sampleTransactions()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		vis  core.Visibility
		want int
	}{
		{core.ExcludeDeleted, 4},
		{core.IncludeDeleted, 5},
	}
	for _, tt := range tests {
		t.Run(tt.vis.String(), func(t *testing.T) {
			n, err := repo.CountTransactions(ctx, tt.vis, core.TransactionFilter{})
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.want {
				t.Errorf("count = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestSQLiteFilterMatchesReference(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	all := sampleTransactions()
	if err := repo.UpsertTransactions(ctx, all); err != nil {
		t.Fatal(err)
	}

	minAmt := core.Money{Cents: -20000}
	maxAmt := core.Money{Cents: 0}
	from, to := day(2), day(4)

	filters := map[string]core.TransactionFilter{
		"customer":       {CustomerID: "c2"},
		"name substring": {CustomerNameContains: "NKOSI"},
		"amount range":   {MinAmount: &minAmt, MaxAmount: &maxAmt},
		"date range":     {From: &from, To: &to},
		"description":    {DescriptionContains: "uber"},
		"category":       {Category: "Other"},
		"source":         {Source: "Bank"},
		"type":           {Type: core.Credit},
		"uncategorized":  {Uncategorized: true},
		"currency":       {Currency: "ZAR", Source: "Card"},
	}

	for name, f := range filters {
		t.Run(name, func(t *testing.T) {
			got, err := repo.ListTransactions(ctx, core.ExcludeDeleted, f)
			if err != nil {
				t.Fatal(err)
			}
			var want []string
			for _, tx := range all {
				if core.ExcludeDeleted.Admits(tx.IsDeleted) && f.Matches(tx) {
					want = append(want, tx.ID)
				}
			}
			if len(got) != len(want) {
				t.Fatalf("got %d rows, want %d (%v)", len(got), len(want), want)
			}
			seen := map[string]bool{}
			for _, tx := range got {
				seen[tx.ID] = true
			}
			for _, id := range want {
				if !seen[id] {
					t.Errorf("missing %s", id)
				}
			}
		})
	}
}

func TestSQLiteQueryPaging(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if err := repo.UpsertTransactions(ctx, sampleTransactions()); err != nil {
		t.Fatal(err)
	}

	page, err := repo.QueryTransactions(ctx, core.ExcludeDeleted, core.TransactionFilter{},
		core.PageRequest{PageNo: 2, PageSize: 3})
	if err != nil {
		t.Fatalf("QueryTransactions() error = %v", err)
	}
	if page.TotalCount != 4 || page.TotalPages != 2 {
		t.Errorf("total = %d pages = %d, want 4 and 2", page.TotalCount, page.TotalPages)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "t1" {
		t.Errorf("page 2 items = %+v, want [t1]", page.Items)
	}

	first, _ := repo.QueryTransactions(ctx, core.ExcludeDeleted, core.TransactionFilter{},
		core.PageRequest{PageNo: 1, PageSize: 3})
	if first.Items[0].ID != "t4" {
		t.Errorf("first item = %s, want newest t4", first.Items[0].ID)
	}
}

func TestSQLiteUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	txs := sampleTransactions()
	if err := repo.UpsertTransactions(ctx, txs); err != nil {
		t.Fatal(err)
	}

	changed := txs[1]
	changed.Category = "Income"
	changed.CreatedAt = day(29)
	if err := repo.UpsertTransactions(ctx, []core.Transaction{changed}); err != nil {
		t.Fatal(err)
	}

	n, _ := repo.CountTransactions(ctx, core.IncludeDeleted, core.TransactionFilter{})
	if n != len(txs) {
		t.Errorf("count = %d, want %d", n, len(txs))
	}
	got, _ := repo.ListTransactions(ctx, core.ExcludeDeleted, core.TransactionFilter{ID: "t2"})
	if got[0].Category != "Income" {
		t.Errorf("category = %q, want Income", got[0].Category)
	}
	if !got[0].CreatedAt.Equal(txs[1].CreatedAt) {
		t.Errorf("created_at = %v, want original %v", got[0].CreatedAt, txs[1].CreatedAt)
	}
}

func TestSQLiteUpdateCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	txs := sampleTransactions()
	if err := repo.UpsertTransactions(ctx, txs); err != nil {
		t.Fatal(err)
	}

	edited := txs[1]
	edited.Description = "Salary April"
	if err := repo.UpsertTransactions(ctx, []core.Transaction{edited}); err != nil {
		t.Fatal(err)
	}

	at := day(25)
	n, err := repo.UpdateCategories(ctx, []core.CategoryChange{
		{TransactionID: "t2", Previous: "", Category: "Income"},
		{TransactionID: "t4", Previous: "", Category: "Shopping"},
		{TransactionID: "t5", Previous: "", Category: "Entertainment"},
		{TransactionID: "missing", Previous: "", Category: "Other"},
	}, at)
	if err != nil {
		t.Fatalf("UpdateCategories() error = %v", err)
	}
	if n != 1 {
		t.Errorf("updated = %d, want 1", n)
	}

	rows, _ := repo.ListTransactions(ctx, core.IncludeDeleted, core.TransactionFilter{})
	byID := make(map[string]core.Transaction)
	for _, r := range rows {
		byID[r.ID] = r
	}

	t2 := byID["t2"]
	if t2.Category != "Income" || t2.Description != "Salary April" ||
		t2.UpdatedAt == nil || !t2.UpdatedAt.Equal(at) {
		t.Errorf("t2 = %+v, want Income with the edited description", t2)
	}
	if got := byID["t4"].Category; got != core.CategoryOther {
		t.Errorf("t4 category = %q, stale previous must not overwrite", got)
	}
	if t5 := byID["t5"]; t5.Category != "" || !t5.IsDeleted {
		t.Errorf("deleted t5 = %+v, want untouched", t5)
	}
}

func TestSQLiteRulesOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rules := []core.CategoryRule{
		{ID: "r1", CategoryName: "A", Keyword: "one", Priority: 5, CreatedAt: day(1)},
		{ID: "r2", CategoryName: "B", Keyword: "two", Priority: 10, CreatedAt: day(1)},
		{ID: "r3", CategoryName: "C", Keyword: "three", Priority: 5, CreatedAt: day(1)},
		{ID: "r4", CategoryName: "D", Keyword: "four", Priority: 50, CreatedAt: day(1), IsDeleted: true},
	}
	if err := repo.UpsertRules(ctx, rules); err != nil {
		t.Fatalf("UpsertRules() error = %v", err)
	}

	got, err := repo.ListRules(ctx, core.ExcludeDeleted)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "r2" || ids[1] != "r1" || ids[2] != "r3" {
		t.Errorf("order = %v, want [r2 r1 r3]", ids)
	}

	all, _ := repo.ListRules(ctx, core.IncludeDeleted)
	if len(all) != 4 || all[0].ID != "r4" {
		t.Errorf("IncludeDeleted = %+v", all)
	}
}

func TestSQLiteCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.UpsertCategories(ctx, core.DefaultCatalog()); err != nil {
		t.Fatalf("UpsertCategories() error = %v", err)
	}
	got, err := repo.ListCategories(ctx, core.ExcludeDeleted)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d categories, want 10", len(got))
	}
	if got[0].Name != core.CategoryDining {
		t.Errorf("first category = %q, want sorted by name", got[0].Name)
	}
	for _, c := range got {
		if c.Name == core.CategoryEntertainment && (len(c.Keywords) == 0 || c.Keywords[0] != "netflix") {
			t.Errorf("keywords not preserved: %v", c.Keywords)
		}
	}
}

func TestSQLiteClosedStoreFailure(t *testing.T) {
	repo := newTestRepo(t)
	repo.Close()

	_, err := repo.CountTransactions(context.Background(), core.ExcludeDeleted, core.TransactionFilter{})
	if !errors.Is(err, core.ErrStoreFailure) {
		t.Errorf("error = %v, want ErrStoreFailure", err)
	}
}
