package mongostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"txagg/internal/core"
	"txagg/internal/log"
)

type mockCollection struct {
	findFunc      func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	countFunc     func(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	bulkWriteFunc func(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

func (m *mockCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, filter, opts...)
	}
	return mongo.NewCursorFromDocuments(nil, nil, nil)
}

func (m *mockCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter, opts...)
	}
	return 0, nil
}

func (m *mockCollection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	if m.bulkWriteFunc != nil {
		return m.bulkWriteFunc(ctx, models, opts...)
	}
	return &mongo.BulkWriteResult{}, nil
}

type mockProvider map[string]*mockCollection

func (m mockProvider) Collection(name string) Collection {
	if c, ok := m[name]; ok {
		return c
	}
	return &mockCollection{}
}

func lookup(d bson.D, key string) (interface{}, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func TestTransactionFilter(t *testing.T) {
	minAmt := core.Money{Cents: -5000}
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("visibility", func(t *testing.T) {
		if _, ok := lookup(transactionFilter(core.ExcludeDeleted, core.TransactionFilter{}), "is_deleted"); !ok {
			t.Error("ExcludeDeleted must filter is_deleted")
		}
		if len(transactionFilter(core.IncludeDeleted, core.TransactionFilter{})) != 0 {
			t.Error("IncludeDeleted with empty filter must match everything")
		}
	})

	t.Run("fields", func(t *testing.T) {
		d := transactionFilter(core.IncludeDeleted, core.TransactionFilter{
			CustomerID:          "c1",
			DescriptionContains: "a.b",
			MinAmount:           &minAmt,
			From:                &from,
			Type:                core.Debit,
		})

		if v, _ := lookup(d, "customer_id"); v != "c1" {
			t.Errorf("customer_id = %v", v)
		}
		re, ok := lookup(d, "description")
		if !ok || re.(primitive.Regex).Pattern != `a\.b` || re.(primitive.Regex).Options != "i" {
			t.Errorf("description = %#v, want escaped case-insensitive regex", re)
		}
		amt, _ := lookup(d, "amount_cents")
		if gte, _ := lookup(amt.(bson.D), "$gte"); gte != int64(-5000) {
			t.Errorf("amount $gte = %v", gte)
		}
		if _, ok := lookup(amt.(bson.D), "$lte"); ok {
			t.Error("unexpected upper amount bound")
		}
		date, _ := lookup(d, "transaction_date")
		if gte, _ := lookup(date.(bson.D), "$gte"); !gte.(time.Time).Equal(from) {
			t.Errorf("date $gte = %v", gte)
		}
		if v, _ := lookup(d, "type"); v != "Debit" {
			t.Errorf("type = %v", v)
		}
	})

	t.Run("uncategorized", func(t *testing.T) {
		d := transactionFilter(core.ExcludeDeleted, core.TransactionFilter{Uncategorized: true})
		if v, _ := lookup(d, "category"); v != "" {
			t.Errorf("category = %#v, want empty string", v)
		}
	})
}

func TestQueryTransactions(t *testing.T) {
	date := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	docs := []interface{}{
		transactionDoc{ID: "t1", CustomerID: "c1", AmountCents: -1250, Date: date, Type: "Debit", Category: "Dining"},
	}

	var gotOpts *options.FindOptions
	coll := &mockCollection{
		countFunc: func(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
			return 41, nil
		},
		findFunc: func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
			gotOpts = opts[0]
			return mongo.NewCursorFromDocuments(docs, nil, nil)
		},
	}
	s := New(mockProvider{TransactionsCollection: coll}, log.Discard())

	page, err := s.QueryTransactions(context.Background(), core.ExcludeDeleted,
		core.TransactionFilter{CustomerID: "c1"}, core.PageRequest{PageNo: 3, PageSize: 20})
	if err != nil {
		t.Fatalf("QueryTransactions() error = %v", err)
	}
	if page.TotalCount != 41 || page.TotalPages != 3 {
		t.Errorf("total = %d pages = %d", page.TotalCount, page.TotalPages)
	}
	if *gotOpts.Skip != 40 || *gotOpts.Limit != 20 {
		t.Errorf("skip = %d limit = %d, want 40 and 20", *gotOpts.Skip, *gotOpts.Limit)
	}
	if len(page.Items) != 1 || page.Items[0].Amount.Cents != -1250 || !page.Items[0].Date.Equal(date) {
		t.Errorf("items = %+v", page.Items)
	}
}

func TestUpsertTransactionsKeepsCreatedAt(t *testing.T) {
	var models []mongo.WriteModel
	coll := &mockCollection{
		bulkWriteFunc: func(ctx context.Context, m []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
			models = m
			return &mongo.BulkWriteResult{UpsertedCount: int64(len(m))}, nil
		},
	}
	s := New(mockProvider{TransactionsCollection: coll}, log.Discard())

	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	err := s.UpsertTransactions(context.Background(), []core.Transaction{
		{ID: "a", Amount: core.Money{Cents: 100}, Type: core.Credit, CreatedAt: created},
		{ID: "b", Amount: core.Money{Cents: -100}, Type: core.Debit},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	m, ok := models[0].(*mongo.UpdateOneModel)
	if !ok || m.Upsert == nil || !*m.Upsert {
		t.Fatalf("model = %#v, want upserting UpdateOneModel", models[0])
	}
	if id, _ := lookup(m.Filter.(bson.D), "_id"); id != "a" {
		t.Errorf("filter _id = %v", id)
	}

	update := m.Update.(bson.D)
	set, _ := lookup(update, "$set")
	if v, _ := lookup(set.(bson.D), "amount_cents"); v != int64(100) {
		t.Errorf("$set amount_cents = %v", v)
	}
	if _, ok := lookup(set.(bson.D), "created_at"); ok {
		t.Error("created_at must not be overwritten on update")
	}
	onInsert, _ := lookup(update, "$setOnInsert")
	if v, _ := lookup(onInsert.(bson.D), "created_at"); !v.(time.Time).Equal(created) {
		t.Errorf("$setOnInsert created_at = %v, want %v", v, created)
	}
}

func TestUpdateCategoriesSetsOnlyCategory(t *testing.T) {
	var models []mongo.WriteModel
	coll := &mockCollection{
		bulkWriteFunc: func(ctx context.Context, m []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
			models = m
			return &mongo.BulkWriteResult{MatchedCount: 1, ModifiedCount: 1}, nil
		},
	}
	s := New(mockProvider{TransactionsCollection: coll}, log.Discard())
	at := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	n, err := s.UpdateCategories(context.Background(), []core.CategoryChange{
		{TransactionID: "a", Previous: "", Category: "Entertainment"},
		{TransactionID: "b", Previous: core.CategoryOther, Category: "Transportation"},
	}, at)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("updated = %d, want the modified count 1", n)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}

	m, ok := models[1].(*mongo.UpdateOneModel)
	if !ok || (m.Upsert != nil && *m.Upsert) {
		t.Fatalf("model = %#v, want non-upserting UpdateOneModel", models[1])
	}
	filter := m.Filter.(bson.D)
	if v, _ := lookup(filter, "category"); v != core.CategoryOther {
		t.Errorf("filter category = %v, want previous category", v)
	}
	if v, _ := lookup(filter, "is_deleted"); v != false {
		t.Errorf("filter is_deleted = %v", v)
	}
	set, _ := lookup(m.Update.(bson.D), "$set")
	if len(set.(bson.D)) != 2 {
		t.Fatalf("$set = %v, want category and updated_at only", set)
	}
	if v, _ := lookup(set.(bson.D), "updated_at"); !v.(time.Time).Equal(at) {
		t.Errorf("$set updated_at = %v", v)
	}
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	coll := &mockCollection{
		bulkWriteFunc: func(ctx context.Context, m []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
			t.Error("BulkWrite called for empty batch")
			return nil, nil
		},
	}
	s := New(mockProvider{TransactionsCollection: coll}, log.Discard())
	if err := s.UpsertTransactions(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
}

func TestStoreFailureWrapped(t *testing.T) {
	coll := &mockCollection{
		countFunc: func(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
			return 0, errors.New("server selection timeout")
		},
	}
	s := New(mockProvider{TransactionsCollection: coll}, log.Discard())

	_, err := s.CountTransactions(context.Background(), core.ExcludeDeleted, core.TransactionFilter{})
	if !errors.Is(err, core.ErrStoreFailure) {
		t.Errorf("error = %v, want ErrStoreFailure", err)
	}
}

func TestListRulesSortsByPriority(t *testing.T) {
	var sort interface{}
	coll := &mockCollection{
		findFunc: func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
			sort = opts[0].Sort
			return mongo.NewCursorFromDocuments([]interface{}{
				ruleDoc{ID: "r1", CategoryName: "Dining", Keyword: "cafe", Priority: 9},
			}, nil, nil)
		},
	}
	s := New(mockProvider{RulesCollection: coll}, log.Discard())

	rules, err := s.ListRules(context.Background(), core.ExcludeDeleted)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].Keyword != "cafe" {
		t.Errorf("rules = %+v", rules)
	}
	d := sort.(bson.D)
	if d[0].Key != "priority" || d[0].Value != -1 {
		t.Errorf("sort = %v, want priority descending first", d)
	}
}
