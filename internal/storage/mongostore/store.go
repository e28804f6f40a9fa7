package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"txagg/internal/core"
	"txagg/internal/log"
	"txagg/internal/storage"
)

// Store implements storage.Store on three MongoDB collections.
type Store struct {
	provider CollectionProvider
	client   *mongo.Client
	logger   *log.Logger
}

var _ storage.Store = (*Store)(nil)

// New builds a store over provider. The store does not own a client, so
// Close is a no-op; use Open for a managed connection.
func New(provider CollectionProvider, logger *log.Logger) *Store {
	return &Store{
		provider: provider,
		logger:   logger.WithComponent(log.ComponentStorage),
	}
}

// Open connects to uri, ensures indexes on database and returns a store
// that disconnects on Close.
func Open(ctx context.Context, uri, database string, logger *log.Logger) (*Store, error) {
	client, err := Connect(ctx, uri, logger)
	if err != nil {
		return nil, err
	}
	db := client.Database(database)
	if err := EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	s := New(NewDatabaseProvider(db), logger)
	s.client = client
	return s, nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// Ping reports whether the server is reachable. Stores built with New have
// no client and always report healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Ping(ctx, nil); err != nil {
		return storage.Fail("ping", err)
	}
	return nil
}

func transactionSort() bson.D {
	return bson.D{{Key: "transaction_date", Value: -1}, {Key: "_id", Value: 1}}
}

func (s *Store) QueryTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter, p core.PageRequest) (core.Page[core.Transaction], error) {
	p = p.Normalize()
	filter := transactionFilter(vis, f)
	coll := s.provider.Collection(TransactionsCollection)

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return core.Page[core.Transaction]{}, storage.Fail("count transactions", err)
	}

	opts := options.Find().
		SetSort(transactionSort()).
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.PageSize))
	txs, err := findTransactions(ctx, coll, filter, opts)
	if err != nil {
		return core.Page[core.Transaction]{}, storage.Fail("query transactions", err)
	}
	return core.NewPage(txs, p, int(total)), nil
}

func (s *Store) ListTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter) ([]core.Transaction, error) {
	coll := s.provider.Collection(TransactionsCollection)
	txs, err := findTransactions(ctx, coll, transactionFilter(vis, f), options.Find().SetSort(transactionSort()))
	if err != nil {
		return nil, storage.Fail("list transactions", err)
	}
	return txs, nil
}

func (s *Store) CountTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter) (int, error) {
	n, err := s.provider.Collection(TransactionsCollection).CountDocuments(ctx, transactionFilter(vis, f))
	if err != nil {
		return 0, storage.Fail("count transactions", err)
	}
	return int(n), nil
}

func findTransactions(ctx context.Context, coll Collection, filter bson.D, opts *options.FindOptions) ([]core.Transaction, error) {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	txs := make([]core.Transaction, 0, len(docs))
	for _, d := range docs {
		txs = append(txs, d.toTransaction())
	}
	return txs, nil
}

// UpsertTransactions writes every field except created_at, which is only
// set when the document is inserted.
func (s *Store) UpsertTransactions(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(txs))
	for _, t := range txs {
		doc := fromTransaction(t)
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: doc.ID}}).
			SetUpdate(bson.D{
				{Key: "$set", Value: doc.mutableFields()},
				{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: doc.CreatedAt}}},
			}).
			SetUpsert(true))
	}
	_, err := s.bulkWrite(ctx, TransactionsCollection, "upsert transactions", models)
	return err
}

func (s *Store) UpdateCategories(ctx context.Context, changes []core.CategoryChange, at time.Time) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}

	stamp := at.UTC()
	models := make([]mongo.WriteModel, 0, len(changes))
	for _, c := range changes {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{
				{Key: "_id", Value: c.TransactionID},
				{Key: "category", Value: c.Previous},
				{Key: "is_deleted", Value: false},
			}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{
				{Key: "category", Value: c.Category},
				{Key: "updated_at", Value: stamp},
			}}}))
	}
	res, err := s.bulkWrite(ctx, TransactionsCollection, "update categories", models)
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

func (s *Store) ListRules(ctx context.Context, vis core.Visibility) ([]core.CategoryRule, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "priority", Value: -1},
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})
	cur, err := s.provider.Collection(RulesCollection).Find(ctx, visibilityFilter(vis), opts)
	if err != nil {
		return nil, storage.Fail("list rules", err)
	}
	var docs []ruleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storage.Fail("list rules", err)
	}

	rules := make([]core.CategoryRule, 0, len(docs))
	for _, d := range docs {
		rules = append(rules, core.CategoryRule{
			ID:           d.ID,
			CategoryID:   d.CategoryID,
			CategoryName: d.CategoryName,
			Keyword:      d.Keyword,
			Priority:     d.Priority,
			CreatedAt:    d.CreatedAt.UTC(),
			IsDeleted:    d.IsDeleted,
		})
	}
	return rules, nil
}

func (s *Store) UpsertRules(ctx context.Context, rules []core.CategoryRule) error {
	if len(rules) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(rules))
	for _, r := range rules {
		doc := ruleDoc{
			ID:           r.ID,
			CategoryID:   r.CategoryID,
			CategoryName: r.CategoryName,
			Keyword:      r.Keyword,
			Priority:     r.Priority,
			CreatedAt:    r.CreatedAt.UTC(),
			IsDeleted:    r.IsDeleted,
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: doc.ID}}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := s.bulkWrite(ctx, RulesCollection, "upsert rules", models)
	return err
}

func (s *Store) ListCategories(ctx context.Context, vis core.Visibility) ([]core.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := s.provider.Collection(CategoriesCollection).Find(ctx, visibilityFilter(vis), opts)
	if err != nil {
		return nil, storage.Fail("list categories", err)
	}
	var docs []categoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storage.Fail("list categories", err)
	}

	cats := make([]core.Category, 0, len(docs))
	for _, d := range docs {
		cats = append(cats, core.Category{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Keywords:    d.Keywords,
			IsDeleted:   d.IsDeleted,
		})
	}
	return cats, nil
}

func (s *Store) UpsertCategories(ctx context.Context, cats []core.Category) error {
	if len(cats) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(cats))
	for _, c := range cats {
		keywords := c.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		doc := categoryDoc{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Keywords:    keywords,
			IsDeleted:   c.IsDeleted,
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: doc.ID}}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := s.bulkWrite(ctx, CategoriesCollection, "upsert categories", models)
	return err
}

func (s *Store) bulkWrite(ctx context.Context, collection, op string, models []mongo.WriteModel) (*mongo.BulkWriteResult, error) {
	res, err := s.provider.Collection(collection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return nil, storage.Fail(op, err)
	}
	if res == nil {
		res = &mongo.BulkWriteResult{}
	}
	s.logger.DebugContext(ctx, "Bulk write completed",
		log.FieldOperation, op,
		"matched", res.MatchedCount,
		"modified", res.ModifiedCount,
		"upserted", res.UpsertedCount)
	return res, nil
}
