package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"txagg/internal/aggregate"
	"txagg/internal/cache"
	"txagg/internal/core"
	"txagg/internal/log"
	"txagg/internal/storage"
)

const categoriesKey = "names"

// Store is what the read side needs from persistence.
type Store interface {
	storage.TransactionStore
	storage.CategoryStore
}

// Service answers the read API. It never retries: store failures are
// returned wrapped so callers can report them.
type Service struct {
	store      Store
	categories *cache.LRUCache[[]string]
	logger     *log.Logger
}

// NewService creates the query service. Category names are cached for
// categoryTTL.
func NewService(store Store, categoryTTL time.Duration, logger *log.Logger) *Service {
	if categoryTTL <= 0 {
		categoryTTL = 5 * time.Minute
	}
	return &Service{
		store:      store,
		categories: cache.NewLRUCache[[]string](1, categoryTTL),
		logger:     logger.WithComponent(log.ComponentQuery),
	}
}

// CategoryCache exposes the category name cache for periodic cleanup.
func (s *Service) CategoryCache() cache.Cleaner {
	return s.categories
}

func (s *Service) All(ctx context.Context, p core.PageRequest) (core.Page[core.Transaction], error) {
	return s.page(ctx, "all", core.TransactionFilter{}, p)
}

func (s *Service) ByCustomer(ctx context.Context, customerID string, p core.PageRequest) (core.Page[core.Transaction], error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return core.Page[core.Transaction]{}, fmt.Errorf("%w: customer id is required", core.ErrValidation)
	}
	return s.page(ctx, "by customer", core.TransactionFilter{CustomerID: customerID}, p)
}

func (s *Service) ByCategory(ctx context.Context, category string, p core.PageRequest) (core.Page[core.Transaction], error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return core.Page[core.Transaction]{}, fmt.Errorf("%w: category is required", core.ErrValidation)
	}
	return s.page(ctx, "by category", core.TransactionFilter{Category: category}, p)
}

// ByDateRange lists transactions dated within [start, end], both inclusive.
func (s *Service) ByDateRange(ctx context.Context, start, end time.Time, p core.PageRequest) (core.Page[core.Transaction], error) {
	start, end = start.UTC(), end.UTC()
	if start.After(end) {
		return core.Page[core.Transaction]{}, fmt.Errorf("%w: startDate is after endDate", core.ErrValidation)
	}
	return s.page(ctx, "by date range", core.TransactionFilter{From: &start, To: &end}, p)
}

func (s *Service) BySource(ctx context.Context, source string, p core.PageRequest) (core.Page[core.Transaction], error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return core.Page[core.Transaction]{}, fmt.Errorf("%w: source is required", core.ErrValidation)
	}
	return s.page(ctx, "by source", core.TransactionFilter{Source: source}, p)
}

// Find runs a multi-criteria search. The request is validated before the
// store is touched.
func (s *Service) Find(ctx context.Context, req FindRequest, p core.PageRequest) (core.Page[core.Transaction], error) {
	f, err := req.Filter()
	if err != nil {
		return core.Page[core.Transaction]{}, err
	}
	return s.page(ctx, "find", f, p)
}

func (s *Service) page(ctx context.Context, op string, f core.TransactionFilter, p core.PageRequest) (core.Page[core.Transaction], error) {
	p = p.Clamp()
	page, err := s.store.QueryTransactions(ctx, core.ExcludeDeleted, f, p)
	if err != nil {
		return core.Page[core.Transaction]{}, fmt.Errorf("query transactions %s: %w", op, err)
	}
	s.logger.DebugContext(ctx, "Transactions queried",
		log.FieldOperation, op,
		log.FieldCount, len(page.Items),
		"total", page.TotalCount)
	return page, nil
}

// CustomerSummary aggregates every transaction of customerID. An unknown
// customer is core.ErrNotFound.
func (s *Service) CustomerSummary(ctx context.Context, customerID string) (core.CustomerSummary, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return core.CustomerSummary{}, fmt.Errorf("%w: customer id is required", core.ErrValidation)
	}

	txs, err := s.store.ListTransactions(ctx, core.ExcludeDeleted, core.TransactionFilter{CustomerID: customerID})
	if err != nil {
		return core.CustomerSummary{}, fmt.Errorf("customer summary: %w", err)
	}
	return aggregate.CustomerSummary(customerID, txs)
}

func (s *Service) CategorySummary(ctx context.Context) (core.CategorySummary, error) {
	txs, err := s.store.ListTransactions(ctx, core.ExcludeDeleted, core.TransactionFilter{})
	if err != nil {
		return core.CategorySummary{}, fmt.Errorf("category summary: %w", err)
	}
	return aggregate.CategoryBreakdown(txs), nil
}

func (s *Service) SourceSummary(ctx context.Context) (core.SourceSummary, error) {
	txs, err := s.store.ListTransactions(ctx, core.ExcludeDeleted, core.TransactionFilter{})
	if err != nil {
		return core.SourceSummary{}, fmt.Errorf("source summary: %w", err)
	}
	return aggregate.SourceBreakdown(txs), nil
}

// Categories returns the names of the active categories ordered by name.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	if names, ok := s.categories.Get(categoriesKey); ok {
		return append([]string(nil), names...), nil
	}

	cats, err := s.store.ListCategories(ctx, core.ExcludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	s.categories.Set(categoriesKey, names)
	return append([]string(nil), names...), nil
}
