package storage

import (
	"context"
	"fmt"
	"time"

	"txagg/internal/core"
)

// TransactionStore reads and writes transactions. Every read takes an
// explicit visibility so that including soft-deleted rows is always a
// visible decision at the call site.
type TransactionStore interface {
	// QueryTransactions returns one page of matches ordered by date
	// descending, with the total count of all matches.
	QueryTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter, p core.PageRequest) (core.Page[core.Transaction], error)
	// ListTransactions returns every match ordered by date descending.
	ListTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter) ([]core.Transaction, error)
	CountTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter) (int, error)
	// UpsertTransactions inserts or replaces transactions by id. The
	// creation time of an existing row is kept.
	UpsertTransactions(ctx context.Context, txs []core.Transaction) error
	// UpdateCategories sets category and updated_at on each named row,
	// leaving every other column untouched. A row is skipped when it is
	// soft-deleted or its category no longer equals Previous. It returns
	// the number of rows updated.
	UpdateCategories(ctx context.Context, changes []core.CategoryChange, at time.Time) (int, error)
}

// RuleStore holds categorization rules.
type RuleStore interface {
	// ListRules returns rules by priority descending, then creation order.
	ListRules(ctx context.Context, vis core.Visibility) ([]core.CategoryRule, error)
	UpsertRules(ctx context.Context, rules []core.CategoryRule) error
}

// CategoryStore holds the category catalog.
type CategoryStore interface {
	// ListCategories returns categories ordered by name.
	ListCategories(ctx context.Context, vis core.Visibility) ([]core.Category, error)
	UpsertCategories(ctx context.Context, cats []core.Category) error
}

// Store is the complete persistence port implemented by every backend.
type Store interface {
	TransactionStore
	RuleStore
	CategoryStore
	Close() error
}

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Fail wraps a backend error so that it matches core.ErrStoreFailure while
// keeping the cause inspectable.
func Fail(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreFailure, err)
}
