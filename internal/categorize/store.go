package categorize

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"txagg/internal/cache"
	"txagg/internal/core"
	"txagg/internal/log"
)

const snapshotKey = "active"

// RuleSource provides the persisted rule set.
type RuleSource interface {
	ListRules(ctx context.Context, vis core.Visibility) ([]core.CategoryRule, error)
}

// StoreCategorizer categorizes against rules read from a RuleSource. The
// active rules are kept as a snapshot that expires after the refresh
// interval; Refresh reloads it eagerly.
type StoreCategorizer struct {
	src      RuleSource
	snapshot *cache.LRUCache[[]core.CategoryRule]
	group    singleflight.Group
	logger   *log.Logger
}

var _ Categorizer = (*StoreCategorizer)(nil)

// NewStoreCategorizer creates a store-backed categorizer. refresh is the
// lifetime of a loaded snapshot.
func NewStoreCategorizer(src RuleSource, refresh time.Duration, logger *log.Logger) *StoreCategorizer {
	if refresh <= 0 {
		refresh = time.Minute
	}
	return &StoreCategorizer{
		src:      src,
		snapshot: cache.NewLRUCache[[]core.CategoryRule](1, refresh),
		logger:   logger.WithComponent(log.ComponentCategorize),
	}
}

func (s *StoreCategorizer) Categorize(ctx context.Context, t core.Transaction) string {
	if t.Category != "" {
		return t.Category
	}

	rules, err := s.Rules(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Rule set unavailable, falling back to Other",
			log.FieldTransactionID, t.ID,
			log.FieldError, err)
		return core.CategoryOther
	}
	if len(rules) == 0 {
		s.logger.WarnContext(ctx, "No active categorization rules, falling back to Other",
			log.FieldTransactionID, t.ID,
			log.FieldError, core.ErrDegradedRuleSet)
		return core.CategoryOther
	}
	return Match(t.Description, rules)
}

// Rules returns the current snapshot, loading it when missing or expired.
// When a reload fails the previous snapshot, if any, is returned instead.
func (s *StoreCategorizer) Rules(ctx context.Context) ([]core.CategoryRule, error) {
	if rules, ok := s.snapshot.Get(snapshotKey); ok {
		return rules, nil
	}

	rules, err := s.load(ctx)
	if err != nil {
		if stale, ok := s.snapshot.Peek(snapshotKey); ok {
			s.logger.WarnContext(ctx, "Rule reload failed, serving previous snapshot",
				log.FieldCount, len(stale),
				log.FieldError, err)
			return stale, nil
		}
		return nil, err
	}
	return rules, nil
}

// Refresh reloads the snapshot from the store.
func (s *StoreCategorizer) Refresh(ctx context.Context) error {
	_, err := s.load(ctx)
	return err
}

func (s *StoreCategorizer) load(ctx context.Context) ([]core.CategoryRule, error) {
	v, err, _ := s.group.Do(snapshotKey, func() (any, error) {
		rules, err := s.src.ListRules(ctx, core.ExcludeDeleted)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		sorted := SortRules(rules)
		s.snapshot.Set(snapshotKey, sorted)
		s.logger.DebugContext(ctx, "Rule snapshot loaded", log.FieldCount, len(sorted))
		return sorted, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.CategoryRule), nil
}
