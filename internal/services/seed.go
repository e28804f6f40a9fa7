package services

import (
	"context"
	"fmt"
	"time"

	"txagg/internal/core"
	"txagg/internal/log"
	"txagg/internal/storage"
)

// SeedRulePriority is the priority of the first generated rule.
const SeedRulePriority = 100

// SeedStore is the persistence the seeder needs.
type SeedStore interface {
	storage.RuleStore
	storage.CategoryStore
}

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Categories int
	Rules      int
}

// Seeder installs the built-in categories and their keyword rules.
type Seeder struct {
	store  SeedStore
	logger *log.Logger
	now    func() time.Time
}

func NewSeeder(store SeedStore, logger *log.Logger) *Seeder {
	return &Seeder{
		store:  store,
		logger: logger.WithComponent(log.ComponentSeed),
		now:    time.Now,
	}
}

// Seed stores the default catalog when no categories exist and generates
// rules when no rules exist. Running it again is a no-op.
func (s *Seeder) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult

	cats, err := s.store.ListCategories(ctx, core.IncludeDeleted)
	if err != nil {
		return res, fmt.Errorf("list categories: %w", err)
	}
	if len(cats) == 0 {
		cats = core.DefaultCatalog()
		if err := s.store.UpsertCategories(ctx, cats); err != nil {
			return res, fmt.Errorf("seed categories: %w", err)
		}
		res.Categories = len(cats)
	}

	rules, err := s.store.ListRules(ctx, core.IncludeDeleted)
	if err != nil {
		return res, fmt.Errorf("list rules: %w", err)
	}
	if len(rules) == 0 {
		rules = core.RulesFromCategories(cats, SeedRulePriority, s.now())
		if err := s.store.UpsertRules(ctx, rules); err != nil {
			return res, fmt.Errorf("seed rules: %w", err)
		}
		res.Rules = len(rules)
	}

	if res.Categories > 0 || res.Rules > 0 {
		s.logger.InfoContext(ctx, "Seeded categorization data",
			log.FieldOperation, log.OpSeed,
			"categories", res.Categories,
			"rules", res.Rules)
	} else {
		s.logger.DebugContext(ctx, "Seed skipped, data already present")
	}
	return res, nil
}
