// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"txagg/internal/core"
	"txagg/internal/storage"
)

var errClosed = errors.New("store closed")

// Store keeps everything in memory. Rows are kept in insertion order; an
// upsert of an existing id replaces the row in place but keeps its
// creation time.
type Store struct {
	mu     sync.RWMutex
	closed bool

	txs   []core.Transaction
	txIdx map[string]int

	rules   []core.CategoryRule
	ruleIdx map[string]int

	cats   []core.Category
	catIdx map[string]int
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		txIdx:   make(map[string]int),
		ruleIdx: make(map[string]int),
		catIdx:  make(map[string]int),
	}
}

func (s *Store) QueryTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter, p core.PageRequest) (core.Page[core.Transaction], error) {
	matches, err := s.ListTransactions(ctx, vis, f)
	if err != nil {
		return core.Page[core.Transaction]{}, err
	}
	p = p.Normalize()
	return core.NewPage(core.Paginate(matches, p), p, len(matches)), nil
}

func (s *Store) ListTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "list transactions"); err != nil {
		return nil, err
	}

	out := []core.Transaction{}
	for _, t := range s.txs {
		if vis.Admits(t.IsDeleted) && f.Matches(t) {
			out = append(out, copyTransaction(t))
		}
	}
	core.SortByDateDesc(out)
	return out, nil
}

func (s *Store) CountTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "count transactions"); err != nil {
		return 0, err
	}

	n := 0
	for _, t := range s.txs {
		if vis.Admits(t.IsDeleted) && f.Matches(t) {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpsertTransactions(ctx context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "upsert transactions"); err != nil {
		return err
	}

	for _, t := range txs {
		t = copyTransaction(t)
		if i, ok := s.txIdx[t.ID]; ok {
			t.CreatedAt = s.txs[i].CreatedAt
			s.txs[i] = t
			continue
		}
		s.txIdx[t.ID] = len(s.txs)
		s.txs = append(s.txs, t)
	}
	return nil
}

func (s *Store) UpdateCategories(ctx context.Context, changes []core.CategoryChange, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "update categories"); err != nil {
		return 0, err
	}

	n := 0
	for _, c := range changes {
		i, ok := s.txIdx[c.TransactionID]
		if !ok {
			continue
		}
		t := &s.txs[i]
		if t.IsDeleted || t.Category != c.Previous {
			continue
		}
		stamp := at.UTC()
		t.Category = c.Category
		t.UpdatedAt = &stamp
		n++
	}
	return n, nil
}

func (s *Store) ListRules(ctx context.Context, vis core.Visibility) ([]core.CategoryRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "list rules"); err != nil {
		return nil, err
	}

	out := []core.CategoryRule{}
	for _, r := range s.rules {
		if vis.Admits(r.IsDeleted) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *Store) UpsertRules(ctx context.Context, rules []core.CategoryRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "upsert rules"); err != nil {
		return err
	}

	for _, r := range rules {
		if i, ok := s.ruleIdx[r.ID]; ok {
			s.rules[i] = r
			continue
		}
		s.ruleIdx[r.ID] = len(s.rules)
		s.rules = append(s.rules, r)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context, vis core.Visibility) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "list categories"); err != nil {
		return nil, err
	}

	out := []core.Category{}
	for _, c := range s.cats {
		if vis.Admits(c.IsDeleted) {
			c.Keywords = append([]string(nil), c.Keywords...)
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpsertCategories(ctx context.Context, cats []core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "upsert categories"); err != nil {
		return err
	}

	for _, c := range cats {
		c.Keywords = append([]string(nil), c.Keywords...)
		if i, ok := s.catIdx[c.ID]; ok {
			s.cats[i] = c
			continue
		}
		s.catIdx[c.ID] = len(s.cats)
		s.cats = append(s.cats, c)
	}
	return nil
}

// Close marks the store closed; later calls fail like a lost connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(ctx, "ping")
}

func (s *Store) check(ctx context.Context, op string) error {
	if s.closed {
		return storage.Fail(op, errClosed)
	}
	if err := ctx.Err(); err != nil {
		return storage.Fail(op, err)
	}
	return nil
}

func copyTransaction(t core.Transaction) core.Transaction {
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		t.UpdatedAt = &u
	}
	return t
}
