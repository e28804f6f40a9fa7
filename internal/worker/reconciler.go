// Package worker runs the background reconciliation loop that keeps stored
// transactions categorized against the current rule set.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"txagg/internal/categorize"
	"txagg/internal/core"
	"txagg/internal/log"
)

// State is the reconciler's position in its cycle.
type State int32

const (
	Idle State = iota
	Scanning
	Applying
	Persisting
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Applying:
		return "applying"
	case Persisting:
		return "persisting"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config holds the loop timing and batch size.
type Config struct {
	// Interval separates successful cycles (default: 15m)
	Interval time.Duration

	// ErrorBackoff replaces Interval after a failed cycle (default: 1m)
	ErrorBackoff time.Duration

	// InitialDelay postpones the first cycle (default: 1m)
	InitialDelay time.Duration

	// BatchSize caps the candidates read per cycle (default: 100)
	BatchSize int
}

func DefaultConfig() Config {
	return Config{
		Interval:     15 * time.Minute,
		ErrorBackoff: time.Minute,
		InitialDelay: time.Minute,
		BatchSize:    100,
	}
}

// Store is the persistence the reconciler reads candidates from and
// writes results to. Only category and updated_at are ever written.
type Store interface {
	QueryTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter, p core.PageRequest) (core.Page[core.Transaction], error)
	UpdateCategories(ctx context.Context, changes []core.CategoryChange, at time.Time) (int, error)
}

// Notifier is told about every persisted batch of category changes.
type Notifier interface {
	PublishCategorized(ctx context.Context, changes []core.CategoryChange) error
}

// Refresher is implemented by categorizers holding a reloadable rule
// snapshot. The reconciler refreshes it at the start of every cycle.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CycleResult reports one cycle.
type CycleResult struct {
	Scanned int
	Changed int
	// Skipped counts changes the store declined because the row was
	// deleted or recategorized after the scan.
	Skipped int
	// Revisited is set when the candidates were rows already marked Other.
	Revisited bool
}

// Reconciler re-categorizes uncategorized and Other transactions in
// bounded batches. Exactly one loop should run per process.
type Reconciler struct {
	store    Store
	engine   categorize.Categorizer
	notifier Notifier
	config   Config
	logger   *log.Logger
	now      func() time.Time

	state atomic.Int32

	// cycleMu serializes cycles and guards otherPage
	cycleMu   sync.Mutex
	otherPage int

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a reconciler. notifier may be nil.
func New(store Store, engine categorize.Categorizer, notifier Notifier, config Config, logger *log.Logger) *Reconciler {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = def.ErrorBackoff
	}
	if config.InitialDelay < 0 {
		config.InitialDelay = 0
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	return &Reconciler{
		store:     store,
		engine:    engine,
		notifier:  notifier,
		config:    config,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
		otherPage: 1,
	}
}

// State returns the current state.
func (r *Reconciler) State() State {
	return State(r.state.Load())
}

func (r *Reconciler) setState(s State) {
	r.state.Store(int32(s))
}

// Start runs the loop in a new goroutine. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	stop, done := r.stopCh, r.doneCh
	r.mu.Unlock()

	go func() {
		defer close(done)
		r.run(ctx, stop)
	}()

	r.logger.InfoContext(ctx, "Reconciler started",
		"interval", r.config.Interval,
		"batch_size", r.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	// stopCh is closed once; a Stop after a timed-out Stop only waits.
	if r.stopCh != nil {
		close(r.stopCh)
		r.stopCh = nil
	}
	done := r.doneCh
	r.mu.Unlock()

	select {
	case <-done:
		r.logger.InfoContext(ctx, "Reconciler stopped gracefully")
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

// IsRunning returns whether a loop started with Start is active.
func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Run executes the loop in the calling goroutine until ctx is cancelled.
// It returns nil on cancellation.
func (r *Reconciler) Run(ctx context.Context) error {
	r.run(ctx, nil)
	return nil
}

func (r *Reconciler) run(ctx context.Context, stop <-chan struct{}) {
	defer r.setState(Stopped)

	if !r.sleep(ctx, stop, r.config.InitialDelay) {
		return
	}

	for {
		start := r.now()
		res, err := r.RunCycle(ctx)
		wait := r.config.Interval

		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			wait = r.config.ErrorBackoff
			r.logger.ErrorContext(ctx, "Reconciliation cycle failed",
				log.FieldOperation, log.OpReconcile,
				log.FieldError, err,
				"retry_in", wait)
		default:
			r.logger.InfoContext(ctx, "Reconciliation cycle completed",
				log.FieldOperation, log.OpReconcile,
				"scanned", res.Scanned,
				"changed", res.Changed,
				"revisited", res.Revisited,
				log.FieldDuration, r.now().Sub(start).Milliseconds())
		}

		if !r.sleep(ctx, stop, wait) {
			return
		}
	}
}

// sleep waits for d and reports whether the loop should continue.
func (r *Reconciler) sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-stop:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

// RunCycle performs one scan, apply and persist pass. A panic inside the
// cycle is recovered and returned as an error.
func (r *Reconciler) RunCycle(ctx context.Context) (res CycleResult, err error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reconcile cycle panic: %v", rec)
		}
		r.setState(Idle)
	}()

	r.setState(Scanning)
	if ref, ok := r.engine.(Refresher); ok {
		if err := ref.Refresh(ctx); err != nil {
			r.logger.WarnContext(ctx, "Rule refresh failed, using previous snapshot",
				log.FieldError, err)
		}
	}

	candidates, revisit, err := r.scan(ctx)
	if err != nil {
		return res, err
	}
	res.Scanned = len(candidates)
	res.Revisited = revisit

	r.setState(Applying)
	var changes []core.CategoryChange
	for _, t := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		candidate := t
		if candidate.Category == core.CategoryOther {
			candidate.Category = ""
		}
		category := r.engine.Categorize(ctx, candidate)
		if category == t.Category {
			continue
		}

		changes = append(changes, core.CategoryChange{
			TransactionID: t.ID,
			Previous:      t.Category,
			Category:      category,
		})
	}
	res.Changed = len(changes)

	if revisit {
		r.advanceOtherPage(len(candidates), len(changes))
	}
	if len(changes) == 0 {
		return res, nil
	}

	r.setState(Persisting)
	updated, err := r.store.UpdateCategories(ctx, changes, r.now().UTC())
	if err != nil {
		return res, fmt.Errorf("persist %d category changes: %w", len(changes), err)
	}
	res.Skipped = len(changes) - updated
	if res.Skipped > 0 {
		// Rows deleted or recategorized since the scan are left alone.
		r.logger.InfoContext(ctx, "Some category changes were superseded",
			log.FieldCount, res.Skipped)
	}

	if r.notifier != nil {
		if err := r.notifier.PublishCategorized(ctx, changes); err != nil {
			r.logger.WarnContext(ctx, "Failed to publish categorization changes",
				log.FieldCount, len(changes),
				log.FieldError, err)
		}
	}
	return res, nil
}

// scan returns the next batch of candidates. Uncategorized rows come first;
// rows already marked Other are revisited one page at a time only when no
// uncategorized rows are left.
func (r *Reconciler) scan(ctx context.Context) ([]core.Transaction, bool, error) {
	batch := core.PageRequest{PageNo: 1, PageSize: r.config.BatchSize}

	page, err := r.store.QueryTransactions(ctx, core.ExcludeDeleted,
		core.TransactionFilter{Uncategorized: true}, batch)
	if err != nil {
		return nil, false, fmt.Errorf("scan uncategorized: %w", err)
	}
	if len(page.Items) > 0 {
		return page.Items, false, nil
	}

	batch.PageNo = r.otherPage
	page, err = r.store.QueryTransactions(ctx, core.ExcludeDeleted,
		core.TransactionFilter{Category: core.CategoryOther}, batch)
	if err != nil {
		return nil, true, fmt.Errorf("scan other: %w", err)
	}
	return page.Items, true, nil
}

// advanceOtherPage moves the Other cursor. Changed rows leave the Other
// set, so a page with changes is read again; an unchanged full page moves
// the cursor forward; a short page wraps around.
func (r *Reconciler) advanceOtherPage(scanned, changed int) {
	switch {
	case changed > 0:
	case scanned < r.config.BatchSize:
		r.otherPage = 1
	default:
		r.otherPage++
	}
}

// ErrNotRunning is reported by readiness checks when the loop is stopped.
var ErrNotRunning = errors.New("reconciler is not running")

// Ready reports whether the loop is alive.
func (r *Reconciler) Ready() error {
	if r.State() == Stopped {
		return ErrNotRunning
	}
	return nil
}
