package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"sahayak/internal/backend"
	"sahayak/internal/cache"
	"sahayak/internal/core"
	"sahayak/internal/log"
	"sahayak/internal/storage"
)

// RefresherConfig holds configuration for the refresher
type RefresherConfig struct {
	// Debounce is the quiet period after a change notification before
	// reloading (default: 2s)
	Debounce time.Duration

	// Interval is how often to reload without notifications. Zero disables
	// periodic reloads.
	Interval time.Duration
}

// DefaultRefresherConfig returns sensible defaults
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{Debounce: 2 * time.Second}
}

// Snapshot is the dashboard state served to readers.
type Snapshot struct {
	Accounts     []core.Account
	Transactions []core.Transaction
	Aggregates   core.AggregateResult
	Fingerprint  string
	UpdatedAt    time.Time
}

// Refresher keeps the latest accounts, transactions and aggregates in
// memory. It restores the persisted snapshot at start, reloads from the
// source on demand, and persists every successful reload.
type Refresher struct {
	source backend.Source
	store  cache.Store
	cache  *cache.Manager
	config RefresherConfig
	logger *log.Logger

	debouncer *Debouncer
	group     singleflight.Group

	snapMu sync.RWMutex
	snap   Snapshot
	ready  bool

	// Lifecycle management
	mu      sync.Mutex
	running bool
	baseCtx context.Context
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRefresher creates a new refresher
func NewRefresher(
	source backend.Source,
	store cache.Store,
	manager *cache.Manager,
	config RefresherConfig,
	logger *log.Logger,
) *Refresher {
	if logger == nil {
		logger = log.Discard()
	}
	r := &Refresher{
		source:  source,
		store:   store,
		cache:   manager,
		config:  config,
		logger:  logger.WithComponent(log.ComponentRefresher),
		baseCtx: context.Background(),
		snap:    Snapshot{Aggregates: core.EmptyAggregate()},
	}
	r.debouncer = NewDebouncer(config.Debounce, r.debouncedReload)
	return r
}

// Start restores the persisted snapshot and begins the reload loop.
// Returns an error if already running. A stopped refresher can be started
// again.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("refresher is already running")
	}
	r.running = true
	r.baseCtx = ctx
	r.debouncer = NewDebouncer(r.config.Debounce, r.debouncedReload)
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	r.stopCh = stopCh
	r.doneCh = doneCh
	r.mu.Unlock()

	if r.restore(ctx) {
		snap := r.Current()
		r.logger.InfoContext(ctx, "Restored persisted snapshot",
			log.NewFields().WithSnapshot(snap.Fingerprint, len(snap.Transactions), len(snap.Accounts)).ToSlice()...)
	}

	go r.runLoop(ctx, stopCh, doneCh)

	r.logger.InfoContext(ctx, "Refresher started",
		"debounce", r.config.Debounce,
		"interval", r.config.Interval)

	return nil
}

// Stop cancels any pending reload and waits for the loop to exit. The
// refresher counts as stopped even when ctx expires first; the loop then
// finishes in the background.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	debouncer, stopCh, doneCh := r.debouncer, r.stopCh, r.doneCh
	r.mu.Unlock()

	debouncer.Stop()
	close(stopCh)

	select {
	case <-doneCh:
		r.logger.InfoContext(ctx, "Refresher stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Refresher stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the refresher loop is running
func (r *Refresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Refresher) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	// Reload immediately on startup
	if err := r.Reload(ctx); err != nil {
		r.logger.WarnContext(ctx, "Initial reload failed, serving persisted snapshot", log.FieldError, err)
	}

	var tick <-chan time.Time
	if r.config.Interval > 0 {
		ticker := time.NewTicker(r.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-tick:
			if err := r.Reload(ctx); err != nil {
				r.logger.WarnContext(ctx, "Periodic reload failed", log.FieldError, err)
			}
		}
	}
}

// Notify records an external change. Reloads are debounced so a burst of
// notifications causes a single fetch.
func (r *Refresher) Notify(kind core.ChangeKind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	r.logger.Debug("Change notification received", log.FieldChangeKind, string(kind))
	r.currentDebouncer().Trigger()
	return nil
}

func (r *Refresher) debouncedReload() {
	r.mu.Lock()
	ctx := r.baseCtx
	r.mu.Unlock()

	if err := r.Reload(ctx); err != nil {
		r.logger.WarnContext(ctx, "Debounced reload failed", log.FieldError, err)
	}
}

// Reload fetches accounts and transactions, persists them, and refreshes the
// aggregates. Concurrent calls share one fetch. On failure the previous
// snapshot stays in place.
func (r *Refresher) Reload(ctx context.Context) error {
	_, err, _ := r.group.Do("reload", func() (any, error) {
		return nil, r.reload(ctx)
	})
	return err
}

func (r *Refresher) reload(ctx context.Context) error {
	start := time.Now()

	var (
		accounts []core.Account
		txns     []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = r.source.Accounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		txns, err = r.source.Transactions(gctx, core.AllAccounts)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	r.persist(ctx, storage.KeyAccounts, accounts)
	r.persist(ctx, storage.KeyTransactions, txns)

	aggs := r.cache.EnsureFresh(ctx, txns)
	fp := r.cache.Fingerprint(txns)

	r.snapMu.Lock()
	r.snap = Snapshot{
		Accounts:     accounts,
		Transactions: txns,
		Aggregates:   aggs,
		Fingerprint:  fp,
		UpdatedAt:    time.Now(),
	}
	r.ready = true
	r.snapMu.Unlock()

	fields := log.NewFields().
		WithOperation(log.OpReload).
		WithSnapshot(fp, len(txns), len(accounts))
	r.logger.InfoContext(ctx, "Snapshot reloaded",
		append(fields.ToSlice(), log.FieldDuration, time.Since(start).Milliseconds())...)

	return nil
}

// restore loads the persisted snapshot and its aggregates. It reports
// whether a transaction list was found.
func (r *Refresher) restore(ctx context.Context) bool {
	var (
		accounts []core.Account
		txns     []core.Transaction
	)
	r.load(ctx, storage.KeyAccounts, &accounts)
	if !r.load(ctx, storage.KeyTransactions, &txns) {
		return false
	}

	fp := r.cache.Fingerprint(txns)
	aggs, ok := r.cache.LoadCachedFor(ctx, txns)
	if !ok {
		aggs = r.cache.EnsureFresh(ctx, txns)
	}

	r.snapMu.Lock()
	defer r.snapMu.Unlock()
	// a reload may have finished first
	if r.ready {
		return true
	}
	r.snap = Snapshot{
		Accounts:     accounts,
		Transactions: txns,
		Aggregates:   aggs,
		Fingerprint:  fp,
	}
	r.ready = true
	return true
}

func (r *Refresher) load(ctx context.Context, key string, out any) bool {
	if r.store == nil {
		return false
	}
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to read persisted snapshot", log.FieldKey, key, log.FieldError, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		r.logger.WarnContext(ctx, "Ignoring malformed persisted snapshot", log.FieldKey, key, log.FieldError, err)
		return false
	}
	return true
}

func (r *Refresher) persist(ctx context.Context, key string, v any) {
	if r.store == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to encode snapshot", log.FieldKey, key, log.FieldError, err)
		return
	}
	if err := r.store.Set(ctx, key, string(raw)); err != nil {
		r.logger.WarnContext(ctx, "Failed to persist snapshot", log.FieldKey, key, log.FieldError, err)
	}
}

// Current returns the latest snapshot. Before any data is available it holds
// empty aggregates.
func (r *Refresher) Current() Snapshot {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	return r.snap
}

// Ready reports whether a snapshot has been restored or loaded.
func (r *Refresher) Ready() bool {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	return r.ready
}

// ReloadPending reports whether a debounced reload is scheduled.
func (r *Refresher) ReloadPending() bool {
	return r.currentDebouncer().Pending()
}

func (r *Refresher) currentDebouncer() *Debouncer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.debouncer
}
