package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"sahayak/internal/aggregate"
	"sahayak/internal/core"
	"sahayak/internal/log"
)

// EntryKey is the store key of the persisted aggregate entry.
const EntryKey = "chart_aggregates"

// Store is the string key-value store the Manager persists to.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Entry is the persisted form of the last computed aggregates.
type Entry struct {
	Fingerprint string                `json:"_checksum"`
	Result      *core.AggregateResult `json:"data"`
}

// ErrMalformedEntry is logged when the persisted entry cannot be used.
var ErrMalformedEntry = errors.New("malformed aggregate cache entry")

// Config configures a Manager. Only Store is required.
type Config struct {
	Store    Store
	Checksum aggregate.ChecksumFunc
	Compute  func([]core.Transaction) core.AggregateResult
	Logger   *log.Logger
}

// Manager memoizes aggregates by transaction fingerprint.
//
// At most one aggregation pass runs at a time. A caller arriving while a
// pass is in flight waits for it and then re-checks the fingerprint, so an
// unchanged collection is never aggregated twice.
type Manager struct {
	mu       sync.Mutex
	store    Store
	checksum aggregate.ChecksumFunc
	compute  func([]core.Transaction) core.AggregateResult
	logger   *log.Logger
	sl       *log.StructuredLogger

	lastFingerprint string
	last            *core.AggregateResult

	computations atomic.Int64
}

// NewManager creates a Manager with the fast checksum and aggregate.Compute
// unless the config overrides them.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		store:    cfg.Store,
		checksum: cfg.Checksum,
		compute:  cfg.Compute,
		logger:   cfg.Logger,
	}
	if m.checksum == nil {
		m.checksum = aggregate.Checksum
	}
	if m.compute == nil {
		m.compute = aggregate.Compute
	}
	if m.logger == nil {
		m.logger = log.Discard()
	}
	m.logger = m.logger.WithComponent(log.ComponentCache)
	m.sl = log.NewStructuredLogger(m.logger)
	return m
}

// Fingerprint returns the checksum of txns as this Manager computes it.
func (m *Manager) Fingerprint(txns []core.Transaction) string {
	return m.checksum(txns)
}

// LoadCached returns the persisted aggregates. A missing, unreadable or
// malformed entry is a miss.
func (m *Manager) LoadCached(ctx context.Context) (core.AggregateResult, bool) {
	entry, ok := m.readEntry(ctx)
	if !ok {
		return core.AggregateResult{}, false
	}
	return entry.Result.Normalize(), true
}

// LoadCachedFor returns the persisted aggregates only when they were computed
// for a collection with the same fingerprint as txns. On a hit the Manager
// adopts the entry, so a following EnsureFresh(txns) does no work.
func (m *Manager) LoadCachedFor(ctx context.Context, txns []core.Transaction) (core.AggregateResult, bool) {
	entry, ok := m.readEntry(ctx)
	if !ok {
		return core.AggregateResult{}, false
	}

	fp := m.checksum(txns)
	if entry.Fingerprint != fp {
		m.logger.DebugContext(ctx, "Persisted aggregates are stale", log.FieldFingerprint, fp, "cached", entry.Fingerprint)
		return core.AggregateResult{}, false
	}

	result := entry.Result.Normalize()

	m.mu.Lock()
	if m.last == nil {
		m.lastFingerprint = fp
		m.last = &result
	}
	m.mu.Unlock()

	return result, true
}

// EnsureFresh returns aggregates for txns, computing them only when the
// fingerprint differs from the last computed one. Persisting the new entry
// is best effort.
func (m *Manager) EnsureFresh(ctx context.Context, txns []core.Transaction) core.AggregateResult {
	fp := m.checksum(txns)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.last != nil && m.lastFingerprint == fp {
		return *m.last
	}

	start := time.Now()
	result := m.compute(txns).Normalize()
	m.computations.Add(1)

	m.last = &result
	m.lastFingerprint = fp
	m.sl.LogAggregated(ctx, fp, len(txns), time.Since(start).Milliseconds())

	m.persist(ctx, Entry{Fingerprint: fp, Result: &result})
	return result
}

// Current returns the last computed aggregates and their fingerprint.
func (m *Manager) Current() (core.AggregateResult, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return core.AggregateResult{}, "", false
	}
	return *m.last, m.lastFingerprint, true
}

// Computations returns how many aggregation passes this Manager has run.
func (m *Manager) Computations() int64 {
	return m.computations.Load()
}

func (m *Manager) readEntry(ctx context.Context) (Entry, bool) {
	if m.store == nil {
		return Entry{}, false
	}

	raw, ok, err := m.store.Get(ctx, EntryKey)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to read aggregate cache", log.FieldKey, EntryKey, log.FieldError, err)
		return Entry{}, false
	}
	if !ok || raw == "" {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		m.logger.WarnContext(ctx, "Discarding aggregate cache", log.FieldKey, EntryKey, log.FieldError, err)
		return Entry{}, false
	}
	if entry.Result == nil {
		m.logger.WarnContext(ctx, "Discarding aggregate cache", log.FieldKey, EntryKey, log.FieldError, ErrMalformedEntry)
		return Entry{}, false
	}
	return entry, true
}

func (m *Manager) persist(ctx context.Context, entry Entry) {
	if m.store == nil {
		return
	}

	b, err := json.Marshal(entry)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to encode aggregate cache", log.FieldError, err)
		return
	}
	if err := m.store.Set(ctx, EntryKey, string(b)); err != nil {
		m.logger.WarnContext(ctx, "Failed to persist aggregate cache", log.FieldKey, EntryKey, log.FieldError, err)
	}
}
