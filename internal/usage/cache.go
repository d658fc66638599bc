package usage

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/zysolutions/octodash/internal/metrics"
	"github.com/zysolutions/octodash/internal/pkg/logger"
)

// DefaultTTL is how long a computed snapshot stays fresh.
const DefaultTTL = 5 * time.Minute

// Computer produces a fresh snapshot. *Aggregator implements it.
type Computer interface {
	Compute(ctx context.Context) (Snapshot, error)
}

// SnapshotStore persists the last good snapshot outside the process.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, bool, error)
}

// CacheConfig configures a Cache. Zero values fall back to defaults.
type CacheConfig struct {
	TTL            time.Duration
	ComputeTimeout time.Duration
	Limits         Limits
	Clock          clockwork.Clock
	Store          SnapshotStore
}

// flightKey is shared by every miss so at most one computation runs at a time.
const flightKey = "usage"

type computed struct {
	snapshot   Snapshot
	generation uint64
}

type cacheEntry struct {
	snapshot  Snapshot
	fetchedAt time.Time
}

// Cache memoizes Computer results for a TTL. Concurrent misses share one
// in-flight computation. Get never fails: when computation fails it serves
// the stale entry, then the stored snapshot, then ZeroSnapshot.
type Cache struct {
	computer       Computer
	ttl            time.Duration
	computeTimeout time.Duration
	limits         Limits
	clock          clockwork.Clock
	store          SnapshotStore

	mu         sync.RWMutex
	entry      *cacheEntry
	generation uint64

	group singleflight.Group
}

// NewCache wraps computer with a TTL cache.
func NewCache(computer Computer, cfg CacheConfig) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Cache{
		computer:       computer,
		ttl:            cfg.TTL,
		computeTimeout: cfg.ComputeTimeout,
		limits:         cfg.Limits,
		clock:          cfg.Clock,
		store:          cfg.Store,
	}
}

// Get returns the cached snapshot while fresh, otherwise recomputes.
func (c *Cache) Get(ctx context.Context) Snapshot {
	c.mu.RLock()
	entry, gen := c.entry, c.generation
	c.mu.RUnlock()

	if entry != nil && c.fresh(entry) {
		metrics.UsageCacheRequests.WithLabelValues("hit").Inc()
		return entry.snapshot
	}
	metrics.UsageCacheRequests.WithLabelValues("miss").Inc()

	for {
		v, _, _ := c.group.Do(flightKey, func() (interface{}, error) {
			return c.refresh(ctx), nil
		})
		res := v.(computed)
		// A computation that started before a Clear this caller saw is
		// awaited, never reused; the next pass starts a fresh one.
		if res.generation >= gen {
			return res.snapshot
		}
	}
}

// Clear drops the cached entry; the next Get recomputes regardless of TTL.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entry = nil
	c.generation++
	c.mu.Unlock()
	logger.Info("Usage: cache cleared")
}

// Refresh clears the cache and recomputes.
func (c *Cache) Refresh(ctx context.Context) Snapshot {
	c.Clear()
	return c.Get(ctx)
}

// FetchedAt reports when the current entry was computed.
func (c *Cache) FetchedAt() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return time.Time{}, false
	}
	return c.entry.fetchedAt, true
}

func (c *Cache) fresh(e *cacheEntry) bool {
	return c.clock.Since(e.fetchedAt) < c.ttl
}

func (c *Cache) refresh(ctx context.Context) computed {
	// A caller that lost the race may arrive after the winner stored its entry.
	c.mu.RLock()
	gen := c.generation
	if c.entry != nil && c.fresh(c.entry) {
		snap := c.entry.snapshot
		c.mu.RUnlock()
		return computed{snapshot: snap, generation: gen}
	}
	stale := c.entry
	c.mu.RUnlock()

	// Shared by every waiter, so one caller's cancellation must not abort it.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
	defer cancel()

	start := c.clock.Now()
	snap, err := c.computer.Compute(cctx)
	metrics.UsageComputeDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		metrics.UsageComputations.WithLabelValues("failure").Inc()
		logger.Error("Usage: aggregation failed, serving fallback", "error", err.Error())
		return computed{snapshot: c.fallback(cctx, stale), generation: gen}
	}
	metrics.UsageComputations.WithLabelValues("success").Inc()

	c.mu.Lock()
	if c.generation == gen {
		c.entry = &cacheEntry{snapshot: snap, fetchedAt: c.clock.Now()}
	}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(cctx, snap); err != nil {
			logger.Warn("Usage: failed to persist snapshot", "error", err.Error())
		}
	}

	logger.Debug("Usage: snapshot refreshed",
		"emails_sent", snap.Emails.Sent,
		"contacts", snap.Contacts.Total,
		"campaigns", snap.Campaigns.Created)
	return computed{snapshot: snap, generation: gen}
}

func (c *Cache) fallback(ctx context.Context, stale *cacheEntry) Snapshot {
	if stale != nil {
		metrics.UsageFallbacks.WithLabelValues("stale").Inc()
		return stale.snapshot
	}
	if c.store != nil {
		snap, ok, err := c.store.Load(ctx)
		if err != nil {
			logger.Warn("Usage: failed to load stored snapshot", "error", err.Error())
		} else if ok {
			metrics.UsageFallbacks.WithLabelValues("stored").Inc()
			return snap
		}
	}
	metrics.UsageFallbacks.WithLabelValues("zero").Inc()
	return ZeroSnapshot(c.limits)
}
