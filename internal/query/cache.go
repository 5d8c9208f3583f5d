// Package query is a keyed, in-memory cache of remote reads with
// stale-while-revalidate semantics, request de-duplication and prefix
// invalidation.
//
// A read of a fresh entry returns the cached value. A read of a stale entry
// returns the cached value and refetches in the background. A read of a
// missing or invalidated entry waits for a fetch. At most one fetch per key
// and generation is in flight; invalidating a key starts a new generation, so
// a result produced before the invalidation is never stored.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"reliefboard/internal/apierror"
)

const (
	DefaultStaleTime = time.Minute
	DefaultGCTime    = 10 * time.Minute
)

type Options struct {
	StaleTime  time.Duration
	GCTime     time.Duration
	Retry      RetryPolicy
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// FetchOptions tune one read.
type FetchOptions struct {
	// StaleTime overrides the cache default for this key.
	StaleTime time.Duration
	// Initial seeds a missing entry before deciding whether to fetch. It
	// returns the seed value and the time that value was current.
	Initial func() (any, time.Time, bool)
	// Retry overrides the cache retry policy for this key.
	Retry *RetryPolicy
}

// Snapshot is a copy of an entry's state.
type Snapshot struct {
	Value       any
	HasValue    bool
	UpdatedAt   time.Time
	Invalidated bool
	Err         *apierror.Error
}

type entry struct {
	key         Key
	value       any
	hasValue    bool
	updatedAt   time.Time
	lastUsed    time.Time
	invalidated bool
	refreshing  bool
	gen         uint64
	err         *apierror.Error
}

// Cache is safe for concurrent use. Build it with New.
type Cache struct {
	opts    Options
	logger  *zap.Logger
	metrics *metrics

	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64

	group singleflight.Group
	bg    sync.WaitGroup
}

func New(opts Options) *Cache {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.GCTime <= 0 {
		opts.GCTime = DefaultGCTime
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		opts:    opts,
		logger:  logger,
		metrics: newMetrics(opts.Registerer),
		entries: make(map[string]*entry),
	}
}

// Fetch reads key through c, calling fn when the entry is missing, stale or
// invalidated. Errors are always *apierror.Error.
func Fetch[T any](ctx context.Context, c *Cache, key Key, opts FetchOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	load := func(ctx context.Context) (any, error) { return fn(ctx) }

	v, err := c.fetch(ctx, key, opts, load)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, apierror.New(apierror.KindUnknown, "發生未預期的錯誤",
			fmt.Errorf("cache entry %s holds %T", key, v))
	}
	return out, nil
}

// Peek returns the entry's state without fetching.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || (!e.hasValue && e.err == nil) {
		return Snapshot{}, false
	}
	return Snapshot{
		Value:       e.value,
		HasValue:    e.hasValue,
		UpdatedAt:   e.updatedAt,
		Invalidated: e.invalidated,
		Err:         e.err,
	}, true
}

// PeekPrefix returns the valid, non-invalidated values stored under prefix,
// ordered by key.
func (c *Cache) PeekPrefix(prefix Key) []Snapshot {
	c.mu.Lock()
	var out []Snapshot
	var keys []string
	for k, e := range c.entries {
		if !e.hasValue || e.invalidated || !e.key.HasPrefix(prefix) {
			continue
		}
		keys = append(keys, k)
		out = append(out, Snapshot{Value: e.value, HasValue: true, UpdatedAt: e.updatedAt, Err: e.err})
	}
	c.mu.Unlock()
	sort.Sort(byKey{keys, out})
	return out
}

type byKey struct {
	keys  []string
	snaps []Snapshot
}

func (b byKey) Len() int           { return len(b.keys) }
func (b byKey) Less(i, j int) bool { return b.keys[i] < b.keys[j] }
func (b byKey) Swap(i, j int) {
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
	b.snaps[i], b.snaps[j] = b.snaps[j], b.snaps[i]
}

// PeekValue is Peek narrowed to a typed value.
func PeekValue[T any](c *Cache, key Key) (T, bool) {
	var zero T
	snap, ok := c.Peek(key)
	if !ok || !snap.HasValue {
		return zero, false
	}
	v, ok := snap.Value.(T)
	return v, ok
}

// Set stores value as the fresh result for key. Flights started before Set
// will not overwrite it.
func (c *Cache) Set(key Key, value any) {
	now := c.opts.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key, now)
	e.value = value
	e.hasValue = true
	e.updatedAt = now
	e.invalidated = false
	e.err = nil
	e.gen = c.nextGenLocked()
}

// Invalidate marks every entry under prefix as invalidated and returns how
// many were affected. The next read of such an entry waits for a new fetch.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.invalidated = true
			e.gen = c.nextGenLocked()
			n++
		}
	}
	if n > 0 {
		c.logger.Debug("[query][invalidate]", zap.String("prefix", prefix.String()), zap.Int("entries", n))
	}
	return n
}

// Prune drops entries nobody has read for longer than the GC time.
func (c *Cache) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if !e.refreshing && now.Sub(e.lastUsed) > c.opts.GCTime {
			delete(c.entries, k)
			n++
		}
	}
	if n > 0 {
		c.metrics.entries.Sub(float64(n))
	}
	return n
}

// Run prunes periodically until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	interval := c.opts.GCTime / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := c.Prune(c.opts.Now()); n > 0 {
				c.logger.Debug("[query][gc]", zap.Int("pruned", n))
			}
		}
	}
}

// Wait blocks until background refetches have finished.
func (c *Cache) Wait() { c.bg.Wait() }

// Len is the number of entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry. In-flight results for dropped entries are discarded.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.entries.Sub(float64(len(c.entries)))
	c.entries = make(map[string]*entry)
}

func (c *Cache) fetch(ctx context.Context, key Key, opts FetchOptions, load func(context.Context) (any, error)) (any, error) {
	now := c.opts.Now()
	stale := opts.StaleTime
	if stale <= 0 {
		stale = c.opts.StaleTime
	}
	endpoint := key.Endpoint()
	policy := c.opts.Retry
	if opts.Retry != nil {
		policy = *opts.Retry
	}

	if opts.Initial != nil {
		c.seed(key, now, opts.Initial)
	}

	c.mu.Lock()
	e := c.entryLocked(key, now)
	e.lastUsed = now

	if e.hasValue && !e.invalidated {
		v := e.value
		if now.Sub(e.updatedAt) < stale {
			c.mu.Unlock()
			c.metrics.hits.WithLabelValues(endpoint).Inc()
			return v, nil
		}
		if !e.refreshing {
			e.refreshing = true
			gen := e.gen
			c.bg.Add(1)
			go c.refresh(context.WithoutCancel(ctx), key, gen, policy, load)
		}
		c.mu.Unlock()
		c.metrics.hits.WithLabelValues(endpoint).Inc()
		return v, nil
	}
	gen := e.gen
	c.mu.Unlock()

	c.metrics.misses.WithLabelValues(endpoint).Inc()
	return c.flight(ctx, key, gen, policy, load)
}

// seed runs initial outside the lock (it may read this cache) and stores its
// value only if the entry is still empty and was not touched meanwhile.
func (c *Cache) seed(key Key, now time.Time, initial func() (any, time.Time, bool)) {
	c.mu.Lock()
	e := c.entryLocked(key, now)
	if e.hasValue || e.invalidated {
		c.mu.Unlock()
		return
	}
	gen := e.gen
	c.mu.Unlock()

	v, at, ok := initial()
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key.String()]; ok && e.gen == gen && !e.hasValue {
		e.value, e.hasValue, e.updatedAt = v, true, at
	}
}

func (c *Cache) refresh(ctx context.Context, key Key, gen uint64, policy RetryPolicy, load func(context.Context) (any, error)) {
	defer c.bg.Done()
	_, err := c.flight(ctx, key, gen, policy, load)
	if err != nil {
		c.logger.Debug("[query][refresh][err]", zap.String("key", key.String()), zap.Error(err))
	}
	c.mu.Lock()
	if e, ok := c.entries[key.String()]; ok {
		e.refreshing = false
	}
	c.mu.Unlock()
}

// flight joins or starts the fetch for (key, gen) and waits for it or for ctx.
// The shared fetch is detached from ctx so one caller giving up does not fail
// the others.
func (c *Cache) flight(ctx context.Context, key Key, gen uint64, policy RetryPolicy, load func(context.Context) (any, error)) (any, error) {
	sfKey := key.String() + "#" + strconv.FormatUint(gen, 10)
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(sfKey, func() (any, error) {
		return c.run(detached, key, gen, policy, load)
	})
	select {
	case <-ctx.Done():
		return nil, apierror.Classify(ctx.Err(), apierror.ResourceNone)
	case r := <-ch:
		return r.Val, r.Err
	}
}

func (c *Cache) run(ctx context.Context, key Key, gen uint64, policy RetryPolicy, load func(context.Context) (any, error)) (any, error) {
	endpoint := key.Endpoint()
	for attempt := 0; ; attempt++ {
		c.metrics.fetches.WithLabelValues(endpoint).Inc()
		v, err := load(ctx)
		if err == nil {
			c.store(key, gen, v)
			return v, nil
		}

		ae := apierror.Classify(err, apierror.ResourceNone)
		if !ae.Transient() || attempt >= policy.MaxRetries {
			return nil, c.fail(key, gen, ae, attempt+1, err)
		}

		delay := policy.Delay(attempt)
		c.logger.Debug("[query][fetch][retry]",
			zap.String("key", key.String()), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
		if serr := sleep(ctx, delay); serr != nil {
			// retries aborted: the last upstream error is the outcome
			return nil, c.fail(key, gen, ae, attempt+1, errors.Join(err, serr))
		}
	}
}

// fail records a fetch that gave up: metric, log and the entry's error.
func (c *Cache) fail(key Key, gen uint64, ae *apierror.Error, attempts int, cause error) *apierror.Error {
	c.metrics.fetchErrors.WithLabelValues(key.Endpoint()).Inc()
	c.logger.Warn("[query][fetch][err]",
		zap.String("key", key.String()),
		zap.String("kind", string(ae.Kind)),
		zap.Int("attempts", attempts),
		zap.Error(cause))
	c.storeErr(key, gen, ae)
	return ae
}

// store applies a fetch result unless the entry moved to a newer generation
// (invalidated, overwritten or pruned) while the fetch was running.
func (c *Cache) store(key Key, gen uint64, v any) {
	now := c.opts.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || e.gen != gen {
		c.logger.Debug("[query][store][discard]", zap.String("key", key.String()))
		return
	}
	e.value = v
	e.hasValue = true
	e.updatedAt = now
	e.invalidated = false
	e.err = nil
}

func (c *Cache) storeErr(key Key, gen uint64, err *apierror.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key.String()]; ok && e.gen == gen {
		e.err = err
	}
}

func (c *Cache) entryLocked(key Key, now time.Time) *entry {
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{key: key.clone(), lastUsed: now, gen: c.nextGenLocked()}
		c.entries[k] = e
		c.metrics.entries.Inc()
	}
	return e
}

func (c *Cache) nextGenLocked() uint64 {
	c.seq++
	return c.seq
}
