// Package freshness serves cached datasets while refreshing them in the
// background (stale-while-revalidate).
//
// Each key owns a monotonically increasing sequence number. A refresh carries
// the number it was issued with and its result is kept only if that number is
// still the latest issued for the key, so a slow fetch can never overwrite the
// result of a newer one. At most one fetch per key is in flight; a hard
// invalidation arriving meanwhile queues exactly one follow-up.
package freshness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fluxo/internal/cache"
	"fluxo/internal/core"
	"fluxo/internal/log"
)

// ErrUnknownKey is returned for keys that were never registered.
var ErrUnknownKey = errors.New("freshness: unknown key")

// ErrClosed is returned once the coordinator has been closed.
var ErrClosed = errors.New("freshness: coordinator closed")

// Loader fetches the current value of a key.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	key    string
	loader Loader
	policy Policy

	issued      uint64 // latest sequence number handed out
	inflight    bool
	inflightSeq uint64
	trigger     Trigger

	queued        bool
	queuedRetries int
	queuedTrigger Trigger

	completedSeq uint64 // latest accepted completion
	lastErr      error  // outcome of completedSeq
	stale        bool
	fetchedAt    time.Time // last successful refresh
	value        any       // last good value; outlives store eviction
	hasValue     bool

	changed chan struct{} // closed and replaced on every accepted completion
	subs    map[chan Update]struct{}
	cronID  cron.EntryID
}

// Coordinator owns the cache entries of every registered key.
type Coordinator struct {
	mu       sync.Mutex
	entries  map[string]*entry
	store    cache.Cache[any]
	now      func() time.Time
	logger   *log.Logger
	refreshL *log.StructuredLogger
	bindings Bindings
	cron     *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithBindings sets the entity and screen bindings used by MutationObserved
// and ReturnedFrom.
func WithBindings(b Bindings) Option {
	return func(c *Coordinator) { c.bindings = b }
}

// New creates a coordinator storing values in store.
func New(store cache.Cache[any], opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		entries: make(map[string]*entry),
		store:   store,
		now:     time.Now,
		logger:  log.Discard(),
		cron:    cron.New(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent(log.ComponentFreshness)
	c.refreshL = log.NewStructuredLogger(c.logger)
	c.cron.Start()
	return c
}

// Register adds key with its loader and policy. Registering a known key is a
// no-op and reports false.
func (c *Coordinator) Register(key string, loader Loader, policy Policy) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}
	if _, ok := c.entries[key]; ok {
		return false, nil
	}

	e := &entry{
		key:     key,
		loader:  loader,
		policy:  policy,
		changed: make(chan struct{}),
		subs:    make(map[chan Update]struct{}),
	}
	if policy.RefreshInterval > 0 {
		id, err := c.cron.AddFunc("@every "+policy.RefreshInterval.String(), func() {
			c.background(key, TriggerInterval)
		})
		if err != nil {
			return false, fmt.Errorf("schedule refresh of %q: %w", key, err)
		}
		e.cronID = id
	}
	c.entries[key] = e
	c.logger.Debug("Key registered", log.FieldCacheKey, key)
	return true, nil
}

// Read returns the cached value immediately when one exists, starting a
// background refresh if it is stale. Without a value the caller waits for the
// first fetch and receives its error on failure.
func (c *Coordinator) Read(ctx context.Context, key string) (any, error) {
	c.mu.Lock()
	e, err := c.lookup(key)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	if v, ok := c.valueOf(e); ok {
		if e.stale || c.now().Sub(e.fetchedAt) > e.policy.DedupeWindow {
			c.kick(e, false, e.policy.BackgroundRetries, TriggerRead)
		}
		c.mu.Unlock()
		return v, nil
	}

	target := c.kick(e, false, 0, TriggerFirstLoad)
	return c.await(ctx, e, target, false)
}

// Refresh forces a fetch and waits for it. Its failure is returned and the
// previous value is kept.
func (c *Coordinator) Refresh(ctx context.Context, key string) error {
	c.mu.Lock()
	e, err := c.lookup(key)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	target := c.kick(e, true, 0, TriggerManual)
	_, err = c.await(ctx, e, target, true)
	return err
}

// Invalidate marks key stale (Soft) or refreshes it in the background (Hard).
func (c *Coordinator) Invalidate(key string, urgency Urgency) error {
	return c.invalidate(key, urgency, TriggerInvalidate)
}

func (c *Coordinator) invalidate(key string, urgency Urgency, trigger Trigger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.lookup(key)
	if err != nil {
		return err
	}
	c.logger.Debug("Key invalidated",
		log.FieldCacheKey, key, log.FieldUrgency, urgency.String(), log.FieldTrigger, string(trigger))

	e.stale = true
	if urgency == Hard {
		c.kick(e, true, e.policy.BackgroundRetries, trigger)
	}
	return nil
}

// background starts a refresh unless one is in flight.
func (c *Coordinator) background(key string, trigger Trigger) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.lookup(key)
	if err != nil {
		return
	}
	c.kick(e, false, e.policy.BackgroundRetries, trigger)
}

// State reports the current state of key.
func (c *Coordinator) State(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Empty
	}
	switch {
	case e.inflight:
		return Refreshing
	case !e.hasValue:
		return Empty
	case e.stale || e.lastErr != nil:
		return StaleServing
	default:
		return Fresh
	}
}

// LastRefresh returns when key was last refreshed successfully.
func (c *Coordinator) LastRefresh(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.fetchedAt.IsZero() {
		return time.Time{}, false
	}
	return e.fetchedAt, true
}

// Subscribe delivers an Update after every accepted refresh of key. Slow
// consumers only see the latest update. The returned func unsubscribes.
func (c *Coordinator) Subscribe(key string) (<-chan Update, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.lookup(key)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan Update, 1)
	e.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(e.subs, ch)
		})
	}
	return ch, cancel, nil
}

// Keys lists the registered keys.
func (c *Coordinator) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Close stops the interval timer and waits for in-flight fetches.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	<-c.cron.Stop().Done()
	c.cancel()
	c.wg.Wait()
}

// valueOf returns the value of e, putting the retained copy back into the
// store when the store dropped it. Must hold c.mu.
func (c *Coordinator) valueOf(e *entry) (any, bool) {
	if !e.hasValue {
		return nil, false
	}
	if v, ok := c.store.Get(e.key); ok {
		return v.Value, true
	}
	c.store.Set(e.key, e.value)
	return e.value, true
}

func (c *Coordinator) lookup(key string) (*entry, error) {
	if c.closed {
		return nil, ErrClosed
	}
	e, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return e, nil
}

// kick issues a refresh and returns the sequence number whose completion
// satisfies the caller. A soft kick joins the fetch in flight; a hard one
// issues a newer number and queues a single follow-up. Must hold c.mu.
func (c *Coordinator) kick(e *entry, hard bool, retries int, trigger Trigger) uint64 {
	if e.inflight {
		if !hard {
			return e.inflightSeq
		}
		e.issued++
		if !e.queued || retries < e.queuedRetries {
			e.queuedRetries = retries
		}
		if !e.queued || trigger == TriggerManual {
			e.queuedTrigger = trigger
		}
		e.queued = true
		return e.issued
	}

	e.issued++
	e.inflight = true
	e.inflightSeq = e.issued
	e.trigger = trigger
	c.wg.Add(1)
	go c.run(e, e.issued, retries, trigger)
	return e.issued
}

func (c *Coordinator) run(e *entry, seq uint64, retries int, trigger Trigger) {
	defer c.wg.Done()

	for {
		start := c.now()
		value, err := c.fetch(e, retries, trigger)

		c.mu.Lock()
		c.complete(e, seq, trigger, value, err, c.now().Sub(start))
		if !e.queued || c.closed {
			e.inflight = false
			e.queued = false
			c.mu.Unlock()
			return
		}
		e.queued = false
		seq, retries, trigger = e.issued, e.queuedRetries, e.queuedTrigger
		e.inflightSeq = seq
		e.trigger = trigger
		c.mu.Unlock()
	}
}

func (c *Coordinator) fetch(e *entry, retries int, trigger Trigger) (any, error) {
	for attempt := 0; ; attempt++ {
		value, err := e.loader(c.ctx)
		if err == nil {
			return value, nil
		}
		if attempt >= retries || errors.Is(err, core.ErrInputValidation) || c.ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("Background refresh failed, retrying",
			log.FieldCacheKey, e.key, log.FieldTrigger, string(trigger),
			log.FieldAttempt, attempt+1, log.FieldError, err.Error())
	}
}

// complete applies a finished fetch if seq is still the latest issued.
// Must hold c.mu.
func (c *Coordinator) complete(e *entry, seq uint64, trigger Trigger, value any, err error, elapsed time.Duration) {
	if seq != e.issued {
		c.logger.Debug("Discarding superseded refresh",
			log.FieldCacheKey, e.key, log.FieldSequence, seq, "latest", e.issued)
		return
	}

	now := c.now()
	e.completedSeq = seq
	e.lastErr = err
	if err == nil {
		c.store.Set(e.key, value)
		e.value = value
		e.hasValue = true
		e.fetchedAt = now
		e.stale = false
	}
	c.refreshL.LogRefresh(c.ctx, e.key, seq, string(trigger), elapsed, err)

	close(e.changed)
	e.changed = make(chan struct{})

	u := Update{Key: e.key, Seq: seq, Trigger: trigger, At: now, Err: err}
	for ch := range e.subs {
		select {
		case ch <- u:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- u:
			default:
			}
		}
	}
}

// await blocks until a completion at or after target is accepted. It is
// entered with c.mu held and returns with it released. Manual callers get the
// error of that completion; readers get whatever value is cached.
func (c *Coordinator) await(ctx context.Context, e *entry, target uint64, manual bool) (any, error) {
	for {
		if e.completedSeq >= target {
			err := e.lastErr
			v, ok := c.valueOf(e)
			c.mu.Unlock()
			switch {
			case manual:
				return nil, err
			case ok:
				return v, nil
			default:
				return nil, err
			}
		}
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}

		changed := e.changed
		c.mu.Unlock()
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.ctx.Done():
			return nil, ErrClosed
		}
		c.mu.Lock()
	}
}

// WithFreshness registers key on first use and reads it.
func WithFreshness[T any](ctx context.Context, c *Coordinator, key string, loader func(context.Context) (T, error), policy Policy) (T, error) {
	var zero T
	if _, err := c.Register(key, func(ctx context.Context) (any, error) {
		return loader(ctx)
	}, policy); err != nil {
		return zero, err
	}

	v, err := c.Read(ctx, key)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("freshness: key %q holds %T", key, v)
	}
	return typed, nil
}
