// Package cache implements the write-coalescing cache and its asynchronous
// flush worker. Samples destined for the same archive file are batched in
// memory and handed to a single background worker, which applies each batch
// with one engine update, so engine updates never run on a producer.
//
// Two locks serialize everything: the cache lock guarding the entry map and
// the queue lock guarding the flush FIFO. When both are needed, the cache
// lock is ALWAYS taken first and released last. The engine is only ever
// invoked by the worker with no lock held.
package cache

import (
	"sync"
	"time"

	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/logging"
	"github.com/xtxerr/rrdsink/internal/metrics"
)

var log = logging.Component("cache")

// UpdateFunc applies one flushed batch: values are the formatted update
// lines for filename, oldest first. Failures are the callee's to log; the
// batch is gone either way.
type UpdateFunc func(filename string, values []string)

// entry is the pending batch for one archive path. Mutated only under the
// cache lock.
type entry struct {
	values     []string
	firstValue int64
	lastValue  int64
	queued     bool
}

// Options configures a Cache.
type Options struct {
	// Timeout is the coalescing window in seconds. 0 flushes every sample
	// immediately.
	Timeout int

	// FlushTimeout is the interval in seconds between sweeps that age out
	// idle entries. Only meaningful when Timeout > 0.
	FlushTimeout int

	// Now overrides the time source (unix seconds). Nil means wall clock.
	Now func() int64
}

// Cache is the keyed store of pending batches. Safe for concurrent use by
// any number of producers alongside its single flush worker.
type Cache struct {
	timeout      int64
	flushTimeout int64
	now          func() int64

	mu        sync.Mutex // the cache lock; nested outside the queue lock
	entries   map[string]*entry
	flushLast int64

	queue flushQueue

	done chan struct{}
}

// New creates a cache. Start must be called before any entry can drain.
func New(opts Options) *Cache {
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}

	c := &Cache{
		timeout:      int64(opts.Timeout),
		flushTimeout: int64(opts.FlushTimeout),
		now:          now,
		entries:      make(map[string]*entry),
		done:         make(chan struct{}),
	}
	c.flushLast = now()
	c.queue.init()
	return c
}

// Start launches the flush worker. update is invoked once per drained batch,
// outside both locks.
func (c *Cache) Start(update UpdateFunc) {
	go c.run(update)
}

// Insert appends one formatted value line to the batch pending for filename.
//
// The timestamp must advance strictly: a sample at or before the entry's
// newest accepted time is rejected with ErrNonMonotonic and the entry is
// left untouched. Once the batch spans the coalescing window, the path is
// enqueued for the worker. Insert also triggers the periodic aging sweep
// when one is due.
func (c *Cache) Insert(filename, value string, valueTime int64) error {
	c.mu.Lock()

	if c.entries == nil {
		c.mu.Unlock()
		return errors.ErrShutdown
	}

	e, ok := c.entries[filename]
	if ok && e.lastValue >= valueTime {
		last := e.lastValue
		c.mu.Unlock()
		log.Warn("non-monotonic sample",
			"file", filename, "last_value", last, "value_time", valueTime)
		metrics.NonMonotonicTotal.Inc()
		return errors.Wrap(errors.ErrNonMonotonic,
			"%s: %d <= %d", filename, valueTime, last)
	}
	if !ok {
		e = &entry{}
		c.entries[filename] = e
		metrics.CacheEntries.Inc()
	}

	e.values = append(e.values, value)
	if len(e.values) == 1 {
		e.firstValue = valueTime
	}
	e.lastValue = valueTime

	if e.lastValue-e.firstValue >= c.timeout && !e.queued {
		c.queue.push(filename)
		e.queued = true
	}

	if c.timeout > 0 && c.now()-c.flushLast > c.flushTimeout {
		c.flushLocked(c.flushTimeout)
	}

	c.mu.Unlock()
	metrics.SamplesTotal.Inc()
	return nil
}

// Flush sweeps the cache with the given deadline in seconds: entries whose
// oldest pending value is at least deadline old are enqueued, and entries
// that are both idle and empty past the deadline are dropped. A negative
// deadline forces every non-queued, non-empty entry out, which is how
// shutdown drains the cache.
func (c *Cache) Flush(deadline int64) {
	c.mu.Lock()
	if c.entries != nil {
		c.flushLocked(deadline)
	}
	c.mu.Unlock()
}

// flushLocked is the sweep body. Caller holds the cache lock.
func (c *Cache) flushLocked(deadline int64) {
	now := c.now()
	removed := 0

	for filename, e := range c.entries {
		if e.queued {
			continue
		}
		if now-e.firstValue < deadline {
			continue
		}
		if len(e.values) > 0 {
			c.queue.push(filename)
			e.queued = true
		} else {
			delete(c.entries, filename)
			metrics.CacheEntries.Dec()
			removed++
		}
	}

	if removed > 0 {
		log.Debug("sweep removed idle entries", "count", removed)
	}
	c.flushLast = now
}

// Shutdown drains the cache: every pending batch is enqueued, the worker is
// told to exit once the queue runs dry, and no further inserts are accepted
// after the worker's final teardown. Use Done to join the worker.
func (c *Cache) Shutdown() {
	c.Flush(-1)
	c.queue.close()
}

// Done is closed when the flush worker has drained the queue and torn the
// cache down.
func (c *Cache) Done() <-chan struct{} {
	return c.done
}

// Len returns the number of archive paths currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// QueueLen returns the number of batches waiting for the worker.
func (c *Cache) QueueLen() int {
	return c.queue.len()
}
