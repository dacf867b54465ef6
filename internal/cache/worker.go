package cache

import "github.com/xtxerr/rrdsink/internal/metrics"

// run is the flush worker loop. One goroutine per cache.
//
// For each dequeued path the pending batch is swapped out under the cache
// lock, then applied via update with no lock held. When the queue reports
// shutdown-and-empty the worker destroys the entry map and exits.
func (c *Cache) run(update UpdateFunc) {
	defer close(c.done)

	for {
		filename, ok := c.queue.pop()
		if !ok {
			break
		}

		c.mu.Lock()
		e := c.entries[filename]
		var values []string
		if e != nil {
			values = e.values
			e.values = nil
			e.firstValue = 0
			e.queued = false
		}
		c.mu.Unlock()

		if len(values) == 0 {
			continue
		}

		update(filename, values)
		metrics.BatchLines.Observe(float64(len(values)))
	}

	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}
