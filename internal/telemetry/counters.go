// Package telemetry counts hook outcomes per collection.
// All data stays local: an in-memory counter set that is periodically flushed
// into a SQLite table of daily totals.
package telemetry

import (
	"sort"
	"sync"
	"time"
)

// DateLayout is the day format used for the date column.
const DateLayout = "2006-01-02"

// Key identifies one counter.
type Key struct {
	Collection string
	Outcome    string
}

// Counters is a thread-safe set of outcome counters.
// It keeps running totals since process start and a pending delta that is
// handed to the store on each flush.
type Counters struct {
	mu      sync.Mutex
	totals  map[Key]int64
	pending map[Key]int64
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{
		totals:  make(map[Key]int64),
		pending: make(map[Key]int64),
	}
}

// Record increments the counter for collection and outcome.
func (c *Counters) Record(collection, outcome string) {
	k := Key{Collection: collection, Outcome: outcome}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals[k]++
	c.pending[k]++
}

// Snapshot returns totals since start keyed by collection then outcome.
func (c *Counters) Snapshot() map[string]map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]map[string]int64)
	for k, v := range c.totals {
		if out[k.Collection] == nil {
			out[k.Collection] = make(map[string]int64)
		}
		out[k.Collection][k.Outcome] = v
	}
	return out
}

// Drain returns the pending deltas and clears them.
func (c *Counters) Drain() map[Key]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}
	d := c.pending
	c.pending = make(map[Key]int64)
	return d
}

// restore adds deltas back after a failed flush.
func (c *Counters) restore(d map[Key]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range d {
		c.pending[k] += v
	}
}

// Flush writes pending deltas to store under the day of now.
// On failure the deltas are kept for the next flush.
func (c *Counters) Flush(store *Store, now time.Time) error {
	d := c.Drain()
	if len(d) == 0 {
		return nil
	}
	if err := store.SaveCounts(now.Format(DateLayout), d); err != nil {
		c.restore(d)
		return err
	}
	return nil
}

// SortedKeys returns the keys of m ordered by collection then outcome.
func SortedKeys(m map[Key]int64) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Collection != keys[j].Collection {
			return keys[i].Collection < keys[j].Collection
		}
		return keys[i].Outcome < keys[j].Outcome
	})
	return keys
}
