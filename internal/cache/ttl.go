// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache provides the two bounded stores the window history
// needs: a TTL cache keyed by IP holding a *list* of history entries
// (bounded by total entry count, not key count) and a plain LRU set of
// "ready" IPs.
package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTLCache holds, per key, an ordered list of entries. It is bounded by
// the *sum* of list lengths across all keys (maxTotal), not by the
// number of keys. Each key's TTL is refreshed to ttl on every Append.
//
// lengths tracks the last-known length of each tracked key independent
// of the backing store: go-cache expires keys lazily, so store.Get can
// report a key absent well before it is dropped from insertSeq. total
// and insertSeq are only ever adjusted through recordLengthLocked and
// forgetLocked so they stay correct regardless of the store's own view.
type TTLCache[T any] struct {
	mu        sync.Mutex
	store     *gocache.Cache
	ttl       time.Duration
	maxTotal  int
	total     int
	lengths   map[string]int
	insertSeq []string // keys in least-recently-inserted-or-refreshed order
	onEvict   func(key string)
}

// NewTTLCache constructs a TTL cache bounded at maxTotal entries total
// (summed across all keys) with the given per-key time-to-live.
func NewTTLCache[T any](maxTotal int, ttl time.Duration) *TTLCache[T] {
	return &TTLCache[T]{
		store:    gocache.New(ttl, ttl),
		ttl:      ttl,
		maxTotal: maxTotal,
		lengths:  make(map[string]int),
	}
}

// SetOnEvict registers a callback invoked, after the fact, each time a
// key is dropped by evictLocked to respect maxTotal. It is not called
// for explicit Delete or Clear calls, only for bound-triggered
// eviction, mirroring the Driver's OnReady callback idiom.
func (c *TTLCache[T]) SetOnEvict(f func(key string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = f
}

// Get returns the entry list for key, or (nil, false) if absent or
// expired.
func (c *TTLCache[T]) Get(key string) ([]T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *TTLCache[T]) getLocked(key string) ([]T, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]T), true
}

// Has reports whether key has a non-expired entry.
func (c *TTLCache[T]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store.Get(key)
	return ok
}

// Append adds entry to key's list, creating it if absent, refreshing
// the key's TTL, and evicting as needed to respect maxTotal.
func (c *TTLCache[T]) Append(key string, entry T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, existed := c.getLocked(key)
	if _, tracked := c.lengths[key]; !existed && tracked {
		// go-cache already lazily expired key's list out from under us.
		// Forget its stale contribution (lengths, total, insertSeq slot)
		// so it is treated as a brand new key below, instead of
		// recordLengthLocked diffing the fresh 1-entry list against a
		// stale larger length and corrupting total.
		c.forgetLocked(key)
		c.removeFromInsertSeqLocked(key)
	}

	_, tracked := c.lengths[key]
	list = append(list, entry)
	c.store.Set(key, list, c.ttl)
	c.recordLengthLocked(key, len(list))

	if tracked {
		c.touchLocked(key)
	} else {
		c.insertSeq = append(c.insertSeq, key)
	}

	c.evictLocked()
}

// Set replaces the entire list stored at key, refreshing its TTL.
func (c *TTLCache[T]) Set(key string, list []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, tracked := c.lengths[key]
	c.store.Set(key, list, c.ttl)
	c.recordLengthLocked(key, len(list))

	if tracked {
		c.touchLocked(key)
	} else {
		c.insertSeq = append(c.insertSeq, key)
	}
	c.evictLocked()
}

// Delete removes key entirely.
func (c *TTLCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(key)
}

func (c *TTLCache[T]) deleteLocked(key string) {
	c.forgetLocked(key)
	c.store.Delete(key)
	c.removeFromInsertSeqLocked(key)
}

// Clear empties the cache.
func (c *TTLCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Flush()
	c.total = 0
	c.lengths = make(map[string]int)
	c.insertSeq = nil
}

// recordLengthLocked is the single place c.total is ever incremented:
// it reconciles total against the authoritative lengths map rather
// than the backing store, so a lazily-expired-but-not-yet-reaped key
// never desyncs the bound.
func (c *TTLCache[T]) recordLengthLocked(key string, newLen int) {
	c.total += newLen - c.lengths[key]
	c.lengths[key] = newLen
}

// forgetLocked is the single place c.total is ever decremented: it
// drops key's contribution to total using the authoritative lengths
// map, regardless of whether the backing store still reports the key
// present.
func (c *TTLCache[T]) forgetLocked(key string) {
	c.total -= c.lengths[key]
	delete(c.lengths, key)
}

// Total returns the current sum of list lengths across all keys.
func (c *TTLCache[T]) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *TTLCache[T]) touchLocked(key string) {
	c.removeFromInsertSeqLocked(key)
	c.insertSeq = append(c.insertSeq, key)
}

// removeFromInsertSeqLocked drops key's slot from insertSeq, if present,
// without touching lengths/total. Shared by deleteLocked (which forgets
// the key's bookkeeping separately) and touchLocked (which re-adds the
// key right after).
func (c *TTLCache[T]) removeFromInsertSeqLocked(key string) {
	for i, k := range c.insertSeq {
		if k == key {
			c.insertSeq = append(c.insertSeq[:i], c.insertSeq[i+1:]...)
			return
		}
	}
}

// evictLocked drops the least-recently-inserted key whole once the
// total entry count exceeds maxTotal. It always accounts
// for the oldest key's length via forgetLocked, whether or not the
// backing store has already lazily expired it, so a stale entry
// genuinely frees its budget instead of causing a fresh key to be
// evicted in its place.
func (c *TTLCache[T]) evictLocked() {
	for c.total > c.maxTotal && len(c.insertSeq) > 0 {
		oldest := c.insertSeq[0]
		c.insertSeq = c.insertSeq[1:]
		c.forgetLocked(oldest)
		c.store.Delete(oldest)
		if c.onEvict != nil {
			c.onEvict(oldest)
		}
	}
}
