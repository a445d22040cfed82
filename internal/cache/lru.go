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

package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUSet is a bounded set of keys (the "ready IPs" set) evicting the
// least-recently-used key on overflow.
type LRUSet struct {
	inner   *lru.Cache[string, struct{}]
	size    int
	onEvict func()
}

// NewLRUSet constructs an LRUSet bounded at size keys. size must be > 0.
func NewLRUSet(size int) *LRUSet {
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New[string, struct{}](size)
	return &LRUSet{inner: c, size: size}
}

// SetOnEvict registers a callback invoked whenever Add evicts a key to
// stay within size. It is not invoked for explicit Remove or Clear
// calls, only for bound-triggered eviction. The library's own
// OnEvicted/NewWithEvict hooks are not used for this since they also
// fire on those explicit removals, which would overcount.
func (s *LRUSet) SetOnEvict(f func()) {
	s.onEvict = f
}

// Add marks key present, evicting the least-recently-used key if the
// set is at capacity.
func (s *LRUSet) Add(key string) {
	if s.onEvict != nil && !s.inner.Contains(key) && s.inner.Len() >= s.size {
		s.onEvict()
	}
	s.inner.Add(key, struct{}{})
}

// Contains reports whether key is present, without affecting recency.
func (s *LRUSet) Contains(key string) bool {
	return s.inner.Contains(key)
}

// Remove deletes key if present.
func (s *LRUSet) Remove(key string) {
	s.inner.Remove(key)
}

// Keys returns a snapshot of all present keys, oldest first.
func (s *LRUSet) Keys() []string {
	return s.inner.Keys()
}

// Len returns the number of keys currently present.
func (s *LRUSet) Len() int {
	return s.inner.Len()
}

// Clear empties the set.
func (s *LRUSet) Clear() {
	s.inner.Purge()
}
