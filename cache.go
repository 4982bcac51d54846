// seehuhn.de/go/pdfcore - the object store of a PDF library
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pdf

// lruCache keeps the most recently used values, up to a fixed number.
type lruCache[K comparable, V any] struct {
	capacity    int
	entries     map[K]*cacheEntry[K, V]
	first, last *cacheEntry[K, V]
}

type cacheEntry[K comparable, V any] struct {
	prev, next *cacheEntry[K, V]
	key        K
	val        V
}

func newCache[K comparable, V any](capacity int) *lruCache[K, V] {
	return &lruCache[K, V]{
		capacity: capacity,
		entries:  make(map[K]*cacheEntry[K, V], capacity),
	}
}

// Put adds a value to the cache.  If the cache is full, the least recently
// used value is dropped.
func (c *lruCache[K, V]) Put(key K, val V) {
	if c.capacity <= 0 {
		return
	}
	if ent, ok := c.entries[key]; ok {
		ent.val = val
		c.moveToFront(ent)
		return
	}

	ent := &cacheEntry[K, V]{key: key, val: val}
	c.entries[key] = ent
	c.moveToFront(ent)
	if len(c.entries) > c.capacity {
		c.removeLast()
	}
}

// Get returns a value from the cache and marks it as recently used.
func (c *lruCache[K, V]) Get(key K) (V, bool) {
	ent, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(ent)
	return ent.val, true
}

// Len returns the number of cached values.
func (c *lruCache[K, V]) Len() int {
	return len(c.entries)
}

func (c *lruCache[K, V]) unlink(ent *cacheEntry[K, V]) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else if c.first == ent {
		c.first = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	} else if c.last == ent {
		c.last = ent.prev
	}
	ent.prev = nil
	ent.next = nil
}

func (c *lruCache[K, V]) moveToFront(ent *cacheEntry[K, V]) {
	if ent == c.first {
		return
	}
	c.unlink(ent)
	ent.next = c.first
	if c.first != nil {
		c.first.prev = ent
	}
	c.first = ent
	if c.last == nil {
		c.last = ent
	}
}

func (c *lruCache[K, V]) removeLast() {
	ent := c.last
	if ent == nil {
		return
	}
	c.unlink(ent)
	delete(c.entries, ent.key)
}
