// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package cache provides the in-memory LRU cache that fronts the browser
// renderer. Rendering is the expensive operation in the system (hundreds of
// milliseconds per image), so identical render requests are served from here.
package cache

import (
	"sync"

	"github.com/reviewforge/reviewforge/internal/metrics"
	"github.com/reviewforge/reviewforge/internal/models"
)

// DefaultCapacity bounds the number of cached images. Entries are evicted
// strictly by recency; there is no TTL because a render request is a pure
// function of its inputs.
const DefaultCapacity = 100

// imageEntry is a node in the doubly-linked recency list.
type imageEntry struct {
	key   string
	value models.ImageResult
	prev  *imageEntry
	next  *imageEntry
}

// ImageLRU is a thread-safe LRU cache of rendered images keyed by the
// canonical render-request hash.
//
// It uses a doubly-linked list for ordering and a hashmap for lookups, giving
// O(1) Get, Add, and eviction. head.next is the most recently used entry,
// tail.prev the least recently used.
type ImageLRU struct {
	mu sync.RWMutex

	capacity int
	items    map[string]*imageEntry

	// head and tail are sentinel nodes for the doubly-linked list.
	head *imageEntry
	tail *imageEntry

	hits   int64
	misses int64
}

// NewImageLRU creates a cache with the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func NewImageLRU(capacity int) *ImageLRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &ImageLRU{
		capacity: capacity,
		items:    make(map[string]*imageEntry, capacity),
		head:     &imageEntry{},
		tail:     &imageEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get retrieves a cached image and marks it most recently used. The result
// has Cached set so response headers can report the hit.
func (c *ImageLRU) Get(key string) (models.ImageResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		c.misses++
		metrics.ImageCacheMisses.Inc()
		return models.ImageResult{}, false
	}

	c.moveToFront(entry)
	c.hits++
	metrics.ImageCacheHits.Inc()

	result := entry.value
	result.Cached = true
	return result, true
}

// Contains checks for a key without updating access order or counters.
func (c *ImageLRU) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.items[key]
	return exists
}

// Add stores a rendered image, evicting the least recently used entry when
// the cache is at capacity. Adding an existing key refreshes its recency.
func (c *ImageLRU) Add(key string, value models.ImageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		entry.value = value
		c.moveToFront(entry)
		return
	}

	entry := &imageEntry{key: key, value: value}
	c.addToFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes a key, reporting whether it was present.
func (c *ImageLRU) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		return false
	}
	c.removeEntry(entry)
	return true
}

// Len returns the current number of cached images.
func (c *ImageLRU) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear drops every entry.
func (c *ImageLRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*imageEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats returns hit/miss counters and the current size.
func (c *ImageLRU) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.items)
}

// Internal methods (must be called with lock held)

func (c *ImageLRU) addToFront(entry *imageEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *ImageLRU) moveToFront(entry *imageEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *ImageLRU) removeEntry(entry *imageEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *ImageLRU) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	metrics.ImageCacheEvictions.Inc()
}
