// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package cache

import (
	"fmt"
	"testing"

	"github.com/reviewforge/reviewforge/internal/models"
)

func testImage(marker byte) models.ImageResult {
	return models.ImageResult{
		Bytes:  []byte{marker},
		Format: models.FormatPNG,
		Width:  1080,
		Height: 1080,
	}
}

func TestImageLRUGetMiss(t *testing.T) {
	c := NewImageLRU(10)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}
	if _, misses, _ := c.Stats(); misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
}

func TestImageLRUAddGet(t *testing.T) {
	c := NewImageLRU(10)

	c.Add("k1", testImage(1))
	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Bytes[0] != 1 || got.Width != 1080 {
		t.Errorf("got = %+v", got)
	}
	if !got.Cached {
		t.Error("cache hits must be flagged Cached")
	}

	hits, _, size := c.Stats()
	if hits != 1 || size != 1 {
		t.Errorf("hits = %d, size = %d", hits, size)
	}
}

func TestImageLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewImageLRU(3)

	c.Add("k1", testImage(1))
	c.Add("k2", testImage(2))
	c.Add("k3", testImage(3))

	// Touch k1 so k2 becomes the eviction candidate.
	if _, ok := c.Get("k1"); !ok {
		t.Fatal("k1 should be present")
	}

	c.Add("k4", testImage(4))

	if c.Contains("k2") {
		t.Error("k2 should have been evicted")
	}
	for _, key := range []string{"k1", "k3", "k4"} {
		if !c.Contains(key) {
			t.Errorf("%s should survive eviction", key)
		}
	}
	if c.Len() != 3 {
		t.Errorf("len = %d, want 3", c.Len())
	}
}

func TestImageLRUAddExistingRefreshes(t *testing.T) {
	c := NewImageLRU(2)

	c.Add("k1", testImage(1))
	c.Add("k2", testImage(2))
	c.Add("k1", testImage(9))
	c.Add("k3", testImage(3))

	// k2 was least recently used after k1's re-add.
	if c.Contains("k2") {
		t.Error("k2 should have been evicted")
	}
	got, ok := c.Get("k1")
	if !ok || got.Bytes[0] != 9 {
		t.Errorf("k1 = %+v, ok = %v, want refreshed value", got, ok)
	}
}

func TestImageLRURemove(t *testing.T) {
	c := NewImageLRU(10)

	c.Add("k1", testImage(1))
	if !c.Remove("k1") {
		t.Error("remove should report true for present key")
	}
	if c.Remove("k1") {
		t.Error("remove should report false for absent key")
	}
	if c.Len() != 0 {
		t.Errorf("len = %d, want 0", c.Len())
	}
}

func TestImageLRUClear(t *testing.T) {
	c := NewImageLRU(10)

	for i := 0; i < 5; i++ {
		c.Add(fmt.Sprintf("k%d", i), testImage(byte(i)))
	}
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("len after clear = %d", c.Len())
	}
	// The list must still be usable after a clear.
	c.Add("k1", testImage(1))
	if !c.Contains("k1") {
		t.Error("cache unusable after clear")
	}
}

func TestImageLRUDefaultCapacity(t *testing.T) {
	c := NewImageLRU(0)

	for i := 0; i < DefaultCapacity+20; i++ {
		c.Add(fmt.Sprintf("k%d", i), testImage(byte(i)))
	}
	if c.Len() != DefaultCapacity {
		t.Errorf("len = %d, want %d", c.Len(), DefaultCapacity)
	}
	// The oldest inserts are gone, the newest survive.
	if c.Contains("k0") {
		t.Error("k0 should have been evicted")
	}
	if !c.Contains(fmt.Sprintf("k%d", DefaultCapacity+19)) {
		t.Error("newest entry missing")
	}
}
