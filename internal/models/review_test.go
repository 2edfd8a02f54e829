// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package models

import (
	"strings"
	"testing"
	"time"
)

func TestDeriveIDWithSourceToken(t *testing.T) {
	r := &Review{ReviewerName: "Jane D.", ReviewText: "Great", Rating: 5}
	id := DeriveID("google", "abc123", r)
	if id != "google:abc123" {
		t.Errorf("DeriveID = %q, want google:abc123", id)
	}
}

func TestDeriveIDContentHash(t *testing.T) {
	r := &Review{ReviewerName: "Jane D.", ReviewText: "Great", Rating: 5}
	id := DeriveID("generic", "", r)

	if !strings.HasPrefix(id, "generic:") {
		t.Fatalf("id %q missing source prefix", id)
	}
	token := strings.TrimPrefix(id, "generic:")
	if len(token) != 16 {
		t.Errorf("token length = %d, want 16", len(token))
	}

	// Identical content yields identical IDs.
	again := DeriveID("generic", "", &Review{ReviewerName: "Jane D.", ReviewText: "Great", Rating: 5})
	if again != id {
		t.Errorf("content hash not stable: %q vs %q", again, id)
	}

	// Any field change yields a different ID.
	other := DeriveID("generic", "", &Review{ReviewerName: "Jane D.", ReviewText: "Great", Rating: 4})
	if other == id {
		t.Error("different rating produced same ID")
	}
}

func TestClampRating(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 1}, {-3, 1}, {1, 1}, {3, 3}, {5, 5}, {6, 5}, {99, 5},
	}
	for _, tt := range tests {
		if got := ClampRating(tt.in); got != tt.want {
			t.Errorf("ClampRating(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	r := &Review{Rating: 9}
	r.Normalize("yelp", "tok1", "A Yelp reviewer")

	if r.Rating != 5 {
		t.Errorf("rating = %d, want clamped 5", r.Rating)
	}
	if r.ReviewerName != "A Yelp reviewer" {
		t.Errorf("reviewer_name = %q, want placeholder", r.ReviewerName)
	}
	if r.ReviewDate.IsZero() {
		t.Error("review_date not defaulted")
	}
	if r.ID != "yelp:tok1" {
		t.Errorf("id = %q, want yelp:tok1", r.ID)
	}
}

func TestSortDateFallback(t *testing.T) {
	processed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Review{ProcessedAt: processed}
	if got := r.SortDate(); !got.Equal(processed) {
		t.Errorf("SortDate = %v, want processed_at fallback", got)
	}

	reviewed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	r.ReviewDate = reviewed
	if got := r.SortDate(); !got.Equal(reviewed) {
		t.Errorf("SortDate = %v, want review_date", got)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Jane D.", "jane-d"},
		{"  ", "review"},
		{"Ángel!!", "ngel"},
	}
	for _, tt := range tests {
		r := &Review{ReviewerName: tt.in}
		if got := r.Slug(); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
