// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package store persists the deduplicating review document.
//
// The store is write-through to memory with a debounced flush: the first
// mutation after a flush arms a 5-second timer, and the save path writes the
// whole document to <path>.tmp, copies the previous file to <path>.bak, and
// renames the tmp file into place. A failed save keeps the document dirty so
// the next mutation (or shutdown) retries.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/metrics"
	"github.com/reviewforge/reviewforge/internal/models"
)

// DocumentVersion is checked on load; any mismatch discards the document.
const DocumentVersion = 1

// DefaultFlushDelay is the debounce window between a mutation and the save.
const DefaultFlushDelay = 5 * time.Second

// ErrConflict is returned by Add when the review ID is already present.
var ErrConflict = models.E(models.KindConflict, "review already exists")

// Document is the single versioned on-disk document.
type Document struct {
	Version int                       `json:"version"`
	Cursors map[string]string         `json:"cursors"`
	Reviews map[string]*models.Review `json:"reviews"`
	Stats   DocumentStats             `json:"stats"`
}

// DocumentStats aggregates ingestion counters.
type DocumentStats struct {
	TotalIngested int                  `json:"total_ingested"`
	LastPollTimes map[string]time.Time `json:"last_poll_times"`
}

// Stats is the aggregate view returned by Store.Stats.
type Stats struct {
	TotalReviews  int                  `json:"total_reviews"`
	TotalIngested int                  `json:"total_ingested"`
	BySource      map[string]int       `json:"by_source"`
	LastPollTimes map[string]time.Time `json:"last_poll_times"`
}

// Flag mutates the processing flags of a stored review.
type Flag func(*models.Review)

// FlagImageGenerated marks that an image was rendered for the review.
func FlagImageGenerated() Flag { return func(r *models.Review) { r.ImageGenerated = true } }

// FlagChatShared marks that the review was shared to the chat workspace.
func FlagChatShared() Flag { return func(r *models.Review) { r.ChatShared = true } }

// Store owns the review document. All access goes through its methods; the
// mutex serialises mutations so the debounced save always observes a
// consistent snapshot.
type Store struct {
	mu         sync.Mutex
	path       string
	doc        *Document
	dirty      bool
	timer      *time.Timer
	flushDelay time.Duration
	closed     bool
}

// Open loads (or initialises) the store at path. The parent directory is
// created if needed. A parse error or version mismatch starts fresh and
// marks the document dirty so the corrupt file is replaced on next flush.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &Store{
		path:       path,
		flushDelay: DefaultFlushDelay,
		doc:        emptyDocument(),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Fresh store; the file is created on first write.
	case err != nil:
		return nil, fmt.Errorf("read store file: %w", err)
	default:
		doc := &Document{}
		if jerr := json.Unmarshal(data, doc); jerr != nil || doc.Version != DocumentVersion {
			logging.Warn().
				Str("path", path).
				Int("version", doc.Version).
				AnErr("parse_error", jerr).
				Msg("Discarding unreadable store document, starting fresh")
			s.dirty = true
		} else {
			normalizeDocument(doc)
			s.doc = doc
		}
	}

	metrics.StoreReviews.Set(float64(len(s.doc.Reviews)))
	return s, nil
}

func emptyDocument() *Document {
	return &Document{
		Version: DocumentVersion,
		Cursors: map[string]string{},
		Reviews: map[string]*models.Review{},
		Stats:   DocumentStats{LastPollTimes: map[string]time.Time{}},
	}
}

// normalizeDocument repairs nil maps from hand-edited files.
func normalizeDocument(doc *Document) {
	if doc.Cursors == nil {
		doc.Cursors = map[string]string{}
	}
	if doc.Reviews == nil {
		doc.Reviews = map[string]*models.Review{}
	}
	if doc.Stats.LastPollTimes == nil {
		doc.Stats.LastPollTimes = map[string]time.Time{}
	}
	// Key is authoritative for the record's identity.
	for id, r := range doc.Reviews {
		r.ID = id
	}
}

// Has reports whether a review ID is already stored.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.doc.Reviews[id]
	return ok
}

// Get returns a copy of the stored review, or false if unknown.
func (s *Store) Get(id string) (models.Review, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.doc.Reviews[id]
	if !ok {
		return models.Review{}, false
	}
	return *r, true
}

// Add inserts a new review. It fails with a Conflict error when the ID is
// already present; otherwise it increments total_ingested and arms the
// debounced flush.
func (s *Store) Add(review models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Reviews[review.ID]; ok {
		return ErrConflict
	}
	if review.ProcessedAt.IsZero() {
		review.ProcessedAt = time.Now().UTC()
	}

	s.doc.Reviews[review.ID] = &review
	s.doc.Stats.TotalIngested++
	metrics.StoreReviews.Set(float64(len(s.doc.Reviews)))
	s.markDirtyLocked()
	return nil
}

// MarkProcessed merges the named flags into a stored review. Unknown IDs
// are a no-op.
func (s *Store) MarkProcessed(id string, flags ...Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.doc.Reviews[id]
	if !ok {
		return
	}
	for _, f := range flags {
		f(r)
	}
	r.ProcessedAt = time.Now().UTC()
	s.markDirtyLocked()
}

// GetCursor returns the opaque cursor for a source, or "".
func (s *Store) GetCursor(source string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Cursors[source]
}

// SetCursor persists the opaque cursor for a source.
func (s *Store) SetCursor(source, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Cursors[source] = token
	s.markDirtyLocked()
}

// SetLastPollTime stamps the current wall clock for a source.
func (s *Store) SetLastPollTime(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Stats.LastPollTimes[source] = time.Now().UTC()
	s.markDirtyLocked()
}

// MaxRecentLimit caps the Recent result size.
const MaxRecentLimit = 200

// Recent returns up to limit reviews sorted by review date descending
// (processed time as fallback), optionally filtered by source.
func (s *Store) Recent(limit int, source string) []models.Review {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	out := make([]models.Review, 0, len(s.doc.Reviews))
	for _, r := range s.doc.Reviews {
		if source != "" && r.Source != source {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SortDate().After(out[j].SortDate())
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Stats returns aggregate counts by source plus the last-poll map.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		TotalReviews:  len(s.doc.Reviews),
		TotalIngested: s.doc.Stats.TotalIngested,
		BySource:      map[string]int{},
		LastPollTimes: map[string]time.Time{},
	}
	for _, r := range s.doc.Reviews {
		st.BySource[r.Source]++
	}
	for k, v := range s.doc.Stats.LastPollTimes {
		st.LastPollTimes[k] = v
	}
	return st
}

// Prune deletes reviews older than maxAgeDays (by review date, processed
// time as fallback) and returns how many were removed.
func (s *Store) Prune(maxAgeDays int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	removed := 0
	for id, r := range s.doc.Reviews {
		if r.SortDate().Before(cutoff) {
			delete(s.doc.Reviews, id)
			removed++
		}
	}
	if removed > 0 {
		metrics.StoreReviews.Set(float64(len(s.doc.Reviews)))
		s.markDirtyLocked()
	}
	return removed
}

// Flush saves the document synchronously if it is dirty.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Shutdown cancels the debounce timer and flushes any pending save.
func (s *Store) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return s.flushLocked()
}

// markDirtyLocked flags the document dirty and arms the debounce timer.
// Arming is idempotent: a pending timer is left alone so a burst of
// mutations results in one save.
func (s *Store) markDirtyLocked() {
	s.dirty = true
	if s.closed || s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.flushDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.timer = nil
		if err := s.flushLocked(); err != nil {
			logging.Err(err).Str("path", s.path).Msg("Debounced store flush failed")
		}
	})
}

// flushLocked runs the atomic save path. On failure the document stays
// dirty; the next mutation re-arms the debounce.
func (s *Store) flushLocked() error {
	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		metrics.StoreFlushErrors.Inc()
		return fmt.Errorf("marshal store document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		metrics.StoreFlushErrors.Inc()
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	// Keep a one-deep backup of the previous persisted document.
	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, s.path+".bak"); err != nil {
			logging.Err(err).Str("path", s.path).Msg("Failed to write store backup")
		}
	}

	if err := os.Rename(tmp, s.path); err != nil {
		metrics.StoreFlushErrors.Inc()
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	s.dirty = false
	metrics.StoreFlushes.Inc()
	logging.Debug().Str("path", s.path).Int("reviews", len(s.doc.Reviews)).Msg("Store flushed")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
