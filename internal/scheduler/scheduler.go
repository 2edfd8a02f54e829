// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package scheduler drives the periodic source polls: staggered starts,
// per-source single-flight, and exponential backoff on consecutive
// failures.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/metrics"
	"github.com/reviewforge/reviewforge/internal/models"
	"github.com/reviewforge/reviewforge/internal/pipeline"
	"github.com/reviewforge/reviewforge/internal/sources"
	"github.com/reviewforge/reviewforge/internal/store"
)

const (
	// startStagger separates the first polls of successive adapters so the
	// process does not hammer every platform API at once on boot.
	startStagger = 5 * time.Second

	// minPollInterval floors the per-source interval regardless of config.
	minPollInterval = 15 * time.Minute

	// maxBackoffInterval caps the exponential failure backoff.
	maxBackoffInterval = 2 * time.Hour
)

// PollResult reports one poll's outcome. Skipped is set when the source's
// single-flight lock was held and nothing ran.
type PollResult struct {
	Source  string           `json:"source"`
	Skipped bool             `json:"skipped,omitempty"`
	Fetched int              `json:"fetched"`
	Summary pipeline.Summary `json:"summary"`
}

// sourceState is the scheduler's per-adapter bookkeeping.
type sourceState struct {
	mu       sync.Mutex
	inflight bool
	failures int
}

// tryAcquire takes the single-flight lock, returning false when a poll for
// this source is already running.
func (s *sourceState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight {
		return false
	}
	s.inflight = true
	return true
}

func (s *sourceState) release() {
	s.mu.Lock()
	s.inflight = false
	s.mu.Unlock()
}

func (s *sourceState) failureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *sourceState) recordOutcome(failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if failed {
		s.failures++
	} else {
		s.failures = 0
	}
}

// Registry is the adapter lookup surface the scheduler needs;
// *sources.Registry satisfies it.
type Registry interface {
	Get(name string) (sources.Adapter, bool)
	Pollable() []sources.Adapter
}

// Scheduler owns one polling loop per pollable adapter. It implements
// suture.Service via Serve.
type Scheduler struct {
	registry Registry
	store    *store.Store
	pipeline *pipeline.Pipeline
	cfg      config.IngestionConfig

	mu     sync.Mutex
	states map[string]*sourceState
}

// New builds the scheduler.
func New(registry Registry, st *store.Store, p *pipeline.Pipeline, cfg config.IngestionConfig) *Scheduler {
	return &Scheduler{
		registry: registry,
		store:    st,
		pipeline: p,
		cfg:      cfg,
		states:   map[string]*sourceState{},
	}
}

func (s *Scheduler) state(source string) *sourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[source]
	if !ok {
		st = &sourceState{}
		s.states[source] = st
	}
	return st
}

// baseInterval is the steady-state poll interval for an adapter: the
// largest of its own interval, the global interval, and the floor.
func (s *Scheduler) baseInterval(adapter sources.Adapter) time.Duration {
	base := minPollInterval
	if g := s.cfg.PollInterval(); g > base {
		base = g
	}
	if src, ok := s.cfg.Sources[adapter.Name()]; ok && src.PollInterval > base {
		base = src.PollInterval
	}
	return base
}

// nextInterval applies the exponential backoff to the base interval.
func nextInterval(base time.Duration, failures int) time.Duration {
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoffInterval {
			return maxBackoffInterval
		}
	}
	return d
}

// Serve runs the polling loops until ctx is cancelled, then flushes the
// store. It is the suture service entry point.
func (s *Scheduler) Serve(ctx context.Context) error {
	adapters := s.registry.Pollable()
	if len(adapters) == 0 {
		logging.Info().Msg("No pollable sources configured, scheduler idle")
		<-ctx.Done()
		return ctx.Err()
	}

	var wg sync.WaitGroup
	for k, adapter := range adapters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLoop(ctx, adapter, time.Duration(k)*startStagger)
		}()
	}
	wg.Wait()

	if err := s.store.Flush(); err != nil {
		logging.Err(err).Msg("Final store flush on scheduler stop failed")
	}
	return ctx.Err()
}

// runLoop polls one adapter forever: initial stagger, then base interval
// stretched by the failure backoff.
func (s *Scheduler) runLoop(ctx context.Context, adapter sources.Adapter, stagger time.Duration) {
	base := s.baseInterval(adapter)
	logging.Info().
		Str("source", adapter.Name()).
		Dur("interval", base).
		Dur("stagger", stagger).
		Msg("Starting poll loop")

	timer := time.NewTimer(stagger)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := s.PollOnce(ctx, adapter.Name()); err != nil {
			logging.Err(err).Str("source", adapter.Name()).Msg("Scheduled poll failed")
		}

		wait := nextInterval(base, s.state(adapter.Name()).failureCount())
		timer.Reset(wait)
	}
}

// PollOnce runs a single poll for the named source, respecting the
// single-flight lock. Manual poll endpoints call this directly. A registered
// source with nothing to fetch (webhook-only, like generic) yields an empty
// result rather than an error.
func (s *Scheduler) PollOnce(ctx context.Context, source string) (PollResult, error) {
	adapter, ok := s.registry.Get(source)
	if !ok {
		return PollResult{}, models.E(models.KindNotFound, "unknown source: "+source)
	}
	if !adapter.Pollable() {
		return PollResult{Source: source}, nil
	}

	state := s.state(source)
	if !state.tryAcquire() {
		return PollResult{Source: source, Skipped: true}, nil
	}
	defer state.release()

	start := time.Now()
	result, err := s.poll(ctx, adapter)
	metrics.PollDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	state.recordOutcome(err != nil)
	if err != nil {
		metrics.PollErrors.WithLabelValues(source).Inc()
		return PollResult{Source: source}, err
	}

	metrics.PollLastSuccess.WithLabelValues(source).SetToCurrentTime()
	return result, nil
}

func (s *Scheduler) poll(ctx context.Context, adapter sources.Adapter) (PollResult, error) {
	source := adapter.Name()
	cursor := s.store.GetCursor(source)

	fetched, err := adapter.Fetch(ctx, cursor)
	if err != nil {
		return PollResult{}, err
	}

	if fetched.NextCursor != "" && fetched.NextCursor != cursor {
		s.store.SetCursor(source, fetched.NextCursor)
	}
	s.store.SetLastPollTime(source)

	summary := s.pipeline.Process(ctx, fetched.Reviews)
	return PollResult{
		Source:  source,
		Fetched: len(fetched.Reviews),
		Summary: summary,
	}, nil
}

// PollAll polls every pollable source sequentially, collecting results.
// Used by the manual poll-everything endpoint.
func (s *Scheduler) PollAll(ctx context.Context) []PollResult {
	adapters := s.registry.Pollable()
	out := make([]PollResult, 0, len(adapters))
	for _, adapter := range adapters {
		res, err := s.PollOnce(ctx, adapter.Name())
		if err != nil {
			logging.Err(err).Str("source", adapter.Name()).Msg("Manual poll failed")
			res = PollResult{Source: adapter.Name()}
		}
		out = append(out, res)
	}
	return out
}

// String implements fmt.Stringer for supervisor logs.
func (s *Scheduler) String() string { return "poll-scheduler" }
