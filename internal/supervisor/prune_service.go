// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package supervisor

import (
	"context"
	"time"

	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/store"
)

// defaultPruneInterval is how often retention pruning runs.
const defaultPruneInterval = 24 * time.Hour

// PruneService drops stored reviews older than the retention window, once
// at startup and then on a daily tick. A zero retention disables pruning;
// the service just idles so the tree shape stays uniform.
type PruneService struct {
	store         *store.Store
	retentionDays int
	interval      time.Duration
}

// NewPruneService builds the pruner.
func NewPruneService(st *store.Store, retentionDays int) *PruneService {
	return &PruneService{
		store:         st,
		retentionDays: retentionDays,
		interval:      defaultPruneInterval,
	}
}

// Serve implements suture.Service.
func (p *PruneService) Serve(ctx context.Context) error {
	if p.retentionDays <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	p.prune()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.prune()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *PruneService) prune() {
	if removed := p.store.Prune(p.retentionDays); removed > 0 {
		logging.Info().
			Int("removed", removed).
			Int("retention_days", p.retentionDays).
			Msg("Pruned expired reviews")
	}
}

// String identifies the service in suture's event log.
func (p *PruneService) String() string { return "retention-pruner" }
