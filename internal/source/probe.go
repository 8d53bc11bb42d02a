package source

import (
	"context"
	"fmt"

	"crosslist/internal/domain/product"
	"crosslist/internal/retry"
	"crosslist/pkg/logger"
)

// Prober wraps one adapter fetch with bounded retries.
//
// Any error from the adapter is retried up to the bound; after exhaustion
// the error propagates to the caller as a per-item failure, never a
// batch abort.
type Prober struct {
	registry *Registry
	policy   retry.Policy
	log      *logger.Logger
}

// NewProber creates a Prober with the given retry policy.
func NewProber(registry *Registry, policy retry.Policy, log *logger.Logger) *Prober {
	return &Prober{
		registry: registry,
		policy:   policy,
		log:      log.WithComponent("source-prober"),
	}
}

// Probe fetches a snapshot for the product's source listing. Unsupported
// source sites short-circuit to an assumed-available snapshot without error.
func (p *Prober) Probe(ctx context.Context, prod *product.Product) (*Snapshot, error) {
	adapter, supported := p.registry.Resolve(prod.SourceSite)
	if !supported {
		snap, _ := adapter.Fetch(ctx, prod.SourceURL)
		return snap, nil
	}

	var snap *Snapshot
	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		s, err := adapter.Fetch(ctx, prod.SourceURL)
		if err != nil {
			p.log.Debugw("source fetch attempt failed",
				"site", prod.SourceSite, "url", prod.SourceURL, "error", err)
			return err
		}
		snap = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("probe %s %s: %w", prod.SourceSite, prod.SourceURL, err)
	}
	return snap, nil
}
