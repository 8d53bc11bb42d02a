package source

import (
	"context"
	"errors"
	"sync"

	"crosslist/internal/domain/product"
	"crosslist/pkg/logger"
)

// Typed fetch failures. Transient failures (network, HTTP 5xx) are returned
// as plain errors and retried by the prober; these two are permanent for the
// current probe.
var (
	// ErrNotFound means the source page no longer exists.
	ErrNotFound = errors.New("source item not found")

	// ErrNoTitle means the page loaded but no title could be extracted,
	// usually a layout change on the source site.
	ErrNoTitle = errors.New("no title extracted from source page")
)

// Adapter fetches a live snapshot for one source site.
type Adapter interface {
	Fetch(ctx context.Context, url string) (*Snapshot, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, url string) (*Snapshot, error)

func (f AdapterFunc) Fetch(ctx context.Context, url string) (*Snapshot, error) {
	return f(ctx, url)
}

// Registry maps a source site to its adapter. Sites must be registered
// explicitly to participate in reconciliation; unknown sites resolve to an
// optimistic adapter so they never trip the batch error budget or distort
// stock alarms. This is deliberate policy, not a placeholder.
type Registry struct {
	mu       sync.RWMutex
	adapters map[product.Site]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[product.Site]Adapter)}
}

// Register binds an adapter to a site, replacing any previous binding.
func (r *Registry) Register(site product.Site, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[site] = adapter
}

// Resolve returns the adapter for a site and whether the site is supported.
// Unsupported sites get the optimistic adapter.
func (r *Registry) Resolve(site product.Site) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.adapters[site]; ok {
		return a, true
	}
	return optimisticAdapter{}, false
}

// Supported reports whether a site has a registered adapter.
func (r *Registry) Supported(site product.Site) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[site]
	return ok
}

// optimisticAdapter stands in for unsupported source sites: the item is
// assumed available and nothing else is claimed about it.
type optimisticAdapter struct{}

func (optimisticAdapter) Fetch(ctx context.Context, url string) (*Snapshot, error) {
	logger.Debug(ctx, "unsupported source site, assuming available", "url", url)
	return &Snapshot{IsAvailable: true, Assumed: true}, nil
}
