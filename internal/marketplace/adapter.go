// Package marketplace provides the sales-channel adapter contracts consumed
// by the reconciliation engine. The REST clients themselves live behind the
// Adapter interface; the engine only needs quantity and price pushes.
package marketplace

import (
	"context"

	"crosslist/internal/core/types"
	"crosslist/internal/domain/listing"
)

// Adapter is the capability one sales marketplace exposes to the engine.
// Implementations are plain values: explicit handles passed in at wiring
// time, never package-level singletons.
type Adapter interface {
	// SetQuantity pushes remote inventory for a listing.
	SetQuantity(ctx context.Context, remoteListingID, sku string, qty int) error

	// SetPrice pushes the listing price in the given currency.
	SetPrice(ctx context.Context, remoteListingID string, price types.Money, currency string) error
}

// Registry maps a marketplace to its adapter handle. Listings on a
// marketplace without an adapter are local-only: the cascade still ends them,
// it just has nowhere to push quantity.
type Registry struct {
	adapters map[listing.Marketplace]Adapter
}

// NewRegistry creates a registry over an explicit adapter set.
func NewRegistry(adapters map[listing.Marketplace]Adapter) *Registry {
	if adapters == nil {
		adapters = make(map[listing.Marketplace]Adapter)
	}
	return &Registry{adapters: adapters}
}

// Resolve returns the adapter for a marketplace, or (nil, false) when the
// marketplace has no remote inventory support.
func (r *Registry) Resolve(m listing.Marketplace) (Adapter, bool) {
	a, ok := r.adapters[m]
	return a, ok
}
