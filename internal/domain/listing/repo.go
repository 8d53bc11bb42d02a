package listing

import (
	"context"

	"crosslist/internal/core/id"
)

// Repository defines persistence operations for listings.
type Repository interface {
	// GetByID retrieves a listing by ID.
	GetByID(ctx context.Context, listingID id.ID) (*Listing, error)

	// ListByProduct returns all listings for a product.
	ListByProduct(ctx context.Context, productID id.ID) ([]*Listing, error)

	// ListActiveByProduct returns ACTIVE listings for a product.
	ListActiveByProduct(ctx context.Context, productID id.ID) ([]*Listing, error)

	// ListActive returns up to limit ACTIVE listings, oldest update first.
	// Candidate set for the price reconciliation gate.
	ListActive(ctx context.Context, limit int) ([]*Listing, error)

	// EndActiveByProduct flips every ACTIVE listing of the product to ENDED
	// and marks it paused-by-inventory, returning the listings it actually
	// ended. The conditional WHERE status='ACTIVE' makes a concurrent cascade
	// benign: the second run ends zero rows.
	EndActiveByProduct(ctx context.Context, productID id.ID) ([]*Listing, error)

	// UpdatePrice rewrites the listing price fields. Must be called inside a
	// transaction together with the price-change log append.
	UpdatePrice(ctx context.Context, listingID id.ID, update PriceUpdate) error
}
