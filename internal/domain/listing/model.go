// Package listing provides the Listing catalog: one row per
// (Product x sales marketplace) the product is published to.
package listing

import (
	"time"

	"crosslist/internal/core/id"
	"crosslist/internal/core/types"
)

// Status is the listing lifecycle state.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
	StatusEnded  Status = "ENDED"
	StatusSold   Status = "SOLD"
)

// Marketplace identifies the sales channel a listing is published to.
type Marketplace string

const (
	MarketplaceEbay Marketplace = "EBAY"
	MarketplaceJoom Marketplace = "JOOM"
)

// Listing represents one published (or publishable) sales-channel entry.
//
// A listing is never deleted by the reconciliation engine; "delisted" is
// StatusEnded, preserving history for the audit trail.
type Listing struct {
	ID        id.ID       `db:"id" json:"id"`
	ProductID id.ID       `db:"product_id" json:"productId"`

	Marketplace Marketplace `db:"marketplace" json:"marketplace"`

	// MarketplaceListingID is the remote identity, nil until published.
	MarketplaceListingID *string `db:"marketplace_listing_id" json:"marketplaceListingId,omitempty"`

	// SKU used on the remote marketplace.
	SKU string `db:"sku" json:"sku"`

	Status Status `db:"status" json:"status"`

	ListingPrice types.Money `db:"listing_price" json:"listingPrice"`
	ShippingCost types.Money `db:"shipping_cost" json:"shippingCost"`
	Currency     string      `db:"currency" json:"currency"`

	// PausedByInventory marks listings ended/paused by the stock cascade, so
	// a restock can distinguish them from listings the operator paused.
	PausedByInventory bool `db:"paused_by_inventory" json:"pausedByInventory"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Published reports whether the listing has a remote identity.
func (l *Listing) Published() bool {
	return l.MarketplaceListingID != nil && *l.MarketplaceListingID != ""
}

// PriceUpdate is the pair of fields rewritten by the price reconciliation
// gate; applied together with the price-change log entry in one transaction.
type PriceUpdate struct {
	ListingPrice types.Money
	ShippingCost types.Money
}
