// Package product provides the Product catalog: one row per item sourced
// from an external marketplace and resold through sales marketplaces.
package product

import (
	"context"
	"time"

	"crosslist/internal/core/apperror"
	"crosslist/internal/core/id"
	"crosslist/internal/core/types"
)

// Status is the product lifecycle state.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusActive     Status = "ACTIVE"
	StatusOutOfStock Status = "OUT_OF_STOCK"
	StatusSold       Status = "SOLD"
	StatusDeleted    Status = "DELETED"
	StatusError      Status = "ERROR"
)

// Site identifies the source marketplace a product is bought from.
type Site string

const (
	SiteMercari      Site = "MERCARI"
	SiteRakuma       Site = "RAKUMA"
	SiteYahooAuction Site = "YAHOO_AUCTION"
	SiteSurugaya     Site = "SURUGAYA"
	SiteTakayama     Site = "TAKAYAMA"
)

// Product represents one sourced item.
//
// The reconciliation engine owns Price, SourceFingerprint, Status,
// LastCheckedAt and UpdatedAt; descriptive fields belong to ingestion.
type Product struct {
	ID id.ID `db:"id" json:"id"`

	// Source identity
	SourceSite   Site   `db:"source_site" json:"sourceSite"`
	SourceItemID string `db:"source_item_id" json:"sourceItemId"`
	SourceURL    string `db:"source_url" json:"sourceUrl"`

	// Descriptive fields (written by ingestion, read here)
	Title       string  `db:"title" json:"title"`
	Description string  `db:"description" json:"description"`
	Category    *string `db:"category" json:"category,omitempty"`

	// Price is the last known cost in source currency (JPY).
	Price types.Money `db:"price" json:"price"`

	// Weight in grams, used by the price formula for shipping.
	Weight int `db:"weight" json:"weight"`

	// SourceFingerprint is an opaque hash of title+description+price+availability.
	SourceFingerprint string `db:"source_fingerprint" json:"sourceFingerprint"`

	Status Status `db:"status" json:"status"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	LastCheckedAt *time.Time `db:"last_checked_at" json:"lastCheckedAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// InStock reports whether the product can currently be fulfilled.
func (p *Product) InStock() bool {
	switch p.Status {
	case StatusSold, StatusOutOfStock, StatusDeleted, StatusError:
		return false
	}
	return true
}

// Validate checks entity invariants.
func (p *Product) Validate(ctx context.Context) error {
	if p.SourceURL == "" {
		return apperror.NewValidation("source URL is required").
			WithDetail("field", "sourceUrl")
	}
	if p.SourceSite == "" {
		return apperror.NewValidation("source site is required").
			WithDetail("field", "sourceSite")
	}
	if p.Price.IsNegative() {
		return apperror.NewValidation("price cannot be negative").
			WithDetail("field", "price")
	}
	return nil
}

// SourceState is the slice of a Product the reconciliation engine rewrites
// after a source probe.
type SourceState struct {
	Price       types.Money
	Fingerprint string
	Status      Status
	CheckedAt   time.Time
}
