// Package pricelog provides the append-only audit log of price pushes.
package pricelog

import (
	"context"
	"time"

	"crosslist/internal/core/id"
	"crosslist/internal/core/types"
)

// Source records what triggered a price change.
type Source string

const (
	SourceAutoSync Source = "auto_sync"
	SourceManual   Source = "manual"
)

// Entry is one price-change record. Write-once, never updated or deleted.
type Entry struct {
	ID            id.ID       `db:"id" json:"id"`
	ListingID     id.ID       `db:"listing_id" json:"listingId"`
	OldPrice      types.Money `db:"old_price" json:"oldPrice"`
	NewPrice      types.Money `db:"new_price" json:"newPrice"`
	ChangePercent types.Money `db:"change_percent" json:"changePercent"`
	Source        Source      `db:"source" json:"source"`
	Reason        string      `db:"reason" json:"reason"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
}

// NewEntry builds an Entry with generated ID and timestamp.
func NewEntry(listingID id.ID, oldPrice, newPrice types.Money, source Source, reason string) *Entry {
	return &Entry{
		ID:            id.New(),
		ListingID:     listingID,
		OldPrice:      oldPrice,
		NewPrice:      newPrice,
		ChangePercent: types.ChangePercent(oldPrice, newPrice),
		Source:        source,
		Reason:        reason,
		CreatedAt:     time.Now().UTC(),
	}
}

// Repository defines persistence operations for the price-change log.
type Repository interface {
	// Append writes one entry. Called inside the same transaction as the
	// listing price update - both or neither.
	Append(ctx context.Context, entry *Entry) error

	// ListByListing returns entries for a listing, newest first.
	ListByListing(ctx context.Context, listingID id.ID, limit int) ([]*Entry, error)
}
