// Package source provides source-site adapters: the capability to fetch a
// live snapshot of an item on the marketplace it is bought from.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"crosslist/internal/core/types"
)

// Snapshot is the observed state of one source listing.
type Snapshot struct {
	Title       string
	Description string
	Price       types.Money
	IsAvailable bool

	// Assumed marks a snapshot synthesized for an unsupported source site:
	// availability was not observed, only optimistically assumed. Assumed
	// snapshots never produce a diff.
	Assumed bool
}

// Fingerprint returns a stable hash over the snapshot's mutable fields.
// Field order matters for reproducibility; changing it invalidates every
// stored fingerprint and forces a full re-sync.
func (s *Snapshot) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%t", s.Title, s.Description, s.Price.String(), s.IsAvailable)
	return hex.EncodeToString(h.Sum(nil))
}
