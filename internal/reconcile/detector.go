// Package reconcile implements the inventory and price reconciliation engine:
// change detection against source snapshots, the local/remote cascade for a
// detected change, the notification gate and the two batch runs (source sync
// and price sync) that drive them.
package reconcile

import (
	"crosslist/internal/core/types"
	"crosslist/internal/domain/product"
	"crosslist/internal/source"
)

// Action is what a detected change requires.
type Action string

const (
	ActionNone           Action = "none"
	ActionUpdatePrice    Action = "update_price"
	ActionMarkOutOfStock Action = "mark_out_of_stock"
)

// Diff is the outcome of comparing a product's stored source state against a
// fresh snapshot. It is a pure value; applying it is the cascade's job.
type Diff struct {
	Action Action

	OldPrice types.Money
	NewPrice types.Money

	// PriceChanged and PriceChangePercent describe price movement regardless
	// of the chosen action, so an out-of-stock diff still reports how far the
	// price had drifted. PriceChangePercent is zero when the stored price is
	// zero.
	PriceChanged       bool
	PriceChangePercent types.Money

	// FingerprintChanged reports whether any tracked field moved, including
	// descriptive ones that need no cascade.
	FingerprintChanged bool
	NewFingerprint     string
}

// Detect compares a product against a snapshot of its source listing.
//
// Availability wins over price: an item that went out of stock gets
// ActionMarkOutOfStock even when its price also moved, since a delisted item
// has no price worth pushing. Assumed snapshots (unsupported source sites)
// never produce a diff. Detect is idempotent: running it twice against the
// same snapshot yields the same Diff, and a cascade that already ran leaves
// nothing for the second pass to apply.
func Detect(prod *product.Product, snap *source.Snapshot) Diff {
	if snap.Assumed {
		return Diff{Action: ActionNone, NewFingerprint: prod.SourceFingerprint}
	}

	fp := snap.Fingerprint()
	d := Diff{
		Action:             ActionNone,
		OldPrice:           prod.Price,
		NewPrice:           snap.Price,
		FingerprintChanged: fp != prod.SourceFingerprint,
		NewFingerprint:     fp,
	}
	if !snap.Price.Equal(prod.Price) {
		d.PriceChanged = true
		d.PriceChangePercent = types.ChangePercent(prod.Price, snap.Price)
	}

	if !snap.IsAvailable {
		if prod.InStock() {
			d.Action = ActionMarkOutOfStock
		}
		return d
	}

	if d.PriceChanged {
		d.Action = ActionUpdatePrice
	}
	return d
}
