package reconcile

import (
	"context"
	"time"

	"crosslist/internal/core/apperror"
	"crosslist/internal/domain/listing"
	"crosslist/internal/domain/product"
	"crosslist/internal/marketplace"
	"crosslist/internal/retry"
	"crosslist/pkg/logger"
)

// RemoteResult is the outcome of one remote marketplace call in a cascade.
type RemoteResult struct {
	Listing *listing.Listing
	Err     error
}

// CascadeResult reports what a cascade actually changed.
type CascadeResult struct {
	// LocalApplied is true once the product row was rewritten. Local state is
	// authoritative: remote failures after this point do not roll it back.
	LocalApplied bool

	// ListingsEnded are the listings the out-of-stock cascade flipped to ENDED.
	ListingsEnded []*listing.Listing

	// Remote holds per-listing marketplace call outcomes.
	Remote []RemoteResult
}

// RemoteFailed counts failed remote calls.
func (r *CascadeResult) RemoteFailed() int {
	n := 0
	for _, rr := range r.Remote {
		if rr.Err != nil {
			n++
		}
	}
	return n
}

// Cascader applies a detected change: product row first, then dependent
// listings, then remote marketplaces. Steps run in that fixed order with no
// rollback; a remote failure leaves local state already corrected and is
// reported for alerting, to be retried by a later run.
type Cascader struct {
	products     product.Repository
	listings     listing.Repository
	marketplaces *marketplace.Registry
	retryPolicy  retry.Policy
	log          *logger.Logger
}

// NewCascader creates a Cascader.
func NewCascader(
	products product.Repository,
	listings listing.Repository,
	marketplaces *marketplace.Registry,
	retryPolicy retry.Policy,
	log *logger.Logger,
) *Cascader {
	return &Cascader{
		products:     products,
		listings:     listings,
		marketplaces: marketplaces,
		retryPolicy:  retryPolicy,
		log:          log.WithComponent("cascade"),
	}
}

// Apply executes the cascade for one diff. ActionNone with a changed
// fingerprint still rewrites the stored fingerprint; a pure no-op only
// touches the check timestamp.
func (c *Cascader) Apply(ctx context.Context, prod *product.Product, d Diff) (*CascadeResult, error) {
	now := time.Now().UTC()
	res := &CascadeResult{}

	switch d.Action {
	case ActionNone:
		if !d.FingerprintChanged {
			if err := c.products.TouchChecked(ctx, prod.ID, now); err != nil {
				return res, err
			}
			return res, nil
		}
		// Descriptive drift only. Store the new fingerprint so the next run
		// does not re-detect the same change.
		err := c.products.ApplySourceState(ctx, prod.ID, prod.Version, product.SourceState{
			Price:       prod.Price,
			Fingerprint: d.NewFingerprint,
			Status:      prod.Status,
			CheckedAt:   now,
		})
		if err != nil {
			return res, err
		}
		res.LocalApplied = true
		return res, nil

	case ActionUpdatePrice:
		err := c.products.ApplySourceState(ctx, prod.ID, prod.Version, product.SourceState{
			Price:       d.NewPrice,
			Fingerprint: d.NewFingerprint,
			Status:      prod.Status,
			CheckedAt:   now,
		})
		if err != nil {
			return res, err
		}
		res.LocalApplied = true
		c.log.Infow("source price updated",
			"product_id", prod.ID,
			"old_price", d.OldPrice,
			"new_price", d.NewPrice,
			"change_percent", d.PriceChangePercent.StringFixed(2))
		return res, nil

	case ActionMarkOutOfStock:
		err := c.products.ApplySourceState(ctx, prod.ID, prod.Version, product.SourceState{
			Price:       prod.Price,
			Fingerprint: d.NewFingerprint,
			Status:      product.StatusOutOfStock,
			CheckedAt:   now,
		})
		if err != nil {
			return res, err
		}
		res.LocalApplied = true

		ended, err := c.listings.EndActiveByProduct(ctx, prod.ID)
		if err != nil {
			return res, err
		}
		res.ListingsEnded = ended

		for _, l := range ended {
			res.Remote = append(res.Remote, RemoteResult{
				Listing: l,
				Err:     c.zeroRemoteQuantity(ctx, l),
			})
		}

		c.log.Infow("product marked out of stock",
			"product_id", prod.ID,
			"listings_ended", len(ended),
			"remote_failed", res.RemoteFailed())
		return res, nil
	}

	return res, nil
}

// zeroRemoteQuantity sets the remote listing quantity to zero with retries.
// Unpublished listings and unsupported marketplaces are skipped.
func (c *Cascader) zeroRemoteQuantity(ctx context.Context, l *listing.Listing) error {
	if !l.Published() {
		return nil
	}
	adapter, ok := c.marketplaces.Resolve(l.Marketplace)
	if !ok {
		c.log.Warnw("no adapter for marketplace, remote quantity not zeroed",
			"marketplace", l.Marketplace, "listing_id", l.ID)
		return nil
	}

	err := retry.Do(ctx, c.retryPolicy, func(ctx context.Context) error {
		return adapter.SetQuantity(ctx, *l.MarketplaceListingID, l.SKU, 0)
	})
	if err != nil {
		return apperror.NewMarketplace(string(l.Marketplace), err).
			WithDetail("listing_id", l.ID.String())
	}
	return nil
}
