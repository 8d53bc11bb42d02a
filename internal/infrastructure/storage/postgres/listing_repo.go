package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"crosslist/internal/core/apperror"
	"crosslist/internal/core/id"
	"crosslist/internal/domain/listing"
)

const listingTable = "listings"

var _ listing.Repository = (*ListingRepo)(nil)

// ListingRepo implements listing.Repository.
type ListingRepo struct {
	txm  *TxManager
	cols []string
}

// NewListingRepo creates a listing repository.
func NewListingRepo(txm *TxManager) *ListingRepo {
	return &ListingRepo{
		txm:  txm,
		cols: ExtractDBColumns[listing.Listing](),
	}
}

func (r *ListingRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *ListingRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.cols...).From(listingTable)
}

// GetByID retrieves a listing by ID.
func (r *ListingRepo) GetByID(ctx context.Context, listingID id.ID) (*listing.Listing, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": listingID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l listing.Listing
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &l, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(listingTable, listingID.String())
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return &l, nil
}

// ListByProduct returns all listings for a product.
func (r *ListingRepo) ListByProduct(ctx context.Context, productID id.ID) ([]*listing.Listing, error) {
	return r.selectListings(ctx, r.baseSelect().
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at ASC"))
}

// ListActiveByProduct returns ACTIVE listings for a product.
func (r *ListingRepo) ListActiveByProduct(ctx context.Context, productID id.ID) ([]*listing.Listing, error) {
	return r.selectListings(ctx, r.baseSelect().
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"status": listing.StatusActive}).
		OrderBy("created_at ASC"))
}

// ListActive returns ACTIVE listings, oldest update first, so the listings
// that waited longest for a price check go first.
func (r *ListingRepo) ListActive(ctx context.Context, limit int) ([]*listing.Listing, error) {
	return r.selectListings(ctx, r.baseSelect().
		Where(squirrel.Eq{"status": listing.StatusActive}).
		OrderBy("updated_at ASC").
		Limit(uint64(limit)))
}

func (r *ListingRepo) selectListings(ctx context.Context, q squirrel.SelectBuilder) ([]*listing.Listing, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*listing.Listing
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return items, nil
}

// EndActiveByProduct flips every ACTIVE listing of the product to ENDED and
// returns the rows it actually changed. The conditional WHERE makes a
// concurrent cascade benign: the losing run ends zero rows and sends zero
// marketplace calls.
func (r *ListingRepo) EndActiveByProduct(ctx context.Context, productID id.ID) ([]*listing.Listing, error) {
	q := r.builder().
		Update(listingTable).
		Set("status", listing.StatusEnded).
		Set("paused_by_inventory", true).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"status": listing.StatusActive}).
		Suffix("RETURNING " + strings.Join(r.cols, ", "))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var ended []*listing.Listing
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &ended, sql, args...); err != nil {
		return nil, fmt.Errorf("end active listings: %w", err)
	}
	return ended, nil
}

// UpdatePrice rewrites the listing price fields.
func (r *ListingRepo) UpdatePrice(ctx context.Context, listingID id.ID, update listing.PriceUpdate) error {
	q := r.builder().
		Update(listingTable).
		Set("listing_price", update.ListingPrice).
		Set("shipping_cost", update.ShippingCost).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": listingID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update listing price: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(listingTable, listingID.String())
	}
	return nil
}
