package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"crosslist/internal/core/id"
	"crosslist/internal/domain/pricelog"
)

const priceLogTable = "price_change_log"

var _ pricelog.Repository = (*PriceLogRepo)(nil)

// PriceLogRepo implements pricelog.Repository. Append-only: no update or
// delete paths exist.
type PriceLogRepo struct {
	txm  *TxManager
	cols []string
}

// NewPriceLogRepo creates a price-change log repository.
func NewPriceLogRepo(txm *TxManager) *PriceLogRepo {
	return &PriceLogRepo{
		txm:  txm,
		cols: ExtractDBColumns[pricelog.Entry](),
	}
}

func (r *PriceLogRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Append writes one entry.
func (r *PriceLogRepo) Append(ctx context.Context, entry *pricelog.Entry) error {
	q := r.builder().
		Insert(priceLogTable).
		Columns(r.cols...).
		Values(
			entry.ID,
			entry.ListingID,
			entry.OldPrice,
			entry.NewPrice,
			entry.ChangePercent,
			entry.Source,
			entry.Reason,
			entry.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("append price log: %w", err)
	}
	return nil
}

// ListByListing returns entries for a listing, newest first.
func (r *PriceLogRepo) ListByListing(ctx context.Context, listingID id.ID, limit int) ([]*pricelog.Entry, error) {
	q := r.builder().
		Select(r.cols...).
		From(priceLogTable).
		Where(squirrel.Eq{"listing_id": listingID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*pricelog.Entry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list price log: %w", err)
	}
	return items, nil
}
