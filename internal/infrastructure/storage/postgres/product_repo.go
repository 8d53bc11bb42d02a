package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"crosslist/internal/core/apperror"
	"crosslist/internal/core/id"
	"crosslist/internal/domain/product"
)

const productTable = "products"

var _ product.Repository = (*ProductRepo)(nil)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	txm  *TxManager
	cols []string
}

// NewProductRepo creates a product repository.
func NewProductRepo(txm *TxManager) *ProductRepo {
	return &ProductRepo{
		txm:  txm,
		cols: ExtractDBColumns[product.Product](),
	}
}

func (r *ProductRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *ProductRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.cols...).From(productTable)
}

// GetByID retrieves a product by ID.
func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": productID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p product.Product
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(productTable, productID.String())
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// ListByIDs retrieves products for an explicit candidate set.
func (r *ProductRepo) ListByIDs(ctx context.Context, ids []id.ID) ([]*product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := r.baseSelect().
		Where(squirrel.Eq{"id": ids}).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*product.Product
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list products by ids: %w", err)
	}
	return items, nil
}

// ListDueForCheck returns products whose last check is stale, oldest first.
// NULL last_checked_at sorts first: a never-checked product is the stalest.
func (r *ProductRepo) ListDueForCheck(ctx context.Context, limit int, checkedBefore time.Time) ([]*product.Product, error) {
	q := r.baseSelect().
		Where(squirrel.NotEq{"status": []product.Status{product.StatusSold, product.StatusDeleted}}).
		Where(squirrel.Or{
			squirrel.Eq{"last_checked_at": nil},
			squirrel.Lt{"last_checked_at": checkedBefore},
		}).
		OrderBy("last_checked_at ASC NULLS FIRST").
		Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*product.Product
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list products due for check: %w", err)
	}
	return items, nil
}

// ApplySourceState rewrites the reconciliation-owned fields, guarded by the
// product version. A stale version means another run already applied a
// change and the caller should skip.
func (r *ProductRepo) ApplySourceState(ctx context.Context, productID id.ID, version int, state product.SourceState) error {
	q := r.builder().
		Update(productTable).
		Set("price", state.Price).
		Set("source_fingerprint", state.Fingerprint).
		Set("status", state.Status).
		Set("last_checked_at", state.CheckedAt).
		Set("updated_at", time.Now().UTC()).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": productID}).
		Where(squirrel.Eq{"version": version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("apply source state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(productTable, productID.String())
	}
	return nil
}

// TouchChecked records a probe that produced no change. No version bump:
// the timestamp is not part of the optimistic-lock surface.
func (r *ProductRepo) TouchChecked(ctx context.Context, productID id.ID, checkedAt time.Time) error {
	q := r.builder().
		Update(productTable).
		Set("last_checked_at", checkedAt).
		Where(squirrel.Eq{"id": productID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("touch checked: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(productTable, productID.String())
	}
	return nil
}
