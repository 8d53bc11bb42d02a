package product

import (
	"context"
	"time"

	"crosslist/internal/core/id"
)

// Repository defines persistence operations for products.
type Repository interface {
	// GetByID retrieves a product by ID.
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// ListByIDs retrieves products for an explicit candidate set
	// (operator-triggered narrow re-run).
	ListByIDs(ctx context.Context, ids []id.ID) ([]*Product, error)

	// ListDueForCheck returns up to limit products whose last source check is
	// older than checkedBefore, oldest first. Products in a terminal state
	// (SOLD, DELETED) are excluded.
	ListDueForCheck(ctx context.Context, limit int, checkedBefore time.Time) ([]*Product, error)

	// ApplySourceState persists the reconciliation-owned fields. The update is
	// guarded by the product's current version (optimistic locking); a stale
	// version returns apperror.CodeConcurrentModification.
	ApplySourceState(ctx context.Context, productID id.ID, version int, state SourceState) error

	// TouchChecked records a probe that produced no material change.
	TouchChecked(ctx context.Context, productID id.ID, checkedAt time.Time) error
}
