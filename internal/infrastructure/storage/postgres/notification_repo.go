package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"crosslist/internal/domain/notification"
)

const notificationTable = "notifications"

var _ notification.Repository = (*NotificationRepo)(nil)

// NotificationRepo implements notification.Repository. Metadata is stored as
// jsonb; pgx encodes the map directly.
type NotificationRepo struct {
	txm  *TxManager
	cols []string
}

// NewNotificationRepo creates a notification repository.
func NewNotificationRepo(txm *TxManager) *NotificationRepo {
	return &NotificationRepo{
		txm:  txm,
		cols: ExtractDBColumns[notification.Notification](),
	}
}

func (r *NotificationRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts one notification record.
func (r *NotificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	q := r.builder().
		Insert(notificationTable).
		Columns(r.cols...).
		Values(
			n.ID,
			n.Type,
			n.Severity,
			n.Title,
			n.Message,
			n.Metadata,
			n.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListRecent returns the newest notifications.
func (r *NotificationRepo) ListRecent(ctx context.Context, limit int) ([]*notification.Notification, error) {
	q := r.builder().
		Select(r.cols...).
		From(notificationTable).
		OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*notification.Notification
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}
