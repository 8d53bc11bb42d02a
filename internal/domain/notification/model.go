// Package notification provides user-facing event records and the sink
// contract used to deliver them to external channels.
package notification

import (
	"context"
	"time"

	"crosslist/internal/core/id"
)

// Type classifies a notification.
type Type string

const (
	TypeOutOfStock  Type = "OUT_OF_STOCK"
	TypePriceChange Type = "PRICE_CHANGE"
	TypeSyncError   Type = "SYNC_ERROR"
	TypeRunSummary  Type = "RUN_SUMMARY"
)

// Severity ranks a notification for channel filtering.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
	SeveritySuccess Severity = "SUCCESS"
)

// Notification is a user-facing event record, created at most once per
// detected change per run and never mutated after creation.
type Notification struct {
	ID        id.ID          `db:"id" json:"id"`
	Type      Type           `db:"type" json:"type"`
	Severity  Severity       `db:"severity" json:"severity"`
	Title     string         `db:"title" json:"title"`
	Message   string         `db:"message" json:"message"`
	Metadata  map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// New builds a Notification with generated ID and timestamp.
func New(typ Type, severity Severity, title, message string, metadata map[string]any) *Notification {
	return &Notification{
		ID:        id.New(),
		Type:      typ,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}

// Repository defines persistence operations for notification records.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListRecent(ctx context.Context, limit int) ([]*Notification, error)
}

// Sink delivers notifications to an external channel (Slack, mail, log).
// Implementations must not panic; errors are logged by the caller and never
// propagate into the reconciliation core.
type Sink interface {
	Send(ctx context.Context, n *Notification) error
}
