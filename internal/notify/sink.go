// Package notify provides notification sink implementations: Slack webhook,
// SMTP mail and a zap fallback, plus a fan-out that isolates channel failures
// from the reconciliation core.
package notify

import (
	"context"

	"crosslist/internal/domain/notification"
	"crosslist/pkg/logger"
)

// Multi fans one notification out to every configured sink. A failing
// channel is logged and skipped; Send never returns an error, upholding the
// gate's fire-and-forget contract.
type Multi struct {
	sinks []notification.Sink
	log   *logger.Logger
}

// NewMulti creates a fan-out sink.
func NewMulti(log *logger.Logger, sinks ...notification.Sink) *Multi {
	return &Multi{sinks: sinks, log: log.WithComponent("notify")}
}

// Send implements notification.Sink.
func (m *Multi) Send(ctx context.Context, n *notification.Notification) error {
	for _, sink := range m.sinks {
		if err := sink.Send(ctx, n); err != nil {
			m.log.Warnw("notification channel failed",
				"type", n.Type, "severity", n.Severity, "error", err)
		}
	}
	return nil
}

// Log writes notifications to the structured log. Used as the default sink
// when no external channel is configured.
type Log struct {
	log *logger.Logger
}

// NewLog creates a log sink.
func NewLog(log *logger.Logger) *Log {
	return &Log{log: log.WithComponent("notify")}
}

// Send implements notification.Sink.
func (l *Log) Send(ctx context.Context, n *notification.Notification) error {
	l.log.Infow("notification",
		"type", n.Type,
		"severity", n.Severity,
		"title", n.Title,
		"message", n.Message,
		"metadata", n.Metadata)
	return nil
}
