package reconcile

import (
	"context"
	"fmt"

	"crosslist/internal/alert"
	"crosslist/internal/core/types"
	"crosslist/internal/domain/notification"
	"crosslist/internal/domain/product"
	"crosslist/pkg/logger"
)

// GateConfig tunes the notification gate thresholds, in percent.
type GateConfig struct {
	// PriceThreshold is the minimum absolute drift that produces a price
	// notification at all.
	PriceThreshold types.Money

	// WarnThreshold upgrades a price notification to WARNING. The boundary is
	// inclusive: exactly this drift already warns.
	WarnThreshold types.Money

	// NotifyOutOfStock and NotifyPriceChange toggle each notification path
	// independently. A disabled path suppresses the operator notification
	// only; the cascade itself always applies.
	NotifyOutOfStock  bool
	NotifyPriceChange bool
}

// DefaultGateConfig returns the production thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		PriceThreshold:    types.MustMoney("10"),
		WarnThreshold:     types.MustMoney("20"),
		NotifyOutOfStock:  true,
		NotifyPriceChange: true,
	}
}

// Gate decides which applied changes are worth an operator's attention and
// emits at most one notification per change. Sub-threshold price drift is
// applied silently; out-of-stock always notifies.
type Gate struct {
	cfg    GateConfig
	repo   notification.Repository
	sink   notification.Sink
	alerts *alert.Manager
	log    *logger.Logger
}

// NewGate creates a Gate. sink and alerts may be shared fan-outs.
func NewGate(cfg GateConfig, repo notification.Repository, sink notification.Sink, alerts *alert.Manager, log *logger.Logger) *Gate {
	return &Gate{
		cfg:    cfg,
		repo:   repo,
		sink:   sink,
		alerts: alerts,
		log:    log.WithComponent("notify-gate"),
	}
}

// AfterCascade evaluates one applied diff. It is called once per change per
// run, right after the cascade, so notification creation is exactly-once per
// detected change. Persistence or delivery failures are logged, never
// propagated: a lost notification must not fail the item.
func (g *Gate) AfterCascade(ctx context.Context, prod *product.Product, d Diff, cr *CascadeResult) {
	switch d.Action {
	case ActionMarkOutOfStock:
		if !g.cfg.NotifyOutOfStock {
			g.log.Debugw("out-of-stock notifications disabled", "product_id", prod.ID)
			break
		}
		g.emit(ctx, notification.New(
			notification.TypeOutOfStock,
			notification.SeverityWarning,
			"Source item out of stock",
			fmt.Sprintf("%q is no longer available at the source; %d listing(s) ended", prod.Title, len(cr.ListingsEnded)),
			map[string]any{
				"product_id":     prod.ID.String(),
				"source_site":    string(prod.SourceSite),
				"source_url":     prod.SourceURL,
				"listings_ended": len(cr.ListingsEnded),
				"remote_failed":  cr.RemoteFailed(),
			},
		))
		g.alerts.Publish(ctx, alert.Event{
			Type: alert.EventOutOfStock,
			Data: map[string]any{
				"product_id":     prod.ID.String(),
				"title":          prod.Title,
				"listings_ended": len(cr.ListingsEnded),
			},
		})

	case ActionUpdatePrice:
		if !g.cfg.NotifyPriceChange {
			g.log.Debugw("price-change notifications disabled", "product_id", prod.ID)
			break
		}
		absPct := d.PriceChangePercent.Abs()
		if absPct.LessThan(g.cfg.PriceThreshold) {
			g.log.Debugw("price drift below notification threshold",
				"product_id", prod.ID, "change_percent", d.PriceChangePercent.StringFixed(2))
			return
		}

		severity := notification.SeverityInfo
		if absPct.GreaterThanOrEqual(g.cfg.WarnThreshold) {
			severity = notification.SeverityWarning
		}

		g.emit(ctx, notification.New(
			notification.TypePriceChange,
			severity,
			"Source price changed",
			fmt.Sprintf("%q moved from %s to %s (%s%%)",
				prod.Title, d.OldPrice.String(), d.NewPrice.String(), d.PriceChangePercent.StringFixed(1)),
			map[string]any{
				"product_id":     prod.ID.String(),
				"source_site":    string(prod.SourceSite),
				"old_price":      d.OldPrice.String(),
				"new_price":      d.NewPrice.String(),
				"change_percent": d.PriceChangePercent.StringFixed(2),
			},
		))

		pct, _ := d.PriceChangePercent.Float64()
		g.alerts.Publish(ctx, alert.Event{
			Type: alert.EventPriceDrift,
			Data: map[string]any{
				"product_id": prod.ID.String(),
				"title":      prod.Title,
				"percent":    pct,
			},
		})
	}

	for _, rr := range cr.Remote {
		if rr.Err == nil {
			continue
		}
		g.alerts.Publish(ctx, alert.Event{
			Type: alert.EventSyncError,
			Data: map[string]any{
				"listing_id":  rr.Listing.ID.String(),
				"marketplace": string(rr.Listing.Marketplace),
				"error":       rr.Err.Error(),
			},
		})
	}
}

// RunSummary records a run-level notification after a batch finishes.
func (g *Gate) RunSummary(ctx context.Context, kind string, summary map[string]any) {
	severity := notification.SeveritySuccess
	if failed, ok := summary["failed"].(int); ok && failed > 0 {
		severity = notification.SeverityWarning
	}
	g.emit(ctx, notification.New(
		notification.TypeRunSummary,
		severity,
		fmt.Sprintf("%s run finished", kind),
		fmt.Sprintf("%s reconciliation completed", kind),
		summary,
	))
}

func (g *Gate) emit(ctx context.Context, n *notification.Notification) {
	if err := g.repo.Create(ctx, n); err != nil {
		g.log.Errorw("failed to persist notification",
			"type", n.Type, "error", err)
	}
	if err := g.sink.Send(ctx, n); err != nil {
		g.log.Warnw("failed to deliver notification",
			"type", n.Type, "error", err)
	}
}
