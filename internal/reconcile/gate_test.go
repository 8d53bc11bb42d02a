package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosslist/internal/core/types"
	"crosslist/internal/domain/listing"
	"crosslist/internal/domain/notification"
)

func newTestGate(repo *fakeNotificationRepo, sink *captureSink) *Gate {
	return NewGate(DefaultGateConfig(), repo, sink, testAlerts(&captureSink{}), testLogger())
}

func priceDiff(oldPrice, newPrice string) Diff {
	o, n := types.MustMoney(oldPrice), types.MustMoney(newPrice)
	return Diff{
		Action:             ActionUpdatePrice,
		OldPrice:           o,
		NewPrice:           n,
		PriceChangePercent: types.ChangePercent(o, n),
		FingerprintChanged: true,
	}
}

func TestGate_PriceBelowThreshold_Silent(t *testing.T) {
	repo := &fakeNotificationRepo{}
	sink := &captureSink{}
	g := newTestGate(repo, sink)

	g.AfterCascade(context.Background(), newTestProduct("3000"), priceDiff("3000", "3150"), &CascadeResult{LocalApplied: true})

	assert.Empty(t, repo.created, "small drift is applied silently")
	assert.Empty(t, sink.sent)
}

func TestGate_PriceAtThreshold_Info(t *testing.T) {
	repo := &fakeNotificationRepo{}
	sink := &captureSink{}
	g := newTestGate(repo, sink)

	g.AfterCascade(context.Background(), newTestProduct("3000"), priceDiff("3000", "3300"), &CascadeResult{LocalApplied: true})

	require.Len(t, repo.created, 1)
	assert.Equal(t, notification.TypePriceChange, repo.created[0].Type)
	assert.Equal(t, notification.SeverityInfo, repo.created[0].Severity)
	assert.Len(t, sink.sent, 1)
}

func TestGate_WarnBoundaryInclusive(t *testing.T) {
	tests := []struct {
		name     string
		newPrice string
		want     notification.Severity
	}{
		{"just under 20%", "3599", notification.SeverityInfo},
		{"exactly 20%", "3600", notification.SeverityWarning},
		{"drop of 25%", "2250", notification.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeNotificationRepo{}
			g := newTestGate(repo, &captureSink{})

			g.AfterCascade(context.Background(), newTestProduct("3000"), priceDiff("3000", tt.newPrice), &CascadeResult{LocalApplied: true})

			require.Len(t, repo.created, 1)
			assert.Equal(t, tt.want, repo.created[0].Severity)
		})
	}
}

func TestGate_OutOfStock_AlwaysNotifies(t *testing.T) {
	repo := &fakeNotificationRepo{}
	sink := &captureSink{}
	g := newTestGate(repo, sink)

	prod := newTestProduct("3000")
	cr := &CascadeResult{
		LocalApplied: true,
		ListingsEnded: []*listing.Listing{
			newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "35.00"),
			newTestListing(prod.ID, listing.MarketplaceJoom, "j1", "33.00"),
		},
	}
	g.AfterCascade(context.Background(), prod, Diff{Action: ActionMarkOutOfStock}, cr)

	require.Len(t, repo.created, 1)
	n := repo.created[0]
	assert.Equal(t, notification.TypeOutOfStock, n.Type)
	assert.Equal(t, notification.SeverityWarning, n.Severity)
	assert.Equal(t, 2, n.Metadata["listings_ended"])
	assert.Len(t, sink.sent, 1)
}

func TestGate_PersistFailure_DoesNotPropagate(t *testing.T) {
	repo := &fakeNotificationRepo{err: errors.New("db down")}
	sink := &captureSink{}
	g := newTestGate(repo, sink)

	// Must not panic or lose the sink delivery.
	g.AfterCascade(context.Background(), newTestProduct("3000"), priceDiff("3000", "4000"), &CascadeResult{LocalApplied: true})

	assert.Len(t, sink.sent, 1)
}

func TestGate_SinkFailure_Swallowed(t *testing.T) {
	repo := &fakeNotificationRepo{}
	sink := &captureSink{err: errors.New("webhook 500")}
	g := newTestGate(repo, sink)

	g.AfterCascade(context.Background(), newTestProduct("3000"), priceDiff("3000", "4000"), &CascadeResult{LocalApplied: true})

	assert.Len(t, repo.created, 1, "record persists even when delivery fails")
}

func TestGate_OutOfStockFlagDisabled(t *testing.T) {
	repo := &fakeNotificationRepo{}
	sink := &captureSink{}
	cfg := DefaultGateConfig()
	cfg.NotifyOutOfStock = false
	g := NewGate(cfg, repo, sink, testAlerts(&captureSink{}), testLogger())

	prod := newTestProduct("3000")
	cr := &CascadeResult{
		LocalApplied: true,
		ListingsEnded: []*listing.Listing{
			newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "35.00"),
		},
	}
	g.AfterCascade(context.Background(), prod, Diff{Action: ActionMarkOutOfStock}, cr)

	assert.Empty(t, repo.created, "disabled path emits nothing")
	assert.Empty(t, sink.sent)
}

func TestGate_PriceChangeFlagDisabled(t *testing.T) {
	repo := &fakeNotificationRepo{}
	sink := &captureSink{}
	cfg := DefaultGateConfig()
	cfg.NotifyPriceChange = false
	g := NewGate(cfg, repo, sink, testAlerts(&captureSink{}), testLogger())

	g.AfterCascade(context.Background(), newTestProduct("3000"), priceDiff("3000", "4500"), &CascadeResult{LocalApplied: true})

	assert.Empty(t, repo.created)
	assert.Empty(t, sink.sent)
}

func TestGate_FlagsAreIndependent(t *testing.T) {
	repo := &fakeNotificationRepo{}
	cfg := DefaultGateConfig()
	cfg.NotifyOutOfStock = false
	g := NewGate(cfg, repo, &captureSink{}, testAlerts(&captureSink{}), testLogger())

	// Price-change notifications stay on when only out-of-stock is off.
	g.AfterCascade(context.Background(), newTestProduct("3000"), priceDiff("3000", "4500"), &CascadeResult{LocalApplied: true})

	require.Len(t, repo.created, 1)
	assert.Equal(t, notification.TypePriceChange, repo.created[0].Type)
}

func TestGate_RunSummary_SeverityByFailures(t *testing.T) {
	repo := &fakeNotificationRepo{}
	g := newTestGate(repo, &captureSink{})

	g.RunSummary(context.Background(), "Source sync", map[string]any{"failed": 0})
	g.RunSummary(context.Background(), "Source sync", map[string]any{"failed": 3})

	require.Len(t, repo.created, 2)
	assert.Equal(t, notification.SeveritySuccess, repo.created[0].Severity)
	assert.Equal(t, notification.SeverityWarning, repo.created[1].Severity)
}
