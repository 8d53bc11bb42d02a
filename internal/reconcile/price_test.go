package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosslist/internal/batch"
	"crosslist/internal/core/types"
	"crosslist/internal/domain/listing"
	"crosslist/internal/domain/product"
	"crosslist/internal/pricing"
)

func fastBatchConfig() batch.Config {
	return batch.Config{
		MaxConcurrent:   2,
		ChunkSize:       10,
		ContinueOnError: true,
	}
}

type priceFixture struct {
	svc      *PriceService
	products *fakeProductRepo
	listings *fakeListingRepo
	priceLog *fakePriceLogRepo
	adapter  *fakeAdapter
	txm      *fakeTxManager
}

func newPriceFixture(t *testing.T, prod *product.Product) *priceFixture {
	t.Helper()

	f := &priceFixture{
		products: newFakeProductRepo(prod),
		listings: newFakeListingRepo(),
		priceLog: &fakePriceLogRepo{},
		adapter:  &fakeAdapter{},
		txm:      &fakeTxManager{},
	}

	cfg := DefaultPriceConfig()
	cfg.Batch = fastBatchConfig()

	formula := pricing.NewStandardFormula(
		pricing.DefaultStandardConfig(),
		pricing.FixedRate(types.MustMoney("150")),
	)

	repo := &fakeNotificationRepo{}
	sink := &captureSink{}
	gate := NewGate(DefaultGateConfig(), repo, sink, testAlerts(&captureSink{}), testLogger())

	f.svc = NewPriceService(
		cfg,
		f.listings, f.products, f.priceLog,
		formula,
		registryWith(listing.MarketplaceEbay, f.adapter),
		f.txm, noDelayPolicy(),
		testAlerts(&captureSink{}), gate,
		NewRunRegistry(), testLogger(),
	)
	return f
}

// With cost 3000 JPY at 150 JPY/USD, the standard formula yields
// 20 * 1.25 / 0.87 = 28.74 USD.

func TestPriceSync_SkipsSubThresholdDrift(t *testing.T) {
	prod := newTestProduct("3000")
	f := newPriceFixture(t, prod)
	l := newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "28.60")

	out, err := f.svc.reconcileOne(context.Background(), l, false, true)

	require.NoError(t, err)
	assert.Equal(t, PriceStatusSkipped, out.Status)
	assert.Contains(t, out.Reason, "below threshold")
	assert.Empty(t, f.listings.priceUpdates)
	assert.Empty(t, f.priceLog.entries)
	assert.Empty(t, f.adapter.priceCalls)
}

func TestPriceSync_UpdatesOnDrift(t *testing.T) {
	prod := newTestProduct("3000")
	f := newPriceFixture(t, prod)
	l := newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "26.00")

	out, err := f.svc.reconcileOne(context.Background(), l, false, true)

	require.NoError(t, err)
	assert.Equal(t, PriceStatusUpdated, out.Status)
	assert.True(t, out.NewPrice.Equal(types.MustMoney("28.74")))
	assert.True(t, out.MarketplaceSynced)

	update, ok := f.listings.priceUpdates[l.ID]
	require.True(t, ok)
	assert.True(t, update.ListingPrice.Equal(types.MustMoney("28.74")))

	require.Len(t, f.priceLog.entries, 1)
	entry := f.priceLog.entries[0]
	assert.True(t, entry.OldPrice.Equal(types.MustMoney("26.00")))
	assert.True(t, entry.NewPrice.Equal(types.MustMoney("28.74")))

	require.Len(t, f.adapter.priceCalls, 1)
	assert.Equal(t, "e1", f.adapter.priceCalls[0].remoteID)
	assert.Equal(t, 1, f.txm.calls, "price update and log entry share one transaction")
}

func TestPriceSync_ForceBypassesThreshold(t *testing.T) {
	prod := newTestProduct("3000")
	f := newPriceFixture(t, prod)
	l := newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "28.60")

	out, err := f.svc.reconcileOne(context.Background(), l, true, true)

	require.NoError(t, err)
	assert.Equal(t, PriceStatusUpdated, out.Status)
	require.Len(t, f.priceLog.entries, 1)
	assert.Equal(t, "manual", string(f.priceLog.entries[0].Source))
}

func TestPriceSync_LocalUpdateFailure_NoLogEntry(t *testing.T) {
	prod := newTestProduct("3000")
	f := newPriceFixture(t, prod)
	f.listings.updateErr = errors.New("db down")
	l := newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "26.00")

	out, err := f.svc.reconcileOne(context.Background(), l, false, true)

	require.Error(t, err)
	assert.Equal(t, PriceStatusSkipped, out.Status)
	assert.Empty(t, f.priceLog.entries, "log append must not happen when the price update fails")
	assert.Empty(t, f.adapter.priceCalls)
}

func TestPriceSync_RemotePushFailure_LocalStands(t *testing.T) {
	prod := newTestProduct("3000")
	f := newPriceFixture(t, prod)
	f.adapter.priceErr = errors.New("marketplace 500")
	l := newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "26.00")

	out, err := f.svc.reconcileOne(context.Background(), l, false, true)

	require.NoError(t, err)
	assert.Equal(t, PriceStatusUpdated, out.Status)
	assert.False(t, out.MarketplaceSynced)
	assert.Len(t, f.priceLog.entries, 1, "committed local update stands")
}

func TestPriceSync_UnpublishedListing_NoRemotePush(t *testing.T) {
	prod := newTestProduct("3000")
	f := newPriceFixture(t, prod)
	l := newTestListing(prod.ID, listing.MarketplaceEbay, "", "26.00")

	out, err := f.svc.reconcileOne(context.Background(), l, false, true)

	require.NoError(t, err)
	assert.Equal(t, PriceStatusUpdated, out.Status)
	assert.False(t, out.MarketplaceSynced)
	assert.Empty(t, f.adapter.priceCalls)
}

func TestPriceSync_OutOfStockProduct_Skipped(t *testing.T) {
	prod := newTestProduct("3000")
	prod.Status = product.StatusOutOfStock
	f := newPriceFixture(t, prod)
	l := newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "26.00")

	out, err := f.svc.reconcileOne(context.Background(), l, false, true)

	require.NoError(t, err)
	assert.Equal(t, PriceStatusSkipped, out.Status)
	assert.Contains(t, out.Reason, "OUT_OF_STOCK")
	assert.Empty(t, f.listings.priceUpdates)
}

func TestPriceSync_RunSummarizesOutcomes(t *testing.T) {
	prod := newTestProduct("3000")
	f := newPriceFixture(t, prod)
	f.listings.active = []*listing.Listing{
		newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "26.00"), // drifted
		newTestListing(prod.ID, listing.MarketplaceEbay, "e2", "28.60"), // in band
	}

	run, err := f.svc.RunPriceSync(context.Background(), PriceSyncOptions{})

	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.Stats.Processed)
	assert.Equal(t, 1, run.Summary["updated"])
	assert.Equal(t, 1, run.Summary["skipped"])
}

func TestPriceSync_MarketplacePushDisabled(t *testing.T) {
	prod := newTestProduct("3000")
	f := newPriceFixture(t, prod)
	l := newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "26.00")

	out, err := f.svc.reconcileOne(context.Background(), l, false, false)

	require.NoError(t, err)
	assert.Equal(t, PriceStatusUpdated, out.Status)
	assert.False(t, out.MarketplaceSynced)
	assert.Empty(t, f.adapter.priceCalls, "a DB-only run must not call the channel API")
	assert.Len(t, f.priceLog.entries, 1, "the local update and its log entry still apply")
}

func TestPriceSync_RunLevelMarketplaceToggle(t *testing.T) {
	prod := newTestProduct("3000")
	f := newPriceFixture(t, prod)
	f.listings.active = []*listing.Listing{
		newTestListing(prod.ID, listing.MarketplaceEbay, "e1", "26.00"),
	}

	off := false
	run, err := f.svc.RunPriceSync(context.Background(), PriceSyncOptions{SyncToMarketplace: &off})

	require.NoError(t, err)
	assert.Equal(t, 1, run.Summary["updated"])
	assert.Empty(t, f.adapter.priceCalls)
}

func TestPriceSync_NoAdapter_MarketplaceUnsynced(t *testing.T) {
	prod := newTestProduct("3000")
	f := newPriceFixture(t, prod)
	// Joom listing has no adapter registered in this fixture.
	l := newTestListing(prod.ID, listing.MarketplaceJoom, "j1", "26.00")

	out, err := f.svc.reconcileOne(context.Background(), l, false, true)

	require.NoError(t, err)
	assert.Equal(t, PriceStatusUpdated, out.Status)
	assert.False(t, out.MarketplaceSynced)
}
