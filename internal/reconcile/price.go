package reconcile

import (
	"context"
	"fmt"

	"crosslist/internal/alert"
	"crosslist/internal/batch"
	appctx "crosslist/internal/core/context"
	"crosslist/internal/core/id"
	"crosslist/internal/core/tx"
	"crosslist/internal/core/types"
	"crosslist/internal/domain/listing"
	"crosslist/internal/domain/pricelog"
	"crosslist/internal/domain/product"
	"crosslist/internal/marketplace"
	"crosslist/internal/pricing"
	"crosslist/internal/retry"
	"crosslist/pkg/logger"
)

// PriceStatus classifies one listing's outcome in a price sync run.
type PriceStatus string

const (
	PriceStatusUpdated PriceStatus = "updated"
	PriceStatusSkipped PriceStatus = "skipped"
)

// PriceOutcome is the per-listing result of one price sync item.
type PriceOutcome struct {
	ListingID     id.ID
	Status        PriceStatus
	OldPrice      types.Money
	NewPrice      types.Money
	ChangePercent types.Money

	// Reason explains a skip in run output.
	Reason string

	// MarketplaceSynced reports whether the remote price push landed. The
	// local update commits regardless; local state is authoritative and a
	// failed push is retried by the next run.
	MarketplaceSynced bool
}

// PriceSyncOptions selects and tunes one price sync run.
type PriceSyncOptions struct {
	// Limit caps the candidate set. Zero uses the service default.
	Limit int

	// Force pushes the recomputed price even under the drift threshold.
	Force bool

	// SyncToMarketplace overrides the service default when non-nil. A
	// DB-only run (false) recomputes and logs prices without touching the
	// channels' APIs.
	SyncToMarketplace *bool
}

// PriceConfig tunes the price sync service.
type PriceConfig struct {
	Batch batch.Config

	// Threshold is the minimum absolute drift, in percent, between the
	// current listing price and the recomputed one that triggers an update.
	// Keeps sub-cent exchange rate noise from churning marketplace APIs.
	Threshold types.Money

	DefaultLimit int

	// SyncToMarketplace is the default for runs that do not choose.
	SyncToMarketplace bool
}

// DefaultPriceConfig returns production defaults.
func DefaultPriceConfig() PriceConfig {
	return PriceConfig{
		Batch:             batch.DefaultConfig(),
		Threshold:         types.MustMoney("2"),
		DefaultLimit:      500,
		SyncToMarketplace: true,
	}
}

// PriceService runs the price reconciliation loop: recompute every active
// listing's target price from current cost, fees and exchange rate, and push
// drifted prices locally and to the marketplace.
type PriceService struct {
	cfg          PriceConfig
	listings     listing.Repository
	products     product.Repository
	priceLog     pricelog.Repository
	formula      pricing.Formula
	marketplaces *marketplace.Registry
	txm          tx.Manager
	retryPolicy  retry.Policy
	alerts       *alert.Manager
	gate         *Gate
	runs         *RunRegistry
	log          *logger.Logger
}

// NewPriceService creates the price sync service.
func NewPriceService(
	cfg PriceConfig,
	listings listing.Repository,
	products product.Repository,
	priceLog pricelog.Repository,
	formula pricing.Formula,
	marketplaces *marketplace.Registry,
	txm tx.Manager,
	retryPolicy retry.Policy,
	alerts *alert.Manager,
	gate *Gate,
	runs *RunRegistry,
	log *logger.Logger,
) *PriceService {
	return &PriceService{
		cfg:          cfg,
		listings:     listings,
		products:     products,
		priceLog:     priceLog,
		formula:      formula,
		marketplaces: marketplaces,
		txm:          txm,
		retryPolicy:  retryPolicy,
		alerts:       alerts,
		gate:         gate,
		runs:         runs,
		log:          log.WithComponent("price-sync"),
	}
}

// RunPriceSync executes one price sync run synchronously and returns the
// finished run record.
func (s *PriceService) RunPriceSync(ctx context.Context, opts PriceSyncOptions) (Run, error) {
	runID := s.runs.Begin(RunPriceSync)
	return s.execute(ctx, runID, opts)
}

// StartPriceSync begins a run and executes it in the background, returning
// the run ID immediately.
func (s *PriceService) StartPriceSync(opts PriceSyncOptions) string {
	runID := s.runs.Begin(RunPriceSync)
	go func() {
		if _, err := s.execute(context.Background(), runID, opts); err != nil {
			s.log.Errorw("price sync run failed", "run_id", runID, "error", err)
		}
	}()
	return runID
}

func (s *PriceService) execute(ctx context.Context, runID string, opts PriceSyncOptions) (Run, error) {
	ctx = appctx.WithTrace(ctx, appctx.NewRunTrace(runID))
	log := s.log.WithContext(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	candidates, err := s.listings.ListActive(ctx, limit)
	if err != nil {
		s.runs.Fail(runID, err)
		return s.finishedRun(runID), fmt.Errorf("load active listings: %w", err)
	}
	pushRemote := s.cfg.SyncToMarketplace
	if opts.SyncToMarketplace != nil {
		pushRemote = *opts.SyncToMarketplace
	}
	log.Infow("price sync run starting",
		"candidates", len(candidates), "force", opts.Force, "sync_to_marketplace", pushRemote)

	progress := make(chan batch.Progress, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			s.runs.Update(runID, p)
		}
	}()

	runner := batch.NewRunner[*listing.Listing, PriceOutcome](
		s.cfg.Batch, s.log,
		batch.WithProgress[*listing.Listing, PriceOutcome](progress),
	)
	res := runner.Run(ctx, candidates, func(ctx context.Context, l *listing.Listing) (PriceOutcome, error) {
		return s.reconcileOne(ctx, l, opts.Force, pushRemote)
	})
	close(progress)
	<-done

	summary := s.summarize(res)
	s.runs.Complete(runID, res.Stats, res.Aborted, summary)
	s.gate.RunSummary(ctx, "Price sync", summary)
	s.alerts.Publish(ctx, alert.Event{
		Type: alert.EventRunCompleted,
		Data: map[string]any{
			"run_id": runID,
			"kind":   string(RunPriceSync),
			"total":  res.Stats.Total,
			"failed": res.Stats.Failed,
		},
	})

	return s.finishedRun(runID), nil
}

// reconcileOne recomputes one listing's price and applies it when drifted.
// pushRemote gates the marketplace call; the local update is unconditional.
func (s *PriceService) reconcileOne(ctx context.Context, l *listing.Listing, force, pushRemote bool) (PriceOutcome, error) {
	out := PriceOutcome{ListingID: l.ID, Status: PriceStatusSkipped, OldPrice: l.ListingPrice}

	prod, err := s.products.GetByID(ctx, l.ProductID)
	if err != nil {
		return out, fmt.Errorf("load product for listing %s: %w", l.ID, err)
	}
	// Out-of-stock products belong to the inventory cascade, not to pricing.
	if !prod.InStock() {
		out.Reason = fmt.Sprintf("product is %s, repricing left to the inventory cascade", prod.Status)
		return out, nil
	}

	category := ""
	if prod.Category != nil {
		category = *prod.Category
	}
	target, err := s.formula.Compute(ctx, pricing.Input{
		SourceCost:  prod.Price,
		Weight:      prod.Weight,
		Category:    category,
		Marketplace: l.Marketplace,
	})
	if err != nil {
		return out, fmt.Errorf("compute price for listing %s: %w", l.ID, err)
	}

	out.NewPrice = target.ListingPrice
	out.ChangePercent = types.ChangePercent(l.ListingPrice, target.ListingPrice)

	if !force && out.ChangePercent.Abs().LessThan(s.cfg.Threshold) {
		out.Reason = fmt.Sprintf("drift %s%% below threshold %s%%",
			out.ChangePercent.StringFixed(2), s.cfg.Threshold.String())
		return out, nil
	}

	reason := fmt.Sprintf("auto price sync: cost %s JPY, drift %s%%",
		prod.Price.String(), out.ChangePercent.StringFixed(2))
	logSource := pricelog.SourceAutoSync
	if force {
		logSource = pricelog.SourceManual
		reason = fmt.Sprintf("forced price sync: cost %s JPY", prod.Price.String())
	}

	// Listing price and its audit entry commit together or not at all.
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		update := listing.PriceUpdate{
			ListingPrice: target.ListingPrice,
			ShippingCost: target.ShippingCost,
		}
		if err := s.listings.UpdatePrice(ctx, l.ID, update); err != nil {
			return err
		}
		entry := pricelog.NewEntry(l.ID, l.ListingPrice, target.ListingPrice, logSource, reason)
		return s.priceLog.Append(ctx, entry)
	})
	if err != nil {
		return out, fmt.Errorf("apply price for listing %s: %w", l.ID, err)
	}
	out.Status = PriceStatusUpdated

	if pushRemote {
		out.MarketplaceSynced = s.pushRemotePrice(ctx, l, target.ListingPrice)
	}
	return out, nil
}

// pushRemotePrice pushes the new price to the marketplace with retries.
// Failure is reported via alerting and reflected in the outcome only; the
// committed local price stands.
func (s *PriceService) pushRemotePrice(ctx context.Context, l *listing.Listing, price types.Money) bool {
	if !l.Published() {
		return false
	}
	adapter, ok := s.marketplaces.Resolve(l.Marketplace)
	if !ok {
		s.log.Warnw("no adapter for marketplace, price not pushed",
			"marketplace", l.Marketplace, "listing_id", l.ID)
		return false
	}

	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		return adapter.SetPrice(ctx, *l.MarketplaceListingID, price, l.Currency)
	})
	if err != nil {
		s.log.Errorw("marketplace price push failed",
			"listing_id", l.ID, "marketplace", l.Marketplace, "error", err)
		s.alerts.Publish(ctx, alert.Event{
			Type: alert.EventSyncError,
			Data: map[string]any{
				"listing_id":  l.ID.String(),
				"marketplace": string(l.Marketplace),
				"error":       err.Error(),
			},
		})
		return false
	}
	return true
}

func (s *PriceService) summarize(res *batch.Result[*listing.Listing, PriceOutcome]) map[string]any {
	var updated, skipped, unsynced int
	for _, ir := range res.Results {
		if !ir.Success {
			continue
		}
		switch ir.Result.Status {
		case PriceStatusUpdated:
			updated++
			if !ir.Result.MarketplaceSynced {
				unsynced++
			}
		case PriceStatusSkipped:
			skipped++
		}
	}
	return map[string]any{
		"total":              res.Stats.Total,
		"processed":          res.Stats.Processed,
		"succeeded":          res.Stats.Succeeded,
		"failed":             res.Stats.Failed,
		"aborted":            res.Aborted,
		"updated":            updated,
		"skipped":            skipped,
		"marketplace_unsync": unsynced,
		"duration":           res.Stats.Duration.String(),
	}
}

func (s *PriceService) finishedRun(runID string) Run {
	run, _ := s.runs.Get(runID)
	return run
}
