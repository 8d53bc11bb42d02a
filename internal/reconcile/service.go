package reconcile

import (
	"context"
	"fmt"
	"time"

	"crosslist/internal/alert"
	"crosslist/internal/batch"
	"crosslist/internal/core/apperror"
	appctx "crosslist/internal/core/context"
	"crosslist/internal/core/id"
	"crosslist/internal/domain/product"
	"crosslist/internal/source"
	"crosslist/pkg/logger"
)

// SourceSyncOptions selects the candidate set for one source sync run.
type SourceSyncOptions struct {
	// ProductIDs narrows the run to an explicit set (operator re-run).
	// When empty, candidates come from ListDueForCheck.
	ProductIDs []id.ID

	// Limit caps the candidate set. Zero uses the service default.
	Limit int

	// MaxAge skips products checked more recently than this. Zero uses the
	// service default.
	MaxAge time.Duration
}

// SourceOutcome is the per-product result of one source sync item.
type SourceOutcome struct {
	ProductID     id.ID
	Action        Action
	ListingsEnded int
	Skipped       bool
}

// ServiceConfig tunes the source sync service.
type ServiceConfig struct {
	Batch        batch.Config
	DefaultLimit int
	DefaultAge   time.Duration
}

// DefaultServiceConfig returns production defaults: re-check a product at
// most once per interval, a few hundred per run.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Batch:        batch.DefaultConfig(),
		DefaultLimit: 200,
		DefaultAge:   6 * time.Hour,
	}
}

// Service runs the source availability and price drift sync: poll each
// candidate's source listing, detect changes, cascade them locally and
// remotely, and notify through the gate.
type Service struct {
	cfg      ServiceConfig
	products product.Repository
	prober   *source.Prober
	cascade  *Cascader
	gate     *Gate
	alerts   *alert.Manager
	runs     *RunRegistry
	log      *logger.Logger
}

// NewService creates the source sync service.
func NewService(
	cfg ServiceConfig,
	products product.Repository,
	prober *source.Prober,
	cascade *Cascader,
	gate *Gate,
	alerts *alert.Manager,
	runs *RunRegistry,
	log *logger.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		products: products,
		prober:   prober,
		cascade:  cascade,
		gate:     gate,
		alerts:   alerts,
		runs:     runs,
		log:      log.WithComponent("source-sync"),
	}
}

// RunSourceSync executes one source sync run synchronously and returns the
// finished run record.
func (s *Service) RunSourceSync(ctx context.Context, opts SourceSyncOptions) (Run, error) {
	runID := s.runs.Begin(RunSourceSync)
	return s.execute(ctx, runID, opts)
}

// StartSourceSync begins a run and executes it in the background, returning
// the run ID immediately. Callers poll the registry for completion. The run
// uses a fresh context: it must outlive the HTTP request that triggered it.
func (s *Service) StartSourceSync(opts SourceSyncOptions) string {
	runID := s.runs.Begin(RunSourceSync)
	go func() {
		if _, err := s.execute(context.Background(), runID, opts); err != nil {
			s.log.Errorw("source sync run failed", "run_id", runID, "error", err)
		}
	}()
	return runID
}

func (s *Service) execute(ctx context.Context, runID string, opts SourceSyncOptions) (Run, error) {
	ctx = appctx.WithTrace(ctx, appctx.NewRunTrace(runID))
	log := s.log.WithContext(ctx)

	candidates, err := s.candidates(ctx, opts)
	if err != nil {
		s.runs.Fail(runID, err)
		return s.finishedRun(runID), fmt.Errorf("load candidates: %w", err)
	}
	log.Infow("source sync run starting", "candidates", len(candidates))

	progress := make(chan batch.Progress, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			s.runs.Update(runID, p)
		}
	}()

	runner := batch.NewRunner[*product.Product, SourceOutcome](
		s.cfg.Batch, s.log,
		batch.WithProgress[*product.Product, SourceOutcome](progress),
	)
	res := runner.Run(ctx, candidates, s.syncOne)
	close(progress)
	<-done

	summary := s.summarize(res)
	s.runs.Complete(runID, res.Stats, res.Aborted, summary)
	s.gate.RunSummary(ctx, "Source sync", summary)
	s.alerts.Publish(ctx, alert.Event{
		Type: alert.EventRunCompleted,
		Data: map[string]any{
			"run_id": runID,
			"kind":   string(RunSourceSync),
			"total":  res.Stats.Total,
			"failed": res.Stats.Failed,
		},
	})

	return s.finishedRun(runID), nil
}

// candidates loads the product set for this run.
func (s *Service) candidates(ctx context.Context, opts SourceSyncOptions) ([]*product.Product, error) {
	if len(opts.ProductIDs) > 0 {
		return s.products.ListByIDs(ctx, opts.ProductIDs)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	age := opts.MaxAge
	if age <= 0 {
		age = s.cfg.DefaultAge
	}
	return s.products.ListDueForCheck(ctx, limit, time.Now().UTC().Add(-age))
}

// syncOne is the per-item pipeline: probe, detect, cascade, notify.
func (s *Service) syncOne(ctx context.Context, prod *product.Product) (SourceOutcome, error) {
	out := SourceOutcome{ProductID: prod.ID, Action: ActionNone}

	snap, err := s.prober.Probe(ctx, prod)
	if err != nil {
		return out, err
	}

	d := Detect(prod, snap)
	out.Action = d.Action

	cr, err := s.cascade.Apply(ctx, prod, d)
	if err != nil {
		// Another run already applied this product's change. Its cascade and
		// notification happened there; nothing is lost by skipping.
		if apperror.IsConcurrentModification(err) {
			s.log.Infow("product changed by concurrent run, skipping",
				"product_id", prod.ID)
			out.Skipped = true
			return out, nil
		}
		return out, err
	}
	out.ListingsEnded = len(cr.ListingsEnded)

	if cr.LocalApplied {
		s.gate.AfterCascade(ctx, prod, d, cr)
	}
	return out, nil
}

func (s *Service) summarize(res *batch.Result[*product.Product, SourceOutcome]) map[string]any {
	var priceChanges, outOfStock, listingsEnded, skipped int
	for _, ir := range res.Results {
		if !ir.Success {
			continue
		}
		switch ir.Result.Action {
		case ActionUpdatePrice:
			priceChanges++
		case ActionMarkOutOfStock:
			outOfStock++
			listingsEnded += ir.Result.ListingsEnded
		}
		if ir.Result.Skipped {
			skipped++
		}
	}
	return map[string]any{
		"total":          res.Stats.Total,
		"processed":      res.Stats.Processed,
		"succeeded":      res.Stats.Succeeded,
		"failed":         res.Stats.Failed,
		"aborted":        res.Aborted,
		"price_changes":  priceChanges,
		"out_of_stock":   outOfStock,
		"listings_ended": listingsEnded,
		"skipped":        skipped,
		"duration":       res.Stats.Duration.String(),
	}
}

func (s *Service) finishedRun(runID string) Run {
	run, _ := s.runs.Get(runID)
	return run
}
