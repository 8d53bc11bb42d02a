// Package main is the reconciliation worker: it runs the source sync and
// price sync loops on their intervals until stopped.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"crosslist/internal/app"
	"crosslist/internal/config"
	"crosslist/internal/reconcile"
	"crosslist/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting crosslist worker")

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to build application", "error", err)
	}
	defer application.Close()

	w := &worker{
		sourceSync:         application.SourceSync,
		priceSync:          application.PriceSync,
		sourceSyncInterval: cfg.SourceSyncInterval,
		priceSyncInterval:  cfg.PriceSyncInterval,
		log:                log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

type worker struct {
	sourceSync         *reconcile.Service
	priceSync          *reconcile.PriceService
	sourceSyncInterval time.Duration
	priceSyncInterval  time.Duration
	log                *logger.Logger
}

// run drives both loops from one goroutine. Runs are sequential on purpose:
// a source sync rewriting product costs should finish before a price sync
// reads them, and both loops share the batch rate budget against external
// APIs.
func (w *worker) run(ctx context.Context) {
	sourceTicker := time.NewTicker(w.sourceSyncInterval)
	defer sourceTicker.Stop()

	priceTicker := time.NewTicker(w.priceSyncInterval)
	defer priceTicker.Stop()

	// First pass on boot so a restarted worker does not wait a full interval.
	w.runSourceSync(ctx)
	w.runPriceSync(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sourceTicker.C:
			w.runSourceSync(ctx)
		case <-priceTicker.C:
			w.runPriceSync(ctx)
		}
	}
}

func (w *worker) runSourceSync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	run, err := w.sourceSync.RunSourceSync(ctx, reconcile.SourceSyncOptions{})
	if err != nil {
		w.log.Errorw("source sync run failed", "error", err)
		return
	}
	w.log.Infow("source sync run finished",
		"run_id", run.ID, "status", run.Status,
		"processed", run.Stats.Processed, "failed", run.Stats.Failed)
}

func (w *worker) runPriceSync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	run, err := w.priceSync.RunPriceSync(ctx, reconcile.PriceSyncOptions{})
	if err != nil {
		w.log.Errorw("price sync run failed", "error", err)
		return
	}
	w.log.Infow("price sync run finished",
		"run_id", run.ID, "status", run.Status,
		"processed", run.Stats.Processed, "failed", run.Stats.Failed)
}
