// Package batch provides the bounded-concurrency orchestrator used by the
// source and price reconciliation runs.
//
// Guarantees: at most MaxConcurrent items in flight, chunked execution with
// inter-chunk delays to smooth request rate against third-party sites,
// continue-on-error with a hard abort threshold, per-item timeout and
// item-level retry. Within a chunk, completion order is unspecified; chunk
// N+1 does not start until chunk N has drained and the inter-chunk delay has
// elapsed. That is the only ordering guarantee, and it exists to throttle
// request rate, not for correctness.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crosslist/internal/core/apperror"
	"crosslist/internal/retry"
	"crosslist/pkg/logger"
)

// Config holds orchestrator tuning knobs.
type Config struct {
	// MaxConcurrent bounds items in flight. Kept deliberately low: the
	// targets are third-party sites that must not be scraped aggressively.
	MaxConcurrent int

	// ChunkSize slices the candidate set; DelayBetweenChunks is inserted
	// between chunks.
	ChunkSize          int
	DelayBetweenChunks time.Duration

	// DelayBetweenItems is inserted between concurrency waves within a chunk.
	DelayBetweenItems time.Duration

	// ContinueOnError keeps the batch going after an item failure.
	ContinueOnError bool

	// MaxErrors aborts the batch once accumulated failures reach it (0 = no
	// threshold).
	MaxErrors int

	// ItemTimeout bounds one item's full pipeline per attempt (0 = unbounded).
	ItemTimeout time.Duration

	// RetryCount re-runs a whole failed item, independent of any retries
	// inside the item function.
	RetryCount            int
	RetryDelay            time.Duration
	UseExponentialBackoff bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:         3,
		ChunkSize:             50,
		DelayBetweenChunks:    time.Second,
		DelayBetweenItems:     100 * time.Millisecond,
		ContinueOnError:       true,
		MaxErrors:             10,
		ItemTimeout:           30 * time.Second,
		RetryCount:            2,
		RetryDelay:            time.Second,
		UseExponentialBackoff: true,
	}
}

// ItemResult is the outcome of one item.
type ItemResult[T, R any] struct {
	Item     T
	Index    int
	Success  bool
	Result   R
	Err      error
	Retries  int
	Duration time.Duration
}

// Stats aggregates one run.
type Stats struct {
	Total          int
	Processed      int
	Succeeded      int
	Failed         int
	Duration       time.Duration
	ItemsPerSecond float64
}

// Progress is published after every completed item.
type Progress struct {
	Current    int
	Total      int
	Percentage int
	Stats      Stats
}

// Result is the aggregate outcome of a run.
type Result[T, R any] struct {
	Results []ItemResult[T, R]
	Stats   Stats
	Aborted bool
}

// Hooks are optional observability callbacks. They fire synchronously as
// items complete and must never affect batch outcome: panics are recovered
// and logged.
type Hooks[T, R any] struct {
	OnItemStart    func(item T, index int)
	OnItemComplete func(res ItemResult[T, R])
	OnError        func(item T, index int, err error)
}

// Runner executes an item function over a candidate set.
type Runner[T, R any] struct {
	cfg      Config
	hooks    Hooks[T, R]
	progress chan<- Progress
	log      *logger.Logger
}

// Option configures a Runner.
type Option[T, R any] func(*Runner[T, R])

// WithHooks installs observability callbacks.
func WithHooks[T, R any](h Hooks[T, R]) Option[T, R] {
	return func(r *Runner[T, R]) { r.hooks = h }
}

// WithProgress publishes progress events to ch. Sends are non-blocking: a
// slow subscriber drops events rather than stalling the batch.
func WithProgress[T, R any](ch chan<- Progress) Option[T, R] {
	return func(r *Runner[T, R]) { r.progress = ch }
}

// NewRunner creates a Runner.
func NewRunner[T, R any](cfg Config, log *logger.Logger, opts ...Option[T, R]) *Runner[T, R] {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	r := &Runner[T, R]{cfg: cfg, log: log.WithComponent("batch")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes items with fn. One item's error never fails the batch; it is
// captured in its ItemResult and counted toward the abort threshold. Items
// not attempted after an abort are simply left for the next run.
func (r *Runner[T, R]) Run(ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error)) *Result[T, R] {
	start := time.Now()
	res := &Result[T, R]{
		Results: make([]ItemResult[T, R], 0, len(items)),
	}
	res.Stats.Total = len(items)
	if len(items) == 0 {
		return res
	}

	r.log.Infow("batch started", "total", len(items),
		"max_concurrent", r.cfg.MaxConcurrent, "chunk_size", r.cfg.ChunkSize)

	chunks := Chunk(items, r.cfg.ChunkSize)
	errorCount := 0
	globalIndex := 0

loop:
	for chunkIndex, chunk := range chunks {
		if ctx.Err() != nil {
			res.Aborted = true
			break
		}
		if r.cfg.MaxErrors > 0 && errorCount >= r.cfg.MaxErrors {
			r.log.Warnw("error threshold reached, aborting batch",
				"errors", errorCount, "max_errors", r.cfg.MaxErrors)
			res.Aborted = true
			break
		}

		// Process the chunk in waves of MaxConcurrent.
		for offset := 0; offset < len(chunk); offset += r.cfg.MaxConcurrent {
			if ctx.Err() != nil {
				res.Aborted = true
				break loop
			}
			if r.cfg.MaxErrors > 0 && errorCount >= r.cfg.MaxErrors {
				res.Aborted = true
				break loop
			}

			end := offset + r.cfg.MaxConcurrent
			if end > len(chunk) {
				end = len(chunk)
			}
			wave := chunk[offset:end]
			waveResults := make([]ItemResult[T, R], len(wave))

			var wg sync.WaitGroup
			for i, item := range wave {
				wg.Add(1)
				go func(i int, item T) {
					defer wg.Done()
					waveResults[i] = r.processItem(ctx, item, globalIndex+offset+i, fn)
				}(i, item)
			}
			wg.Wait()

			for _, ir := range waveResults {
				res.Results = append(res.Results, ir)
				res.Stats.Processed++
				if ir.Success {
					res.Stats.Succeeded++
				} else {
					res.Stats.Failed++
					errorCount++
					r.safeOnError(ir.Item, ir.Index, ir.Err)
					if !r.cfg.ContinueOnError {
						res.Aborted = true
					}
				}
				r.safeOnItemComplete(ir)
				r.publishProgress(res.Stats, len(items))
				if res.Aborted {
					break loop
				}
			}

			if end < len(chunk) && r.cfg.DelayBetweenItems > 0 {
				if err := retry.Sleep(ctx, r.cfg.DelayBetweenItems); err != nil {
					res.Aborted = true
					break loop
				}
			}
		}

		globalIndex += len(chunk)

		if chunkIndex < len(chunks)-1 && r.cfg.DelayBetweenChunks > 0 {
			if err := retry.Sleep(ctx, r.cfg.DelayBetweenChunks); err != nil {
				res.Aborted = true
				break
			}
		}
	}

	res.Stats.Duration = time.Since(start)
	if secs := res.Stats.Duration.Seconds(); secs > 0 {
		res.Stats.ItemsPerSecond = float64(res.Stats.Processed) / secs
	}

	r.log.Infow("batch finished",
		"processed", res.Stats.Processed,
		"succeeded", res.Stats.Succeeded,
		"failed", res.Stats.Failed,
		"aborted", res.Aborted,
		"duration", res.Stats.Duration)

	return res
}

// processItem runs one item with per-attempt timeout and item-level retries.
func (r *Runner[T, R]) processItem(ctx context.Context, item T, index int, fn func(ctx context.Context, item T) (R, error)) ItemResult[T, R] {
	start := time.Now()
	r.safeOnItemStart(item, index)

	var lastErr error
	for attempt := 0; attempt <= r.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay
			if r.cfg.UseExponentialBackoff {
				delay = r.cfg.RetryDelay << (attempt - 1)
			}
			r.log.Debugw("retrying item", "index", index, "attempt", attempt, "delay", delay)
			if err := retry.Sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		result, err := r.runAttempt(ctx, item, fn)
		if err == nil {
			return ItemResult[T, R]{
				Item:     item,
				Index:    index,
				Success:  true,
				Result:   result,
				Retries:  attempt,
				Duration: time.Since(start),
			}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return ItemResult[T, R]{
		Item:     item,
		Index:    index,
		Err:      lastErr,
		Retries:  r.cfg.RetryCount,
		Duration: time.Since(start),
	}
}

// runAttempt bounds one attempt with the item timeout. The deadline cancels
// the item's in-flight work through its context; a timeout is treated
// identically to any other error.
func (r *Runner[T, R]) runAttempt(ctx context.Context, item T, fn func(ctx context.Context, item T) (R, error)) (R, error) {
	if r.cfg.ItemTimeout <= 0 {
		return fn(ctx, item)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.ItemTimeout)
	defer cancel()

	result, err := fn(attemptCtx, item)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return result, apperror.NewTimeout("item processing").WithCause(err)
	}
	return result, err
}

func (r *Runner[T, R]) publishProgress(stats Stats, total int) {
	if r.progress == nil {
		return
	}
	p := Progress{
		Current: stats.Processed,
		Total:   total,
		Stats:   stats,
	}
	if total > 0 {
		p.Percentage = stats.Processed * 100 / total
	}
	select {
	case r.progress <- p:
	default:
	}
}

// --- panic-protected hooks ---

func (r *Runner[T, R]) safeOnItemStart(item T, index int) {
	if r.hooks.OnItemStart == nil {
		return
	}
	defer r.recoverHook("on_item_start")
	r.hooks.OnItemStart(item, index)
}

func (r *Runner[T, R]) safeOnItemComplete(res ItemResult[T, R]) {
	if r.hooks.OnItemComplete == nil {
		return
	}
	defer r.recoverHook("on_item_complete")
	r.hooks.OnItemComplete(res)
}

func (r *Runner[T, R]) safeOnError(item T, index int, err error) {
	if r.hooks.OnError == nil {
		return
	}
	defer r.recoverHook("on_error")
	r.hooks.OnError(item, index, err)
}

func (r *Runner[T, R]) recoverHook(hook string) {
	if rec := recover(); rec != nil {
		r.log.Errorw("batch hook panicked", "hook", hook, "panic", fmt.Sprint(rec))
	}
}

// Chunk splits items into slices of at most size.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
