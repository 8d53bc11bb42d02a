package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosslist/pkg/logger"
)

func testConfig() Config {
	return Config{
		MaxConcurrent:   2,
		ChunkSize:       10,
		ContinueOnError: true,
	}
}

func intItems(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return items
}

func TestRunner_AllSucceed(t *testing.T) {
	r := NewRunner[int, int](testConfig(), logger.Default())

	res := r.Run(context.Background(), intItems(7), func(ctx context.Context, item int) (int, error) {
		return item * 2, nil
	})

	assert.Equal(t, 7, res.Stats.Total)
	assert.Equal(t, 7, res.Stats.Processed)
	assert.Equal(t, 7, res.Stats.Succeeded)
	assert.Equal(t, 0, res.Stats.Failed)
	assert.False(t, res.Aborted)
	require.Len(t, res.Results, 7)
	for _, ir := range res.Results {
		assert.True(t, ir.Success)
		assert.Equal(t, ir.Item*2, ir.Result)
	}
}

func TestRunner_EmptyInput(t *testing.T) {
	r := NewRunner[int, int](testConfig(), logger.Default())

	res := r.Run(context.Background(), nil, func(ctx context.Context, item int) (int, error) {
		t.Fatal("must not be called")
		return 0, nil
	})

	assert.Equal(t, 0, res.Stats.Total)
	assert.Empty(t, res.Results)
	assert.False(t, res.Aborted)
}

func TestRunner_ContinueOnError(t *testing.T) {
	r := NewRunner[int, int](testConfig(), logger.Default())
	boom := errors.New("boom")

	res := r.Run(context.Background(), intItems(6), func(ctx context.Context, item int) (int, error) {
		if item%2 == 1 {
			return 0, boom
		}
		return item, nil
	})

	assert.Equal(t, 6, res.Stats.Processed)
	assert.Equal(t, 3, res.Stats.Succeeded)
	assert.Equal(t, 3, res.Stats.Failed)
	assert.False(t, res.Aborted)
}

func TestRunner_MaxErrorsAborts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	cfg.MaxErrors = 2
	r := NewRunner[int, int](cfg, logger.Default())

	res := r.Run(context.Background(), intItems(10), func(ctx context.Context, item int) (int, error) {
		return 0, errors.New("always fails")
	})

	assert.True(t, res.Aborted)
	assert.Equal(t, 2, res.Stats.Failed)
	assert.Less(t, res.Stats.Processed, 10, "items past the threshold are left for the next run")
}

func TestRunner_StopOnFirstErrorWhenNotContinuing(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	cfg.ContinueOnError = false
	r := NewRunner[int, int](cfg, logger.Default())

	calls := 0
	res := r.Run(context.Background(), intItems(5), func(ctx context.Context, item int) (int, error) {
		calls++
		if item == 1 {
			return 0, errors.New("boom")
		}
		return item, nil
	})

	assert.True(t, res.Aborted)
	assert.Equal(t, 2, calls)
}

func TestRunner_ConcurrencyBound(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 3
	r := NewRunner[int, int](cfg, logger.Default())

	var inFlight, peak int64
	res := r.Run(context.Background(), intItems(20), func(ctx context.Context, item int) (int, error) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		defer atomic.AddInt64(&inFlight, -1)
		return item, nil
	})

	assert.Equal(t, 20, res.Stats.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
}

func TestRunner_ItemRetry(t *testing.T) {
	cfg := testConfig()
	cfg.RetryCount = 2
	r := NewRunner[int, int](cfg, logger.Default())

	var mu sync.Mutex
	attempts := map[int]int{}
	res := r.Run(context.Background(), []int{1}, func(ctx context.Context, item int) (int, error) {
		mu.Lock()
		attempts[item]++
		n := attempts[item]
		mu.Unlock()
		if n < 3 {
			return 0, errors.New("transient")
		}
		return item, nil
	})

	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].Success)
	assert.Equal(t, 2, res.Results[0].Retries)
	assert.Equal(t, 3, attempts[1])
}

func TestRunner_ContextCancelAborts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	r := NewRunner[int, int](cfg, logger.Default())

	ctx, cancel := context.WithCancel(context.Background())
	res := r.Run(ctx, intItems(10), func(ctx context.Context, item int) (int, error) {
		if item == 2 {
			cancel()
		}
		return item, nil
	})

	assert.True(t, res.Aborted)
	assert.Less(t, res.Stats.Processed, 10)
}

func TestRunner_HookPanicsAreContained(t *testing.T) {
	r := NewRunner[int, int](testConfig(), logger.Default(),
		WithHooks[int, int](Hooks[int, int]{
			OnItemStart:    func(item, index int) { panic("start") },
			OnItemComplete: func(res ItemResult[int, int]) { panic("complete") },
			OnError:        func(item, index int, err error) { panic("error") },
		}))

	res := r.Run(context.Background(), intItems(4), func(ctx context.Context, item int) (int, error) {
		if item == 0 {
			return 0, errors.New("boom")
		}
		return item, nil
	})

	assert.Equal(t, 4, res.Stats.Processed)
	assert.Equal(t, 3, res.Stats.Succeeded)
}

func TestRunner_ProgressNonBlocking(t *testing.T) {
	// Unbuffered channel with no reader: sends must be dropped, not stall.
	progress := make(chan Progress)
	r := NewRunner[int, int](testConfig(), logger.Default(),
		WithProgress[int, int](progress))

	res := r.Run(context.Background(), intItems(5), func(ctx context.Context, item int) (int, error) {
		return item, nil
	})

	assert.Equal(t, 5, res.Stats.Processed)
}

func TestRunner_ProgressDelivered(t *testing.T) {
	progress := make(chan Progress, 100)
	r := NewRunner[int, int](testConfig(), logger.Default(),
		WithProgress[int, int](progress))

	r.Run(context.Background(), intItems(5), func(ctx context.Context, item int) (int, error) {
		return item, nil
	})
	close(progress)

	var last Progress
	count := 0
	for p := range progress {
		last = p
		count++
	}
	assert.Equal(t, 5, count)
	assert.Equal(t, 5, last.Current)
	assert.Equal(t, 100, last.Percentage)
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want []int // chunk lengths
	}{
		{"even split", 10, 5, []int{5, 5}},
		{"remainder", 7, 3, []int{3, 3, 1}},
		{"single chunk", 2, 10, []int{2}},
		{"zero size keeps one chunk", 4, 0, []int{4}},
		{"empty", 0, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(intItems(tt.n), tt.size)
			var got []int
			for _, c := range chunks {
				got = append(got, len(c))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
