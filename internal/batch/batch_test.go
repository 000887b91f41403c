// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigroute/internal/detect"
)

type stubDiscoverer struct {
	capacity int
	err      error
}

func (s *stubDiscoverer) Discover(ctx context.Context) (detect.ResourceSnapshot, error) {
	if s.err != nil {
		return detect.ResourceSnapshot{}, s.err
	}
	return detect.ResourceSnapshot{EstimatedCapacity: s.capacity, Taken: time.Now()}, nil
}

func TestEffectiveConcurrency(t *testing.T) {
	tests := []struct {
		name string
		base int
		disc detect.Discoverer
		want int
	}{
		{"nil discoverer uses base", 4, nil, 4},
		{"capacity above base scales up", 2, &stubDiscoverer{capacity: 8}, 8},
		{"capacity below base keeps base", 4, &stubDiscoverer{capacity: 1}, 4},
		{"discovery error degrades to base", 3, &stubDiscoverer{err: errors.New("nvidia-smi missing")}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.base, tt.disc)
			assert.Equal(t, tt.want, e.EffectiveConcurrency(context.Background()))
		})
	}
}

func TestRunOrderedResults(t *testing.T) {
	e := NewEngine(4, nil)
	inputs := []string{"a", "b", "c", "d", "e"}

	// Finish out of order: later items complete first.
	summary, err := e.Run(context.Background(), inputs, func(ctx context.Context, i int, in string) (string, error) {
		time.Sleep(time.Duration(len(inputs)-i) * 5 * time.Millisecond)
		return "out-" + in, nil
	}, nil)
	require.NoError(t, err)

	require.Len(t, summary.Results, len(inputs))
	for i, r := range summary.Results {
		assert.Equal(t, i, r.OriginalIndex)
		assert.Equal(t, inputs[i], r.Input)
		assert.Equal(t, "out-"+inputs[i], r.Output)
		assert.True(t, r.Success)
	}
	assert.Equal(t, 5, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.NotEmpty(t, summary.RunID)
}

func TestRunFailureIsolation(t *testing.T) {
	e := NewEngine(2, nil)
	boom := errors.New("model unavailable")

	summary, err := e.Run(context.Background(), []string{"a", "b", "c", "d", "e"},
		func(ctx context.Context, i int, in string) (string, error) {
			if i == 2 {
				return "", boom
			}
			return "ok", nil
		}, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.Results[2].Success)
	assert.ErrorIs(t, summary.Results[2].Err, boom)
	for _, i := range []int{0, 1, 3, 4} {
		assert.True(t, summary.Results[i].Success, "item %d should succeed", i)
	}
}

func TestRunPanicIsolation(t *testing.T) {
	e := NewEngine(2, nil)

	summary, err := e.Run(context.Background(), []string{"a", "b", "c"},
		func(ctx context.Context, i int, in string) (string, error) {
			if i == 1 {
				panic("processor bug")
			}
			return "ok", nil
		}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.Results[1].Success)
	assert.Contains(t, summary.Results[1].Err.Error(), "panicked")
}

func TestRunConcurrencyBound(t *testing.T) {
	e := NewEngine(2, nil)

	var active, peak int32
	summary, err := e.Run(context.Background(), []string{"a", "b", "c", "d", "e", "f"},
		func(ctx context.Context, i int, in string) (string, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return "ok", nil
		}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Concurrency)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunConcurrencyCappedByBatchSize(t *testing.T) {
	e := NewEngine(10, nil)

	summary, err := e.Run(context.Background(), []string{"a", "b"},
		func(ctx context.Context, i int, in string) (string, error) { return "ok", nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Concurrency)
}

func TestRunProgress(t *testing.T) {
	e := NewEngine(3, nil)

	var mu sync.Mutex
	var calls []int
	summary, err := e.Run(context.Background(), []string{"a", "b", "c", "d"},
		func(ctx context.Context, i int, in string) (string, error) { return "ok", nil },
		func(completed, total int, last ItemResult) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, completed)
			assert.Equal(t, 4, total)
		})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Succeeded)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4}, calls)
}

func TestRunProgressPanicIgnored(t *testing.T) {
	e := NewEngine(2, nil)

	summary, err := e.Run(context.Background(), []string{"a", "b", "c"},
		func(ctx context.Context, i int, in string) (string, error) { return "ok", nil },
		func(completed, total int, last ItemResult) {
			panic("observer bug")
		})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
}

func TestRunCancellation(t *testing.T) {
	e := NewEngine(1, nil)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan Summary, 1)
	go func() {
		summary, err := e.Run(ctx, []string{"a", "b", "c"},
			func(ctx context.Context, i int, in string) (string, error) {
				if i == 0 {
					close(started)
					<-release
				}
				return fmt.Sprintf("out-%d", i), nil
			}, nil)
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
		done <- summary
	}()

	// Cancel while the first item holds the only slot, then let it finish.
	<-started
	cancel()
	close(release)

	summary := <-done

	// The admitted item keeps its result; the rest are marked canceled.
	assert.True(t, summary.Results[0].Success)
	assert.Equal(t, "out-0", summary.Results[0].Output)
	assert.False(t, summary.Results[1].Success)
	assert.ErrorIs(t, summary.Results[1].Err, context.Canceled)
	assert.False(t, summary.Results[2].Success)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
}

func TestRunEmptyBatch(t *testing.T) {
	e := NewEngine(2, nil)

	_, err := e.Run(context.Background(), nil,
		func(ctx context.Context, i int, in string) (string, error) { return "", nil }, nil)
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = e.Run(context.Background(), []string{"a"}, nil, nil)
	assert.ErrorIs(t, err, ErrNilProcessor)
}
