// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package batch executes many inference tasks concurrently under a resource
// bound.
//
// The engine sizes its worker pool from the machine's discovered capacity,
// never below the configured baseline, and caps it at the number of items so
// small batches do not hold idle slots. Each item succeeds or fails on its
// own; one bad task never aborts the batch. Results come back in submission
// order regardless of completion order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/rigroute/internal/detect"
)

// DefaultBaseConcurrency is the worker bound used when the config does not
// set one and resource discovery is unavailable.
const DefaultBaseConcurrency = 3

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoItems means Run was called with an empty batch.
	ErrNoItems = errors.New("batch has no items")
	// ErrNilProcessor means Run was called without a processor function.
	ErrNilProcessor = errors.New("batch processor is nil")
)

// =============================================================================
// TYPES
// =============================================================================

// Processor handles one batch item. It receives the item's submission index
// and input, and returns the produced output or an error.
type Processor func(ctx context.Context, index int, input string) (string, error)

// Progress is invoked after each item finishes, successfully or not.
// Callbacks run serialized; a panicking callback is logged and ignored.
type Progress func(completed, total int, last ItemResult)

// ItemResult is the outcome of one batch item.
type ItemResult struct {
	// OriginalIndex is the item's position in the submitted batch.
	OriginalIndex int `json:"original_index"`
	// Input is the submitted task text.
	Input string `json:"input"`
	// Output is the produced result. Empty on failure.
	Output string `json:"output,omitempty"`
	// Success is true when the processor returned without error.
	Success bool `json:"success"`
	// Err holds the failure, nil on success. Canceled items carry the
	// context error.
	Err error `json:"-"`
	// Duration is how long the item took. Zero for items never admitted.
	Duration time.Duration `json:"duration"`
}

// Summary is the outcome of a whole batch run.
type Summary struct {
	// RunID uniquely identifies this batch execution.
	RunID string `json:"run_id"`
	// Results holds one entry per submitted item, in submission order.
	Results []ItemResult `json:"results"`
	// Succeeded and Failed partition the batch. Canceled items count as
	// failed.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Concurrency is the worker bound the run actually used.
	Concurrency int `json:"concurrency"`
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed"`
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs batches with resource-aware concurrency. Safe for concurrent
// use; each Run is independent.
type Engine struct {
	base       int
	discoverer detect.Discoverer
}

// NewEngine creates a batch engine with the given baseline concurrency.
// A nil discoverer disables resource scaling; the baseline is used as-is.
func NewEngine(baseConcurrency int, discoverer detect.Discoverer) *Engine {
	if baseConcurrency <= 0 {
		baseConcurrency = DefaultBaseConcurrency
	}
	return &Engine{base: baseConcurrency, discoverer: discoverer}
}

// EffectiveConcurrency returns the worker bound for the current machine:
// the discovered capacity when it exceeds the baseline, otherwise the
// baseline. Discovery failure degrades to the baseline with a warning.
func (e *Engine) EffectiveConcurrency(ctx context.Context) int {
	if e.discoverer == nil {
		return e.base
	}

	snap, err := e.discoverer.Discover(ctx)
	if err != nil {
		log.Printf("BATCH: resource discovery failed, using base concurrency %d: %v", e.base, err)
		return e.base
	}

	if snap.EstimatedCapacity > e.base {
		return snap.EstimatedCapacity
	}
	return e.base
}

// Run executes the batch. Every submitted item gets exactly one entry in
// Summary.Results at its submission index. Context cancellation stops new
// items from being admitted; items already running finish and keep their
// results, and items never admitted are marked failed with the context
// error.
func (e *Engine) Run(ctx context.Context, inputs []string, process Processor, progress Progress) (Summary, error) {
	if len(inputs) == 0 {
		return Summary{}, ErrNoItems
	}
	if process == nil {
		return Summary{}, ErrNilProcessor
	}

	concurrency := e.EffectiveConcurrency(ctx)
	if concurrency > len(inputs) {
		concurrency = len(inputs)
	}

	runID := uuid.NewString()
	start := time.Now()
	log.Printf("BATCH: run %s starting, %d items, concurrency %d", runID, len(inputs), concurrency)

	results := make([]ItemResult, len(inputs))
	semaphore := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	var progressMu sync.Mutex
	completed := 0

	notify := func(r ItemResult) {
		progressMu.Lock()
		defer progressMu.Unlock()
		completed++
		if progress == nil {
			return
		}
		defer func() {
			if p := recover(); p != nil {
				log.Printf("BATCH: progress callback panicked: %v", p)
			}
		}()
		progress(completed, len(inputs), r)
	}

	for i, input := range inputs {
		// Admission gate. Once a slot is held the item runs to
		// completion even if the context is canceled afterward.
		if err := ctx.Err(); err != nil {
			results[i] = ItemResult{OriginalIndex: i, Input: input, Err: err}
			notify(results[i])
			continue
		}
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			results[i] = ItemResult{OriginalIndex: i, Input: input, Err: ctx.Err()}
			notify(results[i])
			continue
		}

		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			results[i] = processItem(ctx, i, input, process)
			notify(results[i])
		}(i, input)
	}

	wg.Wait()

	summary := Summary{
		RunID:       runID,
		Results:     results,
		Concurrency: concurrency,
		Elapsed:     time.Since(start),
	}
	for _, r := range results {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	log.Printf("BATCH: run %s done, %d succeeded, %d failed in %v",
		runID, summary.Succeeded, summary.Failed, summary.Elapsed)
	return summary, nil
}

// processItem runs one item, converting processor panics into failures so
// a misbehaving task cannot take down the batch.
func processItem(ctx context.Context, index int, input string, process Processor) (result ItemResult) {
	start := time.Now()
	result = ItemResult{OriginalIndex: index, Input: input}

	defer func() {
		result.Duration = time.Since(start)
		if p := recover(); p != nil {
			result.Success = false
			result.Output = ""
			result.Err = fmt.Errorf("task panicked: %v", p)
			log.Printf("BATCH: item %d panicked: %v", index, p)
		}
	}()

	output, err := process(ctx, index, input)
	if err != nil {
		result.Err = err
		return result
	}

	result.Output = output
	result.Success = true
	return result
}
