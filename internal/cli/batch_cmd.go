// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// batch_cmd.go - The batch command: route and execute many tasks with
// resource-aware concurrency.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/rigroute/internal/batch"
	"github.com/jeranaias/rigroute/internal/config"
	"github.com/jeranaias/rigroute/internal/detect"
	"github.com/jeranaias/rigroute/internal/history"
	"github.com/jeranaias/rigroute/internal/router"
)

// timeUnit rounds durations in output.
const timeUnit = time.Millisecond

// HandleBatch routes and executes a batch of tasks.
func HandleBatch(args *ArgParser) error {
	tasks, err := collectTasks(args)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("batch requires tasks, either as arguments or via --file")
	}

	app, err := NewApp()
	if err != nil {
		return err
	}
	defer app.Close()

	pol, err := app.ResolvePolicy(args.Flag("policy"))
	if err != nil {
		return err
	}

	base := args.FlagIntOrDefault("concurrency", app.Config.Batch.BaseConcurrency)
	engine := batch.NewEngine(base, detect.NewSystemDiscoverer())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Long runs are the realistic window for a config edit. Watch the file
	// and log a restart-required notice if it changes mid-run.
	if cfgPath, pathErr := config.ConfigPath(); pathErr == nil {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			go config.Watch(ctx, cfgPath)
		}
	}

	processor := func(ctx context.Context, index int, input string) (string, error) {
		sel, err := app.Engine.Select(ctx, router.Request{Task: input, Policy: pol})
		if err != nil {
			return "", err
		}
		app.RecordSelection(ctx, sel)
		return app.Generate(ctx, sel, input)
	}

	quiet := args.BoolFlag("json")
	progress := func(completed, total int, last batch.ItemResult) {
		if quiet {
			return
		}
		status := "ok"
		if !last.Success {
			status = "failed"
		}
		fmt.Fprintf(os.Stderr, "[%d/%d] item %d %s (%v)\n",
			completed, total, last.OriginalIndex, status, last.Duration.Round(timeUnit))
	}

	summary, err := engine.Run(ctx, tasks, processor, progress)
	if err != nil {
		return err
	}

	if app.history != nil {
		recErr := app.history.RecordBatch(ctx, history.BatchRecord{
			RunID:       summary.RunID,
			Total:       len(summary.Results),
			Succeeded:   summary.Succeeded,
			Failed:      summary.Failed,
			Concurrency: summary.Concurrency,
			Elapsed:     summary.Elapsed,
		})
		if recErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not record batch run: %v\n", recErr)
		}
	}

	if args.BoolFlag("json") {
		return printBatchJSON(summary)
	}
	printBatchSummary(summary)
	return nil
}

// collectTasks gathers tasks from --file (or stdin with "-") and positional
// arguments. Blank lines and #-comments in files are skipped.
func collectTasks(args *ArgParser) ([]string, error) {
	var tasks []string

	if path := args.Flag("file"); path != "" {
		var reader io.Reader
		if path == "-" {
			reader = os.Stdin
		} else {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("failed to open task file: %w", err)
			}
			defer f.Close()
			reader = f
		}

		scanner := bufio.NewScanner(reader)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			tasks = append(tasks, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read tasks: %w", err)
		}
	}

	tasks = append(tasks, args.PositionalFrom(0)...)
	return tasks, nil
}

// batchItemJSON is the per-item JSON shape with the error rendered.
type batchItemJSON struct {
	batch.ItemResult
	Error string `json:"error,omitempty"`
}

func printBatchJSON(summary batch.Summary) error {
	items := make([]batchItemJSON, 0, len(summary.Results))
	for _, r := range summary.Results {
		item := batchItemJSON{ItemResult: r}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		items = append(items, item)
	}

	out := struct {
		RunID       string          `json:"run_id"`
		Succeeded   int             `json:"succeeded"`
		Failed      int             `json:"failed"`
		Concurrency int             `json:"concurrency"`
		ElapsedMS   int64           `json:"elapsed_ms"`
		Results     []batchItemJSON `json:"results"`
	}{
		RunID:       summary.RunID,
		Succeeded:   summary.Succeeded,
		Failed:      summary.Failed,
		Concurrency: summary.Concurrency,
		ElapsedMS:   summary.Elapsed.Milliseconds(),
		Results:     items,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printBatchSummary(summary batch.Summary) {
	fmt.Printf("Batch %s: %d succeeded, %d failed (%d workers, %v)\n",
		summary.RunID, summary.Succeeded, summary.Failed,
		summary.Concurrency, summary.Elapsed.Round(timeUnit))

	for _, r := range summary.Results {
		if r.Success {
			fmt.Printf("\n--- [%d] %s ---\n%s\n", r.OriginalIndex, truncate(r.Input, 60), r.Output)
		} else {
			fmt.Printf("\n--- [%d] %s ---\nFAILED: %v\n", r.OriginalIndex, truncate(r.Input, 60), r.Err)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
